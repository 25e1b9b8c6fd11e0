package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine implements Engine with a local libtesseract client.
type TesseractEngine struct {
	// gosseract clients are not safe for concurrent use.
	mu     sync.Mutex
	client *gosseract.Client
	lang   string
}

// NewTesseractEngine creates a tesseract engine for the given language(s), e.g. "eng".
func NewTesseractEngine(languages ...string) (*TesseractEngine, error) {
	const op = "NewTesseractEngine"

	if len(languages) == 0 {
		languages = []string{"eng"}
	}

	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, WrapOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("set language %v: %v", languages, err))
	}

	return &TesseractEngine{
		client: client,
		lang:   strings.Join(languages, "+"),
	}, nil
}

// Name identifies the backend.
func (t *TesseractEngine) Name() string {
	return BackendTesseract
}

// Recognize returns one fragment per text line.
func (t *TesseractEngine) Recognize(ctx context.Context, png []byte) ([]Fragment, error) {
	const op = "TesseractEngine.Recognize"

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "engine is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapOCRError(op, ErrContextCanceled, err.Error())
	}

	if err := t.client.SetImageFromBytes(png); err != nil {
		return nil, WrapOCRError(op, ErrInvalidImage, err.Error())
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("tesseract (%s): %v", t.lang, err))
	}

	fragments := make([]Fragment, 0, len(boxes))
	for _, box := range boxes {
		text := strings.TrimSpace(box.Word)
		if text == "" {
			continue
		}
		// tesseract confidences are 0..100
		fragments = append(fragments, Fragment{Text: text, Confidence: float32(box.Confidence / 100)})
	}
	return fragments, nil
}

// Close releases the tesseract client.
func (t *TesseractEngine) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	return nil
}
