// Package ocr extracts text from prescription images.
//
// Images are decoded, normalised to an RGB colour model and handed to an
// Engine as PNG. Three engines are available:
//   - tesseract: local recognition through libtesseract (gosseract)
//   - vision: Google Cloud Vision document text detection
//   - documentai: a Google Document AI OCR processor
//
// Required Environment Variables (cloud engines only):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID: for documentai
//
// Recognised fragments are joined with single spaces; bounding boxes are
// ignored.
package ocr

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"pharmabot/internal/logger"
)

// OCRService defines the interface for text extraction from images.
type OCRService interface {
	// ExtractText returns the recognised text of an image.
	ExtractText(ctx context.Context, image io.Reader) (string, error)

	// ExtractTextWithMetadata returns the recognised text with confidence and timing.
	ExtractTextWithMetadata(ctx context.Context, image io.Reader) (*OCRResult, error)
}

// Engine recognises text in a PNG encoded image.
type Engine interface {
	// Name identifies the backend (tesseract, vision, documentai).
	Name() string

	// Recognize returns text fragments in reading order.
	Recognize(ctx context.Context, png []byte) ([]Fragment, error)

	// Close releases engine resources.
	Close() error
}

// Fragment is one piece of recognised text.
type Fragment struct {
	Text string

	// Confidence is in 0..1; zero when the engine reports none.
	Confidence float32
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the recognised text, fragments joined with single spaces.
	Text string `json:"text"`

	// Fragments is the number of fragments the engine returned.
	Fragments int `json:"fragments"`

	// Confidence is the average confidence across fragments that reported one.
	Confidence float32 `json:"confidence"`

	// Engine is the backend that produced the text.
	Engine string `json:"engine"`

	// Width and Height are the decoded image dimensions.
	Width  int `json:"width"`
	Height int `json:"height"`

	// ProcessedAt is the timestamp when OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingDuration is how long OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// ImageOCRService implements OCRService on top of an Engine.
type ImageOCRService struct {
	engine Engine
	log    zerolog.Logger
}

// NewImageOCRService creates a service that recognises text with engine.
func NewImageOCRService(engine Engine) *ImageOCRService {
	return &ImageOCRService{
		engine: engine,
		log:    logger.WithComponent("ocr"),
	}
}

// ExtractText returns the recognised text of an image.
func (s *ImageOCRService) ExtractText(ctx context.Context, image io.Reader) (string, error) {
	result, err := s.ExtractTextWithMetadata(ctx, image)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ExtractTextWithMetadata returns the recognised text with confidence and timing.
func (s *ImageOCRService) ExtractTextWithMetadata(ctx context.Context, image io.Reader) (*OCRResult, error) {
	const op = "ExtractTextWithMetadata"
	startTime := time.Now()

	prepared, err := PrepareImage(image)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to prepare image")
	}

	s.log.Debug().
		Str("engine", s.engine.Name()).
		Int("width", prepared.Width).
		Int("height", prepared.Height).
		Str("source_format", prepared.SourceFormat).
		Msg("Running text recognition")

	fragments, err := s.engine.Recognize(ctx, prepared.PNG)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapOCRError(op, ErrContextCanceled, ctx.Err().Error())
		}
		return nil, WrapOCRError(op, err, "engine "+s.engine.Name())
	}

	text, confidence := joinFragments(fragments)
	if text == "" {
		return nil, WrapOCRError(op, ErrEmptyDocument, "engine "+s.engine.Name())
	}

	result := &OCRResult{
		Text:        text,
		Fragments:   len(fragments),
		Confidence:  confidence,
		Engine:      s.engine.Name(),
		Width:       prepared.Width,
		Height:      prepared.Height,
		ProcessedAt: time.Now(),
	}
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	s.log.Info().
		Str("engine", result.Engine).
		Int("fragments", result.Fragments).
		Float32("confidence", result.Confidence).
		Int("text_length", len(result.Text)).
		Dur("duration", result.ProcessingDuration).
		Msg("Text recognition completed")

	return result, nil
}

// joinFragments concatenates fragment text with single spaces and averages
// the reported confidences.
func joinFragments(fragments []Fragment) (string, float32) {
	parts := make([]string, 0, len(fragments))
	var confidenceSum float32
	var confidenceCount int
	for _, f := range fragments {
		parts = append(parts, f.Text)
		if f.Confidence > 0 {
			confidenceSum += f.Confidence
			confidenceCount++
		}
	}

	var avg float32
	if confidenceCount > 0 {
		avg = confidenceSum / float32(confidenceCount)
	}
	return strings.TrimSpace(strings.Join(parts, " ")), avg
}
