package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/anthonynsimon/bild/clone"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxImageSizeBytes is the largest image accepted (Cloud Vision's inline limit).
const MaxImageSizeBytes = 20 * 1024 * 1024

// PreparedImage is an uploaded image re-encoded for the engines.
type PreparedImage struct {
	PNG          []byte
	Width        int
	Height       int
	SourceFormat string // jpeg, png, gif, bmp, tiff, webp
}

// PrepareImage decodes an image, converts it to an RGB colour model and
// encodes it as PNG.
func PrepareImage(r io.Reader) (*PreparedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageSizeBytes {
		return nil, ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidImage)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	// Palette, grayscale and CMYK inputs are flattened to RGBA.
	rgba := clone.AsRGBA(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	bounds := rgba.Bounds()
	return &PreparedImage{
		PNG:          buf.Bytes(),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceFormat: format,
	}, nil
}
