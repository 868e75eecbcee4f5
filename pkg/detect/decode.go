package detect

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	// Decoders for the formats accepted on upload.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"mercator-hq/wastewatch/pkg/apperr"
)

// ErrImageTooLarge is wrapped by DecodeImage when the declared dimensions
// exceed the pixel limit.
var ErrImageTooLarge = errors.New("image dimensions exceed limit")

// DecodeImage decodes an uploaded image. Any failure, including an empty
// body, is a FileReadError. When maxPixels is positive the header is read
// first and an image declaring more than maxPixels pixels is rejected
// before any pixel data is allocated.
func DecodeImage(r io.Reader, maxPixels int64) (image.Image, error) {
	if maxPixels > 0 {
		var head bytes.Buffer
		cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
		if err != nil {
			return nil, apperr.FileRead(fmt.Errorf("decode image header: %w", err))
		}
		if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
			return nil, apperr.FileRead(fmt.Errorf("%w: %dx%d is over %d pixels",
				ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels))
		}
		r = io.MultiReader(&head, r)
	}

	img, format, err := image.Decode(r)
	if err != nil {
		return nil, apperr.FileRead(fmt.Errorf("decode image: %w", err))
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, apperr.FileRead(fmt.Errorf("decode image: empty %s image", format))
	}
	return img, nil
}
