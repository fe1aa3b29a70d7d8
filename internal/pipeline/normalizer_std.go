package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/AndreMinHo/JPLens/internal/domain"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

type stdlibNormalizer struct{}

func (n stdlibNormalizer) Normalize(ctx context.Context, data []byte, contentType string) (NormalizedImage, error) {
	select {
	case <-ctx.Done():
		return NormalizedImage{}, ctx.Err()
	default:
	}

	if len(data) == 0 {
		return NormalizedImage{}, &InvalidImageError{Reason: "image file is empty"}
	}
	if !domain.AllowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))] {
		return NormalizedImage{}, &InvalidImageError{Reason: "unsupported image type: " + contentType}
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return NormalizedImage{}, &InvalidImageError{Reason: "corrupt or unsupported image data"}
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return NormalizedImage{}, &InvalidImageError{Reason: "invalid dimensions"}
	}

	// Already within the bound: keep the original bytes so small uploads
	// skip a lossy re-encode entirely.
	if width <= MaxDimension && height <= MaxDimension {
		return NormalizedImage{
			Data:   data,
			Width:  width,
			Height: height,
		}, nil
	}

	targetWidth, targetHeight := fitWithin(width, height, MaxDimension)
	resized := imaging.Resize(src, targetWidth, targetHeight, imaging.Lanczos)
	outBounds := resized.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return NormalizedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return NormalizedImage{
		Data:    buf.Bytes(),
		Width:   outBounds.Dx(),
		Height:  outBounds.Dy(),
		Resized: true,
	}, nil
}
