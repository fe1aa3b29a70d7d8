//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/AndreMinHo/JPLens/internal/domain"
	"github.com/davidbyttow/govips/v2/vips"
)

type govipsNormalizer struct{}

func (n govipsNormalizer) Normalize(ctx context.Context, data []byte, contentType string) (NormalizedImage, error) {
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

	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return NormalizedImage{}, &InvalidImageError{Reason: "corrupt or unsupported image data"}
	}
	defer img.Close()

	width := img.Width()
	height := img.Height()
	if width <= 0 || height <= 0 {
		return NormalizedImage{}, &InvalidImageError{Reason: "invalid dimensions"}
	}

	if width <= MaxDimension && height <= MaxDimension {
		return NormalizedImage{
			Data:   data,
			Width:  width,
			Height: height,
		}, nil
	}

	longest := maxInt(width, height)
	scale := float64(MaxDimension) / float64(longest)
	if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
		return NormalizedImage{}, fmt.Errorf("resize image: %w", err)
	}

	params := vips.NewJpegExportParams()
	params.Quality = JPEGQuality
	out, _, err := img.ExportJpeg(params)
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return NormalizedImage{
		Data:    out,
		Width:   img.Width(),
		Height:  img.Height(),
		Resized: true,
	}, nil
}
