package pipeline

import "context"

const (
	// MaxDimension bounds the longest side of any image sent downstream.
	// OCR latency and memory scale with input size, and raw phone-camera
	// uploads can be tens of megapixels.
	MaxDimension = 500

	// JPEGQuality is the re-encode quality for resized images.
	JPEGQuality = 90
)

// InvalidImageError marks an upload the client can fix: empty, disallowed,
// corrupt, or dimensionless data. The gateway maps it to a client error.
type InvalidImageError struct {
	Reason string
}

func (e *InvalidImageError) Error() string {
	return "invalid image: " + e.Reason
}

// NormalizedImage is a decodable image whose longest side is at most
// MaxDimension. When the source already fits the bound, Data holds the
// original bytes untouched.
type NormalizedImage struct {
	Data    []byte
	Width   int
	Height  int
	Resized bool
}

type Normalizer interface {
	Normalize(ctx context.Context, data []byte, contentType string) (NormalizedImage, error)
}

// NewNormalizer returns the build-selected normalizer implementation.
func NewNormalizer() (Normalizer, error) {
	return newNormalizer()
}

// fitWithin computes target dimensions with the longer side scaled to the
// bound and aspect ratio preserved, rounding the shorter side.
func fitWithin(width, height, bound int) (int, int) {
	if width <= bound && height <= bound {
		return width, height
	}
	if width >= height {
		scaled := (height*bound + width/2) / width
		return bound, maxInt(1, scaled)
	}
	scaled := (width*bound + height/2) / height
	return maxInt(1, scaled), bound
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
