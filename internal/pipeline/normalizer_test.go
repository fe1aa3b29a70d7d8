package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestNormalizeIdentityBelowBound(t *testing.T) {
	normalizer := stdlibNormalizer{}
	src := buildTestPNG(t, 240, 120)

	out, err := normalizer.Normalize(context.Background(), src, "image/png")
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}

	if !bytes.Equal(out.Data, src) {
		t.Fatal("expected original bytes untouched for image within the bound")
	}
	if out.Resized {
		t.Fatal("expected resized=false for image within the bound")
	}
	if out.Width != 240 || out.Height != 120 {
		t.Fatalf("expected 240x120, got %dx%d", out.Width, out.Height)
	}
}

func TestNormalizeResizesLandscape(t *testing.T) {
	normalizer := stdlibNormalizer{}
	src := buildTestPNG(t, 2000, 1000)

	out, err := normalizer.Normalize(context.Background(), src, "image/png")
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}

	if !out.Resized {
		t.Fatal("expected resized=true for oversize image")
	}
	if out.Width != 500 || out.Height != 250 {
		t.Fatalf("expected 500x250, got %dx%d", out.Width, out.Height)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode normalized output: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg re-encode, got %s", format)
	}
	if decoded.Bounds().Dx() != 500 || decoded.Bounds().Dy() != 250 {
		t.Fatalf("expected decoded 500x250, got %dx%d", decoded.Bounds().Dx(), decoded.Bounds().Dy())
	}
}

func TestNormalizeResizesPortrait(t *testing.T) {
	normalizer := stdlibNormalizer{}
	src := buildTestJPEG(t, 600, 1200)

	out, err := normalizer.Normalize(context.Background(), src, "image/jpeg")
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}
	if out.Width != 250 || out.Height != 500 {
		t.Fatalf("expected 250x500, got %dx%d", out.Width, out.Height)
	}
}

func TestNormalizeNeverEnlarges(t *testing.T) {
	normalizer := stdlibNormalizer{}
	src := buildTestJPEG(t, 32, 16)

	out, err := normalizer.Normalize(context.Background(), src, "image/jpeg")
	if err != nil {
		t.Fatalf("normalize returned error: %v", err)
	}
	if out.Width != 32 || out.Height != 16 {
		t.Fatalf("expected 32x16 unchanged, got %dx%d", out.Width, out.Height)
	}
	if !bytes.Equal(out.Data, src) {
		t.Fatal("expected small image bytes untouched")
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	normalizer := stdlibNormalizer{}

	cases := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{name: "empty buffer", data: nil, contentType: "image/jpeg"},
		{name: "disallowed type", data: buildTestPNG(t, 10, 10), contentType: "application/pdf"},
		{name: "corrupt data", data: []byte("definitely not an image"), contentType: "image/png"},
		{name: "type mismatch garbage", data: bytes.Repeat([]byte{0x00}, 64), contentType: "image/jpeg"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := normalizer.Normalize(context.Background(), tc.data, tc.contentType)
			var invalidErr *InvalidImageError
			if !errors.As(err, &invalidErr) {
				t.Fatalf("expected InvalidImageError, got %v", err)
			}
		})
	}
}

func TestFitWithin(t *testing.T) {
	cases := []struct {
		width, height         int
		wantWidth, wantHeight int
	}{
		{2000, 1000, 500, 250},
		{1000, 2000, 250, 500},
		{500, 500, 500, 500},
		{400, 300, 400, 300},
		{501, 500, 500, 499},
		{10000, 1, 500, 1},
	}

	for _, tc := range cases {
		gotWidth, gotHeight := fitWithin(tc.width, tc.height, MaxDimension)
		if gotWidth != tc.wantWidth || gotHeight != tc.wantHeight {
			t.Errorf("fitWithin(%d, %d) = %dx%d, want %dx%d",
				tc.width, tc.height, gotWidth, gotHeight, tc.wantWidth, tc.wantHeight)
		}
	}
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, buildTestImage(w, h)); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func buildTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, buildTestImage(w, h), &jpeg.Options{Quality: 85}); err != nil {
		t.Fatalf("encode source jpeg: %v", err)
	}
	return buf.Bytes()
}

func buildTestImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}
	return img
}
