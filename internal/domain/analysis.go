package domain

import (
	"errors"
	"fmt"
	"strings"
)

// AllowedImageTypes is the upload MIME allow-list shared by the gateway's
// transport gate and the normalizer's own validation.
var AllowedImageTypes = map[string]bool{
	"image/jpeg":     true,
	"image/png":      true,
	"image/gif":      true,
	"image/webp":     true,
	"image/bmp":      true,
	"image/x-ms-bmp": true,
}

// UploadedImage is the raw upload captured at the request boundary. It is
// owned by a single pipeline run and discarded when that run finishes.
type UploadedImage struct {
	Data        []byte
	ContentType string
	Filename    string
}

func (u UploadedImage) Validate() error {
	if len(u.Data) == 0 {
		return errors.New("image file is empty")
	}
	contentType := strings.ToLower(strings.TrimSpace(u.ContentType))
	if contentType == "" {
		return errors.New("image content type is required")
	}
	if !AllowedImageTypes[contentType] {
		return fmt.Errorf("unsupported image type: %s", u.ContentType)
	}
	return nil
}

type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type TranslationPair struct {
	Literal string `json:"literal"`
	Natural string `json:"natural"`
}

type UsageContext struct {
	Usage     string `json:"usage"`
	Formality string `json:"formality"`
}

// BasicTranslation is the structured translation block returned by the
// extraction service alongside the OCR result.
type BasicTranslation struct {
	RawText     string          `json:"raw_text"`
	Translation TranslationPair `json:"translation"`
	Context     UsageContext    `json:"context"`
}

// ExtractionResult is the full stage-1 response.
type ExtractionResult struct {
	OCR         OCRResult        `json:"ocr"`
	Translation BasicTranslation `json:"translation"`
}

// EnrichmentRequest is the stage-2 input: a deliberate narrowing of the
// stage-1 result to the recognized text and its literal translation, so the
// enrichment service never depends on the extraction service's full shape.
type EnrichmentRequest struct {
	OCR         OCRResult          `json:"ocr"`
	Translation EnrichmentSeedText `json:"translation"`
}

type EnrichmentSeedText struct {
	RawText string `json:"raw_text"`
	Literal string `json:"literal"`
}

// Project builds the stage-2 request from a stage-1 result.
func (e ExtractionResult) Project() EnrichmentRequest {
	return EnrichmentRequest{
		OCR: e.OCR,
		Translation: EnrichmentSeedText{
			RawText: e.Translation.RawText,
			Literal: e.Translation.Translation.Literal,
		},
	}
}

type UsageExample struct {
	ExampleJapanese string `json:"example_japanese"`
	ExampleEnglish  string `json:"example_english"`
}

type EnhancedAnalysis struct {
	NaturalTranslation string       `json:"natural_translation"`
	CulturalNote       string       `json:"cultural_note"`
	Insight            string       `json:"insight"`
	UsageExample       UsageExample `json:"usage_example"`
}

// EnrichmentResult is the full stage-2 response.
type EnrichmentResult struct {
	EnhancedAnalysis EnhancedAnalysis `json:"ai_enhanced_analysis"`
}

// ComposedResponse is the unit returned to the client: the original upload
// name plus both downstream results, assembled only when every stage
// succeeded.
type ComposedResponse struct {
	OriginalImage    string           `json:"originalImage"`
	OCR              OCRResult        `json:"ocr"`
	BasicTranslation BasicTranslation `json:"basicTranslation"`
	AIAnalysis       EnrichmentResult `json:"aiAnalysis"`
}
