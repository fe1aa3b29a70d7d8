package domain

import "testing"

func TestUploadedImageValidate(t *testing.T) {
	valid := UploadedImage{
		Data:        []byte{0xff, 0xd8, 0xff},
		ContentType: "image/jpeg",
		Filename:    "menu.jpg",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid upload, got error: %v", err)
	}

	empty := UploadedImage{ContentType: "image/jpeg", Filename: "menu.jpg"}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected validation error for empty buffer")
	}

	missingType := UploadedImage{Data: []byte{1}, Filename: "menu.jpg"}
	if err := missingType.Validate(); err == nil {
		t.Fatal("expected validation error for missing content type")
	}

	disallowed := UploadedImage{
		Data:        []byte{1},
		ContentType: "application/pdf",
		Filename:    "menu.pdf",
	}
	if err := disallowed.Validate(); err == nil {
		t.Fatal("expected validation error for disallowed content type")
	}

	mixedCase := UploadedImage{
		Data:        []byte{1},
		ContentType: " IMAGE/PNG ",
		Filename:    "sign.png",
	}
	if err := mixedCase.Validate(); err != nil {
		t.Fatalf("expected case-insensitive content type match, got %v", err)
	}
}

func TestExtractionResultProject(t *testing.T) {
	extraction := ExtractionResult{
		OCR: OCRResult{Text: "こんにちは", Confidence: 0.97},
		Translation: BasicTranslation{
			RawText: "こんにちは",
			Translation: TranslationPair{
				Literal: "hello",
				Natural: "hi there",
			},
			Context: UsageContext{Usage: "greeting", Formality: "casual"},
		},
	}

	projected := extraction.Project()
	if projected.OCR != extraction.OCR {
		t.Fatalf("expected ocr block carried through, got %+v", projected.OCR)
	}
	if projected.Translation.RawText != "こんにちは" {
		t.Fatalf("expected raw_text こんにちは, got %q", projected.Translation.RawText)
	}
	if projected.Translation.Literal != "hello" {
		t.Fatalf("expected literal hello, got %q", projected.Translation.Literal)
	}
}
