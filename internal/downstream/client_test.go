package downstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AndreMinHo/JPLens/internal/domain"
)

func TestTranslateImagePostsMultipart(t *testing.T) {
	var (
		gotPath      string
		gotFilename  string
		gotPartType  string
		gotPartBytes []byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("read form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()

		gotFilename = header.Filename
		gotPartType = header.Header.Get("Content-Type")
		gotPartBytes, _ = io.ReadAll(file)

		writeTestJSON(w, http.StatusOK, map[string]any{
			"ocr": map[string]any{"text": "駅", "confidence": 0.91},
			"translation": map[string]any{
				"raw_text": "駅",
				"translation": map[string]any{
					"literal": "station",
					"natural": "train station",
				},
				"context": map[string]any{"usage": "signage", "formality": "neutral"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{ExtractionURL: srv.URL, EnrichmentURL: srv.URL, Timeout: 2 * time.Second})

	image := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	result, err := client.TranslateImage(context.Background(), image, "station.jpg")
	if err != nil {
		t.Fatalf("translate image returned error: %v", err)
	}

	if gotPath != "/translate-image" {
		t.Fatalf("expected /translate-image, got %s", gotPath)
	}
	if gotFilename != "station.jpg" {
		t.Fatalf("expected filename station.jpg, got %q", gotFilename)
	}
	if gotPartType != "image/jpeg" {
		t.Fatalf("expected part content type image/jpeg, got %q", gotPartType)
	}
	if string(gotPartBytes) != string(image) {
		t.Fatal("expected image bytes forwarded unchanged")
	}

	if result.OCR.Text != "駅" || result.OCR.Confidence != 0.91 {
		t.Fatalf("unexpected ocr result: %+v", result.OCR)
	}
	if result.Translation.Translation.Literal != "station" {
		t.Fatalf("unexpected translation result: %+v", result.Translation)
	}
}

func TestAnalyzeSimplePostsNarrowedPayload(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze/simple" {
			t.Errorf("expected /analyze/simple, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}

		writeTestJSON(w, http.StatusOK, map[string]any{
			"ai_enhanced_analysis": map[string]any{
				"natural_translation": "The station",
				"cultural_note":       "Stations anchor neighborhood names.",
				"insight":             "Look for the kanji on platform signs.",
				"usage_example": map[string]any{
					"example_japanese": "駅はどこですか",
					"example_english":  "Where is the station?",
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{ExtractionURL: srv.URL, EnrichmentURL: srv.URL, Timeout: 2 * time.Second})

	result, err := client.AnalyzeSimple(context.Background(), domain.EnrichmentRequest{
		OCR: domain.OCRResult{Text: "駅", Confidence: 0.91},
		Translation: domain.EnrichmentSeedText{
			RawText: "駅",
			Literal: "station",
		},
	})
	if err != nil {
		t.Fatalf("analyze simple returned error: %v", err)
	}

	translation, ok := gotBody["translation"].(map[string]any)
	if !ok {
		t.Fatalf("expected translation object in payload, got %v", gotBody)
	}
	if translation["raw_text"] != "駅" || translation["literal"] != "station" {
		t.Fatalf("expected narrowed translation payload, got %v", translation)
	}
	if _, hasFull := translation["translation"]; hasFull {
		t.Fatal("expected stage-2 payload to exclude the full stage-1 translation object")
	}

	if result.EnhancedAnalysis.NaturalTranslation != "The station" {
		t.Fatalf("unexpected enrichment result: %+v", result)
	}
}

func TestDownstreamStatusErrorCarriesServiceMessage(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "json error field", status: 503, body: `{"error":"model overloaded"}`, wantMsg: "model overloaded"},
		{name: "json detail field", status: 422, body: `{"detail":"no text found"}`, wantMsg: "no text found"},
		{name: "raw body", status: 500, body: "internal failure", wantMsg: "internal failure"},
		{name: "empty body falls back to status", status: 502, body: "", wantMsg: "502 Bad Gateway"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClient(Config{ExtractionURL: srv.URL, EnrichmentURL: srv.URL, Timeout: 2 * time.Second})

			_, err := client.TranslateImage(context.Background(), []byte{1, 2, 3}, "x.jpg")
			var dsErr *Error
			if !errors.As(err, &dsErr) {
				t.Fatalf("expected downstream error, got %v", err)
			}
			if dsErr.Stage != StageExtraction {
				t.Fatalf("expected extraction stage, got %s", dsErr.Stage)
			}
			if dsErr.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, dsErr.StatusCode)
			}
			if dsErr.Message != tc.wantMsg {
				t.Fatalf("expected message %q, got %q", tc.wantMsg, dsErr.Message)
			}
		})
	}
}

func TestDownstreamTransportErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(Config{ExtractionURL: srv.URL, EnrichmentURL: srv.URL, Timeout: time.Second})

	_, err := client.AnalyzeSimple(context.Background(), domain.EnrichmentRequest{})
	var dsErr *Error
	if !errors.As(err, &dsErr) {
		t.Fatalf("expected downstream error, got %v", err)
	}
	if dsErr.Stage != StageEnrichment {
		t.Fatalf("expected enrichment stage, got %s", dsErr.Stage)
	}
	if dsErr.StatusCode != 0 {
		t.Fatalf("expected no http status for transport failure, got %d", dsErr.StatusCode)
	}
	if dsErr.Message == "" {
		t.Fatal("expected transport error text in message")
	}
}

func TestDownstreamInvalidJSONIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := NewClient(Config{ExtractionURL: srv.URL, EnrichmentURL: srv.URL, Timeout: time.Second})

	_, err := client.TranslateImage(context.Background(), []byte{1}, "x.jpg")
	var dsErr *Error
	if !errors.As(err, &dsErr) {
		t.Fatalf("expected downstream error, got %v", err)
	}
	if dsErr.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200 recorded, got %d", dsErr.StatusCode)
	}
}

func writeTestJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
