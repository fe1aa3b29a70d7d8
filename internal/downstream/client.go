package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/AndreMinHo/JPLens/internal/domain"
)

const (
	StageExtraction = "extraction"
	StageEnrichment = "enrichment"

	translateImagePath = "/translate-image"
	analyzeSimplePath  = "/analyze/simple"
)

// Error classifies a downstream failure. StatusCode is zero for transport
// faults (connection refused, timeout, DNS failure) where no HTTP response
// exists.
type Error struct {
	Stage      string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s service returned status=%d: %s", e.Stage, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s service request failed: %s", e.Stage, e.Message)
}

type Config struct {
	ExtractionURL string
	EnrichmentURL string
	Timeout       time.Duration
}

// Client calls the two analysis services. Each invocation is a single
// attempt bounded by the configured timeout; retry policy, if any, belongs
// to the caller's collaborators.
type Client struct {
	httpClient    *http.Client
	extractionURL string
	enrichmentURL string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		extractionURL: strings.TrimRight(cfg.ExtractionURL, "/"),
		enrichmentURL: strings.TrimRight(cfg.EnrichmentURL, "/"),
	}
}

// TranslateImage posts the normalized image as a multipart upload to the
// extraction service and returns the recognized text with its basic
// translation.
func (c *Client) TranslateImage(ctx context.Context, image []byte, filename string) (domain.ExtractionResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, sanitizeFilename(filename)))
	// The normalizer guarantees the canonical wire format, so the part
	// always declares image/jpeg regardless of the original upload type.
	header.Set("Content-Type", "image/jpeg")

	part, err := writer.CreatePart(header)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("build multipart payload: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("write multipart payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("finalize multipart payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.extractionURL+translateImagePath, &body)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result domain.ExtractionResult
	if err := c.do(req, StageExtraction, &result); err != nil {
		return domain.ExtractionResult{}, err
	}
	return result, nil
}

// AnalyzeSimple posts the projected stage-1 output to the enrichment
// service.
func (c *Client) AnalyzeSimple(ctx context.Context, payload domain.EnrichmentRequest) (domain.EnrichmentResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("marshal enrichment payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.enrichmentURL+analyzeSimplePath, bytes.NewReader(body))
	if err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("build enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result domain.EnrichmentResult
	if err := c.do(req, StageEnrichment, &result); err != nil {
		return domain.EnrichmentResult{}, err
	}
	return result, nil
}

func (c *Client) do(req *http.Request, stage string, into any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Stage: stage, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Stage: stage, StatusCode: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Stage:      stage,
			StatusCode: resp.StatusCode,
			Message:    serviceMessage(respBody, resp.Status),
		}
	}

	if err := json.Unmarshal(respBody, into); err != nil {
		return &Error{Stage: stage, StatusCode: resp.StatusCode, Message: "invalid JSON response: " + err.Error()}
	}
	return nil
}

// serviceMessage pulls a human-readable message out of an error response
// body, falling back to the raw body and finally the HTTP status text.
func serviceMessage(body []byte, fallback string) string {
	var parsed struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if strings.TrimSpace(parsed.Error) != "" {
			return parsed.Error
		}
		if strings.TrimSpace(parsed.Detail) != "" {
			return parsed.Detail
		}
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" {
		return trimmed
	}
	return fallback
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "upload.jpg"
	}
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "\n", "")
	name = strings.ReplaceAll(name, "\r", "")
	return name
}
