package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/AndreMinHo/JPLens/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	StageNormalize  = "normalize"
	StageExtraction = "extraction"
	StageEnrichment = "enrichment"
)

type Extractor interface {
	TranslateImage(ctx context.Context, image []byte, filename string) (domain.ExtractionResult, error)
}

type Enricher interface {
	AnalyzeSimple(ctx context.Context, req domain.EnrichmentRequest) (domain.EnrichmentResult, error)
}

// StageObserver receives the duration and outcome of every pipeline stage.
type StageObserver func(stage string, elapsed time.Duration, err error)

// Orchestrator drives one upload through normalize, extraction, and
// enrichment in order. Each stage must succeed before the next runs; a
// failed stage halts the pipeline and no partial result is ever returned.
type Orchestrator struct {
	normalizer Normalizer
	extractor  Extractor
	enricher   Enricher
	observe    StageObserver
	tracer     trace.Tracer
}

func NewOrchestrator(normalizer Normalizer, extractor Extractor, enricher Enricher, observe StageObserver) (*Orchestrator, error) {
	if normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if enricher == nil {
		return nil, errors.New("enricher is required")
	}
	if observe == nil {
		observe = func(string, time.Duration, error) {}
	}

	return &Orchestrator{
		normalizer: normalizer,
		extractor:  extractor,
		enricher:   enricher,
		observe:    observe,
		tracer:     otel.Tracer("jplens/pipeline"),
	}, nil
}

func (o *Orchestrator) Process(ctx context.Context, upload domain.UploadedImage) (domain.ComposedResponse, error) {
	if err := upload.Validate(); err != nil {
		return domain.ComposedResponse{}, &InvalidImageError{Reason: err.Error()}
	}

	var normalized NormalizedImage
	err := o.runStage(ctx, StageNormalize, func(ctx context.Context, span trace.Span) error {
		var err error
		normalized, err = o.normalizer.Normalize(ctx, upload.Data, upload.ContentType)
		if err == nil {
			span.SetAttributes(
				attribute.Int("image.width", normalized.Width),
				attribute.Int("image.height", normalized.Height),
				attribute.Bool("image.resized", normalized.Resized),
			)
		}
		return err
	})
	if err != nil {
		return domain.ComposedResponse{}, err
	}

	select {
	case <-ctx.Done():
		return domain.ComposedResponse{}, ctx.Err()
	default:
	}

	var extraction domain.ExtractionResult
	err = o.runStage(ctx, StageExtraction, func(ctx context.Context, span trace.Span) error {
		var err error
		extraction, err = o.extractor.TranslateImage(ctx, normalized.Data, upload.Filename)
		return err
	})
	if err != nil {
		return domain.ComposedResponse{}, err
	}

	select {
	case <-ctx.Done():
		return domain.ComposedResponse{}, ctx.Err()
	default:
	}

	var enrichment domain.EnrichmentResult
	err = o.runStage(ctx, StageEnrichment, func(ctx context.Context, span trace.Span) error {
		var err error
		enrichment, err = o.enricher.AnalyzeSimple(ctx, extraction.Project())
		return err
	})
	if err != nil {
		return domain.ComposedResponse{}, err
	}

	return domain.ComposedResponse{
		OriginalImage:    upload.Filename,
		OCR:              extraction.OCR,
		BasicTranslation: extraction.Translation,
		AIAnalysis:       enrichment,
	}, nil
}

func (o *Orchestrator) runStage(ctx context.Context, stage string, fn func(context.Context, trace.Span) error) error {
	ctx, span := o.tracer.Start(ctx, "pipeline."+stage)
	defer span.End()

	start := time.Now()
	err := fn(ctx, span)
	o.observe(stage, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage+" stage failed")
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
