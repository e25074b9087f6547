package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rrealai/invoice/model"
	"github.com/rrealai/invoice/pkg/logger"
	"github.com/rrealai/invoice/pkg/metrics"
)

// Extractor turns an invoice image into a canonical record.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (*Extraction, error)
}

// TaskSubmitter files a record in the tracker.
type TaskSubmitter interface {
	CreateTask(ctx context.Context, rec model.InvoiceRecord, location, imageURL string) (*model.TaskOutcome, error)
}

// ImageArchive stores the uploaded image and returns a link to it.
type ImageArchive interface {
	Store(ctx context.Context, location string, image []byte, contentType string) (string, error)
}

// Recorder receives pipeline outcome counts.
type Recorder interface {
	InvoiceProcessed(outcome string)
	TaskSubmitted(result string)
	ExtractionFailed(kind string)
}

type ProcessInput struct {
	Image       []byte
	ContentType string
	Location    string
}

type ProcessResult struct {
	Record   model.InvoiceRecord
	Task     *model.TaskOutcome
	Degraded bool
}

// InvoiceProcessor runs one upload through archive, extraction and submission in order.
type InvoiceProcessor struct {
	extractor Extractor
	submitter TaskSubmitter
	archive   ImageArchive
	recorder  Recorder
}

type ProcessorOption func(*InvoiceProcessor)

// WithArchive enables copying the image to storage before extraction.
func WithArchive(archive ImageArchive) ProcessorOption {
	return func(p *InvoiceProcessor) {
		p.archive = archive
	}
}

func WithRecorder(recorder Recorder) ProcessorOption {
	return func(p *InvoiceProcessor) {
		p.recorder = recorder
	}
}

func NewInvoiceProcessor(extractor Extractor, submitter TaskSubmitter, opts ...ProcessorOption) *InvoiceProcessor {
	p := &InvoiceProcessor{
		extractor: extractor,
		submitter: submitter,
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts the invoice and files it. Any extraction or submission
// failure fails the whole call; archive failures only drop the image link.
func (p *InvoiceProcessor) Process(ctx context.Context, in ProcessInput) (*ProcessResult, error) {
	ctx = logger.WithLocation(ctx, in.Location)

	imageURL := p.archiveImage(ctx, in)

	extraction, err := p.extractor.Extract(ctx, in.Image)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) {
			p.recorder.ExtractionFailed(string(ee.Kind))
		} else {
			p.recorder.ExtractionFailed(string(ExtractionFailed))
		}
		p.recorder.InvoiceProcessed(metrics.OutcomeFailed)
		return nil, fmt.Errorf("extract invoice: %w", err)
	}
	task, err := p.submitter.CreateTask(ctx, extraction.Record, in.Location, imageURL)
	if err != nil {
		p.recorder.TaskSubmitted(metrics.SubmissionRejected)
		p.recorder.InvoiceProcessed(metrics.OutcomeFailed)
		return nil, fmt.Errorf("create task: %w", err)
	}

	outcome := metrics.OutcomeFiled
	if task.Mock {
		p.recorder.TaskSubmitted(metrics.SubmissionMock)
		outcome = metrics.OutcomeMock
	} else {
		p.recorder.TaskSubmitted(metrics.SubmissionCreated)
	}
	if extraction.Degraded {
		outcome = metrics.OutcomeDegraded
	}
	p.recorder.InvoiceProcessed(outcome)

	logger.Info(ctx, "invoice processed",
		"vendor", extraction.Record.Vendor,
		"task_id", task.ID,
		"mock", task.Mock,
		"degraded", extraction.Degraded,
	)

	return &ProcessResult{
		Record:   extraction.Record,
		Task:     task,
		Degraded: extraction.Degraded,
	}, nil
}

func (p *InvoiceProcessor) archiveImage(ctx context.Context, in ProcessInput) string {
	if p.archive == nil {
		return ""
	}
	url, err := p.archive.Store(ctx, in.Location, in.Image, in.ContentType)
	if err != nil {
		logger.Warn(ctx, "failed to archive invoice image", "error", err)
		return ""
	}
	return url
}

type nopRecorder struct{}

func (nopRecorder) InvoiceProcessed(string) {}
func (nopRecorder) TaskSubmitted(string)    {}
func (nopRecorder) ExtractionFailed(string) {}
