package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/rrealai/invoice/pkg/logger"
	"github.com/rrealai/invoice/service"
)

// multipartOverhead is headroom for form boundaries and the location field on top of the file cap.
const multipartOverhead = 1 << 20

const (
	extractionFailureDetails = "The AI service could not read the invoice. Please ensure the image is clear and contains invoice information."
	fieldFormatDetails       = "Invalid data format for ClickUp fields. Please try again."
)

// Processor runs an uploaded invoice through extraction and task filing.
type Processor interface {
	Process(ctx context.Context, in service.ProcessInput) (*service.ProcessResult, error)
}

type InvoiceHandler struct {
	processor      Processor
	maxUploadBytes int64
	development    bool
}

func NewInvoiceHandler(processor Processor, maxUploadBytes int64, development bool) *InvoiceHandler {
	return &InvoiceHandler{
		processor:      processor,
		maxUploadBytes: maxUploadBytes,
		development:    development,
	}
}

// ProcessInvoice handles POST /api/process-invoice
func (h *InvoiceHandler) ProcessInvoice(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	file, header, err := c.Request.FormFile("invoice")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fileTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No image file provided",
			"details": "Please select an image file to upload",
		})
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		h.fileTooLarge(c)
		return
	}

	location := strings.TrimSpace(c.PostForm("location"))
	if location == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Location is required",
			"details": "Please select a location from the dropdown",
		})
		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to read file",
			"details": "Please select an image file to upload",
		})
		return
	}

	contentType := mimetype.Detect(image).String()
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Only image files are allowed",
			"details": "Please select an image file to upload",
		})
		return
	}

	ctx := logger.WithLocation(c.Request.Context(), location)
	c.Request = c.Request.WithContext(ctx)
	logger.Info(ctx, "processing invoice",
		"filename", header.Filename,
		"content_type", contentType,
		"size", len(image),
	)

	result, err := h.processor.Process(ctx, service.ProcessInput{
		Image:       image,
		ContentType: contentType,
		Location:    location,
	})
	if err != nil {
		logger.Error(ctx, "failed to process invoice", "error", err)
		_ = c.Error(err)
		h.processingFailed(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ocrData": result.Record,
		"clickupTask": gin.H{
			"id":   result.Task.ID,
			"url":  result.Task.URL,
			"mock": result.Task.Mock,
		},
	})
}

func (h *InvoiceHandler) fileTooLarge(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": fmt.Sprintf("File too large. Maximum size is %dMB.", h.maxUploadBytes>>20),
	})
}

// processingFailed maps pipeline errors to the {error, details} response shape.
func (h *InvoiceHandler) processingFailed(c *gin.Context, err error) {
	message := "Failed to process invoice"
	details := err.Error()

	var extractionErr *service.ExtractionError
	var trackerErr *service.TrackerError
	switch {
	case errors.As(err, &extractionErr):
		message = "Failed to process image with AI"
		details = extractionErr.Error()
		if extractionErr.Kind == service.ExtractionFailed {
			details = extractionFailureDetails
		}
	case errors.As(err, &trackerErr):
		message = "Failed to create task in ClickUp"
		details = trackerErr.Error()
		if strings.Contains(trackerErr.Body, "FIELD_018") {
			details = fieldFormatDetails
		}
	}

	body := gin.H{
		"error":   message,
		"details": details,
	}
	if h.development {
		body["technicalDetails"] = err.Error()
	}
	c.JSON(http.StatusInternalServerError, body)
}

// Locations handles GET /api/locations
func (h *InvoiceHandler) Locations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"locations": service.Locations()})
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// HealthHandler reports liveness and the configured environment.
type HealthHandler struct {
	environment string
	now         func() time.Time
}

func NewHealthHandler(environment string) *HealthHandler {
	return &HealthHandler{environment: environment, now: time.Now}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   h.now().UTC().Format(isoMillis),
		"environment": h.environment,
	})
}

// MethodNotAllowed answers known routes called with the wrong verb.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
