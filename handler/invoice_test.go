package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rrealai/invoice/model"
	"github.com/rrealai/invoice/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngImage = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

type fakeProcessor struct {
	result *service.ProcessResult
	err    error
	input  service.ProcessInput
	calls  int
}

func (f *fakeProcessor) Process(_ context.Context, in service.ProcessInput) (*service.ProcessResult, error) {
	f.calls++
	f.input = in
	return f.result, f.err
}

func newRouter(h *InvoiceHandler) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(MethodNotAllowed)
	router.POST("/api/process-invoice", h.ProcessInvoice)
	router.GET("/api/locations", h.Locations)
	return router
}

func multipartRequest(t *testing.T, image []byte, location string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if image != nil {
		part, err := writer.CreateFormFile("invoice", "invoice.png")
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		part.Write(image)
	}
	if location != "" {
		writer.WriteField("location", location)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/process-invoice", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return response
}

func TestProcessInvoiceSuccess(t *testing.T) {
	rec := model.DefaultRecord()
	rec.Vendor = "Sysco"
	processor := &fakeProcessor{result: &service.ProcessResult{
		Record: rec,
		Task:   &model.TaskOutcome{ID: "86abc", URL: "https://app.clickup.com/t/86abc"},
	}}
	router := newRouter(NewInvoiceHandler(processor, 10<<20, false))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, pngImage, "Sandy Springs"))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	response := decode(t, w)
	if response["success"] != true {
		t.Error("Expected success true")
	}
	ocr := response["ocrData"].(map[string]any)
	if ocr["vendor"] != "Sysco" {
		t.Errorf("Expected vendor Sysco, got %v", ocr["vendor"])
	}
	task := response["clickupTask"].(map[string]any)
	if task["id"] != "86abc" || task["mock"] != false {
		t.Errorf("Unexpected clickupTask %v", task)
	}

	if processor.input.Location != "Sandy Springs" {
		t.Errorf("Expected location Sandy Springs, got %q", processor.input.Location)
	}
	if processor.input.ContentType != "image/png" {
		t.Errorf("Expected sniffed content type image/png, got %q", processor.input.ContentType)
	}
	if !bytes.Equal(processor.input.Image, pngImage) {
		t.Error("Expected image bytes to be passed through")
	}
}

func TestProcessInvoiceValidation(t *testing.T) {
	tests := []struct {
		name          string
		image         []byte
		location      string
		maxUpload     int64
		expectedError string
	}{
		{"missing image", nil, "Midtown", 10 << 20, "No image file provided"},
		{"missing location", pngImage, "", 10 << 20, "Location is required"},
		{"not an image", []byte("%PDF-1.4 not an image"), "Midtown", 10 << 20, "Only image files are allowed"},
		{"too large", pngImage, "Midtown", 16, "File too large. Maximum size is 0MB."},
		{"body over multipart limit", append(append([]byte{}, pngImage...), make([]byte, 2<<20)...), "Midtown", 16, "File too large. Maximum size is 0MB."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor := &fakeProcessor{}
			router := newRouter(NewInvoiceHandler(processor, tt.maxUpload, false))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartRequest(t, tt.image, tt.location))

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
			if got := decode(t, w)["error"]; got != tt.expectedError {
				t.Errorf("Expected error %q, got %v", tt.expectedError, got)
			}
			if processor.calls != 0 {
				t.Error("Processor must not run for invalid input")
			}
		})
	}
}

func TestProcessInvoiceFailures(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedError   string
		expectedDetails string
	}{
		{
			name:            "extraction rate limited",
			err:             fmt.Errorf("extract invoice: %w", &service.ExtractionError{Kind: service.ExtractionRateLimited}),
			expectedError:   "Failed to process image with AI",
			expectedDetails: "OpenAI rate limit exceeded. Please wait a moment and try again.",
		},
		{
			name:            "extraction generic",
			err:             &service.ExtractionError{Kind: service.ExtractionFailed, Err: errors.New("boom")},
			expectedError:   "Failed to process image with AI",
			expectedDetails: extractionFailureDetails,
		},
		{
			name:            "list not found",
			err:             fmt.Errorf("create task: %w", &service.TrackerError{Kind: service.TrackerListNotFound}),
			expectedError:   "Failed to create task in ClickUp",
			expectedDetails: "ClickUp list not found. Please check the list ID.",
		},
		{
			name:            "field format",
			err:             &service.TrackerError{Kind: service.TrackerAPIError, Body: `{"ECODE":"FIELD_018"}`},
			expectedError:   "Failed to create task in ClickUp",
			expectedDetails: fieldFormatDetails,
		},
		{
			name:            "unknown",
			err:             errors.New("something else"),
			expectedError:   "Failed to process invoice",
			expectedDetails: "something else",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(NewInvoiceHandler(&fakeProcessor{err: tt.err}, 10<<20, false))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartRequest(t, pngImage, "Decatur"))

			if w.Code != http.StatusInternalServerError {
				t.Errorf("Expected status 500, got %d", w.Code)
			}
			response := decode(t, w)
			if response["error"] != tt.expectedError {
				t.Errorf("Expected error %q, got %v", tt.expectedError, response["error"])
			}
			if response["details"] != tt.expectedDetails {
				t.Errorf("Expected details %q, got %v", tt.expectedDetails, response["details"])
			}
			if _, ok := response["technicalDetails"]; ok {
				t.Error("technicalDetails must be omitted outside development")
			}
		})
	}
}

func TestProcessInvoiceTechnicalDetailsInDevelopment(t *testing.T) {
	err := fmt.Errorf("create task: %w", &service.TrackerError{Kind: service.TrackerUnreachable, Err: errors.New("dial tcp: refused")})
	router := newRouter(NewInvoiceHandler(&fakeProcessor{err: err}, 10<<20, true))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, pngImage, "Decatur"))

	response := decode(t, w)
	if response["technicalDetails"] != err.Error() {
		t.Errorf("Expected technicalDetails %q, got %v", err.Error(), response["technicalDetails"])
	}
}

func TestProcessInvoiceMethodNotAllowed(t *testing.T) {
	router := newRouter(NewInvoiceHandler(&fakeProcessor{}, 10<<20, false))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/process-invoice", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
	if decode(t, w)["error"] != "Method not allowed" {
		t.Error("Expected method not allowed error")
	}
}

func TestLocations(t *testing.T) {
	router := newRouter(NewInvoiceHandler(&fakeProcessor{}, 10<<20, false))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/locations", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	locations := decode(t, w)["locations"].([]any)
	if len(locations) != 10 {
		t.Errorf("Expected 10 locations, got %d", len(locations))
	}
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler("development")
	h.now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }

	router := gin.New()
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	response := decode(t, w)
	if response["status"] != "OK" {
		t.Errorf("Expected status OK, got %v", response["status"])
	}
	if response["timestamp"] != "2024-02-01T12:00:00.000Z" {
		t.Errorf("Unexpected timestamp %v", response["timestamp"])
	}
	if response["environment"] != "development" {
		t.Errorf("Expected environment development, got %v", response["environment"])
	}
}
