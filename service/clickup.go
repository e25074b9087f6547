package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rrealai/invoice/config"
	"github.com/rrealai/invoice/model"
	"github.com/rrealai/invoice/pkg/logger"
	"github.com/tidwall/gjson"
)

const (
	taskTagMarker      = "auto-ocr"
	taskTagMissing     = "missing-items"
	taskTagComplete    = "complete-order"
	taskDescription    = "Automatically created via invoice processing form."
	mockTaskURL        = "https://app.clickup.com/mock-task"
	oauthTokenNotFound = "Oauth token not found"
)

// CustomFieldValue sets one custom field on a new task. A nil Value is sent as
// JSON null, which ClickUp accepts for an unset dropdown.
type CustomFieldValue struct {
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// TaskRequest is the body of ClickUp's create-task call.
type TaskRequest struct {
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	CustomFields []CustomFieldValue `json:"custom_fields"`
	Tags         []string           `json:"tags"`
}

type taskResponse struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type listResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClickUpService files invoice tasks on a ClickUp list.
type ClickUpService struct {
	client *resty.Client
	listID string
	now    func() time.Time
}

func NewClickUpService(cfg *config.ClickUpConfig) *ClickUpService {
	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(cfg.AccessToken)

	return &ClickUpService{
		client: client,
		listID: cfg.ListID,
		now:    time.Now,
	}
}

// TaskName is the title given to a filed invoice.
func TaskName(vendor, location string) string {
	return fmt.Sprintf("Receipt - %s - %s", vendor, location)
}

// BuildTaskRequest maps a canonical record onto the list's custom fields.
// imageURL may be empty when no copy of the invoice image was stored.
func BuildTaskRequest(rec model.InvoiceRecord, location, imageURL string, now time.Time) TaskRequest {
	var locationOption any
	if id, ok := LocationOptionID(location); ok {
		locationOption = id
	}

	fields := []CustomFieldValue{
		{ID: CustomFieldVendorName, Value: rec.Vendor},
		{ID: CustomFieldMissingItems, Value: strings.Join(rec.MissingItems, ", ")},
		{ID: CustomFieldLocation, Value: locationOption},
		{ID: CustomFieldItemsRequested, Value: strings.Join(rec.OrderedItems, ", ")},
		{ID: CustomFieldItemsDelivered, Value: ComputeDelivered(rec.OrderedItems, rec.MissingItems)},
		{ID: CustomFieldMissingDetected, Value: MissingDetectedOptionID(bool(rec.MissingDetected))},
		{ID: CustomFieldInvoiceTotal, Value: rec.TotalValueUSD},
		{ID: CustomFieldMissingValue, Value: rec.MissingValueUSD},
		{ID: CustomFieldProcessedDate, Value: now.UnixMilli()},
	}

	if rec.InvoiceDate != nil {
		if d, err := time.Parse(time.DateOnly, *rec.InvoiceDate); err == nil {
			fields = append(fields, CustomFieldValue{ID: CustomFieldInvoiceDate, Value: d.UnixMilli()})
		}
	}
	if rec.InvoiceNumber != "" {
		fields = append(fields, CustomFieldValue{ID: CustomFieldInvoiceNumber, Value: rec.InvoiceNumber})
	}
	fields = append(fields,
		CustomFieldValue{ID: CustomFieldNumRequestedItems, Value: rec.CountOrdered},
		CustomFieldValue{ID: CustomFieldNumDeliveredItems, Value: rec.CountDelivered},
		CustomFieldValue{ID: CustomFieldNumMissingItems, Value: rec.CountMissing},
	)
	if imageURL != "" {
		fields = append(fields, CustomFieldValue{ID: CustomFieldInvoiceImage, Value: imageURL})
	}

	outcomeTag := taskTagComplete
	if rec.MissingDetected {
		outcomeTag = taskTagMissing
	}

	return TaskRequest{
		Name:         TaskName(rec.Vendor, location),
		Description:  taskDescription,
		CustomFields: fields,
		Tags:         []string{taskTagMarker, LocationTag(location), outcomeTag},
	}
}

// CreateTask files the invoice. When ClickUp rejects the credentials the call
// still succeeds with a locally generated mock outcome.
func (s *ClickUpService) CreateTask(ctx context.Context, rec model.InvoiceRecord, location, imageURL string) (*model.TaskOutcome, error) {
	now := s.now()
	task := BuildTaskRequest(rec, location, imageURL, now)

	var result taskResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("listID", s.listID).
		SetBody(task).
		SetResult(&result).
		Post("/list/{listID}/task")
	if err != nil {
		return nil, &TrackerError{Kind: TrackerUnreachable, Err: err}
	}

	if unauthenticated(resp) {
		logger.Warn(ctx, "ClickUp authentication failed, returning mock task", "status", resp.StatusCode())
		return &model.TaskOutcome{
			ID:   fmt.Sprintf("mock_task_%d", now.UnixMilli()),
			URL:  mockTaskURL,
			Name: task.Name,
			Mock: true,
		}, nil
	}
	if err := trackerError(resp); err != nil {
		return nil, err
	}

	logger.Info(ctx, "ClickUp task created", "task_id", result.ID)
	return &model.TaskOutcome{ID: result.ID, URL: result.URL, Name: result.Name}, nil
}

// TestConnection fetches the configured list and returns its name.
func (s *ClickUpService) TestConnection(ctx context.Context) (string, error) {
	var result listResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("listID", s.listID).
		SetResult(&result).
		Get("/list/{listID}")
	if err != nil {
		return "", &TrackerError{Kind: TrackerUnreachable, Err: err}
	}
	if unauthenticated(resp) {
		return "", &TrackerError{Kind: TrackerAPIError, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if err := trackerError(resp); err != nil {
		return "", err
	}
	return result.Name, nil
}

func unauthenticated(resp *resty.Response) bool {
	return resp.StatusCode() == http.StatusUnauthorized ||
		gjson.GetBytes(resp.Body(), "err").String() == oauthTokenNotFound
}

func trackerError(resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return &TrackerError{Kind: TrackerListNotFound, StatusCode: resp.StatusCode(), Body: resp.String()}
	case resp.IsError():
		return &TrackerError{Kind: TrackerAPIError, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}
