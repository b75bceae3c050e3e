package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/pkg/log"
)

// DefaultListLimit is the page size used when ListOptions.Limit is unset.
const DefaultListLimit = 50

// RequestIDHeader carries a per-request identifier to the backend.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response is read for its detail.
const maxErrorBody = 64 << 10

// Client talks to the PDF processing backend
// Thread-safe for concurrent use
//
// config: Configuration for the backend
// httpClient: HTTP client for API requests
// baseURL: Base URL of the backend
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new backend client with the given configuration
//
// Returns a new Client instance or an error if configuration is invalid
// Example:
//
//	client, err := transfer.NewClient(&transfer.Config{
//		BaseURL: "http://localhost:8000",
//		Timeout: 60,
//	})
//	if err != nil {
//		log.Fatal("%v", err)
//	}
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit uploads files as one job
//
// Every file goes into a repeated multipart field named "files". Zero
// files returns ErrNoFiles without contacting the backend.
func (c *Client) Submit(ctx context.Context, files []File) (*jobs.SubmitReceipt, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	for _, f := range files {
		if !f.IsPDF() {
			return nil, fmt.Errorf("%w: %s", ErrNotPDF, f.Name)
		}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := writer.CreateFormFile("files", f.Name)
		if err != nil {
			return nil, &TransportError{Op: "submit", Err: err}
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, &TransportError{Op: "submit", Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, &TransportError{Op: "submit", Err: err}
	}

	var receipt jobs.SubmitReceipt
	if err := c.do(ctx, "submit", http.MethodPost, "/process-pdfs", &body, writer.FormDataContentType(), &receipt); err != nil {
		return nil, err
	}
	if strings.TrimSpace(receipt.UUID) == "" {
		return nil, &TransportError{Op: "submit", Err: fmt.Errorf("response has no job identifier")}
	}
	log.Info("Submitted %d file(s) as job %s", len(files), receipt.UUID)
	return &receipt, nil
}

// Status fetches the current state of a job. The body is validated against
// the status schema before decoding.
func (c *Client) Status(ctx context.Context, id string) (*jobs.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, jobs.ErrMissingIdentifier
	}

	var raw json.RawMessage
	if err := c.do(ctx, "status", http.MethodGet, "/status/"+url.PathEscape(id), nil, "", &raw); err != nil {
		return nil, err
	}
	if err := validateStatusBody(raw); err != nil {
		return nil, &TransportError{Op: "status", Err: err}
	}

	var job jobs.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, &TransportError{Op: "status", Err: fmt.Errorf("decode response: %w", err)}
	}
	if job.ID == "" {
		job.ID = id
	}
	return &job, nil
}

// Delete removes a stored result and returns the backend acknowledgement.
func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", jobs.ErrMissingIdentifier
	}

	// the acknowledgement may be plain text, JSON or empty
	var raw []byte
	if err := c.do(ctx, "delete", http.MethodDelete, "/summaries/"+url.PathEscape(id), nil, "", &raw); err != nil {
		return "", err
	}

	var ack struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &ack); err == nil && ack.Message != "" {
		return ack.Message, nil
	}
	return strings.TrimSpace(string(raw)), nil
}

// ListOptions filters the summary listing.
type ListOptions struct {
	Limit        int
	StatusFilter string
}

// List returns stored summaries, newest first as ordered by the backend.
func (c *Client) List(ctx context.Context, opts ListOptions) (*jobs.SummaryList, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if opts.StatusFilter != "" {
		query.Set("status_filter", opts.StatusFilter)
	}

	var list jobs.SummaryList
	if err := c.do(ctx, "list", http.MethodGet, "/summaries?"+query.Encode(), nil, "", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Health checks that the backend is reachable and reports itself healthy.
func (c *Client) Health(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, "", &status); err != nil {
		return err
	}
	if status.Status != "" && status.Status != "healthy" && status.Status != "ok" {
		return &TransportError{Op: "health", Detail: status.Status}
	}
	return nil
}

// do sends one request and decodes a 2xx JSON body into out. A *[]byte
// out receives the body undecoded.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("%s %s failed [request_id=%s]: %v", method, path, requestID, err)
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	log.Debug("%s %s -> %d in %s [request_id=%s]", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond), requestID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	switch sink := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*sink = data
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		if !json.Valid(data) {
			return &TransportError{Op: op, Err: fmt.Errorf("response is not valid JSON")}
		}
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorDetail extracts the "detail" field of an error body. Validation
// errors carry a list; the first message is used.
func errorDetail(data []byte) string {
	var body struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	switch d := body.Detail.(type) {
	case string:
		return d
	case []any:
		if len(d) > 0 {
			if item, ok := d[0].(map[string]any); ok {
				if msg, ok := item["msg"].(string); ok {
					return msg
				}
			}
		}
	}
	return body.Message
}
