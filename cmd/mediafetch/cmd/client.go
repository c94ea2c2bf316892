package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mediafetch/internal/storage"
	"mediafetch/internal/transport/httpapi"
)

// Client calls the mediafetch HTTP API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response. Message is the server's error text when the
// body was an ErrorResponse, otherwise the raw body.
type APIError struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("API error (%d): %s: %s", e.StatusCode, e.Field, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(respBody))}
		var er httpapi.ErrorResponse
		if json.Unmarshal(respBody, &er) == nil && er.Error != "" {
			apiErr.Message, apiErr.Field = er.Error, er.Field
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// taskPayload mirrors CreateTaskRequest with sources as a plain array.
type taskPayload struct {
	Sources          []string `json:"sources"`
	DownloadStrategy string   `json:"download_strategy,omitempty"`
	SaveStrategy     string   `json:"save_strategy,omitempty"`
	CatalogueName    string   `json:"catalogue_name"`
	Priority         *int     `json:"priority,omitempty"`
}

// taskEdit mirrors UpdateTaskRequest.
type taskEdit struct {
	Sources          *[]string `json:"sources,omitempty"`
	DownloadStrategy *string   `json:"download_strategy,omitempty"`
	SaveStrategy     *string   `json:"save_strategy,omitempty"`
	CatalogueName    *string   `json:"catalogue_name,omitempty"`
	Priority         *int      `json:"priority,omitempty"`
}

func (c *Client) ListTasks(ctx context.Context, state string, limit int) ([]storage.Task, error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []storage.Task
	err := c.do(ctx, http.MethodGet, withQuery("/api/tasks", q), nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, in taskPayload) (storage.Task, error) {
	var out storage.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks", in, &out)
	return out, err
}

func (c *Client) GetTask(ctx context.Context, id string) (storage.Task, error) {
	var out storage.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, in taskEdit) (storage.Task, error) {
	var out storage.Task
	err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) RequeueTask(ctx context.Context, id string) (storage.Task, error) {
	var out storage.Task
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/requeue", nil, &out)
	return out, err
}

func (c *Client) ListWindows(ctx context.Context) ([]storage.Window, error) {
	var out []storage.Window
	err := c.do(ctx, http.MethodGet, "/api/windows", nil, &out)
	return out, err
}

func (c *Client) CreateWindow(ctx context.Context, in httpapi.CreateWindowRequest) (storage.Window, error) {
	var out storage.Window
	err := c.do(ctx, http.MethodPost, "/api/windows", in, &out)
	return out, err
}

func (c *Client) DeleteWindow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/windows/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Strategies(ctx context.Context) (httpapi.StrategiesResponse, error) {
	var out httpapi.StrategiesResponse
	err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &out)
	return out, err
}

func (c *Client) Logs(ctx context.Context, lines int) ([]string, error) {
	q := url.Values{}
	if lines > 0 {
		q.Set("lines", strconv.Itoa(lines))
	}
	var out httpapi.LogsResponse
	err := c.do(ctx, http.MethodGet, withQuery("/api/logs", q), nil, &out)
	return out.Lines, err
}

func (c *Client) Events(ctx context.Context, all bool, limit int) ([]storage.Event, error) {
	q := url.Values{}
	if all {
		q.Set("all", "true")
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []storage.Event
	err := c.do(ctx, http.MethodGet, withQuery("/api/events", q), nil, &out)
	return out, err
}

func (c *Client) DismissEvent(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/api/events/"+strconv.FormatInt(id, 10)+"/dismiss", nil, nil)
}

func (c *Client) Engine(ctx context.Context) (httpapi.EngineResponse, error) {
	var out httpapi.EngineResponse
	err := c.do(ctx, http.MethodGet, "/api/engine", nil, &out)
	return out, err
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
