package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUpstream occurs when the calendar API answers with an error or an unexpected payload
var ErrUpstream = errors.New("calendar upstream error")

// Client for the calendar REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewClient creates a calendar API client. timeout bounds every request.
func NewClient(baseURL, token string, timeout time.Duration, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// ListEvents in a calendar
func (c *Client) ListEvents(ctx context.Context, calendarID string) ([]Event, error) {
	var events []Event
	err := c.do(ctx, http.MethodGet, c.eventsURL(calendarID), nil, &events)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for calendar %s: %w", calendarID, err)
	}

	if events == nil {
		events = []Event{}
	}

	return events, nil
}

// CreateEvent in a calendar and return the event as stored upstream
func (c *Client) CreateEvent(ctx context.Context, calendarID string, event Event) (*Event, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to JSON marshal event %s: %w", event.Title, err)
	}

	created := &Event{}
	err = c.do(ctx, http.MethodPost, c.eventsURL(calendarID), body, created)
	if err != nil {
		return nil, fmt.Errorf("failed to create event %s in calendar %s: %w", event.Title, calendarID, err)
	}

	return created, nil
}

func (c *Client) eventsURL(calendarID string) string {
	return fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, dst interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debugw("calendar api call",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s: %w", resp.StatusCode, strings.TrimSpace(string(payload)), ErrUpstream)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %v: %w", err, ErrUpstream)
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}

	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("unexpected data shape: %v: %w", err, ErrUpstream)
	}

	return nil
}
