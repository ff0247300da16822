package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	appsync "github.com/nhle/portal-inbox/internal/sync"
)

// Client talks to the portal's notification REST API. Requests carry the
// session token as a Bearer credential and are retried on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	rateLimit  appsync.Backoff
}

// NewClient creates a new portal HTTP client. The baseURL should be the
// root URL of the portal (e.g., https://portal.example.edu). The token is
// the session token sent as a Bearer credential.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = timeout

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		maxRetries: 3,
		rateLimit:  appsync.Backoff{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2},
	}
}

// ListNotifications fetches one page of the caller's notifications.
func (c *Client) ListNotifications(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	path := fmt.Sprintf("/api/v1/notifications?page=%d&limit=%d", page, limit)

	var result Page
	if err := c.do(ctx, http.MethodGet, path, &result); err != nil {
		return nil, err
	}
	if result.Notifications == nil {
		result.Notifications = []NotificationDTO{}
	}
	result.Page = page
	result.Limit = limit
	return &result, nil
}

// MarkRead marks one notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/notifications/"+id+"/read", nil)
}

// MarkAllRead marks every notification of the caller as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/api/v1/notifications/read-all", nil)
}

// Delete removes one notification. A second delete of the same id yields
// a 404 StatusError.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/notifications/"+id, nil)
}

// do sends one body-less request, waiting out 429 responses on the
// client's rate-limit schedule, and decodes a JSON answer into result.
func (c *Client) do(ctx context.Context, method, path string, result any) error {
	for attempt := 1; ; attempt++ {
		code, body, wait, err := c.roundTrip(ctx, method, path)
		if err != nil {
			return err
		}

		if code == http.StatusTooManyRequests {
			limited := &StatusError{Method: method, Path: path, Code: code, Body: string(body)}
			if attempt > c.maxRetries {
				return fmt.Errorf("rate limited after %d retries: %w", c.maxRetries, limited)
			}
			if wait < 0 {
				wait = c.rateLimit.Delay(attempt)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		if code < 200 || code >= 300 {
			return &StatusError{
				Method:  method,
				Path:    path,
				Code:    code,
				Body:    string(body),
				Message: errorMessage(body),
			}
		}
		if result == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decoding %s %s: %w", method, path, err)
		}
		return nil
	}
}

// roundTrip performs a single exchange. wait is the server's Retry-After
// hint, or -1 when it gave none.
func (c *Client) roundTrip(ctx context.Context, method, path string) (code int, body []byte, wait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("reading %s %s: %w", method, path, err)
	}

	wait = -1
	if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs >= 0 {
		wait = time.Duration(secs) * time.Second
	}
	return resp.StatusCode, body, wait, nil
}

// errorMessage extracts the "error" or "message" field of a JSON error
// body, if any.
func errorMessage(body []byte) string {
	var e ErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}
