package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/portal-inbox/internal/model"
)

// NotificationDTO is a notification as returned by the list endpoint.
type NotificationDTO = model.Notification

// Page is the response of GET /api/v1/notifications.
type Page struct {
	Notifications []NotificationDTO `json:"notifications"`
	Unread        int               `json:"unread"`
	Total         int               `json:"total"`

	// Page and Limit echo the request; they are not on the wire.
	Page  int `json:"-"`
	Limit int `json:"-"`
}

// HasMore reports whether pages beyond this one exist.
func (p *Page) HasMore() bool {
	if p.Limit <= 0 {
		return false
	}
	return p.Page*p.Limit < p.Total
}

// ErrorResponse is the portal's JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Body    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("portal API error (%d) on %s %s: %s", e.Code, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s", e.Code, e.Method, e.Path)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// IsAuthError reports whether err is a 401 or 403 StatusError.
func IsAuthError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) &&
		(se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden)
}
