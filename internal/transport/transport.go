// Package transport provides the HTTP plumbing shared by upload providers.
package transport

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout bounds a single upload request. Archives can be large, so
// this is generous.
const DefaultTimeout = 6 * time.Minute

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 4 * 1024

// NewClient returns a pooled HTTP client with the given overall timeout.
// A zero timeout selects DefaultTimeout. No request or response body size
// limits are applied.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := cleanhttp.DefaultPooledClient()
	c.Timeout = timeout
	return c
}

// StatusError reports a non-2xx response from a provider endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("unexpected status %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// CheckResponse returns a *StatusError for non-2xx responses. The body is
// read (up to a small cap) but not closed.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
