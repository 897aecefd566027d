package ferrors

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError is the classified result of a non-2xx response from a
// direct-HTTP platform handler. This mirrors the teacher's
// internal/llm.Error unified-error shape (internal/llm/errors.go):
// Retryable()/RetryAfter() drive the fetcher's retry policy (spec.md
// §4.4.2) the same way they drive the LLM client's.
type HTTPError struct {
	Platform   string
	StatusCode int
	Message    string
	retryable  bool
	retryAfter *time.Duration
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "request failed"
	}
	return e.Platform + " error (status=" + strconv.Itoa(e.StatusCode) + "): " + msg
}

func (e *HTTPError) Retryable() bool              { return e.retryable }
func (e *HTTPError) RetryAfter() *time.Duration    { return e.retryAfter }

// ClassifyHTTPStatus implements the retry classification of spec.md §4.4.2:
// 4xx except 429 are never retried; 429 and 5xx are retried. retryAfter is
// the already-parsed Retry-After header value, if any.
func ClassifyHTTPStatus(platform string, statusCode int, message string, retryAfter *time.Duration) *HTTPError {
	e := &HTTPError{Platform: platform, StatusCode: statusCode, Message: message, retryAfter: retryAfter}
	switch {
	case statusCode == http.StatusTooManyRequests:
		e.retryable = true
	case statusCode >= 400 && statusCode < 500:
		e.retryable = false
	case statusCode >= 500:
		e.retryable = true
	default:
		e.retryable = false
	}
	return e
}

// ParseRetryAfter parses the Retry-After header. Supported forms: integer
// seconds and RFC 1123 HTTP-dates. Negative durations clamp to zero; parse
// failures return nil so the caller falls back to exponential backoff.
func ParseRetryAfter(v string, now time.Time) *time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			secs = 0
		}
		d := time.Duration(secs) * time.Second
		return &d
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}
