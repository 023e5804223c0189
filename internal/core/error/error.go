package errx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// PostgresErrorMessage describes database failures.
	PostgresErrorMessage = "database operation failed"
	// ApologyMessage is what a shopper sees when the agent cannot complete a turn.
	ApologyMessage = "Sorry, I ran into a problem while handling your request. Please try again in a moment."
)

// ErrNotFound marks lookups whose target genuinely does not exist
// (unknown tenant, product handle or expired cart).
var ErrNotFound = errors.New("not found")

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// PublicError carries a message that is safe to show to end users. Error()
// never includes the cause; the cause is only reachable through Unwrap for logging.
type PublicError struct {
	Status  int
	Message string
	cause   error
}

func (e *PublicError) Error() string { return e.Message }

func (e *PublicError) Unwrap() error { return e.cause }

// Public hides err behind message. Status defaults to 502 for upstream
// failures and 500 otherwise.
func Public(err error, message string) *PublicError {
	status := http.StatusInternalServerError
	var up *UpstreamError
	if errors.As(err, &up) {
		status = http.StatusBadGateway
	}
	return &PublicError{Status: status, Message: message, cause: err}
}

// PublicMessage returns the message that may be shown to an end user for err.
func PublicMessage(err error) string {
	var pub *PublicError
	if errors.As(err, &pub) {
		return pub.Message
	}
	var app *AppError
	if errors.As(err, &app) && app.Message != "" {
		return app.Message
	}
	return SystemErrorMessage
}

// UpstreamError is a non-2xx answer from a third-party API.
type UpstreamError struct {
	Service    string
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Service, e.Status, body)
}

// NewUpstream builds an UpstreamError, reading a Retry-After header value
// expressed in seconds or as an HTTP date.
func NewUpstream(service string, status int, body string, retryAfter string) *UpstreamError {
	return &UpstreamError{
		Service:    service,
		Status:     status,
		Body:       body,
		RetryAfter: ParseRetryAfter(retryAfter, time.Now()),
	}
}

// ParseRetryAfter understands both delta-seconds and HTTP-date forms. Invalid
// or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// IsRateLimited reports whether err is an upstream HTTP 429.
func IsRateLimited(err error) bool {
	var up *UpstreamError
	return errors.As(err, &up) && up.Status == http.StatusTooManyRequests
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
