package translation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"bisub/internal/services"
)

// Request is one batch handed to a Transport.
type Request struct {
	Source string
	Target string
	Texts  []string
}

// Transport performs a single remote translation call. It returns one
// translation per input text, in order.
type Transport interface {
	Translate(ctx context.Context, req Request) ([]string, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) ([]string, error)

// Translate calls f.
func (f TransportFunc) Translate(ctx context.Context, req Request) ([]string, error) {
	return f(ctx, req)
}

// APIError is a failure reported by the translation endpoint.
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	if e.HTTPStatus != 0 && e.Code == "" {
		return fmt.Sprintf("translation endpoint: http %d: %s", e.HTTPStatus, strings.TrimSpace(e.Message))
	}
	return fmt.Sprintf("translation endpoint: error %s: %s", e.Code, strings.TrimSpace(e.Message))
}

// Transient reports whether retrying the same request can succeed.
func (e *APIError) Transient() bool {
	if e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus == http.StatusRequestTimeout || e.HTTPStatus >= http.StatusInternalServerError {
		return true
	}
	switch e.Code {
	case "52001", "52002", "54003":
		return true
	default:
		return false
	}
}

// Hint suggests an operator action for well-known endpoint errors.
func (e *APIError) Hint() string {
	switch e.Code {
	case "52003", "54001":
		return "check translation.app_id and translation.app_key"
	case "54004":
		return "top up the translation account balance"
	case "58001":
		return "the endpoint does not support this language pair"
	case "54003":
		return "lower translation.requests_per_second"
	default:
		return ""
	}
}

// IsTransient classifies a transport error for retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	if errors.Is(err, services.ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
