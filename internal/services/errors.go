package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error markers classify pipeline failures so callers can distinguish bad
// input audio from model-service trouble from exhausted quota. Every error
// that crosses a stage boundary is wrapped with exactly one marker.
var (
	ErrNetwork           = errors.New("network error")
	ErrInvalidResponse   = errors.New("invalid response")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecode            = errors.New("decode error")
	ErrAuthentication    = errors.New("authentication error")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrTimeout           = errors.New("timeout")
	ErrCancelled         = errors.New("cancelled")
	ErrAggregation       = errors.New("aggregation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrValidation        = errors.New("validation error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsTransient reports whether the error belongs to the class that is expected
// to sometimes self-resolve on retry: timeouts, rate limits, 5xx responses,
// and transport failures. Everything else retries cannot change.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout)
}

// Marker returns the sentinel the error was tagged with, or nil when the
// error carries no known marker.
func Marker(err error) error {
	for _, marker := range []error{
		ErrCancelled,
		ErrAuthentication,
		ErrQuotaExceeded,
		ErrMalformedPayload,
		ErrUnsupportedFormat,
		ErrInvalidResponse,
		ErrDecode,
		ErrAggregation,
		ErrConfiguration,
		ErrValidation,
		ErrTimeout,
		ErrNetwork,
	} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
