package models

import (
	"fmt"
	"time"
)

type ErrorKind string

const (
	ErrKindDiscovery      ErrorKind = "DiscoveryError"
	ErrKindDateFetch      ErrorKind = "DateFetchError"
	ErrKindNoOptionsFound ErrorKind = "NoOptionsFoundError"
	ErrKindRollResolution ErrorKind = "RollResolutionError"
	ErrKindSourceRequest  ErrorKind = "SourceRequestError"
)

// ErrorDetail is one recoverable failure recorded during a bulk operation.
type ErrorDetail struct {
	Timestamp time.Time      `json:"timestamp"`
	Kind      ErrorKind      `json:"kind"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	Cause     error          `json:"-"`
}

func NewErrorDetail(kind ErrorKind, message string, cause error, ctx map[string]any) ErrorDetail {
	return ErrorDetail{
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Message:   message,
		Context:   ctx,
		Cause:     cause,
	}
}

func (e ErrorDetail) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e ErrorDetail) Unwrap() error { return e.Cause }

// Response carries a payload together with everything that went wrong while
// building it. Errors never invalidate Data.
type Response[T any] struct {
	Data   T             `json:"data"`
	Errors []ErrorDetail `json:"errors"`
}

func (r Response[T]) Success() bool { return len(r.Errors) == 0 }

func (r *Response[T]) AddError(e ErrorDetail) { r.Errors = append(r.Errors, e) }

// Merge appends other's errors to r.
func (r *Response[T]) Merge(errs []ErrorDetail) { r.Errors = append(r.Errors, errs...) }

// ErrorsOfKind filters errors by kind.
func (r Response[T]) ErrorsOfKind(kind ErrorKind) []ErrorDetail {
	var out []ErrorDetail
	for _, e := range r.Errors {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// FailedResponse wraps a single error into an empty Response.
func FailedResponse[T any](e ErrorDetail) Response[T] {
	return Response[T]{Errors: []ErrorDetail{e}}
}
