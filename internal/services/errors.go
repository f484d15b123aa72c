package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrUpstream      = errors.New("upstream error")
	ErrParse         = errors.New("parse error")
	ErrTransient     = errors.New("transient failure")
)

// Kind labels used for logging and the JSON API. They are stable strings so
// log queries and browser code can match on them.
const (
	KindValidation    = "validation"
	KindConfiguration = "configuration"
	KindNotFound      = "not_found"
	KindUpstream      = "upstream"
	KindParse         = "parse"
	KindTransient     = "transient"
	KindCanceled      = "canceled"
	KindUnknown       = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its telemetry label. Nil errors map to "".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case isCanceled(err):
		return KindCanceled
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// UserMessage returns the single user-visible message for the error's kind.
// The full error chain stays in the logs.
func UserMessage(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case KindConfiguration:
		return "The analysis service is not configured. Set an API key and model, then try again."
	case KindValidation:
		return "Please enter a verse reference."
	case KindNotFound:
		return "Verse not found. Please check your verse input."
	case KindUpstream:
		return "The analysis service returned an error. Please try again shortly."
	case KindParse:
		return "The analysis could not be read. Please resubmit the verse."
	case KindTransient:
		return "A network error interrupted the request. Please try again."
	case KindCanceled:
		return "The request was cancelled."
	default:
		return "Something went wrong while analysing the verse."
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
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
