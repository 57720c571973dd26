package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to classify stage failures. Stage handlers wrap
// errors with the marker matching the error's origin: I/O and transport
// failures carry ErrTransient or ErrNetwork and are retried; content
// inspection failures carry ErrValidation or ErrPolicy and fail the
// deposit permanently.
var (
	ErrTransient     = errors.New("transient failure")
	ErrNetwork       = errors.New("network unavailable")
	ErrValidation    = errors.New("validation error")
	ErrPolicy        = errors.New("policy violation")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging
// it with the provided marker for later classification. The marker should
// be one of the exported sentinel errors above.
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

// Retryable reports whether a stage error should leave the deposit in its
// current state for a later attempt rather than failing it permanently.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrNetwork)
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
