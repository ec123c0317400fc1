package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSubmission    = errors.New("submission error")
	ErrQuery         = errors.New("query error")
	ErrNotFound      = errors.New("not found")
	ErrPersistence   = errors.New("persistence error")
	ErrConfiguration = errors.New("configuration error")
	ErrSourceRead    = errors.New("source read error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// NotFound tags err as both a query failure and an unknown-job failure so
// callers that only care about query errors can ignore the distinction.
func NotFound(component, operation, message string, err error) error {
	return Wrap(ErrQuery, component, operation, message, errors.Join(ErrNotFound, err))
}

// Timeout reports whether err stems from an expired deadline.
func Timeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Kind returns a short classification label used in log fields and summaries.
// An expired deadline outranks the submission and query markers.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case Timeout(err):
		return "timeout"
	case errors.Is(err, ErrSubmission):
		return "submission"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrQuery):
		return "query"
	case errors.Is(err, ErrSourceRead):
		return "source_read"
	default:
		return "transient"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
