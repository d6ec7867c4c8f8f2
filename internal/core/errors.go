package core

import (
	"errors"
	"fmt"
)

// ExtractionError means the source could not be read. The pipeline is never
// started for a batch that failed extraction.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("extraction failed for %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError wraps err as an extraction failure for source.
// An error that already is an ExtractionError is returned unchanged.
func NewExtractionError(source string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractionError{Source: source, Err: err}
}

// ConfigurationError means the rule set or a lookup table is missing or
// invalid. A run aborts with it before any row is processed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether err aborts a whole run rather than a single row.
func IsFatal(err error) bool {
	var ee *ExtractionError
	var ce *ConfigurationError
	return errors.As(err, &ee) || errors.As(err, &ce)
}
