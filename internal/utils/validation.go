package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError reports a local precondition failure. No remote call was made
// and no state changed, so callers may treat it as a no-op.
type ValidationError struct {
	Field   string
	Message string
	Err     error // optional sentinel for errors.Is
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns the sentinel, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: formatMessage(format, args...)}
}

// NormalizeTitle trims surrounding whitespace from an item title.
func NormalizeTitle(title string) string {
	return strings.TrimSpace(title)
}

// ValidateTitle checks that a title is non-empty after trimming and returns the
// trimmed form.
func ValidateTitle(title string) (string, error) {
	trimmed := NormalizeTitle(title)
	if trimmed == "" {
		return "", NewValidationError("title", "must not be empty")
	}
	return trimmed, nil
}

// ValidateEndpoint checks that an endpoint is an absolute http(s) URL.
func ValidateEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return NewValidationError("endpoint", "must not be empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return NewValidationError("endpoint", "%v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("endpoint", "scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return NewValidationError("endpoint", "missing host")
	}
	return nil
}
