package utils

import (
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrItemNotFound returns an error for an id that is not in the list.
func ErrItemNotFound(id string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("item not found: %s", id),
		Suggestion: "Use 'todoq ls' to see all items and their ids",
	}
}

// ErrEndpointOffline returns an error when the endpoint is unreachable with smart suggestions.
func ErrEndpointOffline(endpoint, reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("endpoint %s is unreachable: %s", endpoint, reason),
		Suggestion: getSmartSuggestion(reason),
	}
}

// ErrRequestRejected returns an error when the server answered with a failure status.
func ErrRequestRejected(op string, status int) error {
	suggestion := "The server rejected the request. Your local list was restored"
	switch {
	case status == 404:
		suggestion = "The item no longer exists on the server. Run 'todoq ls' to refresh"
	case status >= 500:
		suggestion = "The server failed to process the request. Try again later"
	}
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("%s failed: status %d", op, status),
		Suggestion: suggestion,
	}
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running (try 'todoq serve' for a local one)"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "deadline exceeded") {
		return "The server may be slow or unreachable. Raise endpoint.timeout or try again later"
	}

	return "Check your internet connection and try again"
}
