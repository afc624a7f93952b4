package reconcile

import (
	"errors"

	"todoq/internal/utils"
)

var (
	// ErrUnconfirmedItem is returned when an update or delete targets an item
	// the server has not assigned an id to yet.
	ErrUnconfirmedItem = errors.New("item is not confirmed yet")

	// ErrItemNotFound is returned when the target id is not in the visible list.
	ErrItemNotFound = errors.New("item not found")

	// ErrFetchSuperseded is returned by Refresh when a delete cancelled the read.
	ErrFetchSuperseded = errors.New("list read superseded by a delete")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("cache is closed")
)

func unconfirmedError() error {
	return &utils.ValidationError{Field: "id", Message: ErrUnconfirmedItem.Error(), Err: ErrUnconfirmedItem}
}

func notFoundError() error {
	return &utils.ValidationError{Field: "id", Message: ErrItemNotFound.Error(), Err: ErrItemNotFound}
}

// IsValidation reports whether err is a local precondition failure, meaning
// nothing changed and no request was sent.
func IsValidation(err error) bool {
	var ve *utils.ValidationError
	return errors.As(err, &ve)
}
