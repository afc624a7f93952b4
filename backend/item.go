// Package backend defines the item model and the contract of the remote collection
// that todoq keeps in sync with.
package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ItemID is the server-assigned identifier of an item.
type ItemID int64

// NoID marks an item the server has not confirmed yet.
const NoID ItemID = 0

// String returns the decimal form used in URLs and CLI output.
func (id ItemID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseItemID parses a decimal identifier as typed by a user.
func ParseItemID(s string) (ItemID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return NoID, fmt.Errorf("invalid item id: %q", s)
	}
	return ItemID(n), nil
}

// Item represents one list entry
type Item struct {
	ID       ItemID
	Title    string
	LocalKey string // Only set on speculative items, never sent to the server
}

// Confirmed reports whether the server has assigned an identifier.
func (it Item) Confirmed() bool {
	return it.ID != NoID
}

// Key returns a stable key for rendering: the id once confirmed, the local key before.
func (it Item) Key() string {
	if it.Confirmed() {
		return it.ID.String()
	}
	return "local:" + it.LocalKey
}

// ItemList is an ordered sequence of items in server order.
type ItemList []Item

// Clone returns an independent copy of the list.
func (l ItemList) Clone() ItemList {
	if l == nil {
		return ItemList{}
	}
	out := make(ItemList, len(l))
	copy(out, l)
	return out
}

// Equal compares two lists element by element.
func (l ItemList) Equal(other ItemList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

// IndexOf returns the position of the confirmed item with the given id, or -1.
func (l ItemList) IndexOf(id ItemID) int {
	if id == NoID {
		return -1
	}
	for i, it := range l {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// IndexOfLocal returns the position of the speculative item with the given local key, or -1.
func (l ItemList) IndexOfLocal(key string) int {
	if key == "" {
		return -1
	}
	for i, it := range l {
		if it.LocalKey == key {
			return i
		}
	}
	return -1
}

// Reversed returns a copy in reverse order (newest first for display).
func (l ItemList) Reversed() ItemList {
	out := make(ItemList, len(l))
	for i, it := range l {
		out[len(l)-1-i] = it
	}
	return out
}

// Patch holds the fields of a partial update. Nil fields are left untouched.
type Patch struct {
	Title *string
}

// TitlePatch builds a patch that only changes the title.
func TitlePatch(title string) Patch {
	return Patch{Title: &title}
}

// Collection is the remote list resource. Each call is a single request/response
// exchange with no retries; any failure means the operation did not happen.
type Collection interface {
	FetchAll(ctx context.Context) (ItemList, error)
	Create(ctx context.Context, title string) (*Item, error)
	Update(ctx context.Context, id ItemID, fields Patch) (*Item, error)
	Remove(ctx context.Context, id ItemID) error
}

// NewLocalKey generates the key carried by a speculative item.
func NewLocalKey() string {
	return uuid.New().String()
}
