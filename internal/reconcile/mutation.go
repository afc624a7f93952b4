package reconcile

import (
	"context"
	"sync"
	"time"

	"todoq/backend"
)

// Kind identifies what a mutation does
type Kind int

const (
	KindAdd Kind = iota
	KindUpdate
	KindDelete
)

// String returns the lowercase name used in logs and the journal
func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// State is the lifecycle position of a mutation
type State int

const (
	StateSpeculative State = iota
	StateSettledSuccess
	StateSettledFailure
)

// String returns a readable state name
func (s State) String() string {
	switch s {
	case StateSpeculative:
		return "speculative"
	case StateSettledSuccess:
		return "settled_success"
	case StateSettledFailure:
		return "settled_failure"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the visible list taken right before a
// mutation applied its speculative effect.
type Snapshot struct {
	items backend.ItemList
	stamp uint64 // cache stamp right after the owning mutation was applied
}

// Items returns a copy of the captured list
func (s *Snapshot) Items() backend.ItemList {
	return s.items.Clone()
}

// Mutation is the context of one Add, Update or Delete from start to settle.
// The exported fields are fixed at start and safe to read at any time.
type Mutation struct {
	ID       string
	Kind     Kind
	ItemID   backend.ItemID // target of Update/Delete
	Title    string         // new title for Add/Update
	LocalKey string         // speculative key for Add

	seq         uint64
	speculative bool
	snapshot    *Snapshot
	started     time.Time

	// guarded by the cache mutex
	phase      State
	result     *backend.Item
	settleMark uint64

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newMutation(id string, kind Kind) *Mutation {
	return &Mutation{
		ID:      id,
		Kind:    kind,
		started: time.Now(),
		state:   StateSpeculative,
		done:    make(chan struct{}),
	}
}

// State returns the current lifecycle state
func (m *Mutation) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the remote failure once settled, nil before and on success
func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Done is closed when the mutation settles
func (m *Mutation) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the mutation settles and returns its failure, if any
func (m *Mutation) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the item the server answered with, available after a successful settle
func (m *Mutation) Result() *backend.Item {
	select {
	case <-m.done:
	default:
		return nil
	}
	if m.result == nil {
		return nil
	}
	it := *m.result
	return &it
}

func (m *Mutation) finish(state State, err error) {
	m.mu.Lock()
	m.state = state
	m.err = err
	m.mu.Unlock()
	close(m.done)
}

// applyLocally folds this mutation's effect into list. Effects are idempotent so
// they can be re-applied on top of any authoritative list.
func (m *Mutation) applyLocally(list backend.ItemList) backend.ItemList {
	switch m.Kind {
	case KindAdd:
		if m.phase == StateSettledSuccess && m.result != nil && m.result.Confirmed() {
			if list.IndexOf(m.result.ID) < 0 {
				list = append(list, backend.Item{ID: m.result.ID, Title: m.result.Title})
			}
			return list
		}
		if list.IndexOfLocal(m.LocalKey) < 0 {
			list = append(list, backend.Item{Title: m.Title, LocalKey: m.LocalKey})
		}
	case KindUpdate:
		if m.phase == StateSpeculative && !m.speculative {
			return list
		}
		title := m.Title
		if m.phase == StateSettledSuccess && m.result != nil && m.result.Title != "" {
			title = m.result.Title
		}
		if i := list.IndexOf(m.ItemID); i >= 0 {
			list[i].Title = title
		}
	case KindDelete:
		if i := list.IndexOf(m.ItemID); i >= 0 {
			list = append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// isReflectedIn reports whether an authoritative list already shows the
// outcome of this successfully settled mutation.
func (m *Mutation) isReflectedIn(list backend.ItemList) bool {
	switch m.Kind {
	case KindAdd:
		return m.result != nil && m.result.Confirmed() && list.IndexOf(m.result.ID) >= 0
	case KindUpdate:
		i := list.IndexOf(m.ItemID)
		if i < 0 {
			return true
		}
		want := m.Title
		if m.result != nil && m.result.Title != "" {
			want = m.result.Title
		}
		return list[i].Title == want
	case KindDelete:
		return list.IndexOf(m.ItemID) < 0
	}
	return false
}
