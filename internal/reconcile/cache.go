// Package reconcile keeps the client-side view of the remote item list. Edits
// are shown immediately as speculative state, sent to the server on their own
// goroutine, and then settled: kept on success, rolled back on failure.
//
// The visible list is always the last authoritative list with the effects of
// tracked mutations folded over it, in start order. Mutations stay tracked while
// in flight, and after a successful settle until an authoritative list reflects
// them or a read started after they settled lands.
//
// Operations take a context only to gate their start. The remote request
// belongs to the cache and is cancelled by Close.
package reconcile

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"todoq/backend"
	"todoq/internal/notification"
	"todoq/internal/utils"
)

// Recorder receives one call per settled mutation
type Recorder interface {
	RecordMutation(kind, mutationID string, itemID backend.ItemID, duration time.Duration, err error)
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Cache) {
		c.log = logger
	}
}

// WithNotifier sets where failure and settle notices go
func WithNotifier(n notification.NotificationManager) Option {
	return func(c *Cache) {
		c.notifier = n
	}
}

// WithRecorder sets the mutation journal
func WithRecorder(r Recorder) Option {
	return func(c *Cache) {
		c.recorder = r
	}
}

// WithSpeculativeUpdates controls whether an update shows its new title before
// the server confirms it. On by default.
func WithSpeculativeUpdates(enabled bool) Option {
	return func(c *Cache) {
		c.speculativeUpdates = enabled
	}
}

// Cache is the reconciling view-state cache
type Cache struct {
	coll               backend.Collection
	log                logrus.FieldLogger
	notifier           notification.NotificationManager
	recorder           Recorder
	speculativeUpdates bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	changes chan struct{}

	mu          sync.Mutex
	closed      bool
	loaded      bool
	confirmed   backend.ItemList
	visible     backend.ItemList
	tracked     []*Mutation
	seq         uint64
	stamp       uint64 // bumped on every state transition
	settleCount uint64
	fetchGen    uint64
	appliedGen  uint64
	fetches     map[uint64]*fetch
	resyncOwed  bool
}

// New creates an empty cache over the given collection
func New(coll backend.Collection, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		coll:               coll,
		speculativeUpdates: true,
		baseCtx:            ctx,
		cancel:             cancel,
		changes:            make(chan struct{}, 1),
		confirmed:          backend.ItemList{},
		visible:            backend.ItemList{},
		fetches:            make(map[uint64]*fetch),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = utils.GetLogger().Logrus()
	}
	return c
}

// Close cancels outstanding requests and waits for their goroutines. In-flight
// mutations settle as failures.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

// =============================================================================
// Produced Interface
// =============================================================================

// Items returns a copy of the visible list
func (c *Cache) Items() backend.ItemList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible.Clone()
}

// Confirmed returns a copy of the last authoritative list
func (c *Cache) Confirmed() backend.ItemList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed.Clone()
}

// Loaded reports whether an authoritative list has been applied at least once
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// InProgress reports whether a mutation of the given kind is still in flight
func (c *Cache) InProgress(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.tracked {
		if m.Kind == kind && m.phase == StateSpeculative {
			return true
		}
	}
	return false
}

// Pending returns the number of mutations in flight
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.tracked {
		if m.phase == StateSpeculative {
			n++
		}
	}
	return n
}

// Fetching reports whether a list read is in flight
func (c *Cache) Fetching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fetches) > 0
}

// Changes delivers a signal after every state transition. Signals coalesce:
// a reader that falls behind sees one pending signal, then reads Items.
func (c *Cache) Changes() <-chan struct{} {
	return c.changes
}

// =============================================================================
// Internal State Helpers (callers hold c.mu)
// =============================================================================

// rebuild folds the tracked mutations over the authoritative list
func (c *Cache) rebuild() backend.ItemList {
	out := c.confirmed.Clone()
	for _, m := range c.tracked {
		out = m.applyLocally(out)
	}
	return out
}

func (c *Cache) untrack(m *Mutation) {
	for i, t := range c.tracked {
		if t == m {
			c.tracked = append(c.tracked[:i], c.tracked[i+1:]...)
			return
		}
	}
}

// pruneSettled stops tracking successful mutations that guard nothing any more.
// A mutation goes once the authoritative list shows its effect (or a later
// settled edit of the same item overrides it) and no read that started before
// its settle is still in flight. Mutations behind a speculative one stay.
func (c *Cache) pruneSettled() {
	oldestRead := uint64(math.MaxUint64)
	for _, f := range c.fetches {
		if f.startMark < oldestRead {
			oldestRead = f.startMark
		}
	}

	overridden := make([]bool, len(c.tracked))
	edited := make(map[backend.ItemID]bool)
	for i := len(c.tracked) - 1; i >= 0; i-- {
		m := c.tracked[i]
		if m.phase != StateSettledSuccess || m.Kind != KindUpdate {
			continue
		}
		overridden[i] = edited[m.ItemID]
		edited[m.ItemID] = true
	}

	kept := c.tracked[:0]
	earlierInFlight := false
	for i, m := range c.tracked {
		if m.phase == StateSpeculative {
			earlierInFlight = true
		}
		if !earlierInFlight && m.phase == StateSettledSuccess && m.settleMark <= oldestRead &&
			(overridden[i] || m.isReflectedIn(c.confirmed)) {
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(c.tracked); i++ {
		c.tracked[i] = nil
	}
	c.tracked = kept
}

// begin registers a mutation, captures its snapshot and applies its effect
func (c *Cache) begin(m *Mutation, speculative bool) {
	c.seq++
	m.seq = c.seq
	m.speculative = speculative

	var before backend.ItemList
	if speculative {
		before = c.visible.Clone()
	}

	c.tracked = append(c.tracked, m)
	c.visible = c.rebuild()
	c.stamp++

	if speculative {
		m.snapshot = &Snapshot{items: before, stamp: c.stamp}
	}

	c.mutationLogger(m).Debug("speculative state applied")
}

func (c *Cache) mutationLogger(m *Mutation) logrus.FieldLogger {
	fields := logrus.Fields{
		"mutation": m.ID,
		"kind":     m.Kind.String(),
	}
	if m.ItemID != backend.NoID {
		fields["item_id"] = int64(m.ItemID)
	}
	return c.log.WithFields(fields)
}

// signal wakes the view without blocking
func (c *Cache) signal() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// spawn runs fn on a tracked goroutine
func (c *Cache) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func newMutationID() string {
	return uuid.New().String()
}
