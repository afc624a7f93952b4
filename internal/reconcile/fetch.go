package reconcile

import (
	"context"
	"errors"

	"todoq/backend"
	"todoq/internal/notification"
)

// fetch is one in-flight list read
type fetch struct {
	gen       uint64
	startMark uint64 // settle count when the read started
	reason    string
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

// Refresh reads the whole list and replaces the authoritative state with it,
// keeping the effects of mutations still in flight. It returns
// ErrFetchSuperseded when a delete cancelled the read.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	f := c.startFetch("refresh")
	c.mu.Unlock()

	c.signal()

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startFetch launches a list read. Caller holds c.mu.
func (c *Cache) startFetch(reason string) *fetch {
	c.fetchGen++
	ctx, cancel := context.WithCancel(c.baseCtx)
	f := &fetch{
		gen:       c.fetchGen,
		startMark: c.settleCount,
		reason:    reason,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.fetches[f.gen] = f
	c.log.WithField("fetch", f.gen).WithField("reason", reason).Debug("list read started")

	c.spawn(func() {
		defer cancel()
		items, err := c.coll.FetchAll(ctx)
		c.completeFetch(f, items, err)
	})
	return f
}

// cancelFetches aborts every in-flight read and returns how many there were.
// Caller holds c.mu.
func (c *Cache) cancelFetches() int {
	n := 0
	for gen, f := range c.fetches {
		f.cancel()
		delete(c.fetches, gen)
		n++
	}
	if n > 0 {
		c.pruneSettled()
	}
	return n
}

// completeFetch applies a finished read unless it was cancelled or a newer
// read already landed.
func (c *Cache) completeFetch(f *fetch, items backend.ItemList, err error) {
	logger := c.log.WithField("fetch", f.gen)

	c.mu.Lock()
	if _, live := c.fetches[f.gen]; !live {
		c.mu.Unlock()
		logger.Debug("list read discarded: superseded by a delete")
		f.err = ErrFetchSuperseded
		close(f.done)
		return
	}
	delete(c.fetches, f.gen)

	if err != nil {
		c.pruneSettled()
		c.mu.Unlock()
		if errors.Is(err, context.Canceled) && c.baseCtx.Err() != nil {
			f.err = ErrClosed
			close(f.done)
			return
		}
		logger.WithError(err).Warn("list read failed")
		c.notify(notification.New(notification.NotifyFetchFailed,
			"Could not load items", err.Error(), map[string]string{"reason": f.reason}))
		f.err = err
		close(f.done)
		return
	}

	if f.gen < c.appliedGen {
		c.pruneSettled()
		c.mu.Unlock()
		logger.Debug("list read discarded: a newer read already applied")
		close(f.done)
		return
	}
	c.applyFetch(f, items)
	c.mu.Unlock()

	close(f.done)
	c.signal()
}

// applyFetch installs an authoritative list. Caller holds c.mu.
func (c *Cache) applyFetch(f *fetch, items backend.ItemList) {
	c.appliedGen = f.gen
	c.confirmed = items.Clone()
	c.loaded = true

	kept := c.tracked[:0]
	for _, m := range c.tracked {
		if m.phase == StateSettledSuccess && (m.settleMark <= f.startMark || m.isReflectedIn(c.confirmed)) {
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(c.tracked); i++ {
		c.tracked[i] = nil
	}
	c.tracked = kept
	c.pruneSettled()

	c.visible = c.rebuild()
	c.stamp++
	c.log.WithField("fetch", f.gen).WithField("items", len(c.visible)).Debug("authoritative list applied")
}
