package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"todoq/backend"
	"todoq/internal/notification"
	"todoq/internal/utils"
)

// Add appends a speculative item and creates it remotely. On success a resync
// read gives the item its server id; on failure the list is rolled back.
func (c *Cache) Add(ctx context.Context, title string) (*Mutation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	title, err := utils.ValidateTitle(title)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	m := newMutation(newMutationID(), KindAdd)
	m.Title = title
	m.LocalKey = backend.NewLocalKey()
	c.begin(m, true)
	c.spawn(func() {
		created, err := c.coll.Create(c.baseCtx, m.Title)
		c.settle(m, created, err)
	})
	c.mu.Unlock()

	c.signal()
	return m, nil
}

// Update changes the title of a confirmed item
func (c *Cache) Update(ctx context.Context, id backend.ItemID, title string) (*Mutation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == backend.NoID {
		return nil, unconfirmedError()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.visible.IndexOf(id) < 0 {
		c.mu.Unlock()
		return nil, notFoundError()
	}
	title, err := utils.ValidateTitle(title)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	m := newMutation(newMutationID(), KindUpdate)
	m.ItemID = id
	m.Title = title
	c.begin(m, c.speculativeUpdates)
	c.spawn(func() {
		updated, err := c.coll.Update(c.baseCtx, m.ItemID, backend.TitlePatch(m.Title))
		c.settle(m, updated, err)
	})
	c.mu.Unlock()

	c.signal()
	return m, nil
}

// Delete removes a confirmed item. Every list read in flight is cancelled so it
// cannot bring the item back; a replacement read follows once the delete settles.
func (c *Cache) Delete(ctx context.Context, id backend.ItemID) (*Mutation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == backend.NoID {
		return nil, unconfirmedError()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.visible.IndexOf(id) < 0 {
		c.mu.Unlock()
		return nil, notFoundError()
	}

	m := newMutation(newMutationID(), KindDelete)
	m.ItemID = id
	if n := c.cancelFetches(); n > 0 {
		c.resyncOwed = true
		c.mutationLogger(m).WithField("cancelled_reads", n).Debug("cancelled in-flight list reads")
	}
	c.begin(m, true)
	c.spawn(func() {
		err := c.coll.Remove(c.baseCtx, m.ItemID)
		c.settle(m, nil, err)
	})
	c.mu.Unlock()

	c.signal()
	return m, nil
}

// settle is the single transition out of the speculative state. Success keeps
// the effect and applies the server's answer to the authoritative list; failure
// drops the effect and rolls the visible list back.
func (c *Cache) settle(m *Mutation, result *backend.Item, err error) {
	duration := time.Since(m.started)
	logger := c.mutationLogger(m).WithField("duration_ms", duration.Milliseconds())

	c.mu.Lock()
	c.settleCount++
	m.settleMark = c.settleCount

	var state State
	if err == nil {
		state = StateSettledSuccess
		m.phase = StateSettledSuccess
		m.result = result
		c.applySuccess(m)
		c.pruneSettled()
		c.visible = c.rebuild()
		logger.Debug("mutation settled")
		if m.Kind == KindAdd && !c.closed {
			c.startFetch("resync after add")
		}
	} else {
		state = StateSettledFailure
		m.phase = StateSettledFailure
		c.untrack(m)
		c.rollback(m, logger)
		c.pruneSettled()
		logger.WithError(err).Debug("mutation failed, rolled back")
	}
	m.snapshot = nil
	c.stamp++

	if m.Kind == KindDelete && c.resyncOwed && !c.closed {
		c.resyncOwed = false
		c.startFetch("resync after delete")
	}
	c.mu.Unlock()

	c.report(m, duration, err)
	m.finish(state, err)
	c.signal()
}

// applySuccess writes the server's answer into the authoritative list
func (c *Cache) applySuccess(m *Mutation) {
	switch m.Kind {
	case KindAdd:
		if m.result != nil && m.result.Confirmed() && c.confirmed.IndexOf(m.result.ID) < 0 {
			c.confirmed = append(c.confirmed, backend.Item{ID: m.result.ID, Title: m.result.Title})
		}
	case KindUpdate:
		if i := c.confirmed.IndexOf(m.ItemID); i >= 0 {
			title := m.Title
			if m.result != nil && m.result.Title != "" {
				title = m.result.Title
			}
			c.confirmed[i].Title = title
		}
	case KindDelete:
		if i := c.confirmed.IndexOf(m.ItemID); i >= 0 {
			c.confirmed = append(c.confirmed[:i], c.confirmed[i+1:]...)
		}
	}
}

// rollback restores the mutation's snapshot when nothing else happened since it
// started. Otherwise the snapshot is stale: restoring it would undo later
// transitions, so the visible list is rebuilt without this mutation instead.
func (c *Cache) rollback(m *Mutation, logger logrus.FieldLogger) {
	if m.snapshot != nil && m.snapshot.stamp == c.stamp {
		c.visible = m.snapshot.Items()
		return
	}
	c.visible = c.rebuild()
	if m.snapshot != nil {
		logger.WithField("snapshot_items", len(m.snapshot.items)).Debug("snapshot superseded, rebuilt from authoritative list")
	}
}

// report sends the settle outcome to the notifier and the journal. It runs on
// the settling goroutine before waiters are released.
func (c *Cache) report(m *Mutation, duration time.Duration, err error) {
	itemID := m.ItemID
	if m.result != nil && m.result.Confirmed() {
		itemID = m.result.ID
	}

	if c.recorder != nil {
		c.recorder.RecordMutation(m.Kind.String(), m.ID, itemID, duration, err)
	}

	if c.notifier == nil {
		return
	}
	meta := map[string]string{
		"kind":     m.Kind.String(),
		"mutation": m.ID,
	}
	if itemID != backend.NoID {
		meta["item_id"] = itemID.String()
	}
	if err != nil {
		c.notify(notification.New(notification.NotifyMutationFailed,
			fmt.Sprintf("%s failed", describe(m)), err.Error(), meta))
		return
	}
	c.notify(notification.New(notification.NotifyMutationSettled,
		fmt.Sprintf("%s saved", describe(m)), m.Title, meta))
}

// notify hands a notice to the notifier. A channel error only reaches the debug log.
func (c *Cache) notify(n notification.Notification) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Send(n); err != nil {
		c.log.WithError(err).WithField("notification", string(n.Type)).Debug("failed to deliver notice")
	}
}

func describe(m *Mutation) string {
	switch m.Kind {
	case KindAdd:
		return fmt.Sprintf("Add %q", m.Title)
	case KindUpdate:
		return fmt.Sprintf("Edit of item %s", m.ItemID)
	case KindDelete:
		return fmt.Sprintf("Delete of item %s", m.ItemID)
	default:
		return "Mutation"
	}
}
