package notification

import (
	"errors"
	"sync"
)

// DefaultViewBuffer is the number of notices the view channel holds
const DefaultViewBuffer = 16

// ErrChannelClosed is returned when sending on a closed channel
var ErrChannelClosed = errors.New("notification channel closed")

// viewChannel is a bounded Go channel drained by the interactive view. Senders
// never block: when the buffer is full the oldest notice is dropped.
type viewChannel struct {
	config  *ViewChannelConfig
	ch      chan Notification
	closed  bool
	dropped int
	mu      sync.Mutex
}

func newViewChannel(cfg *ViewChannelConfig) *viewChannel {
	size := cfg.Buffer
	if size <= 0 {
		size = DefaultViewBuffer
	}
	return &viewChannel{
		config: cfg,
		ch:     make(chan Notification, size),
	}
}

// Send enqueues the notice, evicting the oldest one if needed
func (c *viewChannel) Send(n Notification) error {
	if n.Type == NotifyMutationSettled && !c.config.OnSettled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}

	for {
		select {
		case c.ch <- n:
			return nil
		default:
		}
		select {
		case <-c.ch:
			c.dropped++
		default:
		}
	}
}

// Dropped returns how many notices were evicted
func (c *viewChannel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close closes the underlying channel so readers see the end
func (c *viewChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.ch)
	return nil
}
