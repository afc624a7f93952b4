package notification

import (
	"github.com/sirupsen/logrus"
)

// manager implements NotificationManager
type manager struct {
	channels     []NotificationChannel
	view         *viewChannel
	enabled      bool
	logger       logrus.FieldLogger
	sendCallback func(Notification)
}

// NewManager creates a new NotificationManager based on configuration
func NewManager(cfg *Config, opts ...Option) (NotificationManager, error) {
	m := &manager{
		channels: []NotificationChannel{},
		enabled:  cfg.Enabled,
	}

	for _, opt := range opts {
		opt(m)
	}

	if !cfg.Enabled {
		return m, nil
	}

	if cfg.ViewChannel.Enabled {
		m.view = newViewChannel(&cfg.ViewChannel)
		m.channels = append(m.channels, m.view)
	}

	if cfg.LogNotification.Enabled {
		var logOpts []Option
		if m.logger != nil {
			logOpts = append(logOpts, WithLogger(m.logger))
		}
		m.channels = append(m.channels, NewLogNotificationChannel(&cfg.LogNotification, logOpts...))
	}

	return m, nil
}

// Send dispatches notification to all enabled channels
func (m *manager) Send(n Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Send(n); err != nil {
			lastErr = err
		}
	}
	if m.sendCallback != nil {
		m.sendCallback(n)
	}
	return lastErr
}

// SendAsync dispatches notification without blocking
func (m *manager) SendAsync(n Notification) {
	go func() {
		_ = m.Send(n)
	}()
}

// Notices returns the view channel, or nil when the view channel is disabled.
// A nil channel blocks forever in a select, which is what a view wants.
func (m *manager) Notices() <-chan Notification {
	if m.view == nil {
		return nil
	}
	return m.view.ch
}

// Close cleans up resources
func (m *manager) Close() error {
	var lastErr error
	for _, ch := range m.channels {
		if err := ch.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ChannelCount returns the number of active channels
func (m *manager) ChannelCount() int {
	return len(m.channels)
}
