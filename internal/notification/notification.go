// Package notification delivers failure and settle notices from the reconciling
// cache to the view and to the log.
package notification

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NotificationType identifies the type of notification
type NotificationType string

const (
	NotifyMutationFailed  NotificationType = "mutation_failed"
	NotifyFetchFailed     NotificationType = "fetch_failed"
	NotifyMutationSettled NotificationType = "mutation_settled"
)

// IsFailure reports whether the type describes something that did not happen.
func (t NotificationType) IsFailure() bool {
	return t == NotifyMutationFailed || t == NotifyFetchFailed
}

// Notification represents a notice to be delivered
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Timestamp time.Time
	Metadata  map[string]string
}

// NotificationManager is the interface for managing notifications
type NotificationManager interface {
	Send(n Notification) error
	SendAsync(n Notification)
	Notices() <-chan Notification
	Close() error
	ChannelCount() int
}

// NotificationChannel is the interface for a notification channel
type NotificationChannel interface {
	Send(n Notification) error
	Close() error
}

// Config holds the notification configuration
type Config struct {
	Enabled         bool
	ViewChannel     ViewChannelConfig
	LogNotification LogNotificationConfig
}

// ViewChannelConfig holds configuration of the channel the interactive view drains
type ViewChannelConfig struct {
	Enabled   bool
	Buffer    int
	OnSettled bool // also deliver mutation_settled notices
}

// LogNotificationConfig holds log notification configuration
type LogNotificationConfig struct {
	Enabled   bool
	OnSettled bool // log mutation_settled notices at debug level
}

// DefaultConfig returns a configuration with both channels on.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		ViewChannel: ViewChannelConfig{
			Enabled:   true,
			Buffer:    DefaultViewBuffer,
			OnSettled: true,
		},
		LogNotification: LogNotificationConfig{
			Enabled:   true,
			OnSettled: true,
		},
	}
}

// Option is a functional option for configuring the manager and its channels
type Option func(interface{})

// WithLogger sets the logger used by the log channel
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c interface{}) {
		if ch, ok := c.(*logNotificationChannel); ok {
			ch.logger = logger
		}
		if mgr, ok := c.(*manager); ok {
			mgr.logger = logger
		}
	}
}

// WithSendCallback sets a callback to be called when a notification is sent
func WithSendCallback(callback func(Notification)) Option {
	return func(c interface{}) {
		if mgr, ok := c.(*manager); ok {
			mgr.sendCallback = callback
		}
	}
}

// New builds a notification stamped with the current time.
func New(t NotificationType, title, message string, metadata map[string]string) Notification {
	return Notification{
		Type:      t,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
