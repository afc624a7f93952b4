package notification

import (
	"github.com/sirupsen/logrus"
)

// logNotificationChannel writes notifications to a logrus logger
type logNotificationChannel struct {
	config *LogNotificationConfig
	logger logrus.FieldLogger
}

// NewLogNotificationChannel creates a new log notification channel. Without
// WithLogger it writes to the logrus standard logger.
func NewLogNotificationChannel(cfg *LogNotificationConfig, opts ...Option) NotificationChannel {
	c := &logNotificationChannel{
		config: cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logrus.StandardLogger()
	}
	return c
}

// Send logs the notification: failures at warn, settled mutations at debug
func (c *logNotificationChannel) Send(n Notification) error {
	fields := logrus.Fields{
		"notification": string(n.Type),
	}
	for k, v := range n.Metadata {
		fields[k] = v
	}
	entry := c.logger.WithFields(fields)

	switch {
	case n.Type.IsFailure():
		entry.Warnf("%s: %s", n.Title, n.Message)
	case c.config.OnSettled:
		entry.Debugf("%s: %s", n.Title, n.Message)
	}
	return nil
}

// Close is a no-op; the logger is owned by the caller
func (c *logNotificationChannel) Close() error {
	return nil
}
