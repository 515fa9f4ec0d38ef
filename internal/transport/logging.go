// SPDX-License-Identifier: MIT
package transport

import (
	applog "olafx/internal/log"
)

// LoggingTransport implements the Transport interface by logging a summary
// of each message at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. Messages are summarised, anything else is
// logged with its type.
func (lt *LoggingTransport) Send(data any) error {
	if m, ok := data.(*Message); ok {
		applog.WithFields(applog.Fields{
			"revision":   m.Revision,
			"frame_size": m.FrameSize,
			"samples":    len(m.Output),
			"landmarks":  len(m.Landmarks),
		}).Debug("snapshot")
		return nil
	}
	applog.Debugf("LOG_TRANSPORT: Received (%T): %+v", data, data)
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
