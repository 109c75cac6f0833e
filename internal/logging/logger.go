// Package logging provides structured logging for the xdpcore engine,
// adapted from the teacher's logrus-based wrapper. The teacher's
// KillKrill log-shipping hook shipped over QUIC; QUIC transports are
// explicitly out of scope for this module (see DESIGN.md), so that hook
// is gone and this Logger is a plain logrus.Entry wrapper.
package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a structured logger with fixed JSON output, suited to
// running alongside a dataplane agent where stdout is typically
// captured by a supervisor rather than a terminal.
type Logger struct {
	*logrus.Entry
}

// New creates a Logger at the given level ("debug", "info", "warn",
// "error"; unrecognized values fall back to "info").
func New(level string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	logger.SetOutput(os.Stdout)

	entry := logger.WithField("component", "xdpcore")
	return &Logger{Entry: entry}
}

// WithField adds a field to the logger.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithFields adds multiple fields to the logger.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithFields(fields)}
}

// Info logs an info message with optional key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Entry.WithFields(parseKeysAndValues(keysAndValues...)).Info(msg)
}

// Error logs an error message with optional key-value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Entry.WithFields(parseKeysAndValues(keysAndValues...)).Error(msg)
}

// Warn logs a warning message with optional key-value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Entry.WithFields(parseKeysAndValues(keysAndValues...)).Warn(msg)
}

// Debug logs a debug message with optional key-value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Entry.WithFields(parseKeysAndValues(keysAndValues...)).Debug(msg)
}

func parseKeysAndValues(keysAndValues ...interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprintf("%v", keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}

// LogBringUpStep logs the outcome of one bring-up step (socket
// creation, UMEM registration, ring-size configuration, mmap-offsets
// query, ring mmap, index init, bind, initial fill populate).
func (l *Logger) LogBringUpStep(step, iface string, queueID int, err error) {
	fields := logrus.Fields{
		"step":      step,
		"interface": iface,
		"queue_id":  queueID,
		"type":      "bring_up",
	}
	if err != nil {
		l.Entry.WithFields(fields).WithError(err).Error("bring-up step failed")
		return
	}
	l.Entry.WithFields(fields).Debug("bring-up step succeeded")
}

// LogDataplaneShortCount logs a dataplane operation that returned fewer
// slots than requested (frame exhaustion, a full ring), which is
// non-fatal but worth surfacing above debug level if it persists.
func (l *Logger) LogDataplaneShortCount(op, iface string, queueID int, requested, got int) {
	l.Entry.WithFields(logrus.Fields{
		"op":        op,
		"interface": iface,
		"queue_id":  queueID,
		"requested": requested,
		"got":       got,
		"type":      "dataplane_short_count",
	}).Warn("dataplane operation returned a short count")
}
