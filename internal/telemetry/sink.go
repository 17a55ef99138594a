// Package telemetry adapts the engine's structured logging into the single
// Log(line) method the out-of-scope GUI/telemetry collaborator expects.
// This package owns no formatting policy of its own; it is a thin seam so
// that collaborator can be wired in without internal/* packages depending
// on it directly.
package telemetry

import "github.com/book-expert/logger"

// Sink receives a single human-readable line per notable event. The
// out-of-scope GUI implements this interface; LoggerSink below is the
// default implementation used when no GUI is attached.
type Sink interface {
	Log(line string)
}

// LoggerSink forwards lines to a book-expert/logger.Logger at Info level,
// giving CLI-only runs the same log line a GUI-driven run would have
// received.
type LoggerSink struct {
	log *logger.Logger
}

// NewLoggerSink returns a Sink backed by log.
func NewLoggerSink(log *logger.Logger) *LoggerSink {
	return &LoggerSink{log: log}
}

// Log forwards line to the underlying logger. A nil logger makes this a
// no-op, so a Sink can be constructed before logging is configured.
func (s *LoggerSink) Log(line string) {
	if s.log == nil {
		return
	}

	s.log.Info("%s", line)
}

// MultiSink fans a line out to every wrapped Sink, so the same run can feed
// both the structured logger and an attached GUI collaborator.
type MultiSink []Sink

// Log forwards line to every wrapped Sink in order.
func (m MultiSink) Log(line string) {
	for _, sink := range m {
		sink.Log(line)
	}
}
