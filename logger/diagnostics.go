package logger

import "sync"

// CollectingLogger wraps another Logger and additionally records every
// Warn call verbatim, satisfying the diagnostics-log requirement: every
// continue-on-negative-cash and slippage-fallback warning (spec §7)
// ends up both in the normal log stream and in a structured slice the
// caller can attach to a BacktestResult.
type CollectingLogger struct {
	Logger
	mu          sync.Mutex
	diagnostics []string
}

// NewCollectingLogger wraps inner, which still receives every call.
func NewCollectingLogger(inner Logger) *CollectingLogger {
	return &CollectingLogger{Logger: inner}
}

// Warn records msg before delegating to the wrapped logger.
func (c *CollectingLogger) Warn(msg string, fields ...Field) {
	c.mu.Lock()
	c.diagnostics = append(c.diagnostics, msg)
	c.mu.Unlock()
	c.Logger.Warn(msg, fields...)
}

// Diagnostics returns a copy of every warning recorded so far.
func (c *CollectingLogger) Diagnostics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.diagnostics))
	copy(out, c.diagnostics)
	return out
}
