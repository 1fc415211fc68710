package rule

import (
	"log/slog"
	"sync/atomic"

	"github.com/panbanda/ilscan/pkg/analyzer/usage"
)

// Session holds the state shared by all rules during one run. Caches live
// here rather than in rules so that consecutive runs never observe each
// other's data.
type Session struct {
	usage  *usage.Index
	logger *slog.Logger
	closed atomic.Bool
}

// NewSession creates a session with an empty usage index.
func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{usage: usage.New(), logger: logger}
}

// Usage returns the session's usage index.
func (s *Session) Usage() *usage.Index {
	return s.usage
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Close clears every session cache. It is safe to call more than once.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	st := s.usage.Stats()
	s.usage.Clear()
	s.logger.Debug("session closed", "usage_types", st.Types, "usage_tokens", st.Tokens, "usage_builds", st.Builds)
}
