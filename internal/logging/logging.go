// Package logging implements the leveled log sink used by the registrar.
//
// A Sink writes every record to a *slog.Logger and, when a Forwarder is
// attached, hands the formatted record to it so it can be re-published on
// the bus. The THROW level additionally returns a *FatalError that callers
// must propagate.
package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log record.
type Level int

const (
	// LevelDebug is for diagnostic detail.
	LevelDebug Level = iota
	// LevelInfo is for lifecycle events.
	LevelInfo
	// LevelWarn is for tolerated client misuse.
	LevelWarn
	// LevelError is for failures the service survives.
	LevelError
	// LevelThrow logs at error severity and aborts the current operation.
	LevelThrow
)

// LevelFatal is the slog level records at LevelThrow are written with.
const LevelFatal = slog.Level(12)

// String returns the name used on the wire for the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelThrow:
		return "THROW"
	default:
		return "UNKNOWN"
	}
}

// SlogLevel maps the level to its slog equivalent.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelThrow:
		return LevelFatal
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "THROW":
		return LevelThrow, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// FatalError is returned for records logged at LevelThrow.
type FatalError struct {
	Message string
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Message
}

// IsFatal reports whether err carries a *FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Forwarder receives formatted records after they are written locally.
type Forwarder interface {
	ForwardLog(level Level, at time.Time, message string)
}

// Sink is the leveled log collaborator. It is safe for concurrent use.
type Sink struct {
	logger *slog.Logger

	mu        sync.RWMutex
	forwarder Forwarder
	now       func() time.Time
}

// New creates a Sink writing to logger. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		logger: logger,
		now:    time.Now,
	}
}

// Logger returns the underlying slog logger.
func (s *Sink) Logger() *slog.Logger {
	return s.logger
}

// SetForwarder attaches f; nil detaches the current forwarder.
func (s *Sink) SetForwarder(f Forwarder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forwarder = f
}

// Log records msg with optional slog-style key/value args. Only LevelThrow
// returns a non-nil error.
func (s *Sink) Log(level Level, msg string, args ...any) error {
	message := Format(msg, args...)

	slogLevel := level.SlogLevel()
	enabled := s.logger.Enabled(context.Background(), slogLevel)
	if enabled {
		if level == LevelThrow {
			args = append(args, "throw", true)
		}
		s.logger.Log(context.Background(), slogLevel, msg, args...)
	}

	s.mu.RLock()
	forwarder := s.forwarder
	now := s.now
	s.mu.RUnlock()

	if enabled && forwarder != nil {
		forwarder.ForwardLog(level, now(), message)
	}

	if level == LevelThrow {
		return &FatalError{Message: message}
	}
	return nil
}

// Debug logs at LevelDebug.
func (s *Sink) Debug(msg string, args ...any) {
	_ = s.Log(LevelDebug, msg, args...)
}

// Info logs at LevelInfo.
func (s *Sink) Info(msg string, args ...any) {
	_ = s.Log(LevelInfo, msg, args...)
}

// Warn logs at LevelWarn.
func (s *Sink) Warn(msg string, args ...any) {
	_ = s.Log(LevelWarn, msg, args...)
}

// Error logs at LevelError.
func (s *Sink) Error(msg string, args ...any) {
	_ = s.Log(LevelError, msg, args...)
}

// Throw logs at LevelThrow and returns the resulting *FatalError.
func (s *Sink) Throw(msg string, args ...any) error {
	return s.Log(LevelThrow, msg, args...)
}

// Format renders msg and its key/value args as a single line, the form
// used for the Log signal.
func Format(msg string, args ...any) string {
	if len(args) == 0 {
		return msg
	}

	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(args); i++ {
		sb.WriteByte(' ')
		switch a := args[i].(type) {
		case slog.Attr:
			fmt.Fprintf(&sb, "%s=%v", a.Key, a.Value.Any())
		case string:
			if i+1 < len(args) {
				fmt.Fprintf(&sb, "%s=%v", a, args[i+1])
				i++
			} else {
				sb.WriteString(a)
			}
		default:
			fmt.Fprintf(&sb, "%v", a)
		}
	}
	return sb.String()
}
