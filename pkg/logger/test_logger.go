package logger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// TestLogger captures every message for assertions. It is safe for
// concurrent use, so download workers can share one.
type TestLogger struct {
	mu       sync.Mutex
	messages []LogMessage
	zerolog  *zerolog.Logger
}

// LogMessage represents a captured log message
type LogMessage struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Error   error
}

// NewTestLogger creates a new test logger
func NewTestLogger() *TestLogger {
	nop := zerolog.Nop()
	return &TestLogger{zerolog: &nop}
}

func (l *TestLogger) scope() *testScope { return &testScope{root: l} }

func (l *TestLogger) Debug(msg string) { l.record("DEBUG", msg, nil, nil) }
func (l *TestLogger) Info(msg string)  { l.record("INFO", msg, nil, nil) }
func (l *TestLogger) Warn(msg string)  { l.record("WARN", msg, nil, nil) }
func (l *TestLogger) Error(msg string) { l.record("ERROR", msg, nil, nil) }
func (l *TestLogger) Fatal(msg string) { l.record("FATAL", msg, nil, nil) }

func (l *TestLogger) DebugWithFields(msg string, f map[string]interface{}) {
	l.record("DEBUG", msg, f, nil)
}
func (l *TestLogger) InfoWithFields(msg string, f map[string]interface{}) {
	l.record("INFO", msg, f, nil)
}
func (l *TestLogger) WarnWithFields(msg string, f map[string]interface{}) {
	l.record("WARN", msg, f, nil)
}
func (l *TestLogger) ErrorWithFields(msg string, f map[string]interface{}) {
	l.record("ERROR", msg, f, nil)
}
func (l *TestLogger) FatalWithFields(msg string, f map[string]interface{}) {
	l.record("FATAL", msg, f, nil)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.scope().WithField(key, value)
}
func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.scope().WithFields(fields)
}
func (l *TestLogger) WithError(err error) Logger { return l.scope().WithError(err) }

// WithContext is a no-op for captured logs.
func (l *TestLogger) WithContext(ctx context.Context) Logger { return l }

func (l *TestLogger) GetZerolog() *zerolog.Logger { return l.zerolog }

func (l *TestLogger) record(level, msg string, fields map[string]interface{}, err error) {
	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, LogMessage{Level: level, Message: msg, Fields: copied, Error: err})
}

// GetMessages returns a copy of all captured messages
func (l *TestLogger) GetMessages() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// GetMessagesByLevel returns captured messages of one level
func (l *TestLogger) GetMessagesByLevel(level string) []LogMessage {
	var out []LogMessage
	for _, m := range l.GetMessages() {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

// HasMessage reports whether any message contains text
func (l *TestLogger) HasMessage(text string) bool {
	for _, m := range l.GetMessages() {
		if strings.Contains(m.Message, text) {
			return true
		}
	}
	return false
}

// HasError reports whether anything was logged at ERROR level
func (l *TestLogger) HasError() bool {
	return len(l.GetMessagesByLevel("ERROR")) > 0
}

// Clear drops all captured messages
func (l *TestLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
}

// String renders captured messages one per line
func (l *TestLogger) String() string {
	var b strings.Builder
	for _, m := range l.GetMessages() {
		fmt.Fprintf(&b, "[%s] %s", m.Level, m.Message)
		if len(m.Fields) > 0 {
			fmt.Fprintf(&b, " %v", m.Fields)
		}
		if m.Error != nil {
			fmt.Fprintf(&b, " error=%v", m.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// testScope carries fields and an error for a TestLogger child.
type testScope struct {
	root   *TestLogger
	fields map[string]interface{}
	err    error
}

func (s *testScope) merged(extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(s.fields)+len(extra))
	for k, v := range s.fields {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (s *testScope) emit(level, msg string, extra map[string]interface{}) {
	s.root.record(level, msg, s.merged(extra), s.err)
}

func (s *testScope) Debug(msg string) { s.emit("DEBUG", msg, nil) }
func (s *testScope) Info(msg string)  { s.emit("INFO", msg, nil) }
func (s *testScope) Warn(msg string)  { s.emit("WARN", msg, nil) }
func (s *testScope) Error(msg string) { s.emit("ERROR", msg, nil) }
func (s *testScope) Fatal(msg string) { s.emit("FATAL", msg, nil) }

func (s *testScope) DebugWithFields(msg string, f map[string]interface{}) { s.emit("DEBUG", msg, f) }
func (s *testScope) InfoWithFields(msg string, f map[string]interface{})  { s.emit("INFO", msg, f) }
func (s *testScope) WarnWithFields(msg string, f map[string]interface{})  { s.emit("WARN", msg, f) }
func (s *testScope) ErrorWithFields(msg string, f map[string]interface{}) { s.emit("ERROR", msg, f) }
func (s *testScope) FatalWithFields(msg string, f map[string]interface{}) { s.emit("FATAL", msg, f) }

func (s *testScope) WithField(key string, value interface{}) Logger {
	return s.WithFields(map[string]interface{}{key: value})
}

func (s *testScope) WithFields(fields map[string]interface{}) Logger {
	return &testScope{root: s.root, fields: s.merged(fields), err: s.err}
}

func (s *testScope) WithError(err error) Logger {
	return &testScope{root: s.root, fields: s.fields, err: err}
}

func (s *testScope) WithContext(ctx context.Context) Logger { return s }
func (s *testScope) GetZerolog() *zerolog.Logger            { return s.root.zerolog }
