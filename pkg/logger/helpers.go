package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs one HTTP exchange at a level matching its status.
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the outcome of one image download.
func LogDownload(l Logger, product, url, status, path string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"product": product,
		"url":     url,
		"status":  status,
	})
	if path != "" {
		entry = entry.WithField("path", path)
	}

	switch {
	case err != nil:
		entry.WithError(err).Warn("Download failed")
	case status == "ok":
		entry.Debug("Download completed")
	default:
		entry.Debug("Download skipped")
	}
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	entry := l.WithField("component", component)
	if len(settings) > 0 {
		entry = entry.WithFields(settings)
	}
	entry.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// LogMetrics logs run counters under a single "metrics" entry.
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	l.InfoWithFields("Run metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(string)                                 {}
func (n *nopLogger) Info(string)                                  {}
func (n *nopLogger) Warn(string)                                  {}
func (n *nopLogger) Error(string)                                 {}
func (n *nopLogger) Fatal(string)                                 {}
func (n *nopLogger) WithField(string, interface{}) Logger         { return n }
func (n *nopLogger) WithFields(map[string]interface{}) Logger     { return n }
func (n *nopLogger) WithError(error) Logger                       { return n }
func (n *nopLogger) WithContext(context.Context) Logger           { return n }
func (n *nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(string, map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(string, map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
