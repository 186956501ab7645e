// Package logger provides the structured logging interface used across
// cpcscraper.
//
// It wraps zerolog with a small Logger interface: leveled methods, child
// loggers carrying fields, and a global instance set up once by the CLI.
// Console output goes to stderr with four-letter colored level tags; an
// optional file receives JSON lines.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("component", "fetcher")
//	log.InfoWithFields("fetched", map[string]interface{}{"url": u, "bytes": n})
//
// Tests use NewTestLogger to capture and assert on messages, or
// NewNopLogger to silence output.
package logger
