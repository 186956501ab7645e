package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cpcscraper/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *zerologLogger {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zlog := zerolog.New(buf).Level(zerolog.DebugLevel)
	return &zerologLogger{logger: &zlog, fields: map[string]interface{}{}}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info", &config.LoggingConfig{Level: "info"}, false},
		{"debug without color", &config.LoggingConfig{Level: "debug", NoColor: true}, false},
		{"empty level means info", &config.LoggingConfig{}, false},
		{"invalid level", &config.LoggingConfig{Level: "chatty"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l, err := New(&config.LoggingConfig{Level: "info", File: path, NoColor: true})
	require.NoError(t, err)

	l.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), `"app":"cpcscraper"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	for level, fn := range map[string]func(string){
		"debug": l.Debug,
		"info":  l.Info,
		"warn":  l.Warn,
		"error": l.Error,
	} {
		buf.Reset()
		fn(level + " message")
		line := decodeLine(t, &buf)
		assert.Equal(t, level, line["level"])
		assert.Equal(t, level+" message", line["message"])
	}
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := bufferLogger(&buf)

	child := base.WithField("category", "滑脂").WithFields(map[string]interface{}{"workers": 4})
	child.Info("scoped")
	line := decodeLine(t, &buf)
	assert.Equal(t, "滑脂", line["category"])
	assert.Equal(t, float64(4), line["workers"])

	buf.Reset()
	base.Info("plain")
	line = decodeLine(t, &buf)
	assert.NotContains(t, line, "category")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	assert.Same(t, Logger(l), l.WithError(nil))

	l.WithError(errors.New("boom")).Error("failed")
	line := decodeLine(t, &buf)
	assert.Equal(t, "boom", line["error"])
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := bufferLogger(&buf)

	l.InfoWithFields("typed", map[string]interface{}{
		"str":   "a",
		"int":   2,
		"bool":  true,
		"dur":   1500 * time.Millisecond,
		"strs":  []string{"x", "y"},
		"cause": errors.New("nested"),
	})
	line := decodeLine(t, &buf)
	assert.Equal(t, "a", line["str"])
	assert.Equal(t, float64(2), line["int"])
	assert.Equal(t, true, line["bool"])
	assert.Equal(t, []interface{}{"x", "y"}, line["strs"])
	assert.Equal(t, "nested", line["cause"])
	assert.Contains(t, line, "dur")
}

func TestConsoleWriterNoColor(t *testing.T) {
	var buf bytes.Buffer
	zlog := zerolog.New(consoleWriter(&buf, true))
	zlog.Info().Str("app", "cpcscraper").Msg("plain text")

	out := buf.String()
	assert.Contains(t, out, "| plain text")
	assert.NotContains(t, out, "\033[")
	assert.NotContains(t, out, "app=")
}

func TestFormatLevel(t *testing.T) {
	assert.Contains(t, formatLevel("warn"), "WARN")
	assert.Contains(t, formatLevel("error"), "ERRO")
	assert.Equal(t, "", formatLevel(nil))
}

func TestGlobalLogger(t *testing.T) {
	tl := NewTestLogger()
	SetLogger(tl)
	defer SetLogger(nil)

	Info("global info")
	WithField("k", "v").Warn("global warn")

	assert.True(t, tl.HasMessage("global info"))
	warns := tl.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, "v", warns[0].Fields["k"])
}

func TestTestLoggerConcurrent(t *testing.T) {
	tl := NewTestLogger()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tl.WithField("worker", i).Info("tick")
		}()
	}
	wg.Wait()
	assert.Len(t, tl.GetMessages(), 20)
}

func TestTestLoggerScopes(t *testing.T) {
	tl := NewTestLogger()
	err := errors.New("timeout")

	tl.WithField("a", 1).WithError(err).WithFields(map[string]interface{}{"b": 2}).Error("scoped")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, msgs[0].Fields)
	assert.Equal(t, err, msgs[0].Error)
	assert.True(t, tl.HasError())
	assert.True(t, strings.Contains(tl.String(), "error=timeout"))

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://example.com/x", 503, 20*time.Millisecond)
	LogRequest(tl, "GET", "https://example.com/y", 404, time.Millisecond)
	LogDownload(tl, "p1", "https://example.com/a.jpg", "failed", "", errors.New("gone"))
	LogMetrics(tl, "scrape", map[string]interface{}{"ok": 3})

	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 2)
	assert.True(t, tl.HasMessage("Run metrics"))
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).Info("ignored")
	assert.NotNil(t, l.GetZerolog())
}
