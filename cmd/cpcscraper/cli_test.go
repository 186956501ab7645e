package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cpcscraper/pkg/auth"
	"cpcscraper/pkg/config"
	"cpcscraper/pkg/fetcher"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/models"
	"cpcscraper/pkg/ui"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	addHarvestFlags(cmd)
	addCategoryFlags(cmd)
	return cmd
}

func TestChangedFlagsOnlyReportsSetFlags(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--workers", "8",
		"--categories", "滑脂,grease",
		"--follow-details",
		"--delay", "1.5",
		"--selector", ".gallery img",
		"--manifest=false",
	}))

	got := changedFlags(cmd)
	assert.Equal(t, map[string]interface{}{
		"workers":        8,
		"categories":     []string{"滑脂", "grease"},
		"follow-details": true,
		"delay":          1.5,
		"selector":       ".gallery img",
		"manifest":       false,
	}, got)
}

func TestChangedFlagsMergeOverConfig(t *testing.T) {
	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--output", "out", "--ignore-robots", "--timeout", "30"}))

	cfg := config.DefaultConfig()
	cfg.Download.Workers = 6
	cfg.MergeCommandLineFlags(changedFlags(cmd))

	assert.Equal(t, "out", cfg.Output.Directory)
	assert.False(t, cfg.Site.RespectRobots)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 6, cfg.Download.Workers, "unset flags keep the configured value")
}

func TestApplyProfile(t *testing.T) {
	logger.SetLogger(logger.NewNopLogger())

	t.Run("environment profile", func(t *testing.T) {
		t.Setenv("CPCSCRAPER_COOKIE", "cf_clearance=abc")
		t.Setenv("CPCSCRAPER_USER_AGENT", "Browser/1.0")

		cfg := config.DefaultConfig()
		require.NoError(t, applyProfile(cfg, auth.NewManagerWith(auth.NewEnvironmentStore())))
		assert.Equal(t, "cf_clearance=abc", cfg.HTTP.Headers["Cookie"])
		assert.Equal(t, "Browser/1.0", cfg.HTTP.UserAgent)
	})

	t.Run("no profile", func(t *testing.T) {
		t.Setenv("CPCSCRAPER_COOKIE", "")

		cfg := config.DefaultConfig()
		require.NoError(t, applyProfile(cfg, auth.NewManagerWith(auth.NewEnvironmentStore())))
		assert.Empty(t, cfg.HTTP.Headers)
		assert.Equal(t, config.DefaultUserAgent, cfg.HTTP.UserAgent)
	})

	t.Run("unknown named profile", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.HTTP.Profile = "missing"
		err := applyProfile(cfg, auth.NewManagerWith(auth.NewEnvironmentStore()))
		assert.True(t, errors.Is(err, auth.ErrProfileNotFound))
	})
}

func TestFinishRunWritesReport(t *testing.T) {
	logger.SetLogger(logger.NewNopLogger())
	var out bytes.Buffer
	ui.Out = &out
	t.Cleanup(func() { ui.Out = os.Stdout })

	cfg := config.DefaultConfig()
	cfg.Output.Report = filepath.Join(t.TempDir(), "report.md")

	s := models.NewSummary("scrape", "downloads")
	s.Record("p", models.DownloadOutcome{SourceURL: "https://x.org/upload/a.jpg", Status: models.StatusOK})
	s.Finished = s.Started.Add(time.Second)

	require.NoError(t, finishRun(cfg, s, nil))
	assert.FileExists(t, cfg.Output.Report)
	assert.Contains(t, out.String(), "ok=1")

	runErr := errors.New("boom")
	assert.Equal(t, runErr, finishRun(cfg, s, runErr))
}

func TestWriteProbes(t *testing.T) {
	var out bytes.Buffer
	writeProbes(&out, []*fetcher.ProbeResult{
		{Label: "GET without headers", StatusCode: 0, Status: "connection refused"},
		{Label: "HEAD with browser headers", Method: "HEAD", StatusCode: 200, Status: "200 OK", FinalURL: "https://x.org/"},
	})
	assert.Contains(t, out.String(), "connection refused")
	assert.Contains(t, out.String(), "final url: https://x.org/")
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"scrape", "page", "check", "categories", "config", "session"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
