package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cpcscraper/pkg/auth"
	"cpcscraper/pkg/config"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/models"
	"cpcscraper/pkg/report"
	"cpcscraper/pkg/scraper"
	"cpcscraper/pkg/ui"
	"cpcscraper/pkg/ui/tui"

	"github.com/spf13/cobra"
)

// loadConfig merges the config file, environment and changed flags, then
// sets up logging. Quiet runs log errors only unless --log-level was given.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := changedFlags(cmd)
	if quiet, _ := flags["quiet"].(bool); quiet {
		if _, ok := flags["log-level"]; !ok {
			flags["log-level"] = "error"
		}
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	ui.SetColor(!cfg.Logging.NoColor)
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// applyProfile copies the selected session profile into the HTTP settings.
// Without --profile the environment profile applies when it is set.
func applyProfile(cfg *config.Config, profiles *auth.Manager) error {
	p, err := profiles.Resolve(cfg.HTTP.Profile)
	if err != nil {
		return fmt.Errorf("session profile %q: %w", cfg.HTTP.Profile, err)
	}
	if p == nil {
		return nil
	}
	if cfg.HTTP.Headers == nil {
		cfg.HTTP.Headers = make(map[string]string)
	}
	for k, v := range p.RequestHeaders() {
		if k == "User-Agent" {
			cfg.HTTP.UserAgent = v
			continue
		}
		cfg.HTTP.Headers[k] = v
	}
	logger.WithField("profile", p.Name).Info("Using session profile")
	return nil
}

// prepare loads the configuration and applies the session profile.
func prepare(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	profiles, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	if err := applyProfile(cfg, profiles); err != nil {
		return nil, err
	}
	return cfg, nil
}

// tuiLog feeds console log lines into the TUI log panel.
type tuiLog struct{ t *tui.TUI }

func (w tuiLog) Write(p []byte) (int, error) {
	line := strings.TrimSpace(string(p))
	level := "INFO"
	switch {
	case strings.Contains(line, " WRN "):
		level = "WARN"
	case strings.Contains(line, " ERR "):
		level = "ERROR"
	case strings.Contains(line, " DBG "):
		level = "DEBUG"
	}
	w.t.Log(level, "%s", line)
	return len(p), nil
}

// newProgress picks the progress display. The TUI takes over the terminal,
// so console logs are redirected into its log panel; quitting it cancels
// the run.
func newProgress(cfg *config.Config, cancel context.CancelFunc) (ui.Progress, error) {
	switch {
	case cfg.UI.TUI:
		t := tui.New(cancel)
		logger.Output = tuiLog{t: t}
		logCfg := cfg.Logging
		logCfg.NoColor = true
		if err := logger.Initialize(&logCfg); err != nil {
			return nil, err
		}
		t.Run()
		return t, nil
	case cfg.UI.Quiet:
		return ui.NopProgress{}, nil
	default:
		return ui.NewProgressDisplay(cfg.UI.Verbose), nil
	}
}

// newScraper wires the scraper to the process-wide logger and UI.
func newScraper(cfg *config.Config, progress ui.Progress) (*scraper.Scraper, error) {
	opts := []scraper.Option{
		scraper.WithLogger(logger.GetLogger()),
		scraper.WithProgress(progress),
	}
	if cfg.UI.Notify {
		opts = append(opts, scraper.WithNotifier(ui.NewNotifier()))
	}
	if cfg.UI.Quiet {
		opts = append(opts, scraper.WithOutput(io.Discard))
	}
	return scraper.New(cfg, opts...)
}

// harvest runs fn with a signal-aware context and the configured progress
// display, then reports the summary.
func harvest(cfg *config.Config, fn func(context.Context, *scraper.Scraper) (*models.Summary, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress, err := newProgress(cfg, stop)
	if err != nil {
		return err
	}
	s, err := newScraper(cfg, progress)
	if err != nil {
		progress.Close()
		return err
	}

	summary, runErr := fn(ctx, s)
	progress.Close()
	if cfg.UI.TUI {
		logger.Output = os.Stderr
		if err := logger.Initialize(&cfg.Logging); err != nil {
			return err
		}
	}
	return finishRun(cfg, summary, runErr)
}

// finishRun prints the summary, writes the optional report and logs run
// metrics. The run error, if any, becomes the command error.
func finishRun(cfg *config.Config, summary *models.Summary, runErr error) error {
	if summary == nil {
		return runErr
	}
	if !cfg.UI.Quiet {
		scraper.WriteSummary(ui.Out, summary)
	}
	if cfg.Output.Report != "" {
		if err := report.WriteFile(cfg.Output.Report, summary); err != nil {
			logger.WithError(err).Warn("Failed to write report")
		} else if !cfg.UI.Quiet {
			ui.PrintInfo("Report", cfg.Output.Report)
		}
	}
	logger.LogMetrics(logger.GetLogger(), summary.Mode, map[string]interface{}{
		"candidates":  summary.Candidates,
		"ok":          summary.Counts[models.StatusOK],
		"exists":      summary.Counts[models.StatusExists],
		"failed":      summary.FailedCount(),
		"resumed":     summary.Resumed,
		"duration_ms": summary.Duration().Milliseconds(),
	})

	if runErr != nil {
		return runErr
	}
	if !cfg.UI.Quiet && summary.FailedCount() == 0 {
		ui.PrintSuccess("Done")
	}
	return nil
}
