package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cpcscraper/pkg/auth"
	"cpcscraper/pkg/catalog"
	"cpcscraper/pkg/config"
	"cpcscraper/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage cpcscraper configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (CPCSCRAPER_*, also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write every option with its default value to --config, or to
$XDG_CONFIG_HOME/cpcscraper/config.yaml when no path is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources. Request header
values, which may carry session cookies, are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - URLs, counts and durations
  - Output and log directories
  - The custom category table, when one is configured`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Edit the categories, output directory and delays")
	fmt.Fprintln(ui.Out, "2. Run 'cpcscraper config validate' to check the file")
	fmt.Fprintln(ui.Out, "3. Start downloading with 'cpcscraper scrape'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	display := *cfg
	if len(display.HTTP.Headers) > 0 {
		display.HTTP.Headers = auth.Masked(&auth.Profile{Headers: display.HTTP.Headers}).Headers
	}
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none, defaults only)"
	}
	fmt.Fprintln(ui.Out)
	ui.PrintInfo("Configuration file", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return errors.New("no configuration file found; specify one with --config")
	}
	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	var problems, warnings []string
	if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}
	if cfg.Catalog.TableFile != "" {
		if _, err := catalog.LoadFile(cfg.Catalog.TableFile); err != nil {
			problems = append(problems, fmt.Sprintf("category table: %v", err))
		}
	}
	if !cfg.Site.RespectRobots {
		warnings = append(warnings, "robots.txt is ignored")
	}
	if cfg.HTTP.Insecure {
		warnings = append(warnings, "TLS certificate verification is disabled")
	}
	if cfg.HTTP.Delay == 0 {
		warnings = append(warnings, "no delay between page requests")
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(ui.Out, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration errors", len(problems))
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(ui.Out, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Out)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Categories: %v (%s mode)\n", cfg.Catalog.Categories, cfg.Catalog.Mode)
	fmt.Fprintf(ui.Out, "  Output directory: %s\n", cfg.Output.Directory)
	fmt.Fprintf(ui.Out, "  Workers: %d\n", cfg.Download.Workers)
	fmt.Fprintf(ui.Out, "  Delay: %s, retries: %d, timeout: %s\n", cfg.HTTP.Delay, cfg.HTTP.Retries, cfg.HTTP.Timeout)
	fmt.Fprintf(ui.Out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
