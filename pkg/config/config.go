package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName names the config, data and keyring namespaces.
const AppName = "cpcscraper"

// EnvPrefix is prepended to every environment variable the config reads.
const EnvPrefix = "CPCSCRAPER_"

// DefaultUserAgent is a desktop Chrome user agent; the catalog site serves
// a challenge page to obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultCategories are the five top-level lubricant categories of the catalog.
var DefaultCategories = []string{"車輛用油", "海運用油", "工業用油", "滑脂", "基礎油"}

// Config holds all configuration options for the catalog harvester
type Config struct {
	Site      SiteConfig      `yaml:"site" json:"site"`
	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	Catalog   CatalogConfig   `yaml:"catalog" json:"catalog"`
	Extract   ExtractConfig   `yaml:"extract" json:"extract"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	UI        UIConfig        `yaml:"ui" json:"ui"`
}

// SiteConfig describes the target website.
type SiteConfig struct {
	BaseURL       string `yaml:"base_url" json:"base_url"`
	CatalogURL    string `yaml:"catalog_url" json:"catalog_url"`
	DetailMarker  string `yaml:"detail_marker" json:"detail_marker"`
	RespectRobots bool   `yaml:"respect_robots" json:"respect_robots"`
}

// HTTPConfig controls the shared fetcher.
type HTTPConfig struct {
	Timeout       time.Duration     `yaml:"timeout" json:"timeout"`
	Retries       int               `yaml:"retries" json:"retries"`
	Delay         time.Duration     `yaml:"delay" json:"delay"`
	UserAgent     string            `yaml:"user_agent" json:"user_agent"`
	Insecure      bool              `yaml:"insecure" json:"insecure"`
	// TransientOnly retries only network failures, 429 and 5xx.
	TransientOnly bool              `yaml:"retry_transient_only" json:"retry_transient_only"`
	Headers       map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Profile       string            `yaml:"profile,omitempty" json:"profile,omitempty"`
}

// CatalogConfig controls category resolution.
type CatalogConfig struct {
	// Mode is one of "table", "page" or "auto".
	Mode       string   `yaml:"mode" json:"mode"`
	TableFile  string   `yaml:"table_file,omitempty" json:"table_file,omitempty"`
	Categories []string `yaml:"categories" json:"categories"`
}

// ExtractConfig controls image discovery.
type ExtractConfig struct {
	Selector          string   `yaml:"selector,omitempty" json:"selector,omitempty"`
	XPath             string   `yaml:"xpath,omitempty" json:"xpath,omitempty"`
	FollowDetails     bool     `yaml:"follow_details" json:"follow_details"`
	MaxDetailPages    int      `yaml:"max_detail_pages" json:"max_detail_pages"`
	PathHints         []string `yaml:"path_hints" json:"path_hints"`
	ExcludeExtensions []string `yaml:"exclude_extensions" json:"exclude_extensions"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Workers      int  `yaml:"workers" json:"workers"`
	Numbered     bool `yaml:"numbered" json:"numbered"`
	ListOnly     bool `yaml:"list_only" json:"list_only"`
	Resume       bool `yaml:"resume" json:"resume"`
	ForceRestart bool `yaml:"force_restart" json:"force_restart"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
	Manifest  bool   `yaml:"manifest" json:"manifest"`
	Report    string `yaml:"report,omitempty" json:"report,omitempty"`
}

// RateLimitConfig caps download throughput. Zero disables the cap.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file,omitempty" json:"file,omitempty"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// UIConfig selects how progress is rendered.
type UIConfig struct {
	TUI     bool `yaml:"tui" json:"tui"`
	Quiet   bool `yaml:"quiet" json:"quiet"`
	Verbose bool `yaml:"verbose" json:"verbose"`
	Notify  bool `yaml:"notify" json:"notify"`
}

// DefaultConfig returns a Config instance with the catalog site defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:       "https://cpclube.cpc.com.tw/",
			CatalogURL:    "https://cpclube.cpc.com.tw/C_Products.aspx?n=7464&sms=12326&_CSN=0",
			DetailMarker:  "C_Products_Detail",
			RespectRobots: true,
		},
		HTTP: HTTPConfig{
			Timeout:   15 * time.Second,
			Retries:   3,
			Delay:     500 * time.Millisecond,
			UserAgent: DefaultUserAgent,
		},
		Catalog: CatalogConfig{
			Mode:       "auto",
			Categories: append([]string(nil), DefaultCategories...),
		},
		Extract: ExtractConfig{
			MaxDetailPages:    30,
			PathHints:         []string{"/upload", "product"},
			ExcludeExtensions: []string{".gif"},
		},
		Download: DownloadConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Directory: "downloads",
			Manifest:  true,
		},
		RateLimit: RateLimitConfig{
			BurstSize: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from CPCSCRAPER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	flag := func(name string, dst *bool) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}
	dur := func(name string, dst *time.Duration) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		d, err := ParseSeconds(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}

	str("BASE_URL", &c.Site.BaseURL)
	str("CATALOG_URL", &c.Site.CatalogURL)
	str("USER_AGENT", &c.HTTP.UserAgent)
	str("PROFILE", &c.HTTP.Profile)
	str("OUTPUT_DIR", &c.Output.Directory)
	str("CATALOG_MODE", &c.Catalog.Mode)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	num("RETRIES", &c.HTTP.Retries)
	num("WORKERS", &c.Download.Workers)
	num("MAX_DETAIL_PAGES", &c.Extract.MaxDetailPages)
	num("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	flag("INSECURE", &c.HTTP.Insecure)
	flag("RETRY_TRANSIENT_ONLY", &c.HTTP.TransientOnly)
	flag("RESPECT_ROBOTS", &c.Site.RespectRobots)
	flag("NOTIFY", &c.UI.Notify)
	dur("DELAY", &c.HTTP.Delay)
	dur("TIMEOUT", &c.HTTP.Timeout)

	if v := os.Getenv(EnvPrefix + "CATEGORIES"); v != "" {
		c.Catalog.Categories = splitList(v)
	}

	return errors.Join(errs...)
}

// ParseSeconds accepts either a Go duration ("750ms") or a plain number of
// seconds ("0.5").
func ParseSeconds(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(f * float64(time.Second)), nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultConfigPath is where `config init` writes when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// FindConfigFile searches the working directory, then the XDG config home.
func FindConfigFile() string {
	locations := []string{
		".cpcscraper.yaml",
		".cpcscraper.yml",
		"cpcscraper.yaml",
		DefaultConfigPath(),
		filepath.Join(xdg.ConfigHome, AppName, "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{"base url": c.Site.BaseURL, "catalog url": c.Site.CatalogURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL: %q", name, raw))
		}
	}
	if c.Site.DetailMarker == "" {
		errs = append(errs, errors.New("detail marker is required"))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.HTTP.Retries < 1 {
		errs = append(errs, errors.New("retries must be at least 1"))
	}
	if c.HTTP.Delay < 0 {
		errs = append(errs, errors.New("delay cannot be negative"))
	}

	switch c.Catalog.Mode {
	case "table", "page", "auto":
	default:
		errs = append(errs, fmt.Errorf("invalid catalog mode %q", c.Catalog.Mode))
	}

	if c.Extract.Selector != "" && c.Extract.XPath != "" {
		errs = append(errs, errors.New("selector and xpath are mutually exclusive"))
	}
	if c.Extract.MaxDetailPages < 0 {
		errs = append(errs, errors.New("max detail pages cannot be negative"))
	}

	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Download.Workers > 32 {
		errs = append(errs, errors.New("workers should not exceed 32"))
	}
	if c.Download.Resume && c.Download.ForceRestart {
		errs = append(errs, errors.New("resume and force-restart are mutually exclusive"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges explicitly set command line flags into the
// configuration. Keys are flag names; callers only pass flags the user changed.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["categories"].([]string); ok && len(v) > 0 {
		c.Catalog.Categories = v
	}
	if v, ok := flags["catalog-mode"].(string); ok && v != "" {
		c.Catalog.Mode = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["report"].(string); ok {
		c.Output.Report = v
	}
	if v, ok := flags["manifest"].(bool); ok {
		c.Output.Manifest = v
	}
	if v, ok := flags["delay"].(float64); ok && v >= 0 {
		c.HTTP.Delay = time.Duration(v * float64(time.Second))
	}
	if v, ok := flags["timeout"].(int); ok && v > 0 {
		c.HTTP.Timeout = time.Duration(v) * time.Second
	}
	if v, ok := flags["retries"].(int); ok && v > 0 {
		c.HTTP.Retries = v
	}
	if v, ok := flags["user-agent"].(string); ok && v != "" {
		c.HTTP.UserAgent = v
	}
	if v, ok := flags["insecure"].(bool); ok {
		c.HTTP.Insecure = v
	}
	if v, ok := flags["retry-transient-only"].(bool); ok {
		c.HTTP.TransientOnly = v
	}
	if v, ok := flags["profile"].(string); ok {
		c.HTTP.Profile = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Download.Workers = v
	}
	if v, ok := flags["numbered"].(bool); ok {
		c.Download.Numbered = v
	}
	if v, ok := flags["list-only"].(bool); ok {
		c.Download.ListOnly = v
	}
	if v, ok := flags["resume"].(bool); ok {
		c.Download.Resume = v
	}
	if v, ok := flags["force-restart"].(bool); ok {
		c.Download.ForceRestart = v
	}
	if v, ok := flags["selector"].(string); ok {
		c.Extract.Selector = v
	}
	if v, ok := flags["xpath"].(string); ok {
		c.Extract.XPath = v
	}
	if v, ok := flags["follow-details"].(bool); ok {
		c.Extract.FollowDetails = v
	}
	if v, ok := flags["max-detail-pages"].(int); ok && v >= 0 {
		c.Extract.MaxDetailPages = v
	}
	if v, ok := flags["ignore-robots"].(bool); ok {
		c.Site.RespectRobots = !v
	}
	if v, ok := flags["requests-per-minute"].(int); ok && v >= 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok {
		c.Logging.File = v
	}
	if v, ok := flags["no-color"].(bool); ok {
		c.Logging.NoColor = v
	}
	if v, ok := flags["tui"].(bool); ok {
		c.UI.TUI = v
	}
	if v, ok := flags["quiet"].(bool); ok {
		c.UI.Quiet = v
	}
	if v, ok := flags["verbose"].(bool); ok {
		c.UI.Verbose = v
	}
	if v, ok := flags["notify"].(bool); ok {
		c.UI.Notify = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(xdg.ConfigHome, AppName, ".env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
