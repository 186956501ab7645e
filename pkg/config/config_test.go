package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://cpclube.cpc.com.tw/", cfg.Site.BaseURL)
	assert.Equal(t, "C_Products_Detail", cfg.Site.DetailMarker)
	assert.True(t, cfg.Site.RespectRobots)

	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 3, cfg.HTTP.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.HTTP.Delay)
	assert.Equal(t, DefaultUserAgent, cfg.HTTP.UserAgent)

	assert.Equal(t, "auto", cfg.Catalog.Mode)
	assert.Equal(t, DefaultCategories, cfg.Catalog.Categories)
	assert.Equal(t, 30, cfg.Extract.MaxDetailPages)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.Equal(t, "downloads", cfg.Output.Directory)

	require.NoError(t, cfg.Validate())
}

func TestDefaultCategoriesNotShared(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Catalog.Categories[0] = "changed"
	assert.Equal(t, "車輛用油", DefaultCategories[0])
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CPCSCRAPER_OUTPUT_DIR", "/tmp/cpc")
	t.Setenv("CPCSCRAPER_WORKERS", "6")
	t.Setenv("CPCSCRAPER_DELAY", "0.25")
	t.Setenv("CPCSCRAPER_TIMEOUT", "20s")
	t.Setenv("CPCSCRAPER_INSECURE", "true")
	t.Setenv("CPCSCRAPER_CATEGORIES", "滑脂, 基礎油 ,")
	t.Setenv("CPCSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/cpc", cfg.Output.Directory)
	assert.Equal(t, 6, cfg.Download.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTP.Delay)
	assert.Equal(t, 20*time.Second, cfg.HTTP.Timeout)
	assert.True(t, cfg.HTTP.Insecure)
	assert.Equal(t, []string{"滑脂", "基礎油"}, cfg.Catalog.Categories)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("CPCSCRAPER_WORKERS", "many")
	t.Setenv("CPCSCRAPER_INSECURE", "maybe")

	err := DefaultConfig().LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CPCSCRAPER_WORKERS")
	assert.Contains(t, err.Error(), "CPCSCRAPER_INSECURE")
}

func TestTransientOnlyFromEnvAndFlags(t *testing.T) {
	assert.False(t, DefaultConfig().HTTP.TransientOnly)

	t.Setenv("CPCSCRAPER_RETRY_TRANSIENT_ONLY", "true")
	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.True(t, cfg.HTTP.TransientOnly)

	cfg.MergeCommandLineFlags(map[string]interface{}{"retry-transient-only": false})
	assert.False(t, cfg.HTTP.TransientOnly)
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"0.5", 500 * time.Millisecond, false},
		{"2", 2 * time.Second, false},
		{"750ms", 750 * time.Millisecond, false},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSeconds(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative base url", func(c *Config) { c.Site.BaseURL = "/catalog" }, "base url"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "timeout"},
		{"no attempts", func(c *Config) { c.HTTP.Retries = 0 }, "retries"},
		{"bad mode", func(c *Config) { c.Catalog.Mode = "guess" }, "catalog mode"},
		{"both scopes", func(c *Config) {
			c.Extract.Selector = ".gallery"
			c.Extract.XPath = "//div"
		}, "mutually exclusive"},
		{"too many workers", func(c *Config) { c.Download.Workers = 64 }, "workers"},
		{"resume and restart", func(c *Config) {
			c.Download.Resume = true
			c.Download.ForceRestart = true
		}, "force-restart"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.Workers = 0
	cfg.Output.Directory = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be positive")
	assert.Contains(t, err.Error(), "output directory is required")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"categories":    []string{"滑脂"},
		"output":        "/flag/output",
		"delay":         1.5,
		"timeout":       30,
		"retries":       5,
		"workers":       2,
		"xpath":         "//div[@class='pic']",
		"list-only":     true,
		"ignore-robots": true,
		"log-level":     "error",
	})

	assert.Equal(t, []string{"滑脂"}, cfg.Catalog.Categories)
	assert.Equal(t, "/flag/output", cfg.Output.Directory)
	assert.Equal(t, 1500*time.Millisecond, cfg.HTTP.Delay)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5, cfg.HTTP.Retries)
	assert.Equal(t, 2, cfg.Download.Workers)
	assert.Equal(t, "//div[@class='pic']", cfg.Extract.XPath)
	assert.True(t, cfg.Download.ListOnly)
	assert.False(t, cfg.Site.RespectRobots)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Download.Workers = 8
	cfg.Extract.Selector = ".product img"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 8, loaded.Download.Workers)
	assert.Equal(t, ".product img", loaded.Extract.Selector)
	assert.Equal(t, cfg.HTTP.Delay, loaded.HTTP.Delay)
}

func TestLoadFromFileDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  timeout: 45s
  delay: 250ms
download:
  workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))
	assert.Equal(t, 45*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.HTTP.Delay)
	assert.Equal(t, 2, cfg.Download.Workers)
	assert.Equal(t, 3, cfg.HTTP.Retries)
}

func TestLoadFromFileMissing(t *testing.T) {
	err := DefaultConfig().LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
output:
  directory: /file/output
download:
  workers: 3
http:
  retries: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("CPCSCRAPER_OUTPUT_DIR", "/env/output")
	t.Setenv("CPCSCRAPER_WORKERS", "5")

	cfg, err := Load(path, map[string]interface{}{"workers": 9})
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Download.Workers)
	assert.Equal(t, "/env/output", cfg.Output.Directory)
	assert.Equal(t, 7, cfg.HTTP.Retries)
}

func TestLoadValidationFailure(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
	assert.Nil(t, cfg)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  mode: guess\n"), 0644))
	cfg, err = Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Nil(t, cfg)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	original := DefaultConfig()
	original.HTTP.Headers = map[string]string{"Referer": "https://cpclube.cpc.com.tw/"}

	data, err := yaml.Marshal(original)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, original.HTTP, loaded.HTTP)
	assert.Equal(t, original.Catalog, loaded.Catalog)
}
