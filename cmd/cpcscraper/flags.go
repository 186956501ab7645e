package main

import (
	"cpcscraper/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var defaults = config.DefaultConfig()

// Harvest flags are shared by scrape and page. Only flags the user set are
// merged into the configuration, so a config file value survives a flag
// left at its default.
var (
	outputDir         string
	delaySeconds      float64
	retries           int
	timeoutSeconds    int
	workers           int
	selector          string
	xpathExpr         string
	followDetails     bool
	maxDetailPages    int
	listOnly          bool
	insecure          bool
	transientOnly     bool
	numbered          bool
	profileName       string
	reportPath        string
	ignoreRobots      bool
	useTUI            bool
	notify            bool
	userAgent         string
	requestsPerMinute int
	writeManifest     bool

	categories   []string
	catalogMode  string
	resume       bool
	forceRestart bool
)

func addHarvestFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&outputDir, "output", "o", defaults.Output.Directory, "output directory")
	f.Float64Var(&delaySeconds, "delay", defaults.HTTP.Delay.Seconds(), "seconds between page requests, also the retry backoff unit")
	f.IntVar(&retries, "retries", defaults.HTTP.Retries, "attempts per request")
	f.IntVar(&timeoutSeconds, "timeout", int(defaults.HTTP.Timeout.Seconds()), "per-request timeout in seconds")
	f.IntVar(&workers, "workers", defaults.Download.Workers, "concurrent downloads")
	f.StringVar(&selector, "selector", "", "CSS selector scoping image discovery")
	f.StringVar(&xpathExpr, "xpath", "", "XPath expression scoping image discovery")
	f.BoolVar(&followDetails, "follow-details", false, "follow same-origin links one level deep")
	f.IntVar(&maxDetailPages, "max-detail-pages", defaults.Extract.MaxDetailPages, "cap for followed links")
	f.BoolVar(&listOnly, "list-only", false, "list image candidates without downloading")
	f.BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	f.BoolVar(&transientOnly, "retry-transient-only", false, "retry only network errors, 429 and 5xx responses")
	f.BoolVar(&numbered, "numbered", false, "name files 01.jpg, 02.png, ... per product")
	f.StringVar(&profileName, "profile", "", "stored session profile to send with requests")
	f.StringVar(&reportPath, "report", "", "write a Markdown run summary to this path")
	f.BoolVar(&ignoreRobots, "ignore-robots", false, "do not consult robots.txt")
	f.BoolVar(&useTUI, "tui", false, "full-screen terminal UI")
	f.BoolVar(&notify, "notify", false, "desktop notification when the run ends")
	f.StringVar(&userAgent, "user-agent", defaults.HTTP.UserAgent, "User-Agent header")
	f.IntVar(&requestsPerMinute, "requests-per-minute", 0, "download rate cap, 0 for unlimited")
	f.BoolVar(&writeManifest, "manifest", defaults.Output.Manifest, "write candidates.json to the output directory")
}

func addCategoryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&categories, "categories", defaults.Catalog.Categories, "category names or synonyms")
	f.StringVar(&catalogMode, "catalog-mode", defaults.Catalog.Mode, "category resolution: table, page or auto")
	f.BoolVar(&resume, "resume", false, "skip products completed by an interrupted run")
	f.BoolVar(&forceRestart, "force-restart", false, "discard an existing checkpoint")
}

// changedFlags collects the flags the user set, keyed by flag name, in the
// form config.MergeCommandLineFlags expects.
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	fs := cmd.Flags()
	out := make(map[string]interface{})
	fs.Visit(func(f *pflag.Flag) {
		var (
			v   interface{}
			err error
		)
		switch f.Value.Type() {
		case "bool":
			v, err = fs.GetBool(f.Name)
		case "int":
			v, err = fs.GetInt(f.Name)
		case "float64":
			v, err = fs.GetFloat64(f.Name)
		case "stringSlice":
			v, err = fs.GetStringSlice(f.Name)
		default:
			v = f.Value.String()
		}
		if err == nil {
			out[f.Name] = v
		}
	})
	return out
}
