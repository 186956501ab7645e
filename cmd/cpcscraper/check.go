package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"cpcscraper/pkg/config"
	"cpcscraper/pkg/fetcher"
	"cpcscraper/pkg/logger"
	"cpcscraper/pkg/robots"
	"cpcscraper/pkg/ui"

	"github.com/spf13/cobra"
)

// checkBodyChars is how much of each response body check prints.
const checkBodyChars = 1000

var checkCmd = &cobra.Command{
	Use:   "check [url]",
	Short: "Probe whether the site answers scripted requests",
	Long: `Send a bare GET, a GET with browser headers and a HEAD request to the
URL (default: the catalog page) and print the status, final URL, response
headers and the start of the body for each, followed by the robots.txt
verdict. Useful to tell a blocked client from a broken page.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&profileName, "profile", "", "stored session profile to send with requests")
	checkCmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification")
	checkCmd.Flags().StringVar(&userAgent, "user-agent", defaults.HTTP.UserAgent, "User-Agent header")
	checkCmd.Flags().IntVar(&timeoutSeconds, "timeout", int(defaults.HTTP.Timeout.Seconds()), "per-request timeout in seconds")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := prepare(cmd)
	if err != nil {
		return err
	}
	target := cfg.Site.CatalogURL
	if len(args) == 1 {
		target = args[0]
	}

	f := newFetcher(cfg)
	ctx, cancel := context.WithTimeout(cmd.Context(), 4*cfg.HTTP.Timeout)
	defer cancel()

	ui.PrintInfo("Target", target)
	writeProbes(ui.Out, f.AccessReport(ctx, target, checkBodyChars))

	checker := robots.NewChecker(f, cfg.HTTP.UserAgent, logger.GetLogger())
	verdict := ui.Green("allowed")
	if !checker.Allowed(ctx, target) {
		verdict = ui.Red("disallowed")
	}
	fmt.Fprintf(ui.Out, "\nrobots.txt: %s\n", verdict)
	return nil
}

func newFetcher(cfg *config.Config) *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		Timeout:   cfg.HTTP.Timeout,
		Attempts:  cfg.HTTP.Retries,
		Delay:     cfg.HTTP.Delay,
		UserAgent: cfg.HTTP.UserAgent,
		Insecure:  cfg.HTTP.Insecure,
		Headers:   cfg.HTTP.Headers,
		Logger:    logger.GetLogger(),

		TransientOnly: cfg.HTTP.TransientOnly,
	})
}

func writeProbes(w io.Writer, results []*fetcher.ProbeResult) {
	for _, r := range results {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.Magenta("== "+r.Label+" =="))
		if r.StatusCode == 0 {
			fmt.Fprintf(w, "error: %s\n", ui.Red(r.Status))
			continue
		}
		status := ui.Green(r.Status)
		if r.StatusCode >= 400 {
			status = ui.Red(r.Status)
		}
		fmt.Fprintf(w, "status   : %s\n", status)
		fmt.Fprintf(w, "final url: %s\n", r.FinalURL)

		keys := make([]string, 0, len(r.Header))
		for k := range r.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			for _, v := range r.Header[k] {
				fmt.Fprintf(w, "  %s: %s\n", ui.Cyan(k), v)
			}
		}
		if r.Body != "" {
			fmt.Fprintln(w, ui.Dim(fmt.Sprintf("--- first %d characters ---", checkBodyChars)))
			fmt.Fprintln(w, r.Body)
		}
	}
}

