package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"cpcscraper/pkg/auth"
	"cpcscraper/pkg/config"
	"cpcscraper/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	sessionCookie    string
	sessionUserAgent string
	sessionHeaders   map[string]string
	sessionVerify    bool
	assumeYes        bool
)

var stdin = bufio.NewReader(os.Stdin)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored browser sessions",
	Long: `Manage session profiles: a cookie string and user agent copied from a
browser that passed the site's challenge page. A profile is applied to all
requests with --profile; CPCSCRAPER_COOKIE and CPCSCRAPER_USER_AGENT act as
an unnamed profile when --profile is not given.

Profiles are stored in:
  - The system keychain (when available)
  - An AES-GCM encrypted file under $XDG_CONFIG_HOME/cpcscraper

Never share your session cookies!`,
}

var sessionAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Store a session profile",
	Long: `Store a session profile. Values not given as flags are prompted for;
the cookie is read without echo.`,
	Example: `  # Interactive
  cpcscraper session add office

  # Non-interactive, then check the catalog answers with it
  cpcscraper session add office --cookie "cf_clearance=..." \
      --user-agent "Mozilla/5.0 ..." --verify`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionAdd,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored session profiles",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored session profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionRemove,
}

var sessionGuideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to copy a session cookie from a browser",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteCookieGuide(ui.Out, config.DefaultConfig().Site.BaseURL)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionAddCmd, sessionListCmd, sessionRemoveCmd, sessionGuideCmd)

	f := sessionAddCmd.Flags()
	f.StringVar(&sessionCookie, "cookie", "", "Cookie header value")
	f.StringVar(&sessionUserAgent, "user-agent", "", "User-Agent of the browser that produced the cookie")
	f.StringToStringVar(&sessionHeaders, "header", nil, "extra request header, as name=value (repeatable)")
	f.BoolVar(&sessionVerify, "verify", false, "request the catalog page with the new profile")
	f.BoolVarP(&assumeYes, "yes", "y", false, "overwrite an existing profile without asking")

	sessionRemoveCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func runSessionAdd(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	if existing, _ := manager.Retrieve(name); existing != nil && !assumeYes {
		if !confirm(fmt.Sprintf("Profile '%s' already exists. Replace it?", name)) {
			return nil
		}
	}

	cookie := sessionCookie
	if cookie == "" && len(sessionHeaders) == 0 {
		fmt.Fprint(ui.Out, "Cookie header value (hidden): ")
		if cookie, err = readSecret(); err != nil {
			return fmt.Errorf("failed to read cookie: %w", err)
		}
	}
	agent := sessionUserAgent
	if agent == "" && !cmd.Flags().Changed("cookie") {
		fmt.Fprint(ui.Out, "User agent (Enter for none): ")
		agent = readLine()
	}

	profile := &auth.Profile{
		Name:         name,
		Cookie:       cookie,
		UserAgent:    agent,
		Headers:      sessionHeaders,
		LastModified: time.Now(),
	}
	if err := manager.Store(profile); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Profile saved: %s", name))
	ui.PrintInfo("Cookie", auth.Masked(profile).Cookie)

	if sessionVerify {
		return verifyProfile(cmd.Context(), profile)
	}
	return nil
}

// verifyProfile requests the catalog page with the profile's headers.
func verifyProfile(ctx context.Context, p *auth.Profile) error {
	cfg := config.DefaultConfig()
	cfg.HTTP.Headers = make(map[string]string)
	for k, v := range p.RequestHeaders() {
		if k == "User-Agent" {
			cfg.HTTP.UserAgent = v
			continue
		}
		cfg.HTTP.Headers[k] = v
	}

	res, err := newFetcher(cfg).Probe(ctx, http.MethodGet, cfg.Site.CatalogURL, true, 0)
	if err != nil {
		return fmt.Errorf("verification request failed: %w", err)
	}
	if res.StatusCode >= 400 {
		ui.PrintWarning("Catalog answered", res.Status)
		return nil
	}
	ui.PrintInfo("Catalog answered", res.Status)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	profiles, err := manager.List()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		ui.PrintWarning("No stored profiles; run 'cpcscraper session add <name>'")
		return nil
	}

	for _, p := range profiles {
		m := auth.Masked(p)
		fmt.Fprintf(ui.Out, "%s\n", ui.Yellow(m.Name))
		fmt.Fprintf(ui.Out, "  cookie     : %s\n", m.Cookie)
		if m.UserAgent != "" {
			fmt.Fprintf(ui.Out, "  user agent : %s\n", m.UserAgent)
		}
		for k, v := range m.Headers {
			fmt.Fprintf(ui.Out, "  %-11s: %s\n", k, v)
		}
		if !m.LastModified.IsZero() {
			fmt.Fprintf(ui.Out, "  modified   : %s\n", m.LastModified.Format(time.RFC3339))
		}
	}
	return nil
}

func runSessionRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	if !assumeYes && !confirm(fmt.Sprintf("Remove profile '%s'?", name)) {
		return nil
	}
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	if err := manager.Delete(name); err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			return fmt.Errorf("no profile named %q", name)
		}
		return err
	}
	ui.PrintSuccess("Profile removed: " + name)
	return nil
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Out)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readLine() string {
	line, _ := stdin.ReadString('\n')
	return strings.TrimSpace(line)
}

func confirm(question string) bool {
	fmt.Fprintf(ui.Out, "%s (y/N): ", question)
	return strings.HasPrefix(strings.ToLower(readLine()), "y")
}
