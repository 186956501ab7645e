package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteCookieGuide explains how to copy a session cookie out of a browser
// for sites that sit behind a challenge page.
func WriteCookieGuide(w io.Writer, site string) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SESSION COOKIE GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "1. Open %s in a desktop browser and wait until the catalog loads.\n", site)
	fmt.Fprintln(w, "2. Open Developer Tools (F12, or Cmd+Option+I on macOS) and select the Network tab.")
	fmt.Fprintln(w, "3. Reload the page and click the first document request.")
	fmt.Fprintln(w, "4. Under Request Headers copy the full value of the \"cookie\" header")
	fmt.Fprintln(w, "   and the \"user-agent\" header.")
	fmt.Fprintln(w, "5. Run:  cpcscraper session add <name>  and paste both values when asked.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Cookies issued after a challenge are usually bound to the user agent,")
	fmt.Fprintln(w, "so always store the user agent of the browser that produced the cookie.")
	fmt.Fprintln(w, rule)
}
