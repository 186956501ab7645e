// Package auth stores session profiles: cookie strings and user agents
// copied from a browser, applied to every request of a run with --profile.
//
// Profiles are kept in the OS keychain when one is available and in an
// AES-GCM encrypted file under $XDG_CONFIG_HOME/cpcscraper otherwise.
// CPCSCRAPER_COOKIE and CPCSCRAPER_USER_AGENT provide a read-only profile
// named "env" that applies when no --profile is given.
package auth
