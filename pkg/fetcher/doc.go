// Package fetcher is the only component that talks to the network.
//
// A Fetcher wraps one shared HTTP client (cookie jar, keep-alive, default
// browser headers) and retries failed GETs with delay*attempt backoff.
// After the last attempt it returns *errors.FetchFailure. Each attempt runs
// under its own timeout; cancelling the caller's context stops retries.
//
// Probe and AccessReport send single diagnostic requests for the check
// command.
package fetcher
