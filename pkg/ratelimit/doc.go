// Package ratelimit paces outgoing requests.
//
// Interval spaces the sequential discovery requests (category pages,
// product pages, followed detail pages) by a fixed gap. TokenBucket caps
// the shared download throughput when a requests-per-minute limit is
// configured. Unlimited is the no-op default.
package ratelimit
