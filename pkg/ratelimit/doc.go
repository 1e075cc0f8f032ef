// Package ratelimit limits requests per client with token buckets.
//
// Each client IP gets its own bucket that refills at Rate tokens per second
// up to Burst. Idle buckets are dropped by a background sweeper, so callers
// must Stop the limiter when done.
package ratelimit
