// Package metrics exposes listingd metrics in the Prometheus text format
// (text/plain; version=0.0.4).
//
// Supported metric types:
//   - Counter: monotonically increasing value (request counts)
//   - Gauge: value set from a callback at scrape time (records per collection)
//   - Histogram: distribution of values with fixed buckets (latencies)
//
// All metrics are safe for concurrent use.
//
// # Server metrics
//
// NewServerMetrics registers the set used by the HTTP layer:
//
//   - listingd_http_requests_total{method,route,status}
//   - listingd_http_request_duration_seconds{method,route}
//   - listingd_errors_total{code}
//   - listingd_records{collection}
//   - listingd_uptime_seconds
package metrics
