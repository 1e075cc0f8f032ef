package metrics

import (
	"sort"
	"time"
)

// RecordCounter reports the number of records per collection.
type RecordCounter interface {
	RecordCounts() map[string]int
}

// ServerMetrics is the metric set used by the HTTP layer.
type ServerMetrics struct {
	Registry        *Registry
	RequestsTotal   *Counter
	RequestDuration *Histogram
	ErrorsTotal     *Counter
}

// NewServerMetrics registers the HTTP metric set on a fresh registry.
// records may be nil, in which case listingd_records is not exported.
func NewServerMetrics(records RecordCounter) *ServerMetrics {
	r := NewRegistry()
	started := time.Now()

	m := &ServerMetrics{
		Registry: r,
		RequestsTotal: r.NewCounter(
			"listingd_http_requests_total",
			"Total number of HTTP requests",
			"method", "route", "status",
		),
		RequestDuration: r.NewHistogram(
			"listingd_http_request_duration_seconds",
			"Duration of HTTP requests in seconds",
			DefaultBuckets,
			"method", "route",
		),
		ErrorsTotal: r.NewCounter(
			"listingd_errors_total",
			"Total number of error responses by error code",
			"code",
		),
	}

	if records != nil {
		r.NewGaugeFunc("listingd_records", "Number of stored records per collection", func() []Sample {
			counts := records.RecordCounts()
			out := make([]Sample, 0, len(counts))
			for collection, n := range counts {
				out = append(out, Sample{
					Name:   "listingd_records",
					Labels: []Label{{Name: "collection", Value: collection}},
					Value:  float64(n),
				})
			}
			sort.Slice(out, func(i, j int) bool {
				return out[i].Labels[0].Value < out[j].Labels[0].Value
			})
			return out
		})
	}

	r.NewGaugeFunc("listingd_uptime_seconds", "Server uptime in seconds", func() []Sample {
		return []Sample{{Name: "listingd_uptime_seconds", Value: time.Since(started).Seconds()}}
	})

	return m
}
