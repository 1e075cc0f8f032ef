package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// DefaultBuckets are histogram buckets for request durations in seconds.
var DefaultBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Sample is a single exposition line.
type Sample struct {
	Name   string
	Labels []Label
	Value  float64
}

// Label is a name/value pair attached to a sample.
type Label struct {
	Name, Value string
}

// Metric is implemented by every registered metric.
type Metric interface {
	Name() string
	Help() string
	Type() string
	Collect() []Sample
}

// atomicFloat64 stores float64 bits for lock-free updates.
type atomicFloat64 struct {
	bits uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.bits))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&a.bits)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(&a.bits, old, next) {
			return
		}
	}
}

// series maps label values to per-series state of type T.
type series[T any] struct {
	labelNames []string
	mu         sync.RWMutex
	values     map[string]*entry[T]
	newValue   func() *T
}

type entry[T any] struct {
	labels []Label
	value  *T
}

func newSeries[T any](labelNames []string, newValue func() *T) *series[T] {
	return &series[T]{
		labelNames: labelNames,
		values:     make(map[string]*entry[T]),
		newValue:   newValue,
	}
}

func (s *series[T]) get(name string, values []string) (*T, error) {
	if len(values) != len(s.labelNames) {
		return nil, fmt.Errorf("%w: %s expected %d labels, got %d", ErrLabelCountMismatch, name, len(s.labelNames), len(values))
	}
	key := strings.Join(values, "\x00")

	s.mu.RLock()
	e, ok := s.values[key]
	s.mu.RUnlock()
	if ok {
		return e.value, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.values[key]; ok {
		return e.value, nil
	}
	labels := make([]Label, len(values))
	for i, v := range values {
		labels[i] = Label{Name: s.labelNames[i], Value: v}
	}
	e = &entry[T]{labels: labels, value: s.newValue()}
	s.values[key] = e
	return e.value, nil
}

// snapshot returns entries sorted by label values for stable output.
func (s *series[T]) snapshot() []*entry[T] {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*entry[T], len(keys))
	for i, k := range keys {
		out[i] = s.values[k]
	}
	s.mu.RUnlock()
	return out
}

// Counter is a monotonically increasing metric.
type Counter struct {
	name, help string
	series     *series[atomicFloat64]
}

func (c *Counter) Name() string { return c.name }
func (c *Counter) Help() string { return c.help }
func (c *Counter) Type() string { return "counter" }

// Inc adds one to the series selected by labelValues.
func (c *Counter) Inc(labelValues ...string) error {
	return c.Add(1, labelValues...)
}

// Add adds a non-negative delta to the series selected by labelValues.
func (c *Counter) Add(delta float64, labelValues ...string) error {
	if delta < 0 {
		return fmt.Errorf("counter %s cannot be decreased", c.name)
	}
	v, err := c.series.get(c.name, labelValues)
	if err != nil {
		return err
	}
	v.Add(delta)
	return nil
}

// Value returns the current value of one series, or 0 when unseen.
func (c *Counter) Value(labelValues ...string) float64 {
	key := strings.Join(labelValues, "\x00")
	c.series.mu.RLock()
	defer c.series.mu.RUnlock()
	if e, ok := c.series.values[key]; ok {
		return e.value.Load()
	}
	return 0
}

func (c *Counter) Collect() []Sample {
	entries := c.series.snapshot()
	out := make([]Sample, len(entries))
	for i, e := range entries {
		out[i] = Sample{Name: c.name, Labels: e.labels, Value: e.value.Load()}
	}
	return out
}

// GaugeFunc is a gauge whose samples are produced by a callback at scrape time.
type GaugeFunc struct {
	name, help string
	collect    func() []Sample
}

func (g *GaugeFunc) Name() string      { return g.name }
func (g *GaugeFunc) Help() string      { return g.help }
func (g *GaugeFunc) Type() string      { return "gauge" }
func (g *GaugeFunc) Collect() []Sample { return g.collect() }

type histogramValue struct {
	counts []uint64
	sum    atomicFloat64
	count  uint64
}

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name, help string
	buckets    []float64
	series     *series[histogramValue]
}

func (h *Histogram) Name() string { return h.name }
func (h *Histogram) Help() string { return h.help }
func (h *Histogram) Type() string { return "histogram" }

// Observe records value in the series selected by labelValues.
func (h *Histogram) Observe(value float64, labelValues ...string) error {
	hv, err := h.series.get(h.name, labelValues)
	if err != nil {
		return err
	}
	for i, bound := range h.buckets {
		if value <= bound {
			atomic.AddUint64(&hv.counts[i], 1)
			break
		}
	}
	hv.sum.Add(value)
	atomic.AddUint64(&hv.count, 1)
	return nil
}

func (h *Histogram) Collect() []Sample {
	entries := h.series.snapshot()
	out := make([]Sample, 0, len(entries)*(len(h.buckets)+2))
	for _, e := range entries {
		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += atomic.LoadUint64(&e.value.counts[i])
			labels := append(append([]Label{}, e.labels...), Label{Name: "le", Value: formatFloat(bound)})
			out = append(out, Sample{Name: h.name + "_bucket", Labels: labels, Value: float64(cumulative)})
		}
		out = append(out,
			Sample{Name: h.name + "_sum", Labels: e.labels, Value: e.value.sum.Load()},
			Sample{Name: h.name + "_count", Labels: e.labels, Value: float64(atomic.LoadUint64(&e.value.count))},
		)
	}
	return out
}

// Registry holds registered metrics in registration order.
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	names   map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter creates and registers a counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{
		name:   name,
		help:   help,
		series: newSeries(labels, func() *atomicFloat64 { return &atomicFloat64{} }),
	}
	r.register(c)
	return c
}

// NewGaugeFunc creates and registers a callback gauge.
func (r *Registry) NewGaugeFunc(name, help string, collect func() []Sample) *GaugeFunc {
	g := &GaugeFunc{name: name, help: help, collect: collect}
	r.register(g)
	return g
}

// NewHistogram creates and registers a histogram. A +Inf bucket is added
// when missing.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	sorted := append([]float64{}, buckets...)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{
		name:    name,
		help:    help,
		buckets: sorted,
		series: newSeries(labels, func() *histogramValue {
			return &histogramValue{counts: make([]uint64, len(sorted))}
		}),
	}
	r.register(h)
	return h
}

// register panics on duplicate names since they produce invalid exposition output.
func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.Name()]; exists {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, m.Name()))
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
}

// WriteTo writes every metric in text exposition format.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	r.mu.RLock()
	metrics := append([]Metric{}, r.metrics...)
	r.mu.RUnlock()

	cw := &countingWriter{w: w}
	for _, m := range metrics {
		samples := m.Collect()
		if len(samples) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(cw, "# HELP %s %s\n", m.Name(), escape(m.Help(), false))
		_, _ = fmt.Fprintf(cw, "# TYPE %s %s\n", m.Name(), m.Type())
		for _, s := range samples {
			if len(s.Labels) == 0 {
				_, _ = fmt.Fprintf(cw, "%s %s\n", s.Name, formatFloat(s.Value))
				continue
			}
			_, _ = fmt.Fprintf(cw, "%s{%s} %s\n", s.Name, formatLabels(s.Labels), formatFloat(s.Value))
		}
	}
	return cw.n, cw.err
}

// Handler serves the registry over HTTP.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = r.WriteTo(w)
	})
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

func formatLabels(labels []Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.Name + `="` + escape(l.Value, true) + `"`
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func escape(s string, quote bool) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	if quote {
		s = strings.ReplaceAll(s, `"`, `\"`)
	}
	return s
}
