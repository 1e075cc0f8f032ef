package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Defaults for Config fields left zero.
const (
	DefaultRate          = 100.0
	DefaultSweepInterval = time.Minute
	DefaultIdleTTL       = time.Minute
)

// Config configures a Limiter.
type Config struct {
	Rate           float64       // tokens per second; DefaultRate when not positive
	Burst          int           // bucket capacity; defaults to twice Rate, at least 1
	TrustedProxies []string      // CIDRs or IPs whose X-Forwarded-For is honoured
	SweepInterval  time.Duration // how often idle buckets are dropped
	IdleTTL        time.Duration // how long an untouched bucket survives

	// Now is the time source. Defaults to time.Now.
	Now func() time.Time
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastSeen time.Time
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Remaining is the whole number of tokens left after this request.
	Remaining int
	// RetryAfter is how long to wait for the next token when denied, or
	// for the bucket to refill when allowed.
	RetryAfter time.Duration
}

// Limiter tracks one token bucket per client.
type Limiter struct {
	rate    float64
	burst   int
	now     func() time.Time
	idleTTL time.Duration
	proxies []*net.IPNet

	mu      sync.Mutex
	buckets map[string]*bucket

	stop    chan struct{}
	stopped chan struct{}
}

// New creates a Limiter and starts its sweeper.
func New(cfg Config) *Limiter {
	rate := cfg.Rate
	if rate <= 0 {
		rate = DefaultRate
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(int(rate*2), 1)
	}
	l := &Limiter{
		rate:    rate,
		burst:   burst,
		now:     cfg.Now,
		idleTTL: cfg.IdleTTL,
		proxies: parseProxies(cfg.TrustedProxies),
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.idleTTL <= 0 {
		l.idleTTL = DefaultIdleTTL
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go l.sweepLoop(interval)
	return l
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.burst
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastSeen: now}
		l.buckets[key] = b
	}
	l.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = min(b.tokens+now.Sub(b.lastSeen).Seconds()*l.rate, float64(l.burst))
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return Decision{
			Allowed:    true,
			Remaining:  int(b.tokens),
			RetryAfter: l.secondsFor(float64(l.burst) - b.tokens),
		}
	}
	return Decision{Allowed: false, RetryAfter: l.secondsFor(1 - b.tokens)}
}

// secondsFor returns the time to accumulate tokens, rounded up to whole
// seconds so it can be used in Retry-After.
func (l *Limiter) secondsFor(tokens float64) time.Duration {
	if tokens <= 0 {
		return 0
	}
	secs := tokens / l.rate
	whole := time.Duration(secs)
	if float64(whole) < secs {
		whole++
	}
	return whole * time.Second
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// ClientIP returns the request's client address. X-Forwarded-For and
// X-Real-IP are honoured only when the peer is a trusted proxy.
func (l *Limiter) ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !l.trusted(remote) {
		return remote
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	return remote
}

func (l *Limiter) trusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range l.proxies {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Stop ends the sweeper and waits for it to exit.
func (l *Limiter) Stop() {
	close(l.stop)
	<-l.stopped
}

func (l *Limiter) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(l.stopped)

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-l.stop:
			return
		}
	}
}

// Sweep drops buckets idle for longer than the idle TTL.
func (l *Limiter) Sweep() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		b.mu.Lock()
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
		b.mu.Unlock()
	}
}

func parseProxies(entries []string) []*net.IPNet {
	var out []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				continue
			}
			if ip.To4() != nil {
				entry += "/32"
			} else {
				entry += "/128"
			}
		}
		if _, n, err := net.ParseCIDR(entry); err == nil {
			out = append(out, n)
		}
	}
	return out
}
