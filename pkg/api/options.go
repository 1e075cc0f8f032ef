package api

import (
	"log/slog"
	"time"

	"github.com/terranova-labs/listingd/pkg/auth"
	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/metrics"
	"github.com/terranova-labs/listingd/pkg/schema"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and error logging.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the metric set. If not set, a fresh one is created
// that reports the store's record counts.
func WithMetrics(m *metrics.ServerMetrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithTokenIssuer sets the issuer used to mint session tokens.
// If not set, one is built from the session settings.
func WithTokenIssuer(t *auth.TokenIssuer) Option {
	return func(s *Server) {
		s.tokens = t
	}
}

// WithValidator sets the request validator.
func WithValidator(v *schema.Validator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithReseed sets the function run by POST {prefix}/database/reset?reseed=true.
func WithReseed(fn func(*database.Store) (int, error)) Option {
	return func(s *Server) {
		s.reseed = fn
	}
}

// WithClock sets the time source for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}
