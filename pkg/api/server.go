package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/terranova-labs/listingd/pkg/auth"
	"github.com/terranova-labs/listingd/pkg/config"
	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/logging"
	"github.com/terranova-labs/listingd/pkg/metrics"
	"github.com/terranova-labs/listingd/pkg/ratelimit"
	"github.com/terranova-labs/listingd/pkg/schema"
)

// Server serves the listingd HTTP API on top of a record store.
type Server struct {
	settings  *config.Settings
	store     *database.Store
	validator *schema.Validator
	tokens    *auth.TokenIssuer
	metrics   *metrics.ServerMetrics
	limiter   *ratelimit.Limiter
	reseed    func(*database.Store) (int, error)
	log       *slog.Logger
	now       func() time.Time

	prefix   string
	mux      *http.ServeMux
	handler  http.Handler
	programs *programCache

	httpServer *http.Server
}

// New creates a Server for store. settings may be nil, in which case
// config.Default() is used.
func New(store *database.Store, settings *config.Settings, opts ...Option) *Server {
	if settings == nil {
		settings = config.Default()
	}
	s := &Server{
		settings: settings,
		store:    store,
		log:      logging.Nop(),
		now:      time.Now,
		prefix:   normalizePrefix(settings.APIPrefix),
		mux:      http.NewServeMux(),
		programs: newProgramCache(defaultProgramCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.validator == nil {
		s.validator = schema.MustNewValidator()
	}
	if s.tokens == nil {
		s.tokens = auth.NewTokenIssuer(settings.SessionSecret, settings.SessionTTL)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewServerMetrics(store)
	}
	if settings.RateLimit > 0 {
		s.limiter = ratelimit.New(ratelimit.Config{
			Rate:           settings.RateLimit,
			Burst:          settings.RateLimitBurst,
			TrustedProxies: settings.TrustedProxies,
		})
	}

	s.registerRoutes()
	s.handler = s.withMiddleware(s.mux)

	s.httpServer = &http.Server{
		Addr:              settings.Address(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's metric set.
func (s *Server) Metrics() *metrics.ServerMetrics {
	return s.metrics
}

// Close releases background resources. It does not stop a running server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
		s.limiter = nil
	}
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.RunListener(ctx, ln)
}

// RunListener is Run on an existing listener. When max_connections is set
// the listener is capped to that many concurrent connections.
func (s *Server) RunListener(ctx context.Context, ln net.Listener) error {
	if n := s.settings.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", "addr", ln.Addr().String(), "prefix", s.prefix)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := s.settings.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		s.log.Info("shutting down", "timeout", timeout)
		return s.httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.Close()
	return err
}

func (s *Server) timestamp() string {
	return database.FormatTime(s.now())
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}
