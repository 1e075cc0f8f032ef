package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/terranova-labs/listingd/internal/id"
	"github.com/terranova-labs/listingd/pkg/auth"
	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/logging"
	"github.com/terranova-labs/listingd/pkg/ratelimit"
)

// RequestIDHeader carries the id assigned to each request.
const RequestIDHeader = "X-Request-ID"

// APIKeyHeader carries the client API key when the guard is enabled.
const APIKeyHeader = "X-API-Key"

// CORSConfig holds the configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to make cross-origin requests.
	// Empty or "*" allows all.
	AllowedOrigins []string

	// AllowedMethods lists methods allowed cross-origin. "*" echoes the
	// method requested in the preflight.
	AllowedMethods []string

	// AllowedHeaders lists headers allowed cross-origin. "*" echoes the
	// headers requested in the preflight.
	AllowedHeaders []string

	// AllowCredentials makes the response echo the origin instead of "*".
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Default: 600.
	MaxAge int
}

func (c *CORSConfig) isOriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// allowOriginValue returns the Access-Control-Allow-Origin value, or ""
// when origin is not allowed.
func (c *CORSConfig) allowOriginValue(origin string) string {
	if !c.isOriginAllowed(origin) {
		return ""
	}
	// Credentials require the specific origin to be echoed.
	if c.AllowCredentials {
		return origin
	}
	if len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, "*") {
		return "*"
	}
	return origin
}

func (c *CORSConfig) methods(r *http.Request) string {
	if len(c.AllowedMethods) == 0 {
		return "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	if slices.Contains(c.AllowedMethods, "*") {
		if m := r.Header.Get("Access-Control-Request-Method"); m != "" {
			return m
		}
		return "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	return strings.Join(c.AllowedMethods, ", ")
}

func (c *CORSConfig) headers(r *http.Request) string {
	if len(c.AllowedHeaders) == 0 {
		return "Content-Type, Authorization, " + APIKeyHeader
	}
	if slices.Contains(c.AllowedHeaders, "*") {
		if h := r.Header.Get("Access-Control-Request-Headers"); h != "" {
			return h
		}
		return "Content-Type, Authorization, " + APIKeyHeader
	}
	return strings.Join(c.AllowedHeaders, ", ")
}

func (c *CORSConfig) maxAge() string {
	if c.MaxAge <= 0 {
		return "600"
	}
	return strconv.Itoa(c.MaxAge)
}

func (s *Server) corsConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   s.settings.CORSOrigins,
		AllowedMethods:   s.settings.CORSMethods,
		AllowedHeaders:   s.settings.CORSHeaders,
		AllowCredentials: s.settings.CORSAllowCredentials,
	}
}

// withMiddleware wraps h in recovery, logging, metrics, CORS and, when
// enabled, rate limiting and the API-key guard. The first listed runs
// outermost.
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	if s.settings.APIKeyRequired {
		h = s.apiKeyMiddleware(h)
	}
	if s.limiter != nil {
		h = ratelimit.Middleware(s.limiter, http.HandlerFunc(s.handleRateLimited))(h)
	}
	h = corsMiddleware(h, s.corsConfig())
	h = s.metricsMiddleware(h)
	h = s.loggingMiddleware(h)
	h = s.recoveryMiddleware(h)
	return h
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newStatusRecorder(w)
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}
			logging.FromContext(r.Context(), s.log).Error("panic serving request",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(v),
				"stack", string(debug.Stack()),
			)
			if !rec.wroteHeader {
				s.writeError(rec, http.StatusInternalServerError, CodeInternal, ErrMsgInternal, nil)
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

// loggingMiddleware assigns a request id, stores a request-scoped logger in
// the context and logs each completed request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = id.Short()
		}
		w.Header().Set(RequestIDHeader, requestID)

		log := s.log.With("request_id", requestID)
		r = r.WithContext(logging.IntoContext(r.Context(), log))

		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		level := slogLevelFor(rec.status)
		log.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func slogLevelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		_ = s.metrics.RequestsTotal.Inc(r.Method, route, strconv.Itoa(rec.status))
		_ = s.metrics.RequestDuration.Observe(time.Since(start).Seconds(), r.Method, route)
	})
}

func corsMiddleware(next http.Handler, config CORSConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")

		allowOrigin := config.allowOriginValue(origin)
		if origin == "" || allowOrigin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		if config.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Methods", config.methods(r))
			w.Header().Set("Access-Control-Allow-Headers", config.headers(r))
			w.Header().Set("Access-Control-Max-Age", config.maxAge())
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware rejects requests under the API prefix that lack a valid
// key. Ping and health stay open.
func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	open := map[string]bool{
		s.prefix + "/ping":   true,
		s.prefix + "/health": true,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, s.prefix+"/") || open[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		err := auth.CheckAPIKey(s.settings.APIKey, providedAPIKey(r))
		if err != nil {
			if userID, ok := s.sessionBearer(r); ok {
				logging.FromContext(r.Context(), s.log).Debug("authenticated by session", "user_id", userID)
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.writeStatusError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionBearer accepts a bearer token minted by this server for a stored
// session that is still valid. It returns the session's user id.
func (s *Server) sessionBearer(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", false
	}
	sessions, err := s.store.Find(database.CollectionSessions, map[string]any{"session_token": token})
	if err != nil || len(sessions) == 0 {
		return "", false
	}
	sess := sessions[0]
	if valid, ok := sess["is_valid"].(bool); ok && !valid {
		return "", false
	}
	return claims.Subject, true
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.writeStatusError(w, http.StatusTooManyRequests, "Too many requests")
}

func providedAPIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
