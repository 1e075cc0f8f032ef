package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/terranova-labs/listingd/pkg/logging"
)

// Environments accepted by Settings.Environment.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// MinAPIKeyLength is the shortest API key accepted.
const MinAPIKeyLength = 8

// ErrInvalidSettings is wrapped by every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the full runtime configuration.
type Settings struct {
	AppName        string `yaml:"app_name" json:"app_name"`
	AppVersion     string `yaml:"app_version" json:"app_version"`
	AppDescription string `yaml:"app_description" json:"app_description"`

	Host        string `yaml:"host" json:"host"`
	Port        int    `yaml:"port" json:"port"`
	Debug       bool   `yaml:"debug" json:"debug"`
	Environment string `yaml:"environment" json:"environment"`

	CORSOrigins          []string `yaml:"cors_origins" json:"cors_origins"`
	CORSMethods          []string `yaml:"cors_methods" json:"cors_methods"`
	CORSHeaders          []string `yaml:"cors_headers" json:"cors_headers"`
	CORSAllowCredentials bool     `yaml:"cors_allow_credentials" json:"cors_allow_credentials"`

	APIPrefix string `yaml:"api_prefix" json:"api_prefix"`
	DocsURL   string `yaml:"docs_url" json:"docs_url"`
	RedocURL  string `yaml:"redoc_url" json:"redoc_url"`

	// DatabaseURL is an optional snapshot file loaded at startup and
	// written on shutdown.
	DatabaseURL   string   `yaml:"database_url" json:"database_url"`
	SeedOnStartup bool     `yaml:"seed_on_startup" json:"seed_on_startup"`
	SeedFiles     []string `yaml:"seed_files,omitempty" json:"seed_files,omitempty"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	APIKey         string `yaml:"api_key" json:"api_key"`
	APIKeyRequired bool   `yaml:"api_key_required" json:"api_key_required"`

	SessionSecret string        `yaml:"session_secret" json:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl" json:"session_ttl"`

	// RateLimit is the per-client request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit      float64  `yaml:"rate_limit" json:"rate_limit"`
	RateLimitBurst int      `yaml:"rate_limit_burst" json:"rate_limit_burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty" json:"trusted_proxies,omitempty"`

	// MaxConnections caps concurrent connections. Zero means unlimited.
	MaxConnections  int           `yaml:"max_connections" json:"max_connections"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		AppName:              "Listing Backend",
		AppVersion:           "1.0.0",
		AppDescription:       "Property listing backend API",
		Host:                 "0.0.0.0",
		Port:                 3001,
		Debug:                true,
		Environment:          EnvDevelopment,
		CORSOrigins:          []string{"*"},
		CORSMethods:          []string{"*"},
		CORSHeaders:          []string{"*"},
		CORSAllowCredentials: true,
		APIPrefix:            "/api",
		DocsURL:              "/docs",
		RedocURL:             "/redoc",
		SeedOnStartup:        true,
		LogLevel:             "info",
		LogFormat:            "text",
		SessionTTL:           24 * time.Hour,
		ShutdownTimeout:      10 * time.Second,
	}
}

// Address returns host:port for the HTTP listener.
func (s *Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsProduction reports whether the production environment is selected.
func (s *Settings) IsProduction() bool {
	return s.Environment == EnvProduction
}

// Validate checks every field and returns all problems at once.
func (s *Settings) Validate() error {
	var problems []string

	switch s.Environment {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		problems = append(problems, fmt.Sprintf("environment must be one of %s, %s, %s (got %q)",
			EnvDevelopment, EnvProduction, EnvTesting, s.Environment))
	}

	if s.Port < 1 || s.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port must be between 1 and 65535 (got %d)", s.Port))
	}

	if !strings.HasPrefix(s.APIPrefix, "/") || strings.HasSuffix(s.APIPrefix, "/") {
		problems = append(problems, fmt.Sprintf("api_prefix must start with / and not end with / (got %q)", s.APIPrefix))
	}

	if s.DocsURL != "" && !strings.HasPrefix(s.DocsURL, "/") {
		problems = append(problems, fmt.Sprintf("docs_url must start with / (got %q)", s.DocsURL))
	}
	if s.RedocURL != "" && !strings.HasPrefix(s.RedocURL, "/") {
		problems = append(problems, fmt.Sprintf("redoc_url must start with / (got %q)", s.RedocURL))
	}

	if s.APIKeyRequired && len(s.APIKey) < MinAPIKeyLength {
		problems = append(problems, fmt.Sprintf("api_key must be at least %d characters when api_key_required is set", MinAPIKeyLength))
	}

	if s.LogLevel != "" && !logging.ValidLevel(s.LogLevel) {
		problems = append(problems, fmt.Sprintf("log_level must be debug, info, warn or error (got %q)", s.LogLevel))
	}

	if s.SessionTTL <= 0 {
		problems = append(problems, "session_ttl must be positive")
	}
	if s.RateLimit < 0 || s.RateLimitBurst < 0 {
		problems = append(problems, "rate_limit and rate_limit_burst must not be negative")
	}
	if s.MaxConnections < 0 {
		problems = append(problems, "max_connections must not be negative")
	}
	if s.ShutdownTimeout <= 0 {
		problems = append(problems, "shutdown_timeout must be positive")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
}
