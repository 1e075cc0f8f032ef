package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Common errors for settings loading.
var (
	ErrFileNotFound = errors.New("settings file not found")
	ErrInvalidJSON  = errors.New("invalid JSON syntax")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
	ErrEmptyFile    = errors.New("settings file is empty")
)

// EnvPrefix is the prefix of every settings environment variable.
const EnvPrefix = "LISTINGD_"

// DefaultDotEnvFile is read from the working directory when present.
const DefaultDotEnvFile = ".env"

// Load resolves settings from defaults, the optional file at path, the
// .env file and the process environment, then validates the result.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		if err := s.MergeFile(path); err != nil {
			return nil, err
		}
	}

	env, err := ReadDotEnv(DefaultDotEnvFile)
	if err != nil {
		return nil, err
	}
	for k, v := range EnvironMap(os.Environ()) {
		env[k] = v
	}
	if err := s.ApplyEnv(env); err != nil {
		return nil, err
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// MergeFile overlays values from a YAML or JSON file onto s.
// Fields absent from the file keep their current value.
func (s *Settings) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to read settings file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		if err := json.Unmarshal(data, s); err != nil {
			return fmt.Errorf("%w in file %s: %v", ErrInvalidJSON, path, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("%w in file %s: %v", ErrInvalidYAML, path, err)
	}
	return nil
}

// ToYAML renders the settings as YAML.
func (s *Settings) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// EnvironMap turns KEY=VALUE pairs into a map.
func EnvironMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

// ReadDotEnv parses a .env file with godotenv. A missing file yields an
// empty map. Values are returned as written; they are not exported into
// the process environment.
func ReadDotEnv(path string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return env, nil
}

type envSetter func(s *Settings, value string) error

var envSetters = map[string]envSetter{
	"APP_NAME":               func(s *Settings, v string) error { s.AppName = v; return nil },
	"APP_VERSION":            func(s *Settings, v string) error { s.AppVersion = v; return nil },
	"APP_DESCRIPTION":        func(s *Settings, v string) error { s.AppDescription = v; return nil },
	"HOST":                   func(s *Settings, v string) error { s.Host = v; return nil },
	"PORT":                   intSetter(func(s *Settings) *int { return &s.Port }),
	"DEBUG":                  boolSetter(func(s *Settings) *bool { return &s.Debug }),
	"ENVIRONMENT":            func(s *Settings, v string) error { s.Environment = strings.ToLower(v); return nil },
	"CORS_ORIGINS":           listSetter(func(s *Settings) *[]string { return &s.CORSOrigins }),
	"CORS_METHODS":           listSetter(func(s *Settings) *[]string { return &s.CORSMethods }),
	"CORS_HEADERS":           listSetter(func(s *Settings) *[]string { return &s.CORSHeaders }),
	"CORS_ALLOW_CREDENTIALS": boolSetter(func(s *Settings) *bool { return &s.CORSAllowCredentials }),
	"API_PREFIX":             func(s *Settings, v string) error { s.APIPrefix = v; return nil },
	"DOCS_URL":               func(s *Settings, v string) error { s.DocsURL = v; return nil },
	"REDOC_URL":              func(s *Settings, v string) error { s.RedocURL = v; return nil },
	"DATABASE_URL":           func(s *Settings, v string) error { s.DatabaseURL = v; return nil },
	"SEED_ON_STARTUP":        boolSetter(func(s *Settings) *bool { return &s.SeedOnStartup }),
	"SEED_FILES":             listSetter(func(s *Settings) *[]string { return &s.SeedFiles }),
	"LOG_LEVEL":              func(s *Settings, v string) error { s.LogLevel = v; return nil },
	"LOG_FORMAT":             func(s *Settings, v string) error { s.LogFormat = v; return nil },
	"API_KEY":                func(s *Settings, v string) error { s.APIKey = v; return nil },
	"API_KEY_REQUIRED":       boolSetter(func(s *Settings) *bool { return &s.APIKeyRequired }),
	"SESSION_SECRET":         func(s *Settings, v string) error { s.SessionSecret = v; return nil },
	"SESSION_TTL":            durationSetter(func(s *Settings) *time.Duration { return &s.SessionTTL }),
	"RATE_LIMIT":             floatSetter(func(s *Settings) *float64 { return &s.RateLimit }),
	"RATE_LIMIT_BURST":       intSetter(func(s *Settings) *int { return &s.RateLimitBurst }),
	"TRUSTED_PROXIES":        listSetter(func(s *Settings) *[]string { return &s.TrustedProxies }),
	"MAX_CONNECTIONS":        intSetter(func(s *Settings) *int { return &s.MaxConnections }),
	"SHUTDOWN_TIMEOUT":       durationSetter(func(s *Settings) *time.Duration { return &s.ShutdownTimeout }),
}

// ApplyEnv overlays LISTINGD_* variables from env onto s.
// Keys are matched case-insensitively; unrelated keys are ignored.
func (s *Settings) ApplyEnv(env map[string]string) error {
	for key, value := range env {
		upper := strings.ToUpper(key)
		if !strings.HasPrefix(upper, EnvPrefix) {
			continue
		}
		setter, ok := envSetters[strings.TrimPrefix(upper, EnvPrefix)]
		if !ok {
			continue
		}
		if err := setter(s, value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSettings, upper, err)
		}
	}
	return nil
}

func intSetter(field func(*Settings) *int) envSetter {
	return func(s *Settings, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(s) = n
		return nil
	}
}

func floatSetter(field func(*Settings) *float64) envSetter {
	return func(s *Settings, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*field(s) = f
		return nil
	}
}

func boolSetter(field func(*Settings) *bool) envSetter {
	return func(s *Settings, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(s) = b
		return nil
	}
}

func durationSetter(field func(*Settings) *time.Duration) envSetter {
	return func(s *Settings, v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(s) = d
		return nil
	}
}

// listSetter accepts a JSON array or a comma-separated list.
func listSetter(field func(*Settings) *[]string) envSetter {
	return func(s *Settings, v string) error {
		v = strings.TrimSpace(v)
		var list []string
		if strings.HasPrefix(v, "[") {
			if err := json.Unmarshal([]byte(v), &list); err != nil {
				return err
			}
		} else {
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					list = append(list, item)
				}
			}
		}
		*field(s) = list
		return nil
	}
}
