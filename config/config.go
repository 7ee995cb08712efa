// Package config provides YAML configuration parsing for fenetre.
//
// This package enables running fenetre as a standalone binary with a
// configuration file, as an alternative to the programmatic API.
//
// Example configuration:
//
//	title: Attendance
//	port: 8080
//
//	backend:
//	  base_url: ${FENETRE_URL:-https://fenetre.example.com}
//	  timeout: 10s
//	  headers:
//	    Cookie: "sessionid=${FENETRE_SESSION}"
//
//	backoff:
//	  initial: 1s
//	  factor: 2
//	  max: 30s
//	  max_elapsed: 10m
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minInitialDelay is the smallest first retry delay accepted from a file.
// Course discovery runs against a shared backend; sub-100ms polling is only
// useful in tests, which configure the library directly.
const minInitialDelay = 100 * time.Millisecond

// Config is the root configuration structure for fenetre.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "fenetre" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Backend describes the lockbox API to talk to.
	Backend BackendConfig `yaml:"backend"`

	// Backoff controls polling while course discovery is pending.
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackendConfig holds connection settings for the lockbox API.
type BackendConfig struct {
	// BaseURL is the API root, e.g. https://fenetre.example.com. Required.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each request. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with every request, typically the session cookie.
	// Values support ${VAR} expansion.
	Headers map[string]string `yaml:"headers"`
}

// BackoffConfig mirrors fenetre.BackoffPolicy. Zero fields take the library
// defaults; max_attempts and max_elapsed of zero mean unbounded.
type BackoffConfig struct {
	Initial     Duration `yaml:"initial"`
	Factor      float64  `yaml:"factor"`
	Max         Duration `yaml:"max"`
	MaxAttempts int      `yaml:"max_attempts"`
	MaxElapsed  Duration `yaml:"max_elapsed"`
}

// IsZero reports whether no backoff field was set.
func (b BackoffConfig) IsZero() bool {
	return b == BackoffConfig{}
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
// Group 1 is the name, group 2 the ":-default" part, group 3 the default.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in backend.base_url and header values.
// Defaults are applied for Port (8080) and backend.timeout (10s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = Duration(10 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if err := c.Backend.expandAndValidate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}

	if err := c.Backoff.validate(); err != nil {
		return fmt.Errorf("backoff: %w", err)
	}

	return nil
}

func (b *BackendConfig) expandAndValidate() error {
	if b.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	expanded, err := expandEnvVars(b.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	b.BaseURL = strings.TrimRight(expanded, "/")

	parsedURL, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("base_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base_url must have a host")
	}

	if b.Timeout.Duration() < time.Second {
		return fmt.Errorf("timeout must be at least 1s, got %s", b.Timeout.Duration())
	}

	for k, v := range b.Headers {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("headers: name cannot be empty")
		}
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		b.Headers[k] = expanded
	}

	return nil
}

// validate checks the fields that were set. Cross-field checks such as
// max >= initial happen once the defaults are merged in, when the
// configuration is converted to library options.
func (b BackoffConfig) validate() error {
	if b.Initial != 0 && b.Initial.Duration() < minInitialDelay {
		return fmt.Errorf("initial must be at least %s, got %s", minInitialDelay, b.Initial.Duration())
	}
	if b.Factor != 0 && b.Factor < 1 {
		return fmt.Errorf("factor must be at least 1, got %g", b.Factor)
	}
	if b.Factor == 1 && (b.Initial == 0 || b.Initial != b.Max) {
		return fmt.Errorf("factor 1 keeps the delay constant; set initial and max to the same value or use a factor above 1")
	}
	if b.Max < 0 {
		return fmt.Errorf("max cannot be negative, got %s", b.Max.Duration())
	}
	if b.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative, got %d", b.MaxAttempts)
	}
	if b.MaxElapsed < 0 {
		return fmt.Errorf("max_elapsed cannot be negative, got %s", b.MaxElapsed.Duration())
	}
	return nil
}
