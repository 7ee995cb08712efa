package config

import (
	"fmt"
	"sort"

	"github.com/nffu/fenetre"
)

// BuildOptions converts parsed configuration into library options for
// [fenetre.New].
//
// Backoff fields left unset in the file keep the values from
// [fenetre.DefaultBackoff]; the merged policy is validated here so that a
// bad combination is reported against the configuration file.
func BuildOptions(cfg *Config) ([]fenetre.Option, error) {
	opts := []fenetre.Option{
		fenetre.WithBaseURL(cfg.Backend.BaseURL),
		fenetre.WithPort(cfg.Port),
	}

	if cfg.Title != "" {
		opts = append(opts, fenetre.WithTitle(cfg.Title))
	}

	if cfg.Backend.Timeout != 0 {
		opts = append(opts, fenetre.WithTimeout(cfg.Backend.Timeout.Duration()))
	}

	if len(cfg.Backend.Headers) > 0 {
		opts = append(opts, fenetre.WithHeaders(mapToKeyValuePairs(cfg.Backend.Headers)...))
	}

	if !cfg.Backoff.IsZero() {
		policy := BuildBackoff(cfg.Backoff)
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("backoff: %w", err)
		}
		opts = append(opts, fenetre.WithBackoff(policy))
	}

	return opts, nil
}

// BuildBackoff merges the configured fields over the default policy.
func BuildBackoff(bc BackoffConfig) fenetre.BackoffPolicy {
	policy := fenetre.DefaultBackoff()
	if bc.Initial != 0 {
		policy.Initial = bc.Initial.Duration()
	}
	if bc.Factor != 0 {
		policy.Factor = bc.Factor
	}
	if bc.Max != 0 {
		policy.Max = bc.Max.Duration()
	}
	if bc.MaxAttempts != 0 {
		policy.MaxAttempts = bc.MaxAttempts
	}
	if bc.MaxElapsed != 0 {
		policy.MaxElapsed = bc.MaxElapsed.Duration()
	}
	return policy
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
