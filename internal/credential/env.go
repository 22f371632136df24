package credential

import (
	"fmt"
	"os"
	"strings"
)

// DefaultEnvNames are the variables read when no source is configured.
var DefaultEnvNames = []string{"OPENAI_API_KEY_1", "OPENAI_API_KEY_2"}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Source describes where pool credentials come from.
type Source struct {
	EnvNames []string // read in order
	Keys     []string // literal credentials, placed before env values
	MinCount int      // fewer credentials than this is a configuration error
}

// FromEnv reads one credential per variable name. A missing or blank
// variable is reported by name.
func FromEnv(names []string, lookup LookupFunc) ([]string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	creds := make([]string, 0, len(names))
	for _, name := range names {
		v, ok := lookup(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, &ConfigurationError{Source: name, Reason: "environment variable is not set"}
		}
		creds = append(creds, strings.TrimSpace(v))
	}
	return creds, nil
}

// Load builds a pool from src.
func Load(src Source, lookup LookupFunc) (*Pool, error) {
	names := src.EnvNames
	if len(names) == 0 && len(src.Keys) == 0 {
		names = DefaultEnvNames
	}

	creds := make([]string, 0, len(src.Keys)+len(names))
	for i, k := range src.Keys {
		if strings.TrimSpace(k) == "" {
			return nil, &ConfigurationError{
				Source: fmt.Sprintf("credentials.keys[%d]", i),
				Reason: "value is empty",
			}
		}
		creds = append(creds, strings.TrimSpace(k))
	}

	fromEnv, err := FromEnv(names, lookup)
	if err != nil {
		return nil, err
	}
	creds = append(creds, fromEnv...)

	if src.MinCount > 0 && len(creds) < src.MinCount {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("need at least %d credentials, got %d", src.MinCount, len(creds)),
		}
	}

	return NewPool(creds)
}
