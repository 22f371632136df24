package credential

import (
	"errors"
	"fmt"
)

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("invalid credential configuration")

// ConfigurationError reports a missing or invalid credential pool. It is fatal
// and raised before any evaluation attempt.
type ConfigurationError struct {
	Source string // env var or config key, when known
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("credential configuration: %s: %s", e.Source, e.Reason)
	}
	return "credential configuration: " + e.Reason
}

// Is makes errors.Is(err, ErrConfiguration) true.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
