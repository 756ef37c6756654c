package cache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCacheUnavailable is returned when a required remote backend is
// demanded but unreachable. It surfaces only in strict connection mode;
// ordinary data-path failures degrade to misses or best-effort writes.
var ErrCacheUnavailable = errors.New("cache unavailable")

// ConfigError reports a configuration or preset that failed validation.
// It is surfaced by factories and Validate, never by cache operations.
type ConfigError struct {
	Errors []string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid cache configuration: %s", strings.Join(e.Errors, "; "))
}

// ParamConflictError reports incompatible inputs detected during
// parameter mapping at construction time.
type ParamConflictError struct {
	Param  string
	Reason string
}

// Error implements the error interface.
func (e *ParamConflictError) Error() string {
	return fmt.Sprintf("conflicting cache parameter %q: %s", e.Param, e.Reason)
}
