package recurrence

import (
	"errors"
	"fmt"
)

// ErrConfig matches every *ConfigError with errors.Is.
var ErrConfig = errors.New("invalid recurrence configuration")

// ConfigError reports a recurrence rule that cannot be expanded.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("recurrence: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
