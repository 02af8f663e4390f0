package memo

import (
	"errors"
	"fmt"
)

// ErrConfig is matched by every configuration error.
var ErrConfig = errors.New("invalid memo configuration")

// ConfigError reports an invalid option. It is returned before any call is
// made, by New, NewFromConfig, Config.Validate and YAML decoding.
type ConfigError struct {
	Field  string
	Reason string
	Err    error // underlying cause, may be nil
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("memo: invalid %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConfig) hold for every ConfigError.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func configErr(field, reason string, cause error) error {
	return &ConfigError{Field: field, Reason: reason, Err: cause}
}
