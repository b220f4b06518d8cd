package forecast

import (
	"errors"
	"fmt"
)

// ErrNotFitted is returned when a scaler transform is requested before Fit
// and no persisted scaler state has been loaded.
var ErrNotFitted = errors.New("scaler not fitted")

// ErrBackendUnavailable signals that no trainable numeric backend is
// present. It is recovered internally by falling back to the simulation
// backend and is only surfaced through logs.
var ErrBackendUnavailable = errors.New("numeric backend unavailable")

// ConfigError reports invalid construction or input-shape configuration.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("forecast config: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("forecast config: %s", e.Msg)
}

func configErrorf(field, format string, a ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, a...)}
}

// PersistenceError reports a failed bundle save or load.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("bundle %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
