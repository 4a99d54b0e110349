package cache

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is matched by every ConfigurationError.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// A ConfigurationError reports a cache parameter that is not positive, or one
// that makes the size of the cache overflow 64 bits.
type ConfigurationError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "must be positive"
	}

	return fmt.Sprintf("%s: %s %s, got %d",
		ErrInvalidConfig, e.Field, reason, e.Value)
}

// Is makes errors.Is(err, ErrInvalidConfig) hold.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func mustBePositive(field string, value int) error {
	if value > 0 {
		return nil
	}

	return &ConfigurationError{Field: field, Value: value}
}

// mustNotOverflow rejects a field whose product with the size accumulated so
// far does not fit in 64 bits.
func mustNotOverflow(field string, value int, size uint64) (uint64, error) {
	v := uint64(value)
	if size > math.MaxUint64/v {
		return 0, &ConfigurationError{
			Field:  field,
			Value:  value,
			Reason: "makes the cache size overflow",
		}
	}

	return size * v, nil
}
