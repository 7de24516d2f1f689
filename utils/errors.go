package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError[ExpectedT any](actual interface{}) error {
	return errors.Errorf("expected %T but got %T", *new(ExpectedT), actual)
}

// NewOutOfRangeError is used when a configured value falls outside its allowed interval.
func NewOutOfRangeError(name string, value, lo, hi float64) error {
	return errors.Errorf("%s must be in [%v, %v], got %v", name, lo, hi, value)
}
