// Package flagutil contains flag value types shared by the commands.
package flagutil

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

// ErrBelowMinimum is an error returned when a count flag is set to a
// value below its minimum
var ErrBelowMinimum = errors.New("value below minimum")

// CountValue represents a Flag value to be parsed by spf13/pflag.
// It holds a non-negative integer with a lower bound.
type CountValue struct {
	value int
	min   int
}

// NewCountFlag returns a new Flag Value holding an integer that
// cannot go below min
func NewCountFlag(defaultValue, min int) *CountValue {
	return &CountValue{
		value: defaultValue,
		min:   min,
	}
}

// we make sure the struct implements the interface
var _ pflag.Value = (*CountValue)(nil)

// String returns the flag's value
func (v *CountValue) String() string {
	return strconv.Itoa(v.value)
}

// Set sets the flag's value
func (v *CountValue) Set(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", value, err)
	}
	if n < v.min {
		return fmt.Errorf("count %d (minimum %d): %w", n, v.min, ErrBelowMinimum)
	}
	v.value = n
	return nil
}

// Type returns the type of the flag as expected by the pflag package
func (v *CountValue) Type() string {
	return "count"
}

// Get returns the flag's value
func (v *CountValue) Get() int {
	return v.value
}
