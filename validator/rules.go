package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
)

// Required fails for zero values.
var Required = Func(func(v any) error {
	if isZero(v) {
		return errors.New("is required")
	}
	return nil
})

// MinLen fails for strings shorter than n bytes.
func MinLen(n int) Rule {
	return Func(func(v any) error {
		if s, ok := v.(string); ok && len(s) < n {
			return fmt.Errorf("length must be at least %d", n)
		}
		return nil
	})
}

// Range fails for numbers (durations included) outside [lo, hi].
func Range(lo, hi float64) Rule {
	return Func(func(v any) error {
		if f, ok := number(v); ok && (f < lo || f > hi) {
			return fmt.Errorf("value must be between %v and %v", lo, hi)
		}
		return nil
	})
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	case rv.CanFloat():
		return rv.Float(), true
	}
	return 0, false
}

// In fails unless the value equals one of values.
func In(values ...any) Rule {
	return Func(func(v any) error {
		for _, allowed := range values {
			if reflect.DeepEqual(v, allowed) {
				return nil
			}
		}
		return fmt.Errorf("must be one of %v", values)
	})
}

// Regexp fails for strings not matching pattern.
func Regexp(pattern string) Rule {
	re := regexp.MustCompile(pattern)
	return Func(func(v any) error {
		if s, ok := v.(string); ok && !re.MatchString(s) {
			return fmt.Errorf("must match %s", pattern)
		}
		return nil
	})
}
