// Package validator checks configuration structs against rules keyed by
// dotted field paths. Failures are reported under the path a user wrote in
// the configuration file: yaml key names where fields carry yaml tags.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Validator is a function that validates a value and returns an error.
type Validator func(value any) error

// ValidationErrors maps reported field paths to their failures.
type ValidationErrors map[string][]error

func (v ValidationErrors) Error() string {
	paths := make([]string, 0, len(v))
	for p := range v {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var sb strings.Builder
	for _, p := range paths {
		for _, err := range v[p] {
			if sb.Len() > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprintf(&sb, "%s: %v", p, err)
		}
	}
	return sb.String()
}

// Rule is one check on a field value. Rules are values; Msg, Optional and
// When return modified copies.
type Rule struct {
	check    func(v any) error
	msg      string
	optional bool
	when     func(v any) bool
}

// Func builds a rule from check.
func Func(check func(v any) error) Rule {
	return Rule{check: check}
}

// Msg replaces the failure message.
func (r Rule) Msg(msg string) Rule {
	r.msg = msg
	return r
}

// Optional skips the rule for zero values.
func (r Rule) Optional() Rule {
	r.optional = true
	return r
}

// When runs the rule only if fn reports true for the value.
func (r Rule) When(fn func(v any) bool) Rule {
	r.when = fn
	return r
}

// Validate applies the rule to v.
func (r Rule) Validate(v any) error {
	if r.when != nil && !r.when(v) {
		return nil
	}
	if r.optional && isZero(v) {
		return nil
	}
	err := r.check(v)
	if err == nil {
		return nil
	}
	if r.msg != "" {
		return errors.New(r.msg)
	}
	return err
}

func isZero(v any) bool {
	return v == nil || reflect.ValueOf(v).IsZero()
}

// Rules maps Go field paths such as "Database.Dialect" to rules. Paths that
// cross a nil pointer are skipped.
type Rules map[string][]Rule

// Validate applies every rule to value, a struct or pointer to struct.
func (r Rules) Validate(value any) error {
	if value == nil {
		return nil
	}
	rv := reflect.Indirect(reflect.ValueOf(value))
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("validator: value must be a struct or pointer to struct, got %T", value)
	}

	errs := make(ValidationErrors)
	for path, rules := range r {
		field, reported, ok := resolve(rv, path)
		if !ok {
			continue
		}
		val := field.Interface()
		for _, rule := range rules {
			if err := rule.Validate(val); err != nil {
				errs[reported] = append(errs[reported], err)
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// resolve walks path from rv and returns the field with its reported path.
func resolve(rv reflect.Value, path string) (reflect.Value, string, bool) {
	names := strings.Split(path, ".")
	reported := make([]string, 0, len(names))
	for _, name := range names {
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Value{}, "", false
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return reflect.Value{}, "", false
		}
		sf, ok := rv.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			return reflect.Value{}, "", false
		}
		reported = append(reported, keyName(sf))
		rv = rv.FieldByIndex(sf.Index)
	}
	return rv, strings.Join(reported, "."), true
}

func keyName(sf reflect.StructField) string {
	tag, _, _ := strings.Cut(sf.Tag.Get("yaml"), ",")
	if tag == "" || tag == "-" {
		return sf.Name
	}
	return tag
}

// Validate runs validators in order and returns the first error.
func Validate(value any, validators ...Validator) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}
