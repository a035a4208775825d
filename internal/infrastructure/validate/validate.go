// Package validate builds small composable checks for user supplied strings.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validator returns an error describing why value is unacceptable.
type Validator func(value string) error

// Field runs validators in order and prefixes the first failure with name.
func Field(name string, validators ...Validator) Validator {
	return func(value string) error {
		for _, v := range validators {
			err := v(value)
			if err == nil {
				continue
			}
			if strings.HasPrefix(err.Error(), name+":") {
				return err
			}
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// Optional skips the wrapped validators for blank values.
func Optional(validators ...Validator) Validator {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return nil
		}
		for _, v := range validators {
			if err := v(value); err != nil {
				return err
			}
		}
		return nil
	}
}

func Required() Validator {
	return func(v string) error {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("is required")
		}
		return nil
	}
}

// MaxLength counts runes, not bytes.
func MaxLength(max int) Validator {
	return func(v string) error {
		if utf8.RuneCountInString(v) > max {
			return fmt.Errorf("must be at most %d characters", max)
		}
		return nil
	}
}

// Matches compiles pattern once. message replaces the generic failure text.
func Matches(pattern, message string) Validator {
	re := regexp.MustCompile(pattern)
	if message == "" {
		message = "has an invalid format"
	}
	return func(v string) error {
		if !re.MatchString(v) {
			return fmt.Errorf("%s", message)
		}
		return nil
	}
}

// Printable rejects control characters. Newlines and tabs pass when
// multiline is set.
func Printable(multiline bool) Validator {
	return func(v string) error {
		for _, r := range v {
			if multiline && (r == '\n' || r == '\r' || r == '\t') {
				continue
			}
			if unicode.IsControl(r) {
				return fmt.Errorf("contains control characters")
			}
		}
		return nil
	}
}

func OneOf(allowed ...string) Validator {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(v string) error {
		if _, ok := set[v]; !ok {
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}
