// Package validation collects field-level form errors. Services return an
// Errors value so handlers can report every invalid field at once.
package validation

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Errors maps a JSON field name to a human readable message.
type Errors map[string]string

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has an error.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Err returns nil when no field failed, so callers can `return errs.Err()`.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// As extracts an Errors value from err.
func As(err error) (Errors, bool) {
	var ve Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail reports whether s looks like an e-mail address.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Digits strips everything except decimal digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Phone digit count accepted for local (10, e.g. 0917...) and international
// (up to 13, e.g. +63917...) numbers.
const (
	MinPhoneDigits = 10
	MaxPhoneDigits = 13
)

var phoneChars = regexp.MustCompile(`^[0-9+\-() ]+$`)

// IsPhone reports whether s only uses phone punctuation and carries an
// acceptable number of digits.
func IsPhone(s string) bool {
	if !phoneChars.MatchString(s) {
		return false
	}
	n := len(Digits(s))
	return n >= MinPhoneDigits && n <= MaxPhoneDigits
}
