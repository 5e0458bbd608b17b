// Package validation holds the per-field form rules shared by the HTTP API
// and its clients. Rules are pure: they map a field value plus the rest of
// the form to an error message, or "" when the value is acceptable.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	emailPattern        = regexp.MustCompile(`^[^\s\p{Z}@]+@[^\s\p{Z}@]+\.[^\s\p{Z}@]+$`)
	urlPattern          = regexp.MustCompile(`^https?://.+\..+`)
	contactPhonePattern = regexp.MustCompile(`^[\d\s\-()\\+]{10,}$`)
	yearPattern         = regexp.MustCompile(`^\d{4}$`)
)

const minPhoneDigits = 10

// Errors maps a field name to its current error message.
type Errors map[string]string

// Set records msg for field, or clears the field when msg is empty.
func (e Errors) Set(field, msg string) {
	if msg == "" {
		delete(e, field)
		return
	}
	e[field] = msg
}

// Valid reports whether no field currently holds an error.
func (e Errors) Valid() bool {
	for _, msg := range e {
		if msg != "" {
			return false
		}
	}
	return true
}

// FormValid is the form-level validity flag: every required field is
// non-blank and no field holds an error.
func FormValid(values map[string]string, required []string, errs Errors) bool {
	for _, field := range required {
		if strings.TrimSpace(values[field]) == "" {
			return false
		}
	}
	return errs.Valid()
}

// textRule checks a required, trimmed text value with an optional minimum length.
func textRule(value, missing, tooShort string, minLen int) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return missing
	}
	if minLen > 0 && len([]rune(trimmed)) < minLen {
		return tooShort
	}
	return ""
}

// minLength renders the standard "must be at least N characters" message.
func minLength(label string, n int) string {
	return label + " must be at least " + strconv.Itoa(n) + " characters"
}

func validEmail(value string) bool {
	return emailPattern.MatchString(value)
}

func validURL(value string) bool {
	return urlPattern.MatchString(value)
}

func phoneDigits(value string) int {
	n := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// parseDate accepts a calendar date, interpreted in loc, or an RFC 3339 timestamp.
func parseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
