// Package validate holds the field rules shared by account and registry
// request bodies.
package validate

import (
	"fmt"
	"net/mail"
	"unicode"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
)

// Errors collects per-field messages
type Errors map[string]string

// Check records msg for field when msg is non-empty and the field has no
// earlier message
func (e Errors) Check(field, msg string) {
	if msg == "" {
		return
	}
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

// Err returns a validation error, or nil when nothing was recorded
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return apperr.Invalid(e)
}

func Username(s string) string {
	if len(s) < 5 || len(s) > 50 {
		return "username must be 5-50 characters"
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "username may only contain letters and digits"
		}
	}
	return ""
}

func Password(s string) string {
	if len(s) < 5 || len(s) > 50 {
		return "password must be 5-50 characters"
	}
	return ""
}

func Phone(s string) string {
	if len(s) < 5 || len(s) > 12 {
		return "phone must be 5-12 digits"
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "phone may only contain digits"
		}
	}
	return ""
}

func Fullname(s string) string {
	if s == "" || len(s) > 255 {
		return "fullname is required"
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != ' ' {
			return "fullname may not contain digits or special characters"
		}
	}
	return ""
}

// StudentID requires exactly n digits
func StudentID(s string, n int) string {
	if len(s) != n {
		return fmt.Sprintf("student_id must be %d digits", n)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Sprintf("student_id must be %d digits", n)
		}
	}
	return ""
}

func Email(s string) string {
	if _, err := mail.ParseAddress(s); err != nil {
		return "email is invalid"
	}
	return ""
}

func NonNegative(name string, v float64) string {
	if v < 0 {
		return name + " must not be negative"
	}
	return ""
}
