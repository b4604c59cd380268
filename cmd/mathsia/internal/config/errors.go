package config

import (
	"fmt"
	"strings"
)

// ErrorCode classifies a configuration validation failure.
type ErrorCode string

const (
	// MissingRequiredField indicates a required key with no default was absent.
	MissingRequiredField ErrorCode = "missing_required_field"
	// InvalidEnumValue indicates a value outside the field's allowed set.
	InvalidEnumValue ErrorCode = "invalid_enum_value"
	// InvalidNumericValue indicates a non-parseable or non-positive number.
	InvalidNumericValue ErrorCode = "invalid_numeric_value"
	// InvalidURI indicates a malformed connection URI.
	InvalidURI ErrorCode = "invalid_uri"
)

// FieldError describes a single invalid configuration field.
type FieldError struct {
	Key     string
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Key, e.Message, e.Code)
}

// ValidationErrors aggregates every invalid field found during a load.
// Validation never stops at the first failure: the operator gets the full
// list in one pass and must fix the source and restart.
type ValidationErrors []FieldError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "configuration is valid"
	}
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d invalid configuration field(s): %s", len(v), strings.Join(msgs, "; "))
}

// Has reports whether the given key failed validation with the given code.
func (v ValidationErrors) Has(key string, code ErrorCode) bool {
	for _, e := range v {
		if e.Key == key && e.Code == code {
			return true
		}
	}
	return false
}
