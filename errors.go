package stix2

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a construction-time schema violation.
//
// Every failure mode of the construction protocol maps to one code:
//   - Type mismatch: supplied "type" disagrees with the schema's type tag
//   - Constant mismatch: a fixed-value field (e.g. bundle spec_version) was
//     supplied with a different value
//   - Missing required field: first absent required field, by declared order
//   - Unexpected fields: supplied fields not in the schema; all offenders
//     are listed together
//   - Immutable: attempt to set a field after construction
//
// Identifier-prefix disagreement is reported as *ident.PrefixError by the
// identifier utility and passed through unchanged.
type ValidationError struct {
	// Code identifies the violation category.
	Code ValidationErrorCode

	// Type is the record type tag being constructed.
	Type string

	// Field is the offending field (missing-field and constant-mismatch).
	Field string

	// Fields lists all offending fields (unexpected-fields).
	Fields []string

	// Expected is the value the schema demanded (mismatch codes).
	Expected any
}

// ValidationErrorCode categorizes validation errors.
type ValidationErrorCode string

const (
	// ErrCodeTypeMismatch indicates the supplied type disagrees with the
	// record's fixed type tag.
	ErrCodeTypeMismatch ValidationErrorCode = "TYPE_MISMATCH"

	// ErrCodeConstMismatch indicates a fixed-value field was supplied with a
	// value other than the one the schema demands.
	ErrCodeConstMismatch ValidationErrorCode = "CONST_MISMATCH"

	// ErrCodeMissingField indicates a required field was absent.
	ErrCodeMissingField ValidationErrorCode = "MISSING_REQUIRED_FIELD"

	// ErrCodeUnexpectedFields indicates supplied fields outside the schema.
	ErrCodeUnexpectedFields ValidationErrorCode = "UNEXPECTED_FIELDS"

	// ErrCodeImmutable indicates a write to a constructed record.
	ErrCodeImmutable ValidationErrorCode = "IMMUTABLE"

	// ErrCodeInvalidValue indicates a supplied value could not be coerced to
	// the shape the schema expects.
	ErrCodeInvalidValue ValidationErrorCode = "INVALID_VALUE"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch e.Code {
	case ErrCodeTypeMismatch:
		return fmt.Sprintf("%s must have type=%q", e.Type, e.Expected)
	case ErrCodeConstMismatch:
		return fmt.Sprintf("%s must have %s=%q", e.Type, e.Field, e.Expected)
	case ErrCodeMissingField:
		return fmt.Sprintf("missing required field for %s: %q", e.Type, e.Field)
	case ErrCodeUnexpectedFields:
		return fmt.Sprintf("unexpected fields for %s: [%s]", e.Type, strings.Join(e.Fields, ", "))
	case ErrCodeImmutable:
		return "cannot modify properties after creation"
	case ErrCodeInvalidValue:
		return fmt.Sprintf("invalid value for %s field %q", e.Type, e.Field)
	default:
		return fmt.Sprintf("%s: validation failed for %s", e.Code, e.Type)
	}
}

// IsTypeMismatch reports whether err is a type-mismatch validation error.
// Uses errors.As to handle wrapped errors.
func IsTypeMismatch(err error) bool {
	return hasCode(err, ErrCodeTypeMismatch)
}

// IsMissingField reports whether err is a missing-required-field error.
func IsMissingField(err error) bool {
	return hasCode(err, ErrCodeMissingField)
}

// IsUnexpectedFields reports whether err is an unexpected-fields error.
func IsUnexpectedFields(err error) bool {
	return hasCode(err, ErrCodeUnexpectedFields)
}

// IsImmutable reports whether err is an immutability violation.
func IsImmutable(err error) bool {
	return hasCode(err, ErrCodeImmutable)
}

func hasCode(err error, code ValidationErrorCode) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

func newImmutableError() *ValidationError {
	return &ValidationError{Code: ErrCodeImmutable}
}
