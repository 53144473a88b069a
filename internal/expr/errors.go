package expr

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes evaluation and decoding failures.
type ErrorCode string

const (
	// CodeUnknownExpression indicates an unrecognized expression tag.
	CodeUnknownExpression ErrorCode = "UNKNOWN_EXPRESSION_TYPE"

	// CodeUnknownCondition indicates an unrecognized condition tag.
	CodeUnknownCondition ErrorCode = "UNKNOWN_CONDITION_TYPE"

	// CodeUnknownAction indicates an unrecognized action tag.
	// Declared here so the whole taxonomy lives in one place; raised by
	// the rules package.
	CodeUnknownAction ErrorCode = "UNKNOWN_ACTION_TYPE"

	// CodeDivisionByZero indicates a divide whose denominator evaluated
	// to exactly 0 (no epsilon).
	CodeDivisionByZero ErrorCode = "DIVISION_BY_ZERO"

	// CodeMissingField indicates a malformed tree missing a required key.
	CodeMissingField ErrorCode = "MISSING_REQUIRED_FIELD"
)

// Error is a deterministic, data-validation-class evaluation error.
//
// These are never transient or retryable: malformed rule data is a
// caller/configuration bug, not a runtime fault to route around. Any
// Error raised during a rule pass aborts the entire pass (fail-fast).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Detail names the offending tag, operator, or field when known.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code, message, and detail.
func NewError(code ErrorCode, message, detail string) *Error {
	return &Error{Code: code, Message: message, Detail: detail}
}

// IsDivisionByZero reports whether err is (or wraps) a DivisionByZero error.
func IsDivisionByZero(err error) bool {
	return hasCode(err, CodeDivisionByZero)
}

// IsUnknownExpression reports whether err is an UnknownExpressionType error.
func IsUnknownExpression(err error) bool {
	return hasCode(err, CodeUnknownExpression)
}

// IsUnknownCondition reports whether err is an UnknownConditionType error.
func IsUnknownCondition(err error) bool {
	return hasCode(err, CodeUnknownCondition)
}

// IsUnknownAction reports whether err is an UnknownActionType error.
func IsUnknownAction(err error) bool {
	return hasCode(err, CodeUnknownAction)
}

// IsMissingField reports whether err is a MissingRequiredField error.
func IsMissingField(err error) bool {
	return hasCode(err, CodeMissingField)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
