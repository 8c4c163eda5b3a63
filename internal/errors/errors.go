package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Config errors
	ErrConfigNotFound ErrorType = iota
	ErrConfigInvalid
	ErrConfigExists

	// Task set errors
	ErrInvalidTaskSet

	// Runtime errors
	ErrTaskFailed
	ErrSpawnFailed
	ErrBuildFailed
	ErrSessionLocked

	// Environment errors
	ErrEnvParseFailed
)

// String returns a short name for the error type
func (t ErrorType) String() string {
	switch t {
	case ErrConfigNotFound:
		return "config not found"
	case ErrConfigInvalid:
		return "config invalid"
	case ErrConfigExists:
		return "config exists"
	case ErrInvalidTaskSet:
		return "invalid task set"
	case ErrTaskFailed:
		return "task failed"
	case ErrSpawnFailed:
		return "spawn failed"
	case ErrBuildFailed:
		return "build failed"
	case ErrSessionLocked:
		return "session locked"
	case ErrEnvParseFailed:
		return "env parse failed"
	default:
		return "unknown"
	}
}

// Error represents a structured error with context and helpful messages
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]string
	Cause   error
	Fixes   []string
}

// Error implements the error interface. The cause is appended so wrapped
// errors stay readable when printed with %v.
func (e *Error) Error() string {
	if e.Message == "" {
		return "unknown error"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Format returns a formatted, human-readable error message with colors and context
func (e *Error) Format() string {
	var buf strings.Builder

	buf.WriteString(color.RedString("Error:"))
	buf.WriteString(" ")
	buf.WriteString(e.Message)
	buf.WriteString("\n")

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteString("\n")
		for _, k := range keys {
			buf.WriteString(fmt.Sprintf("  %s: %s\n", k, e.Context[k]))
		}
	}

	if e.Cause != nil {
		buf.WriteString("\n")
		buf.WriteString("Cause: ")
		buf.WriteString(e.Cause.Error())
		buf.WriteString("\n")
	}

	if len(e.Fixes) > 0 {
		buf.WriteString("\n")
		buf.WriteString(color.YellowString("How to fix:"))
		buf.WriteString("\n")
		for _, fix := range e.Fixes {
			buf.WriteString("  • ")
			buf.WriteString(fix)
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// New creates a new Error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]string),
		Fixes:   []string{},
	}
}

// WithContext adds context key-value pairs to the error
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause adds a cause error
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithFix adds a fix suggestion
func (e *Error) WithFix(fix string) *Error {
	e.Fixes = append(e.Fixes, fix)
	return e
}

// WithFixes adds multiple fix suggestions
func (e *Error) WithFixes(fixes ...string) *Error {
	e.Fixes = append(e.Fixes, fixes...)
	return e
}

// Is reports whether any error in err's chain is an *Error of the given type
func Is(err error, errType ErrorType) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}
