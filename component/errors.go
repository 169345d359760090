package component

import (
	"errors"
	"fmt"
)

// ErrorCode classifies island pipeline failures.
type ErrorCode string

const (
	// ErrorCodeConfig covers author/configuration mistakes: unknown renderer
	// extension, malformed island meta, unrecognized load condition.
	ErrorCodeConfig ErrorCode = "config"
	// ErrorCodeInternal means a marker references an id the registry does not
	// know about. It always indicates a registry lifecycle bug.
	ErrorCodeInternal ErrorCode = "internal"
	// ErrorCodeSerialization is raised when a client-needed prop cannot be
	// turned into script content.
	ErrorCodeSerialization ErrorCode = "serialization"
	// ErrorCodeRender wraps a renderer's SSR failure.
	ErrorCodeRender ErrorCode = "render"
)

// Error is the error type returned by the island pipeline.
type Error struct {
	Code    ErrorCode
	Message string
	// File is the input path or component path the error is about.
	File string
	// Value is the offending token, extension, prop name or id.
	Value   string
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("slinkity %s error: %s", e.Code, e.Message)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.File != "" {
		msg += " in " + e.File
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap supports errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

func configError(file, value, format string, args ...any) *Error {
	return &Error{Code: ErrorCodeConfig, Message: fmt.Sprintf(format, args...), File: file, Value: value}
}

func internalError(file, id, format string, args ...any) *Error {
	return &Error{Code: ErrorCodeInternal, Message: fmt.Sprintf(format, args...), File: file, Value: id}
}

// RenderError wraps a renderer failure for the component at path.
func RenderError(path string, err error) *Error {
	return &Error{Code: ErrorCodeRender, Message: "server render failed", File: path, Wrapped: err}
}

// InternalError reports a marker/registry desync discovered outside the registry.
func InternalError(file, id, format string, args ...any) *Error {
	return internalError(file, id, format, args...)
}

// HasCode reports whether err wraps an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsInternal reports whether err is a registry/marker desync error.
func IsInternal(err error) bool { return HasCode(err, ErrorCodeInternal) }

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return HasCode(err, ErrorCodeConfig) }
