package saisine

import (
	"fmt"
)

// ErrorKind represents the categories of extraction failures surfaced to callers
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindContentUnavailable
	KindUnsupportedFormat
	KindFileTooLarge
	KindInvalidDocument
)

// String returns a string representation of the ErrorKind
func (k ErrorKind) String() string {
	switch k {
	case KindContentUnavailable:
		return "CONTENT_UNAVAILABLE"
	case KindUnsupportedFormat:
		return "UNSUPPORTED_FORMAT"
	case KindFileTooLarge:
		return "FILE_TOO_LARGE"
	case KindInvalidDocument:
		return "INVALID_DOCUMENT"
	default:
		return "UNKNOWN"
	}
}

// Degradable reports whether the caller may fall back to a plain-text extraction
func (k ErrorKind) Degradable() bool {
	return k == KindContentUnavailable
}

// Error is an extraction error with its kind and the document it concerns
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Err     error     `json:"-"`
}

var (
	// ErrContentUnavailable matches any error whose kind is KindContentUnavailable
	ErrContentUnavailable = &Error{Kind: KindContentUnavailable}
	// ErrUnsupportedFormat matches any error whose kind is KindUnsupportedFormat
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
)

// NewError creates an Error of the given kind
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error of the given kind around a lower-level cause
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithPath returns a copy of the error annotated with a document path
func (e *Error) WithPath(path string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind so the package sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
