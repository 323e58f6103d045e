// Package errors provides the coded error type used across solrpi.
//
// Every failure that can reach the outermost request boundary carries a
// numeric code so it can be logged and matched without string comparison.
// Codes below 1400000000 are the historic codes used by the search plugins;
// the 14xxxxxxxx range is used for backend, template and settings failures.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind groups errors by the layer that produced them.
type Kind string

const (
	KindConnection Kind = "connection"
	KindBackend    Kind = "backend"
	KindContract   Kind = "contract"
	KindConfig     Kind = "config"
	KindTemplate   Kind = "template"
)

// Reserved error codes.
const (
	CodeEmptyQuery             = 1300893669
	CodeInvalidDate            = 1300893670
	CodeViewHelperProvider     = 1310387296
	CodeDetectorResult         = 1359156111
	CodeDetectorCapability     = 1359156192
	CodeNoConnection           = 1400000001
	CodeConnectionConstruction = 1400000002
	CodeBackendRequest         = 1400000101
	CodeBackendStatus          = 1400000102
	CodeBackendResponse        = 1400000103
	CodeBackendCircuitOpen     = 1400000104
	CodeTemplateLoad           = 1400000201
	CodeTemplateRender         = 1400000202
	CodeInvalidSettings        = 1400000301
)

// Error is a coded error.
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code so errors.Is works against the
// sentinel-style values returned by New.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a coded error.
func New(kind Kind, code int, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Connection creates an error raised while looking up or opening a backend
// connection.
func Connection(code int, message string, cause error) *Error {
	return New(KindConnection, code, message, cause)
}

// Backend creates an error raised while executing a backend request.
func Backend(code int, message string, cause error) *Error {
	return New(KindBackend, code, message, cause)
}

// Contract creates an error for an extension that does not honour its
// interface contract. These are configuration errors and always fatal for
// the request.
func Contract(code int, message string) *Error {
	return New(KindContract, code, message, nil)
}

// Config creates a settings error.
func Config(message string, cause error) *Error {
	return New(KindConfig, CodeInvalidSettings, message, cause)
}

// Template creates a templating error.
func Template(code int, message string, cause error) *Error {
	return New(KindTemplate, code, message, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or 0.
func CodeOf(err error) int {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is, As and Join re-export the standard library helpers so callers that
// import this package under the name errors keep them at hand.
var (
	Is   = stderrors.Is
	As   = stderrors.As
	Join = stderrors.Join
)
