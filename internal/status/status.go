package status

import (
	"errors"
	"fmt"
)

// Code is a driver result code. Traced entry points return it unchanged;
// management APIs wrap it in *Error.
type Code uint32

const (
	Success Code = 0
	// NotReady is returned by synchronisation queries that have not completed.
	NotReady Code = 1

	ErrorUninitialized      Code = 0x78000001
	ErrorUnsupportedFeature Code = 0x78000003
	ErrorInvalidArgument    Code = 0x78000004
	ErrorInvalidNullHandle  Code = 0x78000005
	ErrorObjectInUse        Code = 0x7800000b
	ErrorOutOfHostMemory    Code = 0x70000002
	ErrorInvalidNullPointer Code = 0x78000007
	ErrorNotAvailable       Code = 0x70010003
	ErrorUnknown            Code = 0x7ffffffe
)

var codeNames = map[Code]string{
	Success:                 "SUCCESS",
	NotReady:                "NOT_READY",
	ErrorUninitialized:      "ERROR_UNINITIALIZED",
	ErrorUnsupportedFeature: "ERROR_UNSUPPORTED_FEATURE",
	ErrorInvalidArgument:    "ERROR_INVALID_ARGUMENT",
	ErrorInvalidNullHandle:  "ERROR_INVALID_NULL_HANDLE",
	ErrorObjectInUse:        "ERROR_HANDLE_OBJECT_IN_USE",
	ErrorOutOfHostMemory:    "ERROR_OUT_OF_HOST_MEMORY",
	ErrorInvalidNullPointer: "ERROR_INVALID_NULL_POINTER",
	ErrorNotAvailable:       "ERROR_NOT_AVAILABLE",
	ErrorUnknown:            "ERROR_UNKNOWN",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("RESULT(0x%08x)", uint32(c))
}

// OK reports whether c is Success.
func (c Code) OK() bool { return c == Success }

// Error carries a Code through ordinary Go error plumbing.
type Error struct {
	Code Code
	Op   string // operation that failed, e.g. "tracer.enable"
	Err  error  // optional cause
}

// New returns an *Error for op with the given code.
func New(op string, code Code) *Error {
	return &Error{Code: code, Op: op}
}

// Wrap returns an *Error for op with the given code and cause.
func Wrap(op string, code Code, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, status.InUse) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Code == e.Code
}

// Sentinels usable with errors.Is.
var (
	InUse           = &Error{Code: ErrorObjectInUse}
	Uninitialized   = &Error{Code: ErrorUninitialized}
	InvalidArgument = &Error{Code: ErrorInvalidArgument}
	NullHandle      = &Error{Code: ErrorInvalidNullHandle}
)

// CodeOf extracts the result code from err. nil maps to Success and
// foreign errors to ErrorUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorUnknown
}
