package store

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message
	Cause error   // The underlying error, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code,
// so errors.Is(err, store.ErrStorageFailure) matches every storage failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code and message around cause.
func WrapError(code RetCode, cause error, msg string) *Error {
	return &Error{
		Code:  code,
		Msg:   msg,
		Cause: cause,
	}
}

// Sentinels to compare against with errors.Is
var (
	ErrInvalidArgument = NewError(RetCInvalidArgument, "invalid argument")
	ErrStorageFailure  = NewError(RetCStorageFailure, "storage failure")
	ErrUseAfterClose   = NewError(RetCUseAfterClose, "store is closed")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: Operation executed successfully.
	RetCInvalidArgument                // 1: Empty key, missing value or unusable identifier. Nothing was queued.
	RetCStorageFailure                 // 2: The database or the codec failed, see Cause.
	RetCUseAfterClose                  // 3: The store was closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCStorageFailure:
		return "StorageFailure"
	case RetCUseAfterClose:
		return "UseAfterClose"
	default:
		return "Unknown"
	}
}
