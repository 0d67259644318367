// Package kernelerr provides the standardized error type used across the
// heap subsystem: bootstrap failures and allocator exhaustion (through
// kernel.Heap.AllocOrError) report through Error so callers can switch on
// Code instead of matching strings. The debug-build consistency checks in
// package allocator do not use it; they panic with a plain message.
package kernelerr

import (
	"fmt"
	"runtime"
)

// Code identifies the category of failure. New codes are additive; callers
// should not assume this is exhaustive.
type Code string

const (
	CodeOutOfMemory           Code = "OUT_OF_MEMORY"
	CodeFrameAllocationFailed Code = "FRAME_ALLOCATION_FAILED"
	CodePageMappingFailed     Code = "PAGE_MAPPING_FAILED"
	CodeDoubleFree            Code = "DOUBLE_FREE"
	CodeInvalidPointer        Code = "INVALID_POINTER"
	CodeRegionCorrupt         Code = "REGION_CORRUPT"
)

// Error is the standard error shape for the heap subsystem.
type Error struct {
	Code    Code
	Message string
	Context map[string]interface{}
	Caller  string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s (caller: %s): %v", e.Code, e.Message, e.Caller, e.cause)
	}

	return fmt.Sprintf("[%s] %s (caller: %s)", e.Code, e.Message, e.Caller)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds an Error, capturing the caller of New (not of the constructor
// that calls New) for diagnostics.
func New(code Code, message string, context map[string]interface{}) *Error {
	return newSkip(code, message, context, nil, 2)
}

// Wrap builds an Error around an existing cause.
func Wrap(code Code, message string, cause error, context map[string]interface{}) *Error {
	return newSkip(code, message, context, cause, 2)
}

func newSkip(code Code, message string, context map[string]interface{}, cause error, skip int) *Error {
	pc, _, _, ok := runtime.Caller(skip)

	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &Error{
		Code:    code,
		Message: message,
		Context: context,
		Caller:  caller,
		cause:   cause,
	}
}

// OutOfMemory reports that no free region could satisfy an allocation.
func OutOfMemory(size, align uintptr) *Error {
	return newSkip(CodeOutOfMemory, fmt.Sprintf("no free region satisfies size=%d align=%d", size, align),
		map[string]interface{}{"size": size, "align": align}, nil, 2)
}

// FrameAllocationFailed reports that the frame allocator ran out of
// physical frames while bootstrapping the heap.
func FrameAllocationFailed(page uintptr) *Error {
	return newSkip(CodeFrameAllocationFailed, fmt.Sprintf("no physical frame available for page %#x", page),
		map[string]interface{}{"page": page}, nil, 2)
}

// PageMappingFailed wraps an underlying mapper error encountered while
// bootstrapping the heap.
func PageMappingFailed(page uintptr, cause error) *Error {
	return newSkip(CodePageMappingFailed, fmt.Sprintf("failed to map page %#x", page),
		map[string]interface{}{"page": page}, cause, 2)
}
