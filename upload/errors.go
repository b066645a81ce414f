package upload

import (
	"errors"
	"fmt"
)

// Code identifies the category of an upload failure.
type Code string

const (
	// CodeInvalidMimeType indicates the declared MIME type is not allowed.
	CodeInvalidMimeType Code = "INVALID_MIME_TYPE"

	// CodeInvalidExtension indicates the file extension is not allowed.
	CodeInvalidExtension Code = "INVALID_EXTENSION"

	// CodeFileTooLarge indicates the declared size exceeds the configured limit.
	CodeFileTooLarge Code = "FILE_TOO_LARGE"

	// CodeMaxFilesExceeded indicates a batch holds more files than allowed.
	CodeMaxFilesExceeded Code = "MAX_FILES_EXCEEDED"

	// CodeConfiguration indicates the module was started with an invalid configuration.
	CodeConfiguration Code = "CONFIGURATION_ERROR"

	// CodeProviderNotImplemented indicates an unknown storage provider.
	CodeProviderNotImplemented Code = "PROVIDER_NOT_IMPLEMENTED"

	// CodeUploadFailed indicates the backend write failed after all attempts.
	CodeUploadFailed Code = "UPLOAD_FAILED"

	// CodeTimeout indicates a single attempt exceeded its deadline.
	CodeTimeout Code = "TIMEOUT"

	// CodeUnknown covers every other failure.
	CodeUnknown Code = "UNKNOWN"
)

// Error is the only error shape that leaves this module.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail returns e after recording key=value in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap builds an Error carrying err as its cause.
func Wrap(code Code, err error, msg string) *Error {
	e := &Error{Code: code, Message: msg, Err: err}
	if err != nil {
		e.Message = fmt.Sprintf("%s: %v", msg, err)
		e.WithDetail("cause", err.Error())
	}
	return e
}

// AsError returns err as an *Error, wrapping it as UNKNOWN when it is not one.
func AsError(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(CodeUnknown, err, msg)
}

// CodeOf returns the code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether any Error in the chain of err carries code.
func IsCode(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}
