package mediation

import "fmt"

// ErrorCode is the normalized error category reported to the framework
type ErrorCode string

const (
	ErrorCodeNoFill               ErrorCode = "NO_FILL"
	ErrorCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrorCodeServerError          ErrorCode = "SERVER_ERROR"
	ErrorCodeNoConnection         ErrorCode = "NO_CONNECTION"
	ErrorCodeUnspecified          ErrorCode = "UNSPECIFIED"
	ErrorCodeAdDisplayFailed      ErrorCode = "AD_DISPLAY_FAILED"
)

var errorMessages = map[ErrorCode]string{
	ErrorCodeNoFill:               "no fill",
	ErrorCodeInvalidConfiguration: "invalid configuration",
	ErrorCodeServerError:          "server error",
	ErrorCodeNoConnection:         "no connection",
	ErrorCodeUnspecified:          "unspecified error",
	ErrorCodeAdDisplayFailed:      "ad display failed",
}

// AdapterError is the error value passed to failure callbacks
type AdapterError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// NewAdapterError creates an error with the code's default message
func NewAdapterError(code ErrorCode, cause error) *AdapterError {
	msg, ok := errorMessages[code]
	if !ok {
		msg = errorMessages[ErrorCodeUnspecified]
	}
	return &AdapterError{Code: code, Message: msg, Cause: cause}
}

// ErrAdDisplayFailed is reported when an ad cannot be shown
func ErrAdDisplayFailed() *AdapterError {
	return NewAdapterError(ErrorCodeAdDisplayFailed, nil)
}
