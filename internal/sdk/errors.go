package sdk

import "fmt"

// Network status codes carried by LoadError
const (
	CodeNoFill         = 204
	CodeNotFound       = 404
	CodeInternalServer = 500
)

// LoadError is the structured failure reported through OnFailedToLoad.
// A zero Code means the network gave no status, typically a transport failure.
type LoadError struct {
	Code    int
	Message string
}

// Error renders the network's "<code>: <message>" wire shape
func (e *LoadError) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// NewLoadError creates a structured load error
func NewLoadError(code int, message string) *LoadError {
	return &LoadError{Code: code, Message: message}
}
