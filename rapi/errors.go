package rapi

import (
	"fmt"
	"reflect"
	"strings"
)

// TransportError reports that a control request could not be completed:
// the connection failed or the response was cut short.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rapi: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// EncodeError reports a success value that cannot be JSON encoded.
// Nothing was sent when it is returned.
type EncodeError struct {
	RequestID string
	Err       error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("rapi: encoding response for %s: %v", e.RequestID, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) ErrorType() string { return "Runtime.MarshalError" }

// ErrorType returns the classification label reported as errorType.
// Errors may choose their label with an ErrorType() string method;
// otherwise the Go type name is used.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	if typed, ok := err.(interface{ ErrorType() string }); ok {
		return typed.ErrorType()
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return strings.TrimPrefix(t.String(), "*")
}
