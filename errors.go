package soapclient

import (
	"errors"
	"fmt"
)

// ConnectionError is returned by New when the WSDL cannot be fetched or parsed.
type ConnectionError struct {
	WSDL string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("soapclient: cannot load WSDL %s: %v", e.WSDL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ServiceError is returned by Client.Call for every failed call. When the
// service answered with a SOAP fault, Code and Message are copied from it and
// Err is the *Fault; otherwise Code is empty and Err is the underlying error.
type ServiceError struct {
	Operation string
	Code      string
	Message   string
	Err       error
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("soapclient: %s: [%s] %s", e.Operation, e.Code, e.Message)
	}
	return fmt.Sprintf("soapclient: %s: %s", e.Operation, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Fault is a SOAP fault reported by the service.
type Fault struct {
	// Code is faultcode (SOAP 1.1) or Code/Value (SOAP 1.2).
	Code string
	// String is faultstring (SOAP 1.1) or Reason/Text (SOAP 1.2).
	String string
	Actor  string
	// Detail is the raw inner XML of the detail element.
	Detail string
	// Stack is the goroutine stack captured when the fault was decoded.
	Stack []byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault: [%s] %s", f.Code, f.String)
}

// IsFault returns true if err is, or wraps, a SOAP fault.
func IsFault(err error) bool {
	_, ok := AsFault(err)
	return ok
}

// AsFault returns the SOAP fault wrapped by err, if any.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func newServiceError(op string, err error) *ServiceError {
	if f, ok := AsFault(err); ok {
		return &ServiceError{Operation: op, Code: f.Code, Message: f.String, Err: err}
	}
	return &ServiceError{Operation: op, Message: err.Error(), Err: err}
}
