package soapclient

// Engine is the SOAP engine a Client fronts. It owns the WSDL, the envelope
// encoding and the transport. The default implementation is returned by
// OpenHTTPEngine; tests may provide their own.
type Engine interface {
	// Call invokes the named operation with an ordered argument list. A SOAP
	// fault is reported as a *Fault error.
	Call(operation string, args []interface{}) (interface{}, error)
	// LastRequest returns the raw envelope sent by the most recent call.
	LastRequest() []byte
	// LastResponse returns the raw body received by the most recent call.
	LastResponse() []byte
	// Operations lists the operations declared by the WSDL.
	Operations() []string
}

// Opener opens an Engine bound to a WSDL location with the given options.
type Opener func(wsdl string, opts Options) (Engine, error)

var _ Opener = OpenHTTPEngine
