package soapclient

// ClientIface defines the interface for a SOAP Client. It makes mocking the client easier in your tests
type ClientIface interface {
	Call(operation string, args interface{}) (interface{}, error)
	Trace() string
	ListOperations() []string
	Options() Options
}
