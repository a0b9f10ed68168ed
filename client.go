package soapclient

import (
	"errors"
	"reflect"
	"time"

	"github.com/rs/zerolog"
)

// TraceDisabled is what Client.Trace returns when the client was built
// without the trace option.
const TraceDisabled = "Trace mode is not activated"

// Client fronts a SOAP engine bound to one WSDL. The options, the debug flag
// and the debug output are fixed when the client is built. A Client keeps the
// last exchange for Trace and is not meant for concurrent use.
type Client struct {
	wsdl   string
	opts   Options
	engine Engine
	debug  bool
	log    zerolog.Logger
}

// New builds a client for the WSDL at wsdl. extra is merged over the default
// options, extra winning on collision. The WSDL is fetched on every call to
// New. A WSDL that cannot be fetched or parsed yields a *ConnectionError.
func New(wsdl string, extra Options) (*Client, error) {
	return NewWithOpener(wsdl, extra, OpenHTTPEngine)
}

// NewWithOpener is New with a custom engine.
func NewWithOpener(wsdl string, extra Options, open Opener) (*Client, error) {
	enabled, out, defaults := process.snapshot()
	opts := merge(defaults, extra)

	engine, err := open(wsdl, opts.copy())
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return nil, connErr
		}
		return nil, &ConnectionError{WSDL: wsdl, Err: err}
	}

	c := &Client{
		wsdl:   wsdl,
		opts:   opts,
		engine: engine,
		debug:  enabled,
		log:    zerolog.Nop(),
	}
	if enabled {
		output := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    true,
			TimeFormat: time.RFC3339,
		}
		c.log = zerolog.New(output).With().Timestamp().Str("wsdl", wsdl).Logger()
	}

	return c, nil
}

// Call invokes operation. args is either an ordered list (any slice or
// array other than []byte) or a single value, which is sent as a one-element
// list; nil sends no arguments. The engine's result is returned unchanged. Every
// failure is returned as a *ServiceError, wrapping the *Fault when the
// service answered with one.
func (c *Client) Call(operation string, args interface{}) (interface{}, error) {
	list := argumentList(args)

	if c.debug {
		c.log.Debug().Str("operation", operation).Interface("args", list).Msg("calling service")
	}

	result, err := c.engine.Call(operation, list)
	if err != nil {
		if c.debug {
			if f, ok := AsFault(err); ok {
				c.log.Error().
					Str("code", f.Code).
					Str("reason", f.String).
					Str("stack", string(f.Stack)).
					Msg("soap fault")
				c.log.Debug().Msg(c.Trace())
			} else {
				c.log.Error().Err(err).Str("operation", operation).Msg("service call failed")
			}
		}
		return nil, newServiceError(operation, err)
	}

	if c.debug {
		c.log.Debug().Interface("result", result).Msg("service returned")
		c.log.Debug().Msg(c.Trace())
	}

	return result, nil
}

// Trace returns the last request and response of this client, indented. It
// returns TraceDisabled unless debug mode was on when the client was built,
// whatever the trace option says.
func (c *Client) Trace() string {
	if !c.debug {
		return TraceDisabled
	}

	return "Last Request:\n" + FormatXML(c.engine.LastRequest()) +
		"\nLast Response:\n" + FormatXML(c.engine.LastResponse())
}

// ListOperations lists all supported operations by the service
func (c *Client) ListOperations() []string {
	return c.engine.Operations()
}

// Options returns a copy of the options the client was built with.
func (c *Client) Options() Options {
	return c.opts.copy()
}

// WSDL returns the WSDL location the client was built with.
func (c *Client) WSDL() string {
	return c.wsdl
}

func argumentList(args interface{}) []interface{} {
	switch v := args.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		return v
	case []byte:
		return []interface{}{v}
	}

	rv := reflect.ValueOf(args)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{args}
	}

	list := make([]interface{}, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list
}

var _ ClientIface = &Client{}
