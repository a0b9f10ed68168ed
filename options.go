package soapclient

import (
	"crypto/tls"
	"time"
)

// Options holds the engine options of a client, keyed by option name.
// A client never mutates the map it was given; see Client.Options.
type Options map[string]interface{}

// Option names understood by the default engine.
const (
	OptSOAPVersion       = "soap_version"
	OptFeatures          = "features"
	OptEncoding          = "encoding"
	OptStyle             = "style"
	OptTrace             = "trace"
	OptLocation          = "location"
	OptURI               = "uri"
	OptLogin             = "login"
	OptPassword          = "password"
	OptConnectionTimeout = "connection_timeout"
	OptUserAgent         = "user_agent"
	OptCertificate       = "certificate"
	OptUsername          = "username"
	OptSecret            = "secret"
)

// SOAPVersion selects the envelope namespace and content type.
type SOAPVersion int

const (
	SOAP11 SOAPVersion = 1
	SOAP12 SOAPVersion = 2
)

// Feature is a bit set of decoding features.
type Feature int

const (
	// FeatureSingleElementArrays keeps elements declared with maxOccurs > 1
	// as slices even when the response carries a single occurrence.
	FeatureSingleElementArrays Feature = 1 << iota
)

// Encoding is the body encoding mode.
type Encoding int

const (
	Literal Encoding = iota
	Encoded
)

// Style is the call style of the body.
type Style int

const (
	RPC Style = iota
	Document
)

// baseOptions is the default option set before any SetDebug call.
func baseOptions() Options {
	return Options{
		OptSOAPVersion: SOAP12,
		OptFeatures:    FeatureSingleElementArrays,
		OptEncoding:    Literal,
		OptStyle:       RPC,
	}
}

// merge returns a new map holding defaults overlaid by overrides.
// Neither input is modified.
func merge(defaults, overrides Options) Options {
	out := make(Options, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func (o Options) copy() Options {
	return merge(o, nil)
}

func (o Options) str(key string) string {
	s, _ := o[key].(string)
	return s
}

func (o Options) flag(key string) bool {
	b, _ := o[key].(bool)
	return b
}

func (o Options) soapVersion() SOAPVersion {
	switch v := o[OptSOAPVersion].(type) {
	case SOAPVersion:
		return v
	case int:
		return SOAPVersion(v)
	}
	return SOAP12
}

func (o Options) features() Feature {
	switch v := o[OptFeatures].(type) {
	case Feature:
		return v
	case int:
		return Feature(v)
	}
	return 0
}

func (o Options) encoding() Encoding {
	switch v := o[OptEncoding].(type) {
	case Encoding:
		return v
	case int:
		return Encoding(v)
	}
	return Literal
}

func (o Options) style() Style {
	switch v := o[OptStyle].(type) {
	case Style:
		return v
	case int:
		return Style(v)
	}
	return RPC
}

func (o Options) timeout() time.Duration {
	switch v := o[OptConnectionTimeout].(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	}
	return 0
}

func (o Options) certificate() (tls.Certificate, bool) {
	switch v := o[OptCertificate].(type) {
	case tls.Certificate:
		return v, len(v.Certificate) > 0
	case *tls.Certificate:
		if v != nil {
			return *v, len(v.Certificate) > 0
		}
	}
	return tls.Certificate{}, false
}
