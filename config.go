package soapclient

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileOptions struct {
	SOAPVersion         string `toml:"soap_version"`
	SingleElementArrays bool   `toml:"single_element_arrays"`
	Encoding            string `toml:"encoding"`
	Style               string `toml:"style"`
	Trace               bool   `toml:"trace"`
	Location            string `toml:"location"`
	URI                 string `toml:"uri"`
	Login               string `toml:"login"`
	Password            string `toml:"password"`
	ConnectionTimeout   string `toml:"connection_timeout"`
	UserAgent           string `toml:"user_agent"`
	Username            string `toml:"username"`
	Secret              string `toml:"secret"`
	CertFile            string `toml:"cert_file"`
	KeyFile             string `toml:"key_file"`
	ValidateSignature   bool   `toml:"validate_signature"`
}

// LoadOptions reads client options from a TOML file. Only the keys present in
// the file are set, so the result can be passed to New as overrides.
func LoadOptions(path string) (Options, error) {
	var raw fileOptions
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load soap options: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("load soap options: unknown key %q", undecoded[0].String())
	}

	opts := Options{}

	if meta.IsDefined("soap_version") {
		switch strings.TrimSpace(raw.SOAPVersion) {
		case "1.1":
			opts[OptSOAPVersion] = SOAP11
		case "1.2":
			opts[OptSOAPVersion] = SOAP12
		default:
			return nil, fmt.Errorf("parse soap_version: unsupported version %q", raw.SOAPVersion)
		}
	}

	if meta.IsDefined("single_element_arrays") {
		var f Feature
		if raw.SingleElementArrays {
			f |= FeatureSingleElementArrays
		}
		opts[OptFeatures] = f
	}

	if meta.IsDefined("encoding") {
		switch strings.ToLower(strings.TrimSpace(raw.Encoding)) {
		case "literal":
			opts[OptEncoding] = Literal
		case "encoded":
			opts[OptEncoding] = Encoded
		default:
			return nil, fmt.Errorf("parse encoding: unsupported encoding %q", raw.Encoding)
		}
	}

	if meta.IsDefined("style") {
		switch strings.ToLower(strings.TrimSpace(raw.Style)) {
		case "rpc":
			opts[OptStyle] = RPC
		case "document":
			opts[OptStyle] = Document
		default:
			return nil, fmt.Errorf("parse style: unsupported style %q", raw.Style)
		}
	}

	if meta.IsDefined("trace") {
		opts[OptTrace] = raw.Trace
	}

	if meta.IsDefined("connection_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectionTimeout))
		if err != nil {
			return nil, fmt.Errorf("parse connection_timeout: %w", err)
		}
		opts[OptConnectionTimeout] = d
	}

	strs := map[string]string{
		OptLocation:  raw.Location,
		OptURI:       raw.URI,
		OptLogin:     raw.Login,
		OptPassword:  raw.Password,
		OptUserAgent: raw.UserAgent,
		OptUsername:  raw.Username,
		OptSecret:    raw.Secret,
	}
	for key, value := range strs {
		if meta.IsDefined(key) {
			opts[key] = value
		}
	}

	if meta.IsDefined("cert_file") || meta.IsDefined("key_file") {
		cert, err := tls.LoadX509KeyPair(raw.CertFile, raw.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load certificate: %w", err)
		}
		opts[OptCertificate] = cert
	}

	if meta.IsDefined("validate_signature") {
		opts[OptValidateSignature] = raw.ValidateSignature
	}

	return opts, nil
}
