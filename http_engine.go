package soapclient

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/beevik/etree"
	"github.com/ma314smith/signedxml"
)

// OptValidateSignature checks the XML signature of every signed request
// before it is sent. Use it only for development.
const OptValidateSignature = "validate_signature"

// HTTPEngine is the default Engine. It reads the WSDL once, at construction,
// and posts SOAP envelopes to the service location over HTTP. An HTTPEngine
// keeps the last exchange for tracing and must not be shared between
// goroutines.
type HTTPEngine struct {
	wsdl       *wsdlDocument
	opts       Options
	location   string
	namespace  string
	httpClient *http.Client
	decoder    decoder

	lastRequest  []byte
	lastResponse []byte
}

// OpenHTTPEngine is the Opener used by New.
func OpenHTTPEngine(wsdl string, opts Options) (Engine, error) {
	e, err := NewHTTPEngine(wsdl, opts)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// NewHTTPEngine fetches and parses the WSDL at location and returns an engine
// configured with opts.
func NewHTTPEngine(location string, opts Options) (*HTTPEngine, error) {
	opts = opts.copy()
	httpClient := getHTTPClient(opts)

	data, err := fetchWSDL(httpClient, location, opts)
	if err != nil {
		return nil, err
	}

	doc, err := parseWSDL(data)
	if err != nil {
		return nil, err
	}

	e := &HTTPEngine{
		wsdl:       doc,
		opts:       opts,
		location:   doc.Location,
		namespace:  doc.TargetNamespace,
		httpClient: httpClient,
		decoder: decoder{
			arrays:     doc.arrays,
			keepArrays: opts.features()&FeatureSingleElementArrays != 0,
		},
	}
	if l := opts.str(OptLocation); l != "" {
		e.location = l
	}
	if uri := opts.str(OptURI); uri != "" {
		e.namespace = uri
	}
	if e.location == "" {
		return nil, errors.New("WSDL declares no service location")
	}

	return e, nil
}

func getHTTPClient(opts Options) *http.Client {
	client := &http.Client{Timeout: opts.timeout()}

	if cert, ok := opts.certificate(); ok {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		}
	}

	return client
}

// Operations lists the operations of the WSDL binding in declaration order.
func (e *HTTPEngine) Operations() []string {
	return append([]string(nil), e.wsdl.order...)
}

// LastRequest returns the last envelope sent, or nil unless the trace option is set.
func (e *HTTPEngine) LastRequest() []byte { return e.lastRequest }

// LastResponse returns the last body received, or nil unless the trace option is set.
func (e *HTTPEngine) LastResponse() []byte { return e.lastResponse }

// buildEnvelope builds the envelope for a call of op with args.
func (e *HTTPEngine) buildEnvelope(op *wsdlOperation, args []interface{}) (*envelope, error) {
	c := call{
		Name:      op.Name,
		Namespace: e.namespace,
		Encoded:   e.opts.encoding() == Encoded,
	}

	names := op.Parts
	if e.opts.style() == Document && op.Element != "" {
		c.Name = op.Element
		names = op.Fields
	}
	for i, arg := range args {
		name := "arg" + strconv.Itoa(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		c.Parts = append(c.Parts, part{Name: name, Value: arg})
	}

	env := &envelope{
		Soapenv: nsSOAP12,
		Xsi:     nsXSI,
		Body:    requestBody{Call: c},
	}
	if e.opts.soapVersion() == SOAP11 {
		env.Soapenv = nsSOAP11
	}
	if c.Encoded {
		env.Xsd = nsXSD
	}

	security, err := e.securityHeader(&env.Body)
	if err != nil {
		return nil, err
	}
	if security != nil {
		env.Header = &header{Security: security}
	}

	return env, nil
}

// securityHeader returns the WS-Security header for the configured
// credentials, or nil when none are configured. A configured certificate
// adds a signature over the body, which gets a wsu:Id for the reference.
func (e *HTTPEngine) securityHeader(body *requestBody) (*headerSecurity, error) {
	username := e.opts.str(OptUsername)
	cert, signed := e.opts.certificate()
	if username == "" && !signed {
		return nil, nil
	}

	security := &headerSecurity{Wsse: nsWsse}
	if username != "" {
		security.UsernameToken = &headerSecurityUsernameToken{
			Username: username,
			Password: &headerSecurityUsernameTokenPassword{
				Type: passwordText,
				Text: e.opts.str(OptSecret),
			},
		}
	}
	if !signed {
		return security, nil
	}

	pCert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}

	body.ID = generateID("id")
	body.Wsu = nsWsu
	security.Signature = &headerSecuritySignature{
		ID:    generateID("SIG"),
		Xmlns: nsDsig,
		SignedInfo: &headerSecuritySignatureSignedInfo{
			CanonicalizationMethod: &algorithm{Algorithm: excC14N},
			SignatureMethod:        &algorithm{Algorithm: nsDsig + "rsa-sha1"},
			Reference: &reference{
				URI:          "#" + body.ID,
				DigestMethod: &algorithm{Algorithm: nsDsig + "sha1"},
				Transforms:   &transforms{Transform: &algorithm{Algorithm: excC14N}},
			},
		},
		KeyInfo: &headerSecuritySignatureKeyInfo{
			ID: generateID("KI"),
			SecurityTokenReference: keyInfoSecurityTokenReference{
				X509Data: x509Data{
					X509IssuerSerial: x509IssuerSerial{
						X509IssuerName:   pCert.Issuer.String(),
						X509SerialNumber: pCert.SerialNumber.String(),
					},
					X509Certificate: base64.StdEncoding.EncodeToString(cert.Certificate[0]),
				},
			},
		},
	}

	return security, nil
}

// encode marshals the envelope and signs it when a certificate is configured.
func (e *HTTPEngine) encode(env *envelope) ([]byte, error) {
	xmlBytes, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}

	if env.Header == nil || env.Header.Security.Signature == nil {
		return xmlBytes, nil
	}

	cert, _ := e.opts.certificate()
	signer, err := signedxml.NewSigner(string(xmlBytes))
	if err != nil {
		return nil, err
	}

	signedXML, err := signer.Sign(cert.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	if e.opts.flag(OptValidateSignature) {
		validator, err := signedxml.NewValidator(signedXML)
		if err != nil {
			return nil, fmt.Errorf("error validating: %w", err)
		}

		if _, err := validator.ValidateReferences(); err != nil {
			return nil, fmt.Errorf("error validating: %w", err)
		}
	}

	return []byte(signedXML), nil
}

// Call sends one request for operation and decodes the response.
func (e *HTTPEngine) Call(operation string, args []interface{}) (interface{}, error) {
	op, ok := e.wsdl.Operations[operation]
	if !ok {
		return nil, fmt.Errorf("operation %q is not defined by the WSDL", operation)
	}

	env, err := e.buildEnvelope(op, args)
	if err != nil {
		return nil, err
	}

	payload, err := e.encode(env)
	if err != nil {
		return nil, err
	}

	trace := e.opts.flag(OptTrace)
	if trace {
		e.lastRequest = payload
		e.lastResponse = nil
	}

	req, err := http.NewRequest(http.MethodPost, e.location, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if e.opts.soapVersion() == SOAP11 {
		req.Header.Set("Content-Type", "text/xml; charset=utf-8")
		req.Header.Set("SOAPAction", strconv.Quote(op.Action))
	} else {
		req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8; action="+strconv.Quote(op.Action))
	}
	if login := e.opts.str(OptLogin); login != "" {
		req.SetBasicAuth(login, e.opts.str(OptPassword))
	}
	if ua := e.opts.str(OptUserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	response, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() { _ = response.Body.Close() }()

	data, err := io.ReadAll(response.Body)
	if trace {
		e.lastResponse = data
	}
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return e.decodeResponse(response.StatusCode, data)
}

func (e *HTTPEngine) decodeResponse(status int, data []byte) (interface{}, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		if status >= http.StatusBadRequest {
			return nil, fmt.Errorf("HTTP %d: %s", status, preview(data))
		}
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var body *etree.Element
	if root := doc.Root(); root != nil && root.Tag == "Envelope" {
		body = root.SelectElement("Body")
	}
	if body == nil {
		return nil, fmt.Errorf("HTTP %d: response is not a SOAP envelope", status)
	}

	if fault := body.SelectElement("Fault"); fault != nil {
		return nil, parseFault(fault)
	}
	if status >= http.StatusBadRequest {
		return nil, fmt.Errorf("HTTP %d: %s", status, preview(data))
	}

	children := body.ChildElements()
	if len(children) == 0 {
		return nil, nil
	}

	return e.decoder.result(children[0]), nil
}

// parseFault reads a SOAP 1.1 or SOAP 1.2 Fault element.
func parseFault(el *etree.Element) *Fault {
	f := &Fault{Stack: debug.Stack()}

	if code := el.SelectElement("faultcode"); code != nil {
		f.Code = code.Text()
		f.String = childText(el, "faultstring")
		f.Actor = childText(el, "faultactor")
		f.Detail = innerXML(el.SelectElement("detail"))
		return f
	}

	if value := el.FindElement("./Code/Value"); value != nil {
		f.Code = value.Text()
	}
	if text := el.FindElement("./Reason/Text"); text != nil {
		f.String = text.Text()
	}
	f.Actor = childText(el, "Role")
	f.Detail = innerXML(el.SelectElement("Detail"))

	return f
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}

func innerXML(el *etree.Element) string {
	if el == nil {
		return ""
	}

	doc := etree.NewDocument()
	for _, c := range el.ChildElements() {
		doc.AddChild(c.Copy())
	}
	if len(doc.Child) == 0 {
		return el.Text()
	}

	s, err := doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

func preview(data []byte) string {
	if len(data) > 3000 {
		return string(data[:3000]) + "..."
	}
	return string(data)
}

var _ Engine = &HTTPEngine{}
