package soapclient

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/xml"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calcWSDL = `<?xml version="1.0" encoding="UTF-8"?>
<definitions name="Calc" targetNamespace="urn:calc"
    xmlns="http://schemas.xmlsoap.org/wsdl/"
    xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/"
    xmlns:tns="urn:calc"
    xmlns:xsd="http://www.w3.org/2001/XMLSchema">
  <types>
    <xsd:schema targetNamespace="urn:calc">
      <xsd:element name="addRequest">
        <xsd:complexType>
          <xsd:sequence>
            <xsd:element name="a" type="xsd:int"/>
            <xsd:element name="b" type="xsd:int"/>
          </xsd:sequence>
        </xsd:complexType>
      </xsd:element>
      <xsd:complexType name="ItemList">
        <xsd:sequence>
          <xsd:element name="item" type="xsd:string" maxOccurs="unbounded"/>
        </xsd:sequence>
      </xsd:complexType>
    </xsd:schema>
  </types>
  <message name="addInput">
    <part name="a" type="xsd:int"/>
    <part name="b" type="xsd:int"/>
  </message>
  <message name="addOutput">
    <part name="sum" type="xsd:int"/>
  </message>
  <message name="addDocInput">
    <part name="parameters" element="tns:addRequest"/>
  </message>
  <message name="listInput">
    <part name="prefix" type="xsd:string"/>
  </message>
  <message name="listOutput">
    <part name="items" type="tns:ItemList"/>
  </message>
  <portType name="CalcPortType">
    <operation name="add">
      <input message="tns:addInput"/>
      <output message="tns:addOutput"/>
    </operation>
    <operation name="addDoc">
      <input message="tns:addDocInput"/>
      <output message="tns:addOutput"/>
    </operation>
    <operation name="list">
      <input message="tns:listInput"/>
      <output message="tns:listOutput"/>
    </operation>
  </portType>
  <binding name="CalcBinding" type="tns:CalcPortType">
    <soap:binding style="rpc" transport="http://schemas.xmlsoap.org/soap/http"/>
    <operation name="add">
      <soap:operation soapAction="urn:calc#add"/>
      <input><soap:body use="literal" namespace="urn:calc"/></input>
      <output><soap:body use="literal" namespace="urn:calc"/></output>
    </operation>
    <operation name="addDoc">
      <soap:operation soapAction="urn:calc#addDoc"/>
      <input><soap:body use="literal"/></input>
      <output><soap:body use="literal"/></output>
    </operation>
    <operation name="list">
      <soap:operation soapAction="urn:calc#list"/>
      <input><soap:body use="literal" namespace="urn:calc"/></input>
      <output><soap:body use="literal" namespace="urn:calc"/></output>
    </operation>
  </binding>
  <service name="CalcService">
    <port name="CalcPort" binding="tns:CalcBinding">
      <soap:address location="%s"/>
    </port>
  </service>
</definitions>`

const addResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <ns1:addResponse xmlns:ns1="urn:calc"><sum>5</sum></ns1:addResponse>
  </soap:Body>
</soap:Envelope>`

const listResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <ns1:listResponse xmlns:ns1="urn:calc"><items><item>only</item></items></ns1:listResponse>
  </soap:Body>
</soap:Envelope>`

const soap11Fault = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault>
      <faultcode>Server.InvalidArgs</faultcode>
      <faultstring>bad input</faultstring>
      <faultactor>urn:calc</faultactor>
      <detail><reason>b must be positive</reason></detail>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`

const soap12Fault = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope">
  <env:Body>
    <env:Fault>
      <env:Code><env:Value>env:Sender</env:Value></env:Code>
      <env:Reason><env:Text xml:lang="en">bad input</env:Text></env:Reason>
    </env:Fault>
  </env:Body>
</env:Envelope>`

// calcServer serves the calc WSDL and answers SOAP calls at /soap.
type calcServer struct {
	*httptest.Server
	lastBody    string
	lastRequest *http.Request
	wsdlHits    int
	respond     func(w http.ResponseWriter, body string)
}

func newCalcServer(t *testing.T) *calcServer {
	t.Helper()
	s := &calcServer{}
	s.respond = func(w http.ResponseWriter, body string) {
		if strings.Contains(body, "<ns1:list") {
			_, _ = io.WriteString(w, listResponse)
			return
		}
		_, _ = io.WriteString(w, addResponse)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/calc.wsdl", func(w http.ResponseWriter, r *http.Request) {
		s.wsdlHits++
		w.Header().Set("Content-Type", "text/xml")
		_, _ = fmt.Fprintf(w, calcWSDL, s.URL+"/soap")
	})
	mux.HandleFunc("/soap", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		s.lastBody = string(data)
		s.lastRequest = r
		s.respond(w, s.lastBody)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *calcServer) wsdlURL() string { return s.URL + "/calc.wsdl" }

func TestHTTPEngine_CallAdd(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)

	result, err := c.Call("add", []interface{}{2, 3})
	require.NoError(t, err)
	assert.Equal(t, "5", result)

	assert.Contains(t, srv.lastBody, `<ns1:add xmlns:ns1="urn:calc"><a>2</a><b>3</b></ns1:add>`)
	assert.Contains(t, srv.lastBody, nsSOAP12)
	assert.Equal(t, `application/soap+xml; charset=utf-8; action="urn:calc#add"`, srv.lastRequest.Header.Get("Content-Type"))
}

func TestHTTPEngine_SOAP11Headers(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), Options{
		OptSOAPVersion: SOAP11,
		OptLogin:       "alice",
		OptPassword:    "secret",
		OptUserAgent:   "soapcall-test",
	})
	require.NoError(t, err)

	_, err = c.Call("add", []interface{}{2, 3})
	require.NoError(t, err)

	assert.Contains(t, srv.lastBody, nsSOAP11)
	assert.Equal(t, "text/xml; charset=utf-8", srv.lastRequest.Header.Get("Content-Type"))
	assert.Equal(t, `"urn:calc#add"`, srv.lastRequest.Header.Get("SOAPAction"))
	assert.Equal(t, "soapcall-test", srv.lastRequest.Header.Get("User-Agent"))

	user, pass, ok := srv.lastRequest.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "secret", pass)
}

func TestHTTPEngine_DocumentStyle(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), Options{OptStyle: Document})
	require.NoError(t, err)

	result, err := c.Call("addDoc", []interface{}{2, 3})
	require.NoError(t, err)
	assert.Equal(t, "5", result)
	assert.Contains(t, srv.lastBody, `<ns1:addRequest xmlns:ns1="urn:calc"><a>2</a><b>3</b></ns1:addRequest>`)
}

func TestHTTPEngine_SingleElementArrays(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	kept, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)
	result, err := kept.Call("list", "o")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"item": []interface{}{"only"}}, result)

	collapsed, err := New(srv.wsdlURL(), Options{OptFeatures: Feature(0)})
	require.NoError(t, err)
	result, err = collapsed.Call("list", "o")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"item": "only"}, result)
}

func TestHTTPEngine_SOAP11Fault(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)
	srv.respond = func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, soap11Fault)
	}

	c, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)

	result, err := c.Call("add", []interface{}{2, -3})
	assert.Nil(t, result)

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "Server.InvalidArgs", serviceErr.Code)
	assert.Equal(t, "bad input", serviceErr.Message)

	fault, ok := AsFault(err)
	require.True(t, ok)
	assert.Equal(t, "Server.InvalidArgs", fault.Code)
	assert.Equal(t, "bad input", fault.String)
	assert.Equal(t, "urn:calc", fault.Actor)
	assert.Contains(t, fault.Detail, "b must be positive")
	assert.NotEmpty(t, fault.Stack)
}

func TestHTTPEngine_SOAP12Fault(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)
	srv.respond = func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, soap12Fault)
	}

	c, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)

	_, err = c.Call("add", []interface{}{2, 3})
	fault, ok := AsFault(err)
	require.True(t, ok)
	assert.Equal(t, "env:Sender", fault.Code)
	assert.Equal(t, "bad input", fault.String)
}

func TestHTTPEngine_HTTPErrorIsNotFault(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)
	srv.respond = func(w http.ResponseWriter, _ string) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}

	c, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)

	_, err = c.Call("add", []interface{}{2, 3})
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.False(t, IsFault(err))
	assert.Contains(t, serviceErr.Message, "HTTP 502")
}

func TestHTTPEngine_UnknownOperation(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)

	_, err = c.Call("divide", []interface{}{1, 0})
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Contains(t, serviceErr.Message, `"divide"`)
	assert.Nil(t, srv.lastRequest)
}

func TestHTTPEngine_ListOperations(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"add", "addDoc", "list"}, c.ListOperations())
}

func TestNew_FetchesWSDLEveryTime(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	for i := 0; i < 3; i++ {
		_, err := New(srv.wsdlURL(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, srv.wsdlHits)
}

func TestNew_UnreachableWSDL(t *testing.T) {
	resetDebug(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/calc.wsdl"
	srv.Close()

	c, err := New(url, nil)
	assert.Nil(t, c)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, url, connErr.WSDL)
}

func TestNew_InvalidWSDL(t *testing.T) {
	resetDebug(t)
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		},
		{
			name: "not xml",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "<html><body>oops")
			},
		},
		{
			name: "not a wsdl",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "<feed><entry/></feed>")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := New(srv.URL, nil)
			var connErr *ConnectionError
			assert.ErrorAs(t, err, &connErr)
		})
	}
}

func TestHTTPEngine_TraceAfterCall(t *testing.T) {
	resetDebug(t)
	SetDebugOutput(io.Discard)
	SetDebug(true)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)

	_, err = c.Call("add", []interface{}{2, 3})
	require.NoError(t, err)

	engine := c.engine.(*HTTPEngine)
	assert.Equal(t, srv.lastBody, string(engine.LastRequest()))
	assert.Equal(t, addResponse, string(engine.LastResponse()))

	trace := c.Trace()
	assert.Contains(t, trace, "Last Request:\n"+FormatXML(engine.LastRequest()))
	assert.Contains(t, trace, "Last Response:\n"+FormatXML(engine.LastResponse()))
	assert.Contains(t, trace, "<sum>5</sum>")
}

func TestHTTPEngine_NoTraceWithoutOption(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), nil)
	require.NoError(t, err)

	_, err = c.Call("add", []interface{}{2, 3})
	require.NoError(t, err)

	engine := c.engine.(*HTTPEngine)
	assert.Nil(t, engine.LastRequest())
	assert.Nil(t, engine.LastResponse())
}

func TestHTTPEngine_EncodedStyle(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), Options{OptEncoding: Encoded})
	require.NoError(t, err)

	_, err = c.Call("add", []interface{}{2, 3})
	require.NoError(t, err)
	assert.Contains(t, srv.lastBody, `soap-env:encodingStyle="`+nsEncoded+`"`)
	assert.Contains(t, srv.lastBody, `<a xsi:type="xsd:int">2</a>`)
}

func TestHTTPEngine_UsernameToken(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), Options{OptUsername: "bob", OptSecret: "hunter2"})
	require.NoError(t, err)

	_, err = c.Call("add", []interface{}{2, 3})
	require.NoError(t, err)
	assert.Contains(t, srv.lastBody, "<wsse:Username>bob</wsse:Username>")
	assert.Contains(t, srv.lastBody, "hunter2</wsse:Password>")
	assert.NotContains(t, srv.lastBody, "<Signature")
}

func TestHTTPEngine_SignatureHeader(t *testing.T) {
	cert := selfSignedCertificate(t)
	e := &HTTPEngine{
		opts:      Options{OptCertificate: cert},
		namespace: "urn:calc",
	}

	env, err := e.buildEnvelope(&wsdlOperation{Name: "add", Parts: []string{"a", "b"}}, []interface{}{2, 3})
	require.NoError(t, err)
	require.NotNil(t, env.Header)

	sig := env.Header.Security.Signature
	require.NotNil(t, sig)
	assert.NotEmpty(t, env.Body.ID)
	assert.Equal(t, "#"+env.Body.ID, sig.SignedInfo.Reference.URI)
	assert.Equal(t, "42", sig.KeyInfo.SecurityTokenReference.X509Data.X509IssuerSerial.X509SerialNumber)
	assert.Contains(t, sig.KeyInfo.SecurityTokenReference.X509Data.X509IssuerSerial.X509IssuerName, "soapwrap test")

	data, err := xml.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wsu:ID="`+env.Body.ID+`"`)
}

func TestHTTPEngine_SignedCall(t *testing.T) {
	resetDebug(t)
	srv := newCalcServer(t)

	c, err := New(srv.wsdlURL(), Options{
		OptCertificate:       selfSignedCertificate(t),
		OptValidateSignature: true,
	})
	require.NoError(t, err)

	result, err := c.Call("add", []interface{}{2, 3})
	require.NoError(t, err)
	assert.Equal(t, "5", result)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(srv.lastBody))

	digest := doc.FindElement("//Signature/SignedInfo/Reference/DigestValue")
	require.NotNil(t, digest)
	assert.NotEmpty(t, strings.TrimSpace(digest.Text()))

	signature := doc.FindElement("//Signature/SignatureValue")
	require.NotNil(t, signature)
	assert.NotEmpty(t, strings.TrimSpace(signature.Text()))

	body := doc.FindElement("//Body")
	require.NotNil(t, body)
	assert.NotEmpty(t, body.SelectAttrValue("ID", ""))
}

func selfSignedCertificate(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "soapwrap test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}
