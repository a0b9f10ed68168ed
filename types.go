package soapclient

import (
	"encoding/xml"
)

const (
	nsSOAP11  = "http://schemas.xmlsoap.org/soap/envelope/"
	nsSOAP12  = "http://www.w3.org/2003/05/soap-envelope"
	nsWsse    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	nsWsu     = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	nsDsig    = "http://www.w3.org/2000/09/xmldsig#"
	nsXSI     = "http://www.w3.org/2001/XMLSchema-instance"
	nsXSD     = "http://www.w3.org/2001/XMLSchema"
	nsEncoded = "http://schemas.xmlsoap.org/soap/encoding/"

	passwordText = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	excC14N      = "http://www.w3.org/2001/10/xml-exc-c14n#"
)

type envelope struct {
	XMLName xml.Name    `xml:"soap-env:Envelope"`
	Soapenv string      `xml:"xmlns:soap-env,attr"`
	Xsi     string      `xml:"xmlns:xsi,attr,omitempty"`
	Xsd     string      `xml:"xmlns:xsd,attr,omitempty"`
	Header  *header     `xml:"soap-env:Header,omitempty"`
	Body    requestBody `xml:"soap-env:Body"`
}

type header struct {
	Security *headerSecurity `xml:"wsse:Security"`
}

type headerSecurity struct {
	Wsse string `xml:"xmlns:wsse,attr"`

	Signature     *headerSecuritySignature     `xml:"Signature"`
	UsernameToken *headerSecurityUsernameToken `xml:"wsse:UsernameToken"`
}

type headerSecurityUsernameToken struct {
	Username string                               `xml:"wsse:Username"`
	Password *headerSecurityUsernameTokenPassword `xml:"wsse:Password"`
}

type headerSecurityUsernameTokenPassword struct {
	Text string `xml:",chardata"`
	Type string `xml:"Type,attr"`
}

type headerSecuritySignature struct {
	ID             string                             `xml:"Id,attr"`
	Xmlns          string                             `xml:"xmlns,attr"`
	SignedInfo     *headerSecuritySignatureSignedInfo `xml:"SignedInfo"`
	SignatureValue string                             `xml:"SignatureValue"`
	KeyInfo        *headerSecuritySignatureKeyInfo    `xml:"KeyInfo"`
}

type headerSecuritySignatureSignedInfo struct {
	CanonicalizationMethod *algorithm `xml:"CanonicalizationMethod"`
	SignatureMethod        *algorithm `xml:"SignatureMethod"`
	Reference              *reference `xml:"Reference"`
}

type algorithm struct {
	Algorithm string `xml:"Algorithm,attr"`
}

type reference struct {
	URI          string      `xml:"URI,attr"`
	Transforms   *transforms `xml:"Transforms"`
	DigestMethod *algorithm  `xml:"DigestMethod"`
	DigestValue  string      `xml:"DigestValue"`
}

type transforms struct {
	Transform *algorithm `xml:"Transform"`
}

type headerSecuritySignatureKeyInfo struct {
	ID                     string                        `xml:"Id,attr"`
	SecurityTokenReference keyInfoSecurityTokenReference `xml:"wsse:SecurityTokenReference"`
}

type keyInfoSecurityTokenReference struct {
	X509Data x509Data `xml:"X509Data"`
}

type x509Data struct {
	X509IssuerSerial x509IssuerSerial `xml:"X509IssuerSerial"`
	X509Certificate  string           `xml:"X509Certificate"`
}

type x509IssuerSerial struct {
	X509IssuerName   string `xml:"X509IssuerName"`
	X509SerialNumber string `xml:"X509SerialNumber"`
}

type requestBody struct {
	ID   string `xml:"wsu:ID,attr,omitempty"`
	Wsu  string `xml:"xmlns:wsu,attr,omitempty"`
	Call call
}

// call is the body element of a request: the operation wrapper in RPC style,
// the part element in document style.
type call struct {
	Name      string
	Namespace string
	Encoded   bool
	Parts     []part
}

type part struct {
	Name  string
	Value interface{}
}

// MarshalXML writes the call element qualified with the ns1 prefix; part
// accessors and nested elements are unqualified.
func (c call) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "ns1:" + c.Name}
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xmlns:ns1"}, Value: c.Namespace})
	if c.Encoded {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "soap-env:encodingStyle"}, Value: nsEncoded})
	}

	tokens := []xml.Token{start}
	for _, p := range c.Parts {
		t, err := xmlTokensFor(p.Name, p.Value, c.Encoded)
		if err != nil {
			return err
		}
		tokens = append(tokens, t...)
	}
	tokens = append(tokens, xml.EndElement{Name: start.Name})

	for _, t := range tokens {
		if err := e.EncodeToken(t); err != nil {
			return err
		}
	}

	return e.Flush()
}
