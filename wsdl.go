package soapclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/beevik/etree"
)

// wsdlOperation is one operation as declared by the WSDL binding.
type wsdlOperation struct {
	Name   string
	Action string
	// Parts are the input message part names, in order.
	Parts []string
	// Element is the global element referenced by a document style input part.
	Element string
	// Fields are the child element names of Element, from the schema.
	Fields []string
}

type wsdlDocument struct {
	TargetNamespace string
	Location        string
	Operations      map[string]*wsdlOperation
	// order keeps the binding order for listing.
	order []string
	// arrays holds the element names declared with maxOccurs other than 1.
	arrays map[string]bool
}

// fetchWSDL loads the WSDL over HTTP(S), or from the local file system for
// file:// URLs and plain paths. The result is never cached.
func fetchWSDL(client *http.Client, location string, opts Options) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return os.ReadFile(strings.TrimPrefix(location, "file://"))
	}

	req, err := http.NewRequest(http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	if login := opts.str(OptLogin); login != "" {
		req.SetBasicAuth(login, opts.str(OptPassword))
	}
	if ua := opts.str(OptUserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	response, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() { _ = response.Body.Close() }()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("HTTP %d fetching WSDL", response.StatusCode)
	}

	return data, nil
}

func parseWSDL(data []byte) (*wsdlDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse WSDL: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "definitions" {
		return nil, errors.New("parse WSDL: missing definitions element")
	}

	w := &wsdlDocument{
		TargetNamespace: root.SelectAttrValue("targetNamespace", ""),
		Operations:      make(map[string]*wsdlOperation),
		arrays:          make(map[string]bool),
	}

	if address := root.FindElement("./service/port/address"); address != nil {
		w.Location = address.SelectAttrValue("location", "")
	}

	messages := make(map[string][]*etree.Element)
	for _, msg := range root.SelectElements("message") {
		messages[msg.SelectAttrValue("name", "")] = msg.SelectElements("part")
	}

	inputs := make(map[string]string)
	for _, op := range root.FindElements("./portType/operation") {
		if input := op.SelectElement("input"); input != nil {
			inputs[op.SelectAttrValue("name", "")] = localName(input.SelectAttrValue("message", ""))
		}
	}

	fields := make(map[string][]string)
	for _, el := range root.FindElements("./types//element") {
		if occurs := el.SelectAttrValue("maxOccurs", "1"); occurs != "1" && occurs != "0" {
			w.arrays[el.SelectAttrValue("name", localName(el.SelectAttrValue("ref", "")))] = true
		}
		if parent := el.Parent(); parent == nil || parent.Tag != "schema" {
			continue
		}
		var names []string
		for _, child := range el.FindElements("./complexType/sequence/element") {
			names = append(names, child.SelectAttrValue("name", localName(child.SelectAttrValue("ref", ""))))
		}
		fields[el.SelectAttrValue("name", "")] = names
	}

	for _, op := range root.FindElements("./binding/operation") {
		name := op.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		if _, seen := w.Operations[name]; seen {
			continue
		}

		o := &wsdlOperation{Name: name}
		if soapOp := op.SelectElement("operation"); soapOp != nil {
			o.Action = soapOp.SelectAttrValue("soapAction", "")
		}
		for _, p := range messages[inputs[name]] {
			o.Parts = append(o.Parts, p.SelectAttrValue("name", ""))
			if element := localName(p.SelectAttrValue("element", "")); element != "" && o.Element == "" {
				o.Element = element
				o.Fields = fields[element]
			}
		}

		w.Operations[name] = o
		w.order = append(w.order, name)
	}

	if len(w.Operations) == 0 {
		return nil, errors.New("parse WSDL: no binding operations")
	}

	return w, nil
}

func localName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
