package soapclient

import (
	"strings"

	"github.com/beevik/etree"
)

// FormatXML indents raw XML for reading. Input that does not parse is
// returned unchanged.
func FormatXML(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return string(raw)
	}
	doc.Indent(2)

	s, err := doc.WriteToString()
	if err != nil {
		return string(raw)
	}
	return strings.TrimSpace(s)
}
