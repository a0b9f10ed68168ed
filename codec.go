package soapclient

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/beevik/etree"
)

var timeType = reflect.TypeOf(time.Time{})

// xmlTokensFor encodes value as one element named name. Slices are encoded
// as repeated elements of the same name, maps with string keys as nested
// elements in key order.
func xmlTokensFor(name string, value interface{}, encoded bool) ([]xml.Token, error) {
	start := xml.StartElement{Name: xml.Name{Local: name}}

	if value == nil {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xsi:nil"}, Value: "true"})
		return []xml.Token{start, xml.EndElement{Name: start.Name}}, nil
	}

	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return xmlTokensFor(name, nil, encoded)
		}
		v = v.Elem()
	}

	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() != reflect.Uint8 {
		var tokens []xml.Token
		for i := 0; i < v.Len(); i++ {
			t, err := xmlTokensFor(name, v.Index(i).Interface(), encoded)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, t...)
		}
		return tokens, nil
	}

	if v.Kind() == reflect.Map {
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("soapclient: map key type %s not supported", v.Type().Key())
		}
		tokens := []xml.Token{start}
		err := eachSortedKeyValue(v, func(key string, item interface{}) error {
			t, err := xmlTokensFor(key, item, encoded)
			if err != nil {
				return err
			}
			tokens = append(tokens, t...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return append(tokens, xml.EndElement{Name: start.Name}), nil
	}

	text, xsdType, err := scalarText(v)
	if err != nil {
		return nil, fmt.Errorf("soapclient: element %s: %w", name, err)
	}
	if encoded {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "xsi:type"}, Value: "xsd:" + xsdType})
	}

	return []xml.Token{start, xml.CharData(text), xml.EndElement{Name: start.Name}}, nil
}

func scalarText(v reflect.Value) (string, string, error) {
	if v.Type() == timeType {
		return v.Interface().(time.Time).Format(time.RFC3339), "dateTime", nil
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), "string", nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), "boolean", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), "int", nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), "unsignedInt", nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, v.Type().Bits()), "double", nil
	case reflect.Slice:
		return base64.StdEncoding.EncodeToString(v.Bytes()), "base64Binary", nil
	}

	return "", "", fmt.Errorf("type %s not supported", v.Type())
}

func eachSortedKeyValue(m reflect.Value, fn func(key string, value interface{}) error) error {
	keys := make([]string, 0, m.Len())
	values := make(map[string]interface{}, m.Len())
	iter := m.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		keys = append(keys, k)
		values[k] = iter.Value().Interface()
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// decoder turns response elements into plain Go values: leaves become
// strings, nested elements maps, repeated elements slices.
type decoder struct {
	// arrays names the elements declared with maxOccurs > 1.
	arrays map[string]bool
	// keepArrays decodes a single occurrence of such an element as a slice.
	keepArrays bool
}

func (d decoder) element(el *etree.Element) interface{} {
	if el.SelectAttrValue("xsi:nil", "") == "true" || el.SelectAttrValue("nil", "") == "true" {
		return nil
	}

	if len(el.ChildElements()) == 0 {
		return el.Text()
	}

	return d.children(el)
}

// children decodes the child elements of el into a map keyed by local name.
func (d decoder) children(el *etree.Element) map[string]interface{} {
	values := make(map[string][]interface{})
	var order []string
	for _, c := range el.ChildElements() {
		if _, ok := values[c.Tag]; !ok {
			order = append(order, c.Tag)
		}
		values[c.Tag] = append(values[c.Tag], d.element(c))
	}

	out := make(map[string]interface{}, len(order))
	for _, tag := range order {
		vs := values[tag]
		if len(vs) > 1 || (d.keepArrays && d.arrays[tag]) {
			out[tag] = vs
			continue
		}
		out[tag] = vs[0]
	}
	return out
}

// result decodes the response wrapper element. A response carrying one part
// yields that part's value, several parts a map keyed by part name.
func (d decoder) result(el *etree.Element) interface{} {
	if el == nil {
		return nil
	}

	if len(el.ChildElements()) == 0 {
		if text := el.Text(); text != "" {
			return text
		}
		return nil
	}

	parts := d.children(el)
	if len(parts) == 1 {
		for _, v := range parts {
			return v
		}
	}
	return parts
}
