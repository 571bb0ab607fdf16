// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultXMLRoot names elements whose requested name is absent or not
// a legal XML name.
const DefaultXMLRoot = "rows"

// AttributePrefix marks mapping keys rendered as XML attributes.
const AttributePrefix = "__"

const xmlHeader = `<?xml version="1.0" ?>` + "\n"

// ErrBadAttribute is returned when a mapping key with AttributePrefix
// does not form a legal attribute name.
type ErrBadAttribute struct {
	Key string
}

func (e ErrBadAttribute) Error() string {
	return fmt.Sprintf("%q is not a valid XML attribute name", e.Key)
}

// ErrUnsupportedValue is returned when a tree contains a value that
// is not JSON-like.
type ErrUnsupportedValue struct {
	Value interface{}
}

func (e ErrUnsupportedValue) Error() string {
	return fmt.Sprintf("Unsupported data type: %v (%T)", e.Value, e.Value)
}

// xmlAttr is a single attribute of an element.
type xmlAttr struct {
	name, value string
}

// xmlNode is an element holding either text or child elements.
type xmlNode struct {
	name     string
	attrs    []xmlAttr
	text     string
	children []*xmlNode
}

// asciiFold decomposes characters and drops whatever is left outside
// ASCII, so "Politécnica" becomes "Politecnica".
func asciiFold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}

// isXMLName reports whether s is usable as an element or attribute
// name.  Only ASCII names are considered, and namespace prefixes are
// not allowed.
func isXMLName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case i > 0 && (c >= '0' && c <= '9' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// singular strips a trailing "s".
func singular(name string) string {
	return strings.TrimSuffix(name, "s")
}

// ScalarText renders a scalar the way it appears in XML text and CSV
// cells.  Booleans are "True" or "False" and floats always carry a
// fractional part or exponent.
func ScalarText(v interface{}) (string, bool) {
	switch vv := v.(type) {
	case nil:
		return "", true
	case string:
		return vv, true
	case bool:
		if vv {
			return "True", true
		}
		return "False", true
	case int:
		return strconv.Itoa(vv), true
	case int32:
		return strconv.FormatInt(int64(vv), 10), true
	case int64:
		return strconv.FormatInt(vv, 10), true
	case uint64:
		return strconv.FormatUint(vv, 10), true
	case float32:
		return formatFloat(float64(vv)), true
	case float64:
		return formatFloat(vv), true
	}
	return "", false
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if abs := math.Abs(f); abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// buildXML converts a value into an element named name.
func buildXML(v interface{}, name string) (*xmlNode, error) {
	name = asciiFold(name)
	if !isXMLName(name) {
		name = DefaultXMLRoot
	}
	node := &xmlNode{name: name}

	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for key := range vv {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if strings.HasPrefix(key, AttributePrefix) {
				attr := asciiFold(key[len(AttributePrefix):])
				if !isXMLName(attr) {
					return nil, ErrBadAttribute{Key: key}
				}
				text, ok := ScalarText(vv[key])
				if !ok {
					text = fmt.Sprint(vv[key])
				}
				node.attrs = append(node.attrs, xmlAttr{attr, asciiFold(text)})
				continue
			}
			child, err := buildXML(vv[key], key)
			if err != nil {
				return nil, err
			}
			node.children = append(node.children, child)
		}
	case []interface{}, []map[string]interface{}:
		for _, item := range asList(vv) {
			child, err := buildXML(item, singular(name))
			if err != nil {
				return nil, err
			}
			node.children = append(node.children, child)
		}
	default:
		text, ok := ScalarText(v)
		if !ok {
			return nil, ErrUnsupportedValue{Value: v}
		}
		node.text = asciiFold(text)
	}
	return node, nil
}

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;", `"`, "&quot;", "'", "&apos;", "<", "&lt;", ">", "&gt;",
	)
)

// write pretty-prints an element with tab indentation.  An element
// with only text stays on one line; an empty one is self-closing.
func (n *xmlNode) write(buf *bytes.Buffer, indent string) {
	buf.WriteString(indent)
	buf.WriteString("<")
	buf.WriteString(n.name)
	for _, attr := range n.attrs {
		fmt.Fprintf(buf, ` %s="%s"`, attr.name, attrEscaper.Replace(attr.value))
	}
	switch {
	case n.text != "":
		fmt.Fprintf(buf, ">%s</%s>\n", textEscaper.Replace(n.text), n.name)
	case len(n.children) > 0:
		buf.WriteString(">\n")
		for _, child := range n.children {
			child.write(buf, indent+"\t")
		}
		fmt.Fprintf(buf, "%s</%s>\n", indent, n.name)
	default:
		buf.WriteString("/>\n")
	}
}

// RenderXML renders a tree as a pretty-printed XML document whose
// top-level element is named root.  Every mapping, list, and scalar
// becomes an element; see the package documentation for the rules.
func RenderXML(value interface{}, root string) (string, error) {
	node, err := buildXML(value, root)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	node.write(&buf, "")
	return buf.String(), nil
}
