// Package codec turns inbound XMPP transport frames into element trees and
// typed frames, and builds outbound stanzas.
//
// Inbound text is untrusted. Parse refuses DOCTYPE declarations (entity
// expansion) and HTML-ish active content before any XML decoding happens.
package codec

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/jackal-xmpp/stravaganza/v2"
)

var (
	// ErrUnsafeInput is returned for input carrying a DOCTYPE declaration.
	ErrUnsafeInput = errors.New("codec: DOCTYPE declarations are not allowed in XMPP stanzas")

	// ErrUnsafeContent is returned for input carrying script-like tags or
	// event handler attributes.
	ErrUnsafeContent = errors.New("codec: potentially dangerous content detected")

	// ErrMalformedXML wraps the decoder diagnostic for input that is not
	// well-formed.
	ErrMalformedXML = errors.New("codec: malformed XML")
)

// fragmentRoot is the synthetic element wrapped around partial frames.
const fragmentRoot = "root"

var doctypePattern = regexp.MustCompile(`(?i)<!DOCTYPE`)

// <body> is XMPP message content and deliberately absent from this list.
var unsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[\s/>]`),
	regexp.MustCompile(`(?i)<iframe[\s/>]`),
	regexp.MustCompile(`(?i)<object[\s/>]`),
	regexp.MustCompile(`(?i)<embed[\s/>]`),
	regexp.MustCompile(`(?i)<form[\s/>]`),
	regexp.MustCompile(`(?i)<html[\s/>]`),
	regexp.MustCompile(`(?i)\son\w+\s*=`),
}

// CheckSafe applies the input policy without parsing.
func CheckSafe(text string) error {
	if doctypePattern.MatchString(text) {
		return ErrUnsafeInput
	}
	for _, p := range unsafePatterns {
		if p.MatchString(text) {
			return ErrUnsafeContent
		}
	}
	return nil
}

// Parse checks text against the input policy and decodes it into a single
// element tree.
func Parse(text string) (stravaganza.Element, error) {
	if err := CheckSafe(text); err != nil {
		return nil, err
	}
	return decode(text)
}

// ParseFragment parses text that may hold several sibling elements, or none,
// by wrapping it in a synthetic root. Callers read the root's children.
func ParseFragment(text string) (stravaganza.Element, error) {
	return Parse("<" + fragmentRoot + ">" + text + "</" + fragmentRoot + ">")
}

type openElement struct {
	name    string
	builder *stravaganza.Builder
	text    strings.Builder
}

func (o *openElement) build() stravaganza.Element {
	if o.text.Len() > 0 {
		o.builder = o.builder.WithText(o.text.String())
	}
	return o.builder.Build()
}

func decode(text string) (stravaganza.Element, error) {
	dec := xml.NewDecoder(strings.NewReader(text))

	var (
		stack []*openElement
		root  stravaganza.Element
	)
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, malformed(errors.New("multiple root elements"))
			}
			stack = append(stack, startElement(t))

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, malformed(errors.New("character data outside of root element"))
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)

		case xml.EndElement:
			name := qualifiedName(t.Name)
			if len(stack) == 0 {
				return nil, malformed(fmt.Errorf("unexpected end element </%s>", name))
			}
			top := stack[len(stack)-1]
			if top.name != name {
				return nil, malformed(fmt.Errorf("element <%s> closed by </%s>", top.name, name))
			}
			stack = stack[:len(stack)-1]

			el := top.build()
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.builder = parent.builder.WithChild(el)
			}
		}
	}

	if len(stack) > 0 {
		return nil, malformed(fmt.Errorf("unexpected EOF: element <%s> not closed", stack[len(stack)-1].name))
	}
	if root == nil {
		return nil, malformed(errors.New("no root element"))
	}
	return root, nil
}

func startElement(t xml.StartElement) *openElement {
	name := qualifiedName(t.Name)

	attrs := make([]stravaganza.Attribute, 0, len(t.Attr))
	for _, a := range t.Attr {
		attrs = append(attrs, stravaganza.Attribute{Label: qualifiedName(a.Name), Value: a.Value})
	}
	return &openElement{
		name:    name,
		builder: stravaganza.NewBuilder(name).WithAttributes(attrs...),
	}
}

func qualifiedName(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

// LocalName strips a namespace prefix from an element or attribute name.
func LocalName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Child returns the first direct child of el whose local name matches, or nil.
func Child(el stravaganza.Element, local string) stravaganza.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.AllChildren() {
		if LocalName(c.Name()) == local {
			return c
		}
	}
	return nil
}

// ChildText returns the text of the named direct child, or "".
func ChildText(el stravaganza.Element, local string) string {
	if c := Child(el, local); c != nil {
		return c.Text()
	}
	return ""
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformedXML, err)
}
