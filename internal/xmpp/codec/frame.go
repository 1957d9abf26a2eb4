package codec

import (
	"regexp"
	"strings"

	"github.com/jackal-xmpp/stravaganza/v2"
)

// Namespaces used during stream negotiation.
const (
	NSClient  = "jabber:client"
	NSStream  = "http://etherx.jabber.org/streams"
	NSSASL    = "urn:ietf:params:xml:ns:xmpp-sasl"
	NSBind    = "urn:ietf:params:xml:ns:xmpp-bind"
	NSSession = "urn:ietf:params:xml:ns:xmpp-session"
)

// StreamCloseTag closes the stream.
const StreamCloseTag = "</stream:stream>"

// StreamOpenTag returns the stream header addressed to domain. It is sent raw:
// the element stays open for the lifetime of the stream.
func StreamOpenTag(domain string) string {
	var sb strings.Builder
	sb.WriteString("<?xml version='1.0'?>")
	sb.WriteString("<stream:stream to='")
	escapeAttr(&sb, domain)
	sb.WriteString("' xmlns='" + NSClient + "' xmlns:stream='" + NSStream + "' version='1.0'>")
	return sb.String()
}

func escapeAttr(sb *strings.Builder, s string) {
	for _, r := range s {
		switch r {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '\'':
			sb.WriteString("&apos;")
		case '"':
			sb.WriteString("&quot;")
		default:
			sb.WriteRune(r)
		}
	}
}

// Frame is one protocol unit decoded from a transport frame. The concrete
// types are StreamOpen, StreamClose, StreamError, Features, Success, Failure,
// IQ, Message, Presence and Unknown.
type Frame interface {
	isFrame()
}

// StreamOpen acknowledges a stream header.
type StreamOpen struct {
	ID string
}

// StreamClose is the peer closing the stream.
type StreamClose struct{}

// StreamError is a stream-level error; the peer closes the stream after it.
type StreamError struct {
	Condition string
	Text      string
}

// Features is a stream feature advertisement.
type Features struct {
	Mechanisms      []string
	Bind            bool
	Session         bool
	SessionOptional bool
}

// Success is a SASL success.
type Success struct{}

// Failure is a SASL failure.
type Failure struct {
	Condition string
	Text      string
}

// IQ is an info/query stanza. BoundJID is set when the payload carries a
// resource binding result.
type IQ struct {
	ID       string
	Type     string
	BoundJID string
	Element  stravaganza.Element
}

// Message is a message stanza.
type Message struct {
	Element stravaganza.Element
}

// Presence is a presence stanza.
type Presence struct {
	Element stravaganza.Element
}

// Unknown is any other top-level element.
type Unknown struct {
	Element stravaganza.Element
}

func (StreamOpen) isFrame()  {}
func (StreamClose) isFrame() {}
func (StreamError) isFrame() {}
func (Features) isFrame()    {}
func (Success) isFrame()     {}
func (Failure) isFrame()     {}
func (IQ) isFrame()          {}
func (Message) isFrame()     {}
func (Presence) isFrame()    {}
func (Unknown) isFrame()     {}

var (
	streamHeaderPattern = regexp.MustCompile(`<stream:stream\b[^>]*>`)
	streamIDPattern     = regexp.MustCompile(`\sid=['"]([^'"]+)['"]`)
)

// Decode turns one inbound transport frame into frames. A frame carrying a
// stream header is not parsed as XML; anything after the header is decoded
// as a fragment. Every other frame is parsed with ParseFragment and each
// top-level element becomes one Frame, in document order.
func Decode(raw string) ([]Frame, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, StreamCloseTag) {
		return []Frame{StreamClose{}}, nil
	}

	if strings.Contains(raw, "<stream:stream") {
		open := StreamOpen{}
		rest := ""
		if loc := streamHeaderPattern.FindStringIndex(raw); loc != nil {
			header := raw[loc[0]:loc[1]]
			if m := streamIDPattern.FindStringSubmatch(header); m != nil {
				open.ID = m[1]
			}
			rest = raw[loc[1]:]
		}

		frames := []Frame{open}
		if strings.TrimSpace(rest) == "" {
			return frames, nil
		}
		more, err := Decode(rest)
		if err != nil {
			return frames, err
		}
		return append(frames, more...), nil
	}

	root, err := ParseFragment(raw)
	if err != nil {
		return nil, err
	}

	children := root.AllChildren()
	frames := make([]Frame, 0, len(children))
	for _, el := range children {
		frames = append(frames, classify(el))
	}
	return frames, nil
}

func classify(el stravaganza.Element) Frame {
	name := el.Name()
	switch LocalName(name) {
	case "features":
		return decodeFeatures(el)
	case "success":
		return Success{}
	case "failure":
		return decodeFailure(el)
	case "iq":
		iq := IQ{
			ID:      el.Attribute("id"),
			Type:    el.Attribute("type"),
			Element: el,
		}
		if bind := Child(el, "bind"); bind != nil {
			iq.BoundJID = strings.TrimSpace(ChildText(bind, "jid"))
		}
		return iq
	case "message":
		return Message{Element: el}
	case "presence":
		return Presence{Element: el}
	case "open":
		return StreamOpen{ID: el.Attribute("id")}
	case "close":
		return StreamClose{}
	case "error":
		if strings.HasPrefix(name, "stream:") {
			se := StreamError{Text: strings.TrimSpace(ChildText(el, "text"))}
			for _, c := range el.AllChildren() {
				if LocalName(c.Name()) != "text" {
					se.Condition = LocalName(c.Name())
					break
				}
			}
			return se
		}
	}
	return Unknown{Element: el}
}

func decodeFeatures(el stravaganza.Element) Features {
	var f Features
	for _, c := range el.AllChildren() {
		switch LocalName(c.Name()) {
		case "mechanisms":
			for _, m := range c.AllChildren() {
				if LocalName(m.Name()) == "mechanism" {
					f.Mechanisms = append(f.Mechanisms, strings.TrimSpace(m.Text()))
				}
			}
			if f.Mechanisms == nil {
				f.Mechanisms = []string{}
			}
		case "bind":
			f.Bind = true
		case "session":
			f.Session = true
			f.SessionOptional = Child(c, "optional") != nil
		}
	}
	return f
}

func decodeFailure(el stravaganza.Element) Failure {
	f := Failure{Text: strings.TrimSpace(ChildText(el, "text"))}
	for _, c := range el.AllChildren() {
		if LocalName(c.Name()) != "text" {
			f.Condition = LocalName(c.Name())
			break
		}
	}
	return f
}
