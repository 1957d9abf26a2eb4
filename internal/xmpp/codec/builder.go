package codec

import (
	"sort"
	"strings"

	"github.com/jackal-xmpp/stravaganza/v2"
)

// Attrs is an attribute set for a built element.
type Attrs map[string]string

type node struct {
	name     string
	attrs    Attrs
	text     strings.Builder
	children []*node
	parent   *node
}

// Builder constructs one element tree. Child moves the cursor to the new
// element and Up moves it back to the parent; rendering always starts from the
// element passed to Build.
type Builder struct {
	root *node
	cur  *node
}

// Build starts a new tree rooted at an element called name.
func Build(name string, attrs Attrs) *Builder {
	n := &node{name: name, attrs: attrs}
	return &Builder{root: n, cur: n}
}

// NewIQ starts an <iq/> stanza.
func NewIQ(attrs Attrs) *Builder { return Build("iq", attrs) }

// NewMessage starts a <message/> stanza.
func NewMessage(attrs Attrs) *Builder { return Build("message", attrs) }

// NewPresence starts a <presence/> stanza.
func NewPresence(attrs Attrs) *Builder { return Build("presence", attrs) }

// Child appends a child to the current element and returns a cursor on it.
func (b *Builder) Child(name string, attrs Attrs) *Builder {
	n := &node{name: name, attrs: attrs, parent: b.cur}
	b.cur.children = append(b.cur.children, n)
	return &Builder{root: b.root, cur: n}
}

// Text appends character data to the current element.
func (b *Builder) Text(s string) *Builder {
	b.cur.text.WriteString(s)
	return b
}

// Up returns a cursor on the parent of the current element. At the root it
// returns b unchanged.
func (b *Builder) Up() *Builder {
	if b.cur.parent == nil {
		return b
	}
	return &Builder{root: b.root, cur: b.cur.parent}
}

// Element renders the whole tree.
func (b *Builder) Element() stravaganza.Element {
	return b.root.element()
}

// String serializes the whole tree, regardless of the cursor position.
func (b *Builder) String() string {
	var sb strings.Builder
	if err := b.Element().ToXML(&sb, true); err != nil {
		return ""
	}
	return sb.String()
}

func (n *node) element() stravaganza.Element {
	eb := stravaganza.NewBuilder(n.name).WithAttributes(sortedAttrs(n.attrs)...)
	if n.text.Len() > 0 {
		eb = eb.WithText(n.text.String())
	}
	for _, c := range n.children {
		eb = eb.WithChild(c.element())
	}
	return eb.Build()
}

// sortedAttrs orders attributes by name with namespace declarations first so
// serialized stanzas are stable.
func sortedAttrs(attrs Attrs) []stravaganza.Attribute {
	out := make([]stravaganza.Attribute, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, stravaganza.Attribute{Label: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		xi, xj := strings.HasPrefix(out[i].Label, "xmlns"), strings.HasPrefix(out[j].Label, "xmlns")
		if xi != xj {
			return xi
		}
		return out[i].Label < out[j].Label
	})
	return out
}
