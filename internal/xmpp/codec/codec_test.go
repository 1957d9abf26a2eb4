package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsDoctype(t *testing.T) {
	inputs := []string{
		`<!DOCTYPE foo [<!ENTITY a "aaaa">]><foo>&a;</foo>`,
		`<!doctype foo><foo/>`,
		`<message><body>hi</body></message><!DocType x>`,
	}
	for _, in := range inputs {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrUnsafeInput, in)
	}
}

func TestParseRejectsUnsafeContent(t *testing.T) {
	inputs := []string{
		`<message><script>alert(1)</script></message>`,
		`<message><IFRAME src="x"></IFRAME></message>`,
		`<message><object data="x"/></message>`,
		`<message><embed src="x"/></message>`,
		`<message><form action="x"></form></message>`,
		`<html><body>hi</body></html>`,
		`<message><body onclick="x()">hi</body></message>`,
		`<message><x onLoad = "y"/></message>`,
	}
	for _, in := range inputs {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrUnsafeContent, in)
	}
}

func TestParseAllowsBody(t *testing.T) {
	el, err := Parse(`<message type="chat"><body>hello</body></message>`)
	require.NoError(t, err)

	assert.Equal(t, "message", el.Name())
	assert.Equal(t, "chat", el.Attribute("type"))
	assert.Equal(t, "hello", ChildText(el, "body"))
}

func TestParseCDATAIsLossless(t *testing.T) {
	const raw = `<>&"'`

	el, err := Parse(`<body><![CDATA[` + raw + `]]></body>`)
	require.NoError(t, err)
	assert.Equal(t, raw, el.Text())

	out := Build("body", nil).Text(raw).String()
	back, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, raw, back.Text())
}

func TestParseMalformed(t *testing.T) {
	inputs := []string{
		``,
		`<a>`,
		`<a></b>`,
		`<a/><b/>`,
		`text<a/>`,
		`<a b="1></a>`,
	}
	for _, in := range inputs {
		_, err := Parse(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, ErrMalformedXML), "%q: %v", in, err)
		assert.NotEqual(t, ErrMalformedXML.Error(), err.Error(), "diagnostic should be carried")
	}
}

func TestParseFragmentSiblings(t *testing.T) {
	root, err := ParseFragment(`<presence from="a@b"/><message from="c@d"><body>x</body></message>`)
	require.NoError(t, err)

	children := root.AllChildren()
	require.Len(t, children, 2)
	assert.Equal(t, "presence", children[0].Name())
	assert.Equal(t, "message", children[1].Name())
}

func TestParseKeepsPrefixes(t *testing.T) {
	root, err := ParseFragment(`<stream:features xmlns:stream="http://etherx.jabber.org/streams"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/></stream:features>`)
	require.NoError(t, err)

	f := root.AllChildren()[0]
	assert.Equal(t, "stream:features", f.Name())
	assert.Equal(t, NSStream, f.Attribute("xmlns:stream"))
	assert.Equal(t, "features", LocalName(f.Name()))
	assert.NotNil(t, Child(f, "bind"))
}

func TestBuilderSerializesFromRoot(t *testing.T) {
	b := NewIQ(Attrs{"type": "set", "id": "bind_1"}).
		Child("bind", Attrs{"xmlns": NSBind}).
		Child("resource", nil).Text("phone")

	out := b.String()
	el, err := Parse(out)
	require.NoError(t, err)

	assert.Equal(t, "iq", el.Name())
	assert.Equal(t, "set", el.Attribute("type"))
	assert.Equal(t, "bind_1", el.Attribute("id"))
	bind := Child(el, "bind")
	require.NotNil(t, bind)
	assert.Equal(t, NSBind, bind.Attribute("xmlns"))
	assert.Equal(t, "phone", ChildText(bind, "resource"))
}

func TestBuilderUp(t *testing.T) {
	b := NewPresence(nil).Child("show", nil).Text("away").Up().Child("status", nil).Text("lunch")

	el, err := Parse(b.String())
	require.NoError(t, err)

	children := el.AllChildren()
	require.Len(t, children, 2)
	assert.Equal(t, "away", children[0].Text())
	assert.Equal(t, "lunch", children[1].Text())

	root := NewPresence(nil)
	assert.Same(t, root, root.Up())
}

func TestBuilderEscapesAttributes(t *testing.T) {
	out := NewMessage(Attrs{"to": `a"b@example.com`}).String()

	el, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, `a"b@example.com`, el.Attribute("to"))
}

func TestStreamOpenTag(t *testing.T) {
	tag := StreamOpenTag("example.com")

	assert.Contains(t, tag, "<stream:stream to='example.com'")
	assert.Contains(t, tag, "xmlns='jabber:client'")
	assert.Contains(t, tag, "xmlns:stream='http://etherx.jabber.org/streams'")
	assert.Contains(t, tag, "version='1.0'")
}
