package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStreamHeader(t *testing.T) {
	frames, err := Decode(`<?xml version='1.0'?><stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' id='abc123' from='example.com' version='1.0'>`)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	assert.Equal(t, StreamOpen{ID: "abc123"}, frames[0])
}

func TestDecodeStreamHeaderWithFeatures(t *testing.T) {
	frames, err := Decode(`<stream:stream id="s2" xmlns:stream="http://etherx.jabber.org/streams"><stream:features><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/></stream:features>`)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, StreamOpen{ID: "s2"}, frames[0])
	assert.Equal(t, Features{Bind: true}, frames[1])
}

func TestDecodeStreamClose(t *testing.T) {
	frames, err := Decode("  </stream:stream>")
	require.NoError(t, err)
	assert.Equal(t, []Frame{StreamClose{}}, frames)

	frames, err = Decode(`<close xmlns="urn:ietf:params:xml:ns:xmpp-framing"/>`)
	require.NoError(t, err)
	assert.Equal(t, []Frame{StreamClose{}}, frames)
}

func TestDecodeFeatures(t *testing.T) {
	frames, err := Decode(`<stream:features>
		<mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl">
			<mechanism>SCRAM-SHA-1</mechanism>
			<mechanism>PLAIN</mechanism>
		</mechanisms>
	</stream:features>`)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	f, ok := frames[0].(Features)
	require.True(t, ok)
	assert.Equal(t, []string{"SCRAM-SHA-1", "PLAIN"}, f.Mechanisms)
	assert.False(t, f.Bind)
}

func TestDecodeFeaturesSession(t *testing.T) {
	frames, err := Decode(`<stream:features><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/><session xmlns="urn:ietf:params:xml:ns:xmpp-session"><optional/></session></stream:features>`)
	require.NoError(t, err)

	assert.Equal(t, Features{Bind: true, Session: true, SessionOptional: true}, frames[0])
}

func TestDecodeSASLResults(t *testing.T) {
	frames, err := Decode(`<success xmlns="urn:ietf:params:xml:ns:xmpp-sasl"/>`)
	require.NoError(t, err)
	assert.Equal(t, []Frame{Success{}}, frames)

	frames, err = Decode(`<failure xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><not-authorized/><text>bad password</text></failure>`)
	require.NoError(t, err)
	assert.Equal(t, []Frame{Failure{Condition: "not-authorized", Text: "bad password"}}, frames)
}

func TestDecodeBindResult(t *testing.T) {
	frames, err := Decode(`<iq type="result" id="bind_1"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>alice@example.com/phone</jid></bind></iq>`)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	iq, ok := frames[0].(IQ)
	require.True(t, ok)
	assert.Equal(t, "bind_1", iq.ID)
	assert.Equal(t, "result", iq.Type)
	assert.Equal(t, "alice@example.com/phone", iq.BoundJID)
}

func TestDecodeStanzasInOrder(t *testing.T) {
	frames, err := Decode(`<message type="chat" from="a@b/c"><body>1</body></message><presence from="a@b/c"/><foo/>`)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	_, isMessage := frames[0].(Message)
	_, isPresence := frames[1].(Presence)
	_, isUnknown := frames[2].(Unknown)
	assert.True(t, isMessage)
	assert.True(t, isPresence)
	assert.True(t, isUnknown)
}

func TestDecodeStreamError(t *testing.T) {
	frames, err := Decode(`<stream:error><conflict xmlns="urn:ietf:params:xml:ns:xmpp-streams"/><text>replaced</text></stream:error>`)
	require.NoError(t, err)

	assert.Equal(t, []Frame{StreamError{Condition: "conflict", Text: "replaced"}}, frames)
}

func TestDecodePropagatesPolicyErrors(t *testing.T) {
	_, err := Decode(`<message><script>x</script></message>`)
	assert.ErrorIs(t, err, ErrUnsafeContent)

	_, err = Decode(`<message><body>x</message>`)
	assert.ErrorIs(t, err, ErrMalformedXML)
}
