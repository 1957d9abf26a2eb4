package sasl

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainInitialResponse(t *testing.T) {
	a, err := New("alice", "secret", MechanismPlain)
	require.NoError(t, err)

	resp, err := a.InitialResponse()
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(resp)
	require.NoError(t, err)
	assert.Equal(t, "\x00alice\x00secret", string(raw))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("\x00alice\x00secret")), resp)
}

func TestUnsupportedMechanism(t *testing.T) {
	a, err := New("alice", "secret", "SCRAM-SHA-1")
	assert.Nil(t, a)
	assert.ErrorIs(t, err, ErrUnsupportedMechanism)
}

func TestChallengeResponseNotImplemented(t *testing.T) {
	a, err := New("alice", "secret", MechanismPlain)
	require.NoError(t, err)

	_, err = a.ChallengeResponse("cmVhbG09ImV4YW1wbGUi")
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestSelect(t *testing.T) {
	m, err := Select([]string{"SCRAM-SHA-1", "PLAIN"})
	require.NoError(t, err)
	assert.Equal(t, MechanismPlain, m)

	_, err = Select([]string{"SCRAM-SHA-1", "DIGEST-MD5"})
	assert.ErrorIs(t, err, ErrNoSupportedMechanism)

	_, err = Select(nil)
	assert.ErrorIs(t, err, ErrNoSupportedMechanism)
}
