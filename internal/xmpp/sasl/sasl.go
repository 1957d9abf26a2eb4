// Package sasl computes SASL payloads for stream authentication.
package sasl

import (
	"encoding/base64"
	"errors"
	"fmt"

	melsasl "mellium.im/sasl"
)

// MechanismPlain is the only mechanism implemented.
const MechanismPlain = "PLAIN"

var (
	// ErrUnsupportedMechanism is returned when an Authenticator is requested
	// for a mechanism other than PLAIN.
	ErrUnsupportedMechanism = errors.New("sasl: unsupported mechanism")

	// ErrNoSupportedMechanism is returned when the server advertises no
	// mechanism this client implements.
	ErrNoSupportedMechanism = errors.New("sasl: no supported mechanism offered")

	// ErrNotImplemented is returned by ChallengeResponse for mechanisms
	// without a challenge round-trip.
	ErrNotImplemented = errors.New("sasl: challenge-response not implemented")
)

// Authenticator produces the payloads for one authentication exchange.
type Authenticator struct {
	mechanism string
	username  string
	password  string
}

// New returns an Authenticator for mechanism.
func New(username, password, mechanism string) (*Authenticator, error) {
	if mechanism != MechanismPlain {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMechanism, mechanism)
	}
	return &Authenticator{
		mechanism: mechanism,
		username:  username,
		password:  password,
	}, nil
}

// Mechanism returns the mechanism name sent in the auth element.
func (a *Authenticator) Mechanism() string {
	return a.mechanism
}

// InitialResponse returns the base64 payload of the auth element. For PLAIN
// this is base64("\x00" + username + "\x00" + password).
func (a *Authenticator) InitialResponse() (string, error) {
	client := melsasl.NewClient(melsasl.Plain, melsasl.Credentials(func() (username, password, identity []byte) {
		return []byte(a.username), []byte(a.password), nil
	}))

	_, resp, err := client.Step(nil)
	if err != nil {
		return "", fmt.Errorf("failed to compute %s response: %w", a.mechanism, err)
	}
	return base64.StdEncoding.EncodeToString(resp), nil
}

// ChallengeResponse answers a server challenge.
func (a *Authenticator) ChallengeResponse(challenge string) (string, error) {
	return "", fmt.Errorf("%w for %s", ErrNotImplemented, a.mechanism)
}

// Select picks the mechanism to use from a server advertisement.
func Select(advertised []string) (string, error) {
	for _, m := range advertised {
		if m == MechanismPlain {
			return MechanismPlain, nil
		}
	}
	return "", ErrNoSupportedMechanism
}
