package xmpp

import (
	"errors"

	"github.com/meszmate/wsroster/internal/xmpp/sasl"
)

var (
	// ErrAuthenticationFailed is returned when the server rejects credentials.
	ErrAuthenticationFailed = errors.New("xmpp: authentication failed")

	// ErrConnectionFailed wraps transport and negotiation failures.
	ErrConnectionFailed = errors.New("xmpp: connection failed")

	// ErrNoSupportedMechanism is returned when the server offers no usable SASL
	// mechanism.
	ErrNoSupportedMechanism = sasl.ErrNoSupportedMechanism

	// ErrConnectInProgress is returned by Connect while another attempt or a
	// live session exists.
	ErrConnectInProgress = errors.New("xmpp: connection already in progress")

	// ErrNotConnected is returned by operations that need a session.
	ErrNotConnected = errors.New("xmpp: not connected")

	// ErrDisconnected completes a pending Connect aborted by Disconnect.
	ErrDisconnected = errors.New("xmpp: disconnected")

	// ErrNoRecipient is returned by SendMessage without a recipient.
	ErrNoRecipient = errors.New("xmpp: message has no recipient")

	// ErrInvalidShow is returned by SendPresence for an unknown show value.
	ErrInvalidShow = errors.New("xmpp: invalid presence show")

	// ErrOutboxFull is returned when too many messages wait for a connection.
	ErrOutboxFull = errors.New("xmpp: outbox full")
)
