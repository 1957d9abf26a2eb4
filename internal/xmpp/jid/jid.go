// Package jid decomposes XMPP addresses of the form local@domain/resource.
package jid

import (
	"fmt"
	"strings"

	meljid "mellium.im/xmpp/jid"
)

// JID is a decomposed XMPP address. An empty Local or Resource means the part
// is absent.
type JID struct {
	Local    string
	Domain   string
	Resource string
}

// Parse splits s into its parts. It accepts any string: when s has no '@' the
// whole bare part is taken as the domain.
func Parse(s string) JID {
	bare, resource, _ := strings.Cut(s, "/")
	if bare == "" {
		bare = s
		resource = ""
	}

	local, domain, ok := strings.Cut(bare, "@")
	if !ok {
		return JID{Domain: bare, Resource: resource}
	}
	return JID{Local: local, Domain: domain, Resource: resource}
}

// Bare returns local@domain, or the domain alone when there is no local part.
func (j JID) Bare() string {
	if j.Local == "" {
		return j.Domain
	}
	return j.Local + "@" + j.Domain
}

// Full returns the bare address followed by /resource when a resource is set.
func (j JID) Full() string {
	if j.Resource == "" {
		return j.Bare()
	}
	return j.Bare() + "/" + j.Resource
}

// String returns the full form.
func (j JID) String() string {
	return j.Full()
}

// IsZero reports whether the JID has no domain.
func (j JID) IsZero() bool {
	return j.Domain == ""
}

// Equal compares two address strings. Unless compareResource is set only the
// bare forms are compared.
func Equal(a, b string, compareResource bool) bool {
	if compareResource {
		return a == b
	}
	return Parse(a).Bare() == Parse(b).Bare()
}

// Validate checks s against the address grammar. Parse never fails; Validate
// is used before a connection attempt to reject unusable account addresses.
func Validate(s string) error {
	if s == "" {
		return fmt.Errorf("invalid JID: empty address")
	}
	if _, err := meljid.Parse(s); err != nil {
		return fmt.Errorf("invalid JID %q: %w", s, err)
	}
	return nil
}
