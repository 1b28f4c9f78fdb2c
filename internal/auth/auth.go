// Package auth scaffolds the SPICE link handshake's authentication
// sub-protocol (spec §4.3 step 3). Real SPICE servers challenge the client
// with an RSA-encrypted ticket; completing that exchange is explicitly out
// of scope for this core (spec §9 Open Questions). This package gives a
// host application a seam to plug in a real implementation without the
// channel package needing to change.
package auth

import (
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"

	"spice-go/internal/spiceerr"
)

// Authenticator completes the handshake's optional authentication phase
// against the auth-size bytes the server sent after its LinkReply. An empty
// challenge means "no password configured": Authenticate is still called so
// a custom implementation can assert on it, but the default NoAuth
// implementation treats it as a no-op read-and-discard.
type Authenticator interface {
	Authenticate(challenge []byte) (response []byte, err error)
}

// NoAuth satisfies servers that advertise auth size 0. Any non-empty
// challenge is treated as a protocol the client cannot complete and fails
// fast rather than silently sending a garbage response.
type NoAuth struct{}

func (NoAuth) Authenticate(challenge []byte) ([]byte, error) {
	if len(challenge) > 0 {
		return nil, spiceerr.ErrAuthenticationFailed
	}
	return nil, nil
}

// PasswordAuth derives a response from a plaintext password and the
// server's challenge bytes. This stands in for the real RSA ticket
// exchange: it is a scaffold for hosts that terminate a password-protected
// proxy in front of the SPICE server (e.g. a WebSocket gateway checking a
// shared secret) rather than the SPICE wire protocol's own ticket scheme.
type PasswordAuth struct {
	Password string
}

const (
	pbkdf2Iterations = 4096
	responseKeyLen   = 32
)

func (p PasswordAuth) Authenticate(challenge []byte) ([]byte, error) {
	if len(challenge) == 0 {
		return nil, nil
	}
	return pbkdf2.Key([]byte(p.Password), challenge, pbkdf2Iterations, responseKeyLen, sha3.New256), nil
}
