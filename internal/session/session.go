// Package session assigns a client-local correlation id to one Client
// connection attempt, independent of the server-assigned MAIN_INIT
// session_id, so log lines from every channel goroutine can be tied
// together before the Main channel has even linked.
package session

import "github.com/google/uuid"

type ID string

// New generates a fresh correlation id.
func New() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string { return string(id) }
