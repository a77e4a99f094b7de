// Package idgen mints opaque random identifiers for orders and chat
// sessions. No ID-generation library appears anywhere in the
// retrieved pack, so this uses crypto/rand directly rather than
// reaching for an ungrounded dependency.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a random 32-character hex identifier.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
