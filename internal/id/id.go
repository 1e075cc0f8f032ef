package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// UUID returns a random v4 UUID in canonical form. Store-generated record
// ids use it.
func UUID() string {
	return uuid.New().String()
}

// Short returns 16 random hex characters, used for request ids.
func Short() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
