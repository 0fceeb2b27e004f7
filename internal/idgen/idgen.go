// Package idgen provides pluggable ID generation.
//
// Constructors that persist records accept a Generator, making the ID
// strategy a startup-time decision rather than a compile-time one.
package idgen

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings,
// time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID,
// for type-scoped identifiers (e.g. "cap_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Hex returns a Generator producing n random bytes, hex-encoded. Short
// and unordered; suited to session handles, not persisted records.
func Hex(n int) Generator {
	return func() string {
		b := make([]byte, n)
		rand.Read(b)
		return hex.EncodeToString(b)
	}
}
