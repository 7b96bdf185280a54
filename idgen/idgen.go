// Package idgen provides pluggable ID generation. Constructors across
// the repo accept a Generator, making the ID strategy a startup-time
// decision rather than a compile-time one.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator producing base-36 IDs of the given length.
// Short and URL-safe; use where UUIDv7 is too verbose, like session
// tokens.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		out := make([]byte, length)
		for i := range out {
			out[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(out)
	}
}

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings,
// time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID,
// for type-scoped identifiers like "job_".
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7: job and screenshot IDs sort by creation time.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
