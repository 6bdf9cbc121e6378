// Package domain defines the opaque value types shared by both registries.
// The registries never interpret these values beyond equality and length
// checks; signing, hashing, and circuit semantics live outside the core.
package domain

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Identity is the authenticated caller identifier supplied by the
// environment. It doubles as the primary key for authorities and
// applications.
type Identity string

func (i Identity) IsZero() bool { return i == "" }

func (i Identity) String() string { return string(i) }

// HashLen is the byte length of proof and health record hashes.
const HashLen = 32

// Hash is a 0x-prefixed, lowercase, 64-hex-digit opaque hash value. The zero
// hash is never a usable key.
type Hash string

// ZeroHash is the all-zero hash value.
const ZeroHash Hash = "0x0000000000000000000000000000000000000000000000000000000000000000"

func (h Hash) IsZero() bool { return h == "" || h == ZeroHash }

func (h Hash) String() string { return string(h) }

var errMalformedHash = errors.New("hash must be a 0x-prefixed 32-byte hex string")

// ParseHash normalizes a caller-supplied hash value. It accepts upper- and
// mixed-case hex and enforces the fixed length.
func ParseHash(s string) (Hash, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	raw, ok := strings.CutPrefix(s, "0x")
	if !ok || len(raw) != HashLen*2 {
		return "", errMalformedHash
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", errMalformedHash
	}
	return Hash(s), nil
}

// PublicKeySize is the expected byte length of an authority public key
// (compressed secp256k1). The core validates length only and never
// interprets the key material.
const PublicKeySize = 33

// ValidPublicKey reports whether b has the expected fixed size.
func ValidPublicKey(b []byte) bool { return len(b) == PublicKeySize }
