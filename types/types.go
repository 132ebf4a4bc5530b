// Package types defines the primitive value types shared across the
// client: hashes, account identifiers, scheme-tagged signatures, and
// the hex-string byte carrier used at the JSON-RPC boundary.
package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash is a 32-byte block or extrinsic hash.
type Hash [32]byte

// NewHash builds a Hash from a byte slice of exactly 32 bytes.
func NewHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != len(h) {
		return Hash{}, fmt.Errorf("types: hash must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a 0x-prefixed hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := parseHex(s)
	if err != nil {
		return Hash{}, err
	}
	return NewHash(b)
}

// Hex returns the 0x-prefixed hex form.
func (h Hash) Hex() string { return encodeHex(h[:]) }

func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool { return h == Hash{} }

// MarshalText implements encoding.TextMarshaler (0x-prefixed hex).
func (h Hash) MarshalText() ([]byte, error) { return []byte(h.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// AccountID is a 32-byte public account identifier.
type AccountID [32]byte

// NewAccountID builds an AccountID from a byte slice of exactly 32 bytes.
func NewAccountID(b []byte) (AccountID, error) {
	var id AccountID
	if len(b) != len(id) {
		return AccountID{}, fmt.Errorf("types: account id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Hex returns the 0x-prefixed hex form.
func (id AccountID) Hex() string { return encodeHex(id[:]) }

func (id AccountID) String() string { return id.Hex() }

// HexBytes is a byte slice that marshals to and from 0x-prefixed hex.
// JSON-RPC nodes exchange all binary payloads in this form.
type HexBytes []byte

// MarshalText implements encoding.TextMarshaler.
func (b HexBytes) MarshalText() ([]byte, error) { return []byte(encodeHex(b)), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *HexBytes) UnmarshalText(text []byte) error {
	parsed, err := parseHex(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Hex returns the 0x-prefixed hex form.
func (b HexBytes) Hex() string { return encodeHex(b) }

func (b HexBytes) String() string { return b.Hex() }

func encodeHex(b []byte) string { return "0x" + hex.EncodeToString(b) }

func parseHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") {
		return nil, fmt.Errorf("types: hex string %q missing 0x prefix", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("types: invalid hex string: %w", err)
	}
	return b, nil
}
