package types

import "fmt"

// SignatureScheme identifies a signing algorithm. The values are the
// wire discriminants of the node's multi-signature envelope.
type SignatureScheme uint8

const (
	SchemeEd25519 SignatureScheme = 0
	SchemeSr25519 SignatureScheme = 1
	SchemeEcdsa   SignatureScheme = 2
)

// String returns the lowercase scheme name.
func (s SignatureScheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeSr25519:
		return "sr25519"
	case SchemeEcdsa:
		return "ecdsa"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

// Valid reports whether the scheme is one this client understands.
func (s SignatureScheme) Valid() bool { return s <= SchemeEcdsa }

// SignatureLen is the signature body length for the scheme.
// Ed25519 and sr25519 produce 64 bytes; ecdsa produces 65
// (recoverable form).
func (s SignatureScheme) SignatureLen() int {
	if s == SchemeEcdsa {
		return 65
	}
	return 64
}

// Signature is a scheme-tagged signature over a signing payload.
type Signature struct {
	Scheme SignatureScheme
	Body   []byte
}

// NewSignature builds a Signature, checking the body length
// against the scheme.
func NewSignature(scheme SignatureScheme, body []byte) (Signature, error) {
	if !scheme.Valid() {
		return Signature{}, fmt.Errorf("types: unknown signature scheme %d", uint8(scheme))
	}
	if len(body) != scheme.SignatureLen() {
		return Signature{}, fmt.Errorf("types: %s signature must be %d bytes, got %d",
			scheme, scheme.SignatureLen(), len(body))
	}
	sig := Signature{Scheme: scheme, Body: make([]byte, len(body))}
	copy(sig.Body, body)
	return sig, nil
}
