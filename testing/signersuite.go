package sigiltest

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/sigil-dev/sigil/extrinsic"
	"github.com/sigil-dev/sigil/types"
)

// RunSignerSuite runs a compliance suite against a Signer
// implementation.
//
// The factory must return a fresh instance of the same identity for
// each call, the way a keyring would reconstruct a pair from the
// same seed.
func RunSignerSuite(t *testing.T, factory func() extrinsic.Signer) {
	t.Helper()

	payload := []byte("sigiltest signer suite payload")

	t.Run("stable_account_id", func(t *testing.T) {
		s := factory()
		first := s.AccountID()
		if first == (types.AccountID{}) {
			t.Fatal("zero account id")
		}
		if s.AccountID() != first {
			t.Fatal("account id changed between calls")
		}
		if factory().AccountID() != first {
			t.Fatal("account id differs across instances")
		}
	})

	t.Run("scheme_tagged_signature", func(t *testing.T) {
		sig, err := factory().Sign(payload)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		if !sig.Scheme.Valid() {
			t.Fatalf("invalid scheme %d", uint8(sig.Scheme))
		}
		if len(sig.Body) != sig.Scheme.SignatureLen() {
			t.Fatalf("%s signature is %d bytes, want %d",
				sig.Scheme, len(sig.Body), sig.Scheme.SignatureLen())
		}
	})

	t.Run("repeat_sign_consistent", func(t *testing.T) {
		s := factory()
		a, err := s.Sign(payload)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		b, err := s.Sign(payload)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		if a.Scheme != b.Scheme {
			t.Fatalf("scheme changed: %s then %s", a.Scheme, b.Scheme)
		}
		// A deterministic scheme must also agree across instances.
		if bytes.Equal(a.Body, b.Body) {
			c, err := factory().Sign(payload)
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			if !bytes.Equal(a.Body, c.Body) {
				t.Fatal("deterministic scheme signed differently across instances")
			}
		}
	})

	t.Run("payload_sensitivity", func(t *testing.T) {
		s := factory()
		a, err := s.Sign(payload)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		b, err := s.Sign(append([]byte("x"), payload...))
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		if bytes.Equal(a.Body, b.Body) {
			t.Fatal("identical signatures for different payloads")
		}
	})

	t.Run("ed25519_signature_verifies", func(t *testing.T) {
		s := factory()
		sig, err := s.Sign(payload)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		if sig.Scheme != types.SchemeEd25519 {
			t.Skipf("scheme %s, nothing to verify against the account id", sig.Scheme)
		}
		// For ed25519 the account id is the public key.
		id := s.AccountID()
		if !ed25519.Verify(ed25519.PublicKey(id[:]), payload, sig.Body) {
			t.Fatal("signature does not verify under the account id")
		}
	})
}
