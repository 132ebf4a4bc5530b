// Package keyring holds ed25519 signing pairs for extrinsic
// submission, including deterministic dev accounts for tests and
// local networks.
package keyring

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"

	"github.com/sigil-dev/sigil/extrinsic"
	"github.com/sigil-dev/sigil/types"
)

var (
	_ extrinsic.Signer = (*Pair)(nil)
	_ extrinsic.Signer = (*Restricted)(nil)
)

// ErrNotAllowed is returned by a Restricted signer for accounts off
// its allow list.
var ErrNotAllowed = errors.New("keyring: account not on the allow list")

// Pair is an ed25519 key pair. The account id is the public key.
type Pair struct {
	priv ed25519.PrivateKey
	pub  types.AccountID
}

// FromSeed builds a pair from a 32-byte ed25519 seed.
func FromSeed(seed [32]byte) *Pair {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var pub types.AccountID
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &Pair{priv: priv, pub: pub}
}

// FromMnemonic derives a pair from a bip39 mnemonic and password.
// The first 32 bytes of the bip39 seed become the ed25519 seed; no
// hierarchical derivation is applied.
func FromMnemonic(phrase, password string) (*Pair, error) {
	seedBytes, err := bip39.NewSeedWithErrorChecking(phrase, password)
	if err != nil {
		return nil, fmt.Errorf("keyring: %w", err)
	}
	var seed [32]byte
	copy(seed[:], seedBytes[:32])
	return FromSeed(seed), nil
}

// Generate draws a fresh pair from r, typically crypto/rand.Reader.
func Generate(r io.Reader) (*Pair, error) {
	var seed [32]byte
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return nil, fmt.Errorf("keyring: read seed: %w", err)
	}
	return FromSeed(seed), nil
}

// AccountID returns the pair's public key.
func (p *Pair) AccountID() types.AccountID { return p.pub }

// Sign signs payload, returning an ed25519-tagged signature.
func (p *Pair) Sign(payload []byte) (types.Signature, error) {
	return types.NewSignature(types.SchemeEd25519, ed25519.Sign(p.priv, payload))
}

// Verify reports whether sig is this pair's signature over payload.
func (p *Pair) Verify(payload []byte, sig types.Signature) bool {
	if sig.Scheme != types.SchemeEd25519 {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(p.pub[:]), payload, sig.Body)
}

// devPair derives a well-known test identity: the seed is the
// blake2b-256 of the account name. These are not wallet-scheme
// derivations; never fund them on a live network.
func devPair(name string) *Pair {
	return FromSeed(blake2b.Sum256([]byte(name)))
}

func Alice() *Pair   { return devPair("Alice") }
func Bob() *Pair     { return devPair("Bob") }
func Charlie() *Pair { return devPair("Charlie") }
func Dave() *Pair    { return devPair("Dave") }

// Restricted wraps a signer and signs only for accounts on its allow
// list. Everything else is refused with ErrNotAllowed.
type Restricted struct {
	signer extrinsic.Signer
	allow  map[types.AccountID]struct{}
}

// Restrict builds the allow-listed wrapper around s.
func Restrict(s extrinsic.Signer, accounts ...types.AccountID) *Restricted {
	allow := make(map[types.AccountID]struct{}, len(accounts))
	for _, a := range accounts {
		allow[a] = struct{}{}
	}
	return &Restricted{signer: s, allow: allow}
}

func (r *Restricted) AccountID() types.AccountID { return r.signer.AccountID() }

func (r *Restricted) Sign(payload []byte) (types.Signature, error) {
	if _, ok := r.allow[r.signer.AccountID()]; !ok {
		return types.Signature{}, fmt.Errorf("%w: %s", ErrNotAllowed, r.signer.AccountID())
	}
	return r.signer.Sign(payload)
}
