// Package extrinsic assembles, signs and serializes transactions.
// A Call encodes the dispatch target and arguments, BuildPayload
// mixes in the per-submission options, and Sign produces the
// length-prefixed wire form a node accepts.
package extrinsic

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/sigil-dev/sigil/scale"
	"github.com/sigil-dev/sigil/types"
)

// Signer is the injected signing capability. An implementation holds
// key material for exactly one account and refuses payloads it
// cannot sign.
type Signer interface {
	AccountID() types.AccountID
	Sign(payload []byte) (types.Signature, error)
}

// ErrSignerRejected wraps a signer's refusal. Signing never falls
// back to another key.
var ErrSignerRejected = errors.New("extrinsic: signer rejected payload")

const (
	// versionSigned is transaction format 4 with the signed bit set.
	versionSigned   = 0x84
	versionUnsigned = 0x04

	// addressIDTag selects the 32-byte account id arm of the
	// multi-address enum.
	addressIDTag = 0x00
)

// SignedExtrinsic is a wire-complete extrinsic. Instances are
// immutable once built; unsigned extrinsics share the container and
// report Signed() == false.
type SignedExtrinsic struct {
	version byte
	address types.AccountID
	sig     types.Signature
	extra   []byte
	call    []byte
}

// Sign obtains a signature over payload's signing bytes from signer
// and assembles the submittable extrinsic.
func Sign(payload *Payload, signer Signer) (*SignedExtrinsic, error) {
	sig, err := signer.Sign(payload.SigningPayload())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignerRejected, err)
	}
	if !sig.Scheme.Valid() || len(sig.Body) != sig.Scheme.SignatureLen() {
		return nil, fmt.Errorf("extrinsic: signer returned a malformed %s signature of %d bytes",
			sig.Scheme, len(sig.Body))
	}
	return &SignedExtrinsic{
		version: versionSigned,
		address: signer.AccountID(),
		sig:     sig,
		extra:   payload.Extra(),
		call:    payload.CallData(),
	}, nil
}

// NewUnsigned builds the unsigned form of call, submittable without
// a signature block.
func NewUnsigned(call Call) *SignedExtrinsic {
	w := scale.NewWriter()
	call.EncodeTo(w)
	return &SignedExtrinsic{version: versionUnsigned, call: w.Bytes()}
}

// Signed reports whether the extrinsic carries a signature block.
func (x *SignedExtrinsic) Signed() bool { return x.version&0x80 != 0 }

// Version returns the format version byte, signed bit included.
func (x *SignedExtrinsic) Version() byte { return x.version }

// Address returns the signing account, zero for unsigned extrinsics.
func (x *SignedExtrinsic) Address() types.AccountID { return x.address }

// CallData returns a copy of the encoded call.
func (x *SignedExtrinsic) CallData() []byte {
	out := make([]byte, len(x.call))
	copy(out, x.call)
	return out
}

// Encode returns the compact-length-prefixed wire bytes.
func (x *SignedExtrinsic) Encode() []byte {
	body := scale.NewWriter()
	body.PutByte(x.version)
	if x.Signed() {
		body.PutByte(addressIDTag)
		body.PutBytes(x.address[:])
		body.PutByte(byte(x.sig.Scheme))
		body.PutBytes(x.sig.Body)
		body.PutBytes(x.extra)
	}
	body.PutBytes(x.call)

	w := scale.NewWriter()
	w.PutCompactUint(uint64(body.Len()))
	w.PutBytes(body.Bytes())
	return w.Bytes()
}

// Hash returns the blake2b-256 hash of the encoded extrinsic, the
// identity nodes report in lifecycle notifications.
func (x *SignedExtrinsic) Hash() types.Hash {
	return types.Hash(blake2b.Sum256(x.Encode()))
}
