package extrinsic

import (
	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"

	"github.com/sigil-dev/sigil/scale"
	"github.com/sigil-dev/sigil/types"
)

// Options carry the per-submission fields mixed into the signing
// payload.
type Options struct {
	Nonce uint64
	Tip   *uint256.Int // nil means no tip
	Era   Era

	SpecVersion uint32
	TxVersion   uint32
	GenesisHash types.Hash

	// CheckpointHash anchors a mortal era to the block it was built
	// against. The zero hash means the genesis hash, the natural
	// anchor for immortal extrinsics.
	CheckpointHash types.Hash
}

// Payload is one extrinsic's signable material: the encoded call,
// the extra block that travels with the extrinsic, and the
// additional-signed block that both sides derive but never transmit.
// Instances are immutable once built.
type Payload struct {
	call       []byte
	extra      []byte
	additional []byte
}

// BuildPayload encodes call and opts into a signable payload.
func BuildPayload(call Call, opts Options) (*Payload, error) {
	cw := scale.NewWriter()
	call.EncodeTo(cw)

	ew := scale.NewWriter()
	opts.Era.EncodeTo(ew)
	ew.PutCompactUint(opts.Nonce)
	tip := opts.Tip
	if tip == nil {
		tip = new(uint256.Int)
	}
	ew.PutCompact(tip)

	aw := scale.NewWriter()
	if err := aw.PutUint(uint64(opts.SpecVersion), 4); err != nil {
		return nil, err
	}
	if err := aw.PutUint(uint64(opts.TxVersion), 4); err != nil {
		return nil, err
	}
	aw.PutBytes(opts.GenesisHash[:])
	checkpoint := opts.CheckpointHash
	if checkpoint.IsZero() {
		checkpoint = opts.GenesisHash
	}
	aw.PutBytes(checkpoint[:])

	return &Payload{call: cw.Bytes(), extra: ew.Bytes(), additional: aw.Bytes()}, nil
}

// signingPayloadLimit is the size above which the signing payload is
// hashed before signing.
const signingPayloadLimit = 256

// SigningPayload returns the bytes a signer commits to: the call,
// the extra block, then the additional-signed block. When the
// concatenation exceeds signingPayloadLimit bytes its blake2b-256
// hash is signed instead, always and exactly then.
func (p *Payload) SigningPayload() []byte {
	full := make([]byte, 0, len(p.call)+len(p.extra)+len(p.additional))
	full = append(full, p.call...)
	full = append(full, p.extra...)
	full = append(full, p.additional...)
	if len(full) > signingPayloadLimit {
		h := blake2b.Sum256(full)
		return h[:]
	}
	return full
}

// CallData returns a copy of the encoded call.
func (p *Payload) CallData() []byte {
	out := make([]byte, len(p.call))
	copy(out, p.call)
	return out
}

// Extra returns a copy of the encoded extra block.
func (p *Payload) Extra() []byte {
	out := make([]byte, len(p.extra))
	copy(out, p.extra)
	return out
}

// Additional returns a copy of the encoded additional-signed block.
func (p *Payload) Additional() []byte {
	out := make([]byte, len(p.additional))
	copy(out, p.additional)
	return out
}
