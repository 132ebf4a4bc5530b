package sigil

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/extrinsic"
	"github.com/sigil-dev/sigil/txstatus"
	"github.com/sigil-dev/sigil/types"
)

// Tx is a checked call. The arguments were encoded against the
// metadata when it was built, so an existing Tx cannot fail shape
// checks later in the flow.
type Tx struct {
	client *Client
	call   extrinsic.Call
}

// Tx resolves pallet.call in the metadata and encodes args against
// the call's declared argument types.
func (c *Client) Tx(pallet, call string, args ...dynamic.Value) (*Tx, error) {
	cl, err := extrinsic.NewCall(c.meta, pallet, call, args...)
	if err != nil {
		return nil, err
	}
	return &Tx{client: c, call: cl}, nil
}

// SignOption adjusts one signing pass.
type SignOption func(*signConfig)

type signConfig struct {
	nonce      *uint64
	tip        *uint256.Int
	era        extrinsic.Era
	checkpoint types.Hash
}

// WithNonce pins the nonce instead of asking the node for the
// account's next index.
func WithNonce(n uint64) SignOption {
	return func(c *signConfig) { c.nonce = &n }
}

// WithTip attaches a tip to the extrinsic.
func WithTip(tip *uint256.Int) SignOption {
	return func(c *signConfig) { c.tip = tip }
}

// WithEra bounds the extrinsic's validity. checkpoint is the hash of
// the block the era was computed against; the node recomputes it
// from the era alone, so a wrong checkpoint invalidates the
// signature rather than extending it.
func WithEra(era extrinsic.Era, checkpoint types.Hash) SignOption {
	return func(c *signConfig) {
		c.era = era
		c.checkpoint = checkpoint
	}
}

// Signed builds and signs the extrinsic. The era is immortal unless
// WithEra says otherwise, and the nonce comes from AccountNonce
// unless WithNonce pinned one.
func (t *Tx) Signed(ctx context.Context, signer extrinsic.Signer, opts ...SignOption) (*SignedTx, error) {
	var cfg signConfig
	for _, o := range opts {
		o(&cfg)
	}

	var nonce uint64
	if cfg.nonce != nil {
		nonce = *cfg.nonce
	} else {
		n, err := t.client.AccountNonce(ctx, signer.AccountID())
		if err != nil {
			return nil, fmt.Errorf("sigil: fetch nonce: %w", err)
		}
		nonce = n
	}

	payload, err := extrinsic.BuildPayload(t.call, extrinsic.Options{
		Nonce:          nonce,
		Tip:            cfg.tip,
		Era:            cfg.era,
		SpecVersion:    t.client.version.SpecVersion,
		TxVersion:      t.client.version.TransactionVersion,
		GenesisHash:    t.client.genesis,
		CheckpointHash: cfg.checkpoint,
	})
	if err != nil {
		return nil, err
	}
	signed, err := extrinsic.Sign(payload, signer)
	if err != nil {
		return nil, err
	}
	return &SignedTx{client: t.client, ext: signed}, nil
}

// Unsigned wraps the call in the unsigned envelope, for calls the
// runtime accepts without a signature.
func (t *Tx) Unsigned() *SignedTx {
	return &SignedTx{client: t.client, ext: extrinsic.NewUnsigned(t.call)}
}

// SignedTx is a wire-ready extrinsic bound to the client that built
// it.
type SignedTx struct {
	client *Client
	ext    *extrinsic.SignedExtrinsic
}

// Extrinsic exposes the underlying envelope.
func (s *SignedTx) Extrinsic() *extrinsic.SignedExtrinsic { return s.ext }

// Hash returns the extrinsic hash nodes use in lifecycle reports.
func (s *SignedTx) Hash() types.Hash { return s.ext.Hash() }

// Submit hands the extrinsic to the node and returns its hash.
// Acceptance into the pool is all it means; inclusion never comes
// back on this path, use SubmitAndWatch for that.
func (s *SignedTx) Submit(ctx context.Context) (types.Hash, error) {
	var h types.Hash
	if err := s.client.rpc.Call(ctx, &h, methodSubmit, types.HexBytes(s.ext.Encode())); err != nil {
		return types.Hash{}, err
	}
	return h, nil
}

// SubmitAndWatch submits the extrinsic and follows its lifecycle.
// The watcher owns the subscription; closing it stops tracking
// without retracting the extrinsic.
func (s *SignedTx) SubmitAndWatch(ctx context.Context) (*txstatus.Watcher, error) {
	sub, err := s.client.rpc.Subscribe(ctx, methodSubmitWatch, methodUnwatch, methodWatchUpdates,
		types.HexBytes(s.ext.Encode()))
	if err != nil {
		return nil, err
	}
	return txstatus.NewWatcher(sub), nil
}
