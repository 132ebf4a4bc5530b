package sigiltest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/sigil-dev/sigil"
	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/extrinsic"
	"github.com/sigil-dev/sigil/rpc"
	"github.com/sigil-dev/sigil/txstatus"
	"github.com/sigil-dev/sigil/types"
)

// Harness wires a MockNode serving the fixture runtime to a
// connected client, so client-level tests drive the same code paths
// a live node would.
type Harness struct {
	t      *testing.T
	node   *MockNode
	client *sigil.Client

	mu     sync.Mutex
	nonces map[types.AccountID]uint64
}

// NewHarness boots a MockNode with the fixture chain identity and
// connects a client to it.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	h := &Harness{
		t:      t,
		node:   NewMockNode(),
		nonces: make(map[types.AccountID]uint64),
	}
	h.node.Handle("state_getMetadata", func([]json.RawMessage) (any, error) {
		return types.HexBytes(FixtureBytes()), nil
	})
	h.node.Handle("chain_getBlockHash", func([]json.RawMessage) (any, error) {
		return GenesisHash(), nil
	})
	h.node.Handle("state_getRuntimeVersion", func([]json.RawMessage) (any, error) {
		return FixtureVersion(), nil
	})
	h.node.Handle("system_accountNextIndex", h.nextIndex)

	client, err := sigil.NewClient(context.Background(), rpc.NewClient(h.node))
	if err != nil {
		t.Fatalf("connect to mock node: %v", err)
	}
	h.client = client
	t.Cleanup(func() { _ = client.Close() })
	return h
}

// Node returns the mock node for scripting and inspection.
func (h *Harness) Node() *MockNode { return h.node }

// Client returns the connected client.
func (h *Harness) Client() *sigil.Client { return h.client }

// SetNonce sets the next index the node reports for account.
// Accounts with no entry report zero.
func (h *Harness) SetNonce(account types.AccountID, nonce uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nonces[account] = nonce
}

func (h *Harness) nextIndex(params []json.RawMessage) (any, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("accountNextIndex takes one param, got %d", len(params))
	}
	var addr string
	if err := json.Unmarshal(params[0], &addr); err != nil {
		return nil, err
	}
	account, _, err := types.ParseSS58(addr)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nonces[account], nil
}

// Tx builds a checked call, failing the test on resolution errors.
func (h *Harness) Tx(pallet, call string, args ...dynamic.Value) *sigil.Tx {
	h.t.Helper()
	tx, err := h.client.Tx(pallet, call, args...)
	if err != nil {
		h.t.Fatalf("Tx(%s.%s) failed: %v", pallet, call, err)
	}
	return tx
}

// Signed signs tx, failing the test on errors.
func (h *Harness) Signed(tx *sigil.Tx, signer extrinsic.Signer, opts ...sigil.SignOption) *sigil.SignedTx {
	h.t.Helper()
	signed, err := tx.Signed(context.Background(), signer, opts...)
	if err != nil {
		h.t.Fatalf("Signed failed: %v", err)
	}
	return signed
}

// Submit submits a signed extrinsic, failing the test on errors.
func (h *Harness) Submit(signed *sigil.SignedTx) types.Hash {
	h.t.Helper()
	hash, err := signed.Submit(context.Background())
	if err != nil {
		h.t.Fatalf("Submit failed: %v", err)
	}
	return hash
}

// Watch submits a signed extrinsic and returns its lifecycle
// watcher, failing the test on errors.
func (h *Harness) Watch(signed *sigil.SignedTx) *txstatus.Watcher {
	h.t.Helper()
	w, err := signed.SubmitAndWatch(context.Background())
	if err != nil {
		h.t.Fatalf("SubmitAndWatch failed: %v", err)
	}
	return w
}

// NextStatus returns the next lifecycle report, failing the test on
// watch errors.
func (h *Harness) NextStatus(w *txstatus.Watcher) txstatus.Status {
	h.t.Helper()
	st, err := w.Next(context.Background())
	if err != nil {
		h.t.Fatalf("Next failed: %v", err)
	}
	return st
}

// MustFinalize drains w until the extrinsic finalizes and returns
// the containing block hash. Any other terminal outcome fails the
// test.
func (h *Harness) MustFinalize(w *txstatus.Watcher) types.Hash {
	h.t.Helper()
	for {
		st, err := w.Next(context.Background())
		if err != nil {
			h.t.Fatalf("watch ended before finality: %v", err)
		}
		if st.Kind == txstatus.Finalized {
			return st.Hash
		}
		if st.Kind.Terminal() {
			h.t.Fatalf("terminal status %s before finality", st.Kind)
		}
	}
}

// --- Helper Factories ---

// GenesisHash returns the fixture chain's genesis hash, the counting
// byte pattern 00 01 02 .. 1f.
func GenesisHash() types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = byte(i)
	}
	return h
}

// FixtureVersion returns the runtime version the harness serves.
func FixtureVersion() sigil.RuntimeVersion {
	return sigil.RuntimeVersion{
		SpecName:           "fixture",
		ImplName:           "sigil-fixture",
		AuthoringVersion:   1,
		SpecVersion:        100,
		ImplVersion:        1,
		TransactionVersion: 1,
		StateVersion:       1,
	}
}

// FinalizeScript is the happy-path lifecycle for a watched
// extrinsic: ready, included, finalized.
func FinalizeScript(block types.Hash) []txstatus.Status {
	return []txstatus.Status{
		{Kind: txstatus.Ready},
		{Kind: txstatus.InBlock, Hash: block},
		{Kind: txstatus.Finalized, Hash: block},
	}
}
