package transfer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/example/transfer"
	"github.com/sigil-dev/sigil/keyring"
	"github.com/sigil-dev/sigil/storage"
	sigiltest "github.com/sigil-dev/sigil/testing"
	"github.com/sigil-dev/sigil/txstatus"
	"github.com/sigil-dev/sigil/types"
)

// seedAccount installs a state_getStorage handler that serves an
// encoded AccountInfo with the given free balance under account's
// System.Account key, and nothing under any other key.
func seedAccount(t *testing.T, h *sigiltest.Harness, account types.AccountID, free uint64) {
	t.Helper()
	m := h.Client().Metadata()
	entry, err := m.Storage("System", "Account")
	if err != nil {
		t.Fatalf("System.Account entry: %v", err)
	}
	info := dynamic.Composite(
		dynamic.Named("nonce", dynamic.Uint(0)),
		dynamic.Named("consumers", dynamic.Uint(0)),
		dynamic.Named("providers", dynamic.Uint(1)),
		dynamic.Named("data", dynamic.Composite(
			dynamic.Named("free", dynamic.Uint(free)),
			dynamic.Named("reserved", dynamic.Uint(0)),
		)),
	)
	raw, err := dynamic.Encode(m.Types, entry.Value, info)
	if err != nil {
		t.Fatalf("encode account info: %v", err)
	}
	wantKey, err := storage.Key(m, "System", "Account", dynamic.Bytes(account[:]))
	if err != nil {
		t.Fatalf("account key: %v", err)
	}
	h.Node().Handle("state_getStorage", func(params []json.RawMessage) (any, error) {
		var key types.HexBytes
		if err := json.Unmarshal(params[0], &key); err != nil {
			return nil, err
		}
		if !bytes.Equal(key, wantKey) {
			return nil, nil
		}
		return types.HexBytes(raw), nil
	})
}

func TestBalance(t *testing.T) {
	h := sigiltest.NewHarness(t)
	alice := keyring.Alice()
	seedAccount(t, h, alice.AccountID(), 12_000)

	got, err := transfer.Balance(context.Background(), h.Client(), alice.AccountID())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got.Uint64() != 12_000 {
		t.Fatalf("free balance = %s, want 12000", got)
	}

	// An unseeded account reads through the zero default.
	got, err = transfer.Balance(context.Background(), h.Client(), keyring.Bob().AccountID())
	if err != nil {
		t.Fatalf("Balance for fresh account: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("fresh account balance = %s, want 0", got)
	}
}

func TestSend_Finalized(t *testing.T) {
	h := sigiltest.NewHarness(t)
	block := types.Hash(bytes.Repeat([]byte{0xd4}, 32))
	h.Node().Script(sigiltest.FinalizeScript(block)...)

	alice := keyring.Alice()
	h.SetNonce(alice.AccountID(), 4)

	got, err := transfer.Send(context.Background(), h.Client(), alice, keyring.Bob().AccountID(), uint256.NewInt(1000))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != block {
		t.Fatalf("finalized in %s, want %s", got, block)
	}
	if n := len(h.Node().Submitted()); n != 1 {
		t.Fatalf("node received %d extrinsics, want 1", n)
	}
	if n := h.Node().OpenSubscriptions(); n != 0 {
		t.Fatalf("%d subscriptions left open", n)
	}
}

func TestSend_Dropped(t *testing.T) {
	h := sigiltest.NewHarness(t)
	h.Node().Script(
		txstatus.Status{Kind: txstatus.Ready},
		txstatus.Status{Kind: txstatus.Dropped},
	)

	_, err := transfer.Send(context.Background(), h.Client(), keyring.Alice(), keyring.Bob().AccountID(), uint256.NewInt(5))
	if err == nil {
		t.Fatalf("dropped transfer reported success")
	}
	if !strings.Contains(err.Error(), "Dropped") {
		t.Fatalf("error does not name the terminal status: %v", err)
	}
	if n := h.Node().OpenSubscriptions(); n != 0 {
		t.Fatalf("%d subscriptions left open", n)
	}
}
