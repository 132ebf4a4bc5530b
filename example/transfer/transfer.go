// Package transfer demonstrates the client end to end: read an
// account's balance, build a Balances transfer, sign it with an
// injected signer, submit it and follow it to finality.
package transfer

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/sigil-dev/sigil"
	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/extrinsic"
	"github.com/sigil-dev/sigil/txstatus"
	"github.com/sigil-dev/sigil/types"
)

// Send moves value from the signer's account to dest and blocks
// until the extrinsic finalizes, returning the block it landed in.
// Any other terminal outcome is an error; the caller decides whether
// to re-acquire the nonce and retry.
func Send(ctx context.Context, c *sigil.Client, signer extrinsic.Signer, dest types.AccountID, value *uint256.Int) (types.Hash, error) {
	tx, err := c.Tx("Balances", "transfer", dynamic.Bytes(dest[:]), dynamic.BigUint(value))
	if err != nil {
		return types.Hash{}, err
	}
	signed, err := tx.Signed(ctx, signer)
	if err != nil {
		return types.Hash{}, err
	}
	w, err := signed.SubmitAndWatch(ctx)
	if err != nil {
		return types.Hash{}, err
	}
	defer w.Close()

	for {
		st, err := w.Next(ctx)
		if err != nil {
			return types.Hash{}, err
		}
		switch {
		case st.Kind == txstatus.Finalized:
			return st.Hash, nil
		case st.Kind.Terminal():
			return types.Hash{}, fmt.Errorf("transfer ended %s", st.Kind)
		}
	}
}

// Balance reads account's free balance from System.Account. A fresh
// account reads as zero through the entry's default value.
func Balance(ctx context.Context, c *sigil.Client, account types.AccountID) (*uint256.Int, error) {
	info, _, err := c.Storage().Value(ctx, "System", "Account",
		[]dynamic.Value{dynamic.Bytes(account[:])}, nil)
	if err != nil {
		return nil, err
	}
	data, ok := info.Field("data")
	if !ok {
		return nil, fmt.Errorf("transfer: account info has no data field: %v", info)
	}
	free, ok := data.Field("free")
	if !ok {
		return nil, fmt.Errorf("transfer: account data has no free field: %v", data)
	}
	n, ok := free.AsUint()
	if !ok {
		return nil, fmt.Errorf("transfer: free balance is not an integer: %v", free)
	}
	return n, nil
}
