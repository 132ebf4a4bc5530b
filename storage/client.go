// Package storage reads chain state: it builds hashed storage keys
// from runtime metadata and fetches and decodes the values behind
// them.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/rpc"
	"github.com/sigil-dev/sigil/types"
)

// Client reads storage over an rpc connection, resolving keys and
// value types through runtime metadata. A nil at pins no block, so
// reads see the node's best state.
type Client struct {
	rpc  *rpc.Client
	meta *metadata.Metadata
}

func NewClient(rc *rpc.Client, m *metadata.Metadata) *Client {
	return &Client{rpc: rc, meta: m}
}

// Fetch reads the raw value under key. A nil result means the key
// holds no value; an empty non-nil result is a present empty value.
func (c *Client) Fetch(ctx context.Context, key types.HexBytes, at *types.Hash) (types.HexBytes, error) {
	params := []any{key}
	if at != nil {
		params = append(params, at)
	}
	var result types.HexBytes
	if err := c.rpc.Call(ctx, &result, "state_getStorage", params...); err != nil {
		return nil, err
	}
	return result, nil
}

// Value reads and decodes one storage entry. found reports whether
// the key held a value; when it did not and the entry's modifier is
// Default, the decoded fallback is returned with found false.
func (c *Client) Value(ctx context.Context, pallet, item string, keys []dynamic.Value, at *types.Hash) (dynamic.Value, bool, error) {
	entry, err := c.meta.Storage(pallet, item)
	if err != nil {
		return dynamic.Value{}, false, err
	}
	key, err := Key(c.meta, pallet, item, keys...)
	if err != nil {
		return dynamic.Value{}, false, err
	}
	raw, err := c.Fetch(ctx, key, at)
	if err != nil {
		return dynamic.Value{}, false, err
	}
	if raw == nil {
		if entry.Modifier != metadata.ModifierDefault {
			return dynamic.Value{}, false, nil
		}
		v, err := dynamic.Decode(c.meta.Types, entry.Value, entry.Fallback)
		if err != nil {
			return dynamic.Value{}, false, fmt.Errorf("storage: decode %s.%s fallback: %w", pallet, item, err)
		}
		return v, false, nil
	}
	v, err := dynamic.Decode(c.meta.Types, entry.Value, raw)
	if err != nil {
		return dynamic.Value{}, false, fmt.Errorf("storage: decode %s.%s: %w", pallet, item, err)
	}
	return v, true, nil
}

// ChangeSet is one block's storage changes as reported by
// state_queryStorageAt.
type ChangeSet struct {
	Block   types.Hash `json:"block"`
	Changes []Change   `json:"changes"`
}

// Change is one key with its value at the queried block; Value is nil
// when the key holds nothing there.
type Change struct {
	Key   types.HexBytes
	Value types.HexBytes
}

// UnmarshalJSON reads the node's two-element [key, value-or-null]
// pair shape.
func (ch *Change) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("storage: change pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("storage: change pair has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &ch.Key); err != nil {
		return fmt.Errorf("storage: change key: %w", err)
	}
	ch.Value = nil
	if err := json.Unmarshal(pair[1], &ch.Value); err != nil {
		return fmt.Errorf("storage: change value: %w", err)
	}
	return nil
}

// MarshalJSON writes the pair shape back, with null for an absent
// value.
func (ch Change) MarshalJSON() ([]byte, error) {
	pair := []any{ch.Key, nil}
	if ch.Value != nil {
		pair[1] = ch.Value
	}
	return json.Marshal(pair)
}

// QueryAt reads several raw keys in one round trip.
func (c *Client) QueryAt(ctx context.Context, keys []types.HexBytes, at *types.Hash) ([]ChangeSet, error) {
	params := []any{keys}
	if at != nil {
		params = append(params, at)
	}
	var out []ChangeSet
	if err := c.rpc.Call(ctx, &out, "state_queryStorageAt", params...); err != nil {
		return nil, err
	}
	return out, nil
}
