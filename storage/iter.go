package storage

import (
	"context"
	"fmt"

	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/types"
)

// Entry is one key/value pair from a storage map walk.
type Entry struct {
	Key   types.HexBytes
	Value dynamic.Value
}

// Iter walks a storage map one page at a time. Values for each page
// are fetched in a single state_queryStorageAt round trip and decoded
// up front.
type Iter struct {
	c        *Client
	entry    *metadata.StorageEntry
	prefix   types.HexBytes
	pageSize uint32
	at       *types.Hash

	buf      []Entry
	startKey types.HexBytes
	done     bool
}

// Keys starts a walk over every key under pallet.item, fetching the
// first page before returning. Iteration over an unpinned block (nil
// at) can see keys appear and vanish between pages.
func (c *Client) Keys(ctx context.Context, pallet, item string, pageSize uint32, at *types.Hash) (*Iter, error) {
	entry, err := c.meta.Storage(pallet, item)
	if err != nil {
		return nil, err
	}
	if pageSize == 0 {
		return nil, fmt.Errorf("storage: page size must be positive")
	}
	it := &Iter{c: c, entry: entry, prefix: prefixOf(entry), pageSize: pageSize, at: at}
	if err := it.fetchPage(ctx); err != nil {
		return nil, err
	}
	return it, nil
}

// Next returns the next pair. ok is false once the map is exhausted.
func (it *Iter) Next(ctx context.Context) (Entry, bool, error) {
	for len(it.buf) == 0 {
		if it.done {
			return Entry{}, false, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			return Entry{}, false, err
		}
	}
	e := it.buf[0]
	it.buf = it.buf[1:]
	return e, true, nil
}

func (it *Iter) fetchPage(ctx context.Context) error {
	params := []any{it.prefix, it.pageSize}
	switch {
	case it.startKey != nil && it.at != nil:
		params = append(params, it.startKey, it.at)
	case it.startKey != nil:
		params = append(params, it.startKey)
	case it.at != nil:
		params = append(params, nil, it.at)
	}
	var keys []types.HexBytes
	if err := it.c.rpc.Call(ctx, &keys, "state_getKeysPaged", params...); err != nil {
		return err
	}
	if len(keys) == 0 {
		it.done = true
		return nil
	}
	if uint32(len(keys)) < it.pageSize {
		it.done = true
	}
	it.startKey = keys[len(keys)-1]

	sets, err := it.c.QueryAt(ctx, keys, it.at)
	if err != nil {
		return err
	}
	byKey := make(map[string]types.HexBytes)
	for _, set := range sets {
		for _, ch := range set.Changes {
			byKey[string(ch.Key)] = ch.Value
		}
	}
	for _, k := range keys {
		raw, ok := byKey[string(k)]
		if !ok || raw == nil {
			// The key vanished between the two calls.
			continue
		}
		v, err := dynamic.Decode(it.c.meta.Types, it.entry.Value, raw)
		if err != nil {
			return fmt.Errorf("storage: decode value under %s: %w", k, err)
		}
		it.buf = append(it.buf, Entry{Key: k, Value: v})
	}
	return nil
}
