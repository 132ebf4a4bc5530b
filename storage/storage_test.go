package storage_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/rpc"
	"github.com/sigil-dev/sigil/scale"
	"github.com/sigil-dev/sigil/storage"
	sigiltest "github.com/sigil-dev/sigil/testing"
	"github.com/sigil-dev/sigil/types"
)

const (
	tU8 metadata.TypeID = iota
	tU32
	tU128
	tArr32
	tAccount
	tPair
	tUnit
)

func testMeta(t *testing.T) *metadata.Metadata {
	t.Helper()
	reg := metadata.NewRegistry(map[metadata.TypeID]*metadata.Type{
		tU8:    {Def: metadata.DefPrimitive{Kind: metadata.PrimU8}},
		tU32:   {Def: metadata.DefPrimitive{Kind: metadata.PrimU32}},
		tU128:  {Def: metadata.DefPrimitive{Kind: metadata.PrimU128}},
		tArr32: {Def: metadata.DefArray{Len: 32, Elem: tU8}},
		tAccount: {
			Path: []string{"sp_core", "crypto", "AccountId32"},
			Def:  metadata.DefComposite{Fields: []metadata.Field{{Type: tArr32}}},
		},
		tPair: {Def: metadata.DefTuple{Elems: []metadata.TypeID{tU32, tAccount}}},
		tUnit: {Def: metadata.DefTuple{}},
	})
	account := tAccount
	pair := tPair
	pallets := []*metadata.Pallet{
		{
			Name:  "System",
			Index: 0,
			Storage: &metadata.Storage{
				Prefix: "System",
				Entries: []*metadata.StorageEntry{
					{
						Prefix:   "System",
						Name:     "Account",
						Modifier: metadata.ModifierDefault,
						Hashers:  []metadata.StorageHasher{metadata.HasherTwox64Concat},
						Key:      &account,
						Value:    tU128,
						Fallback: u128le(5),
					},
					{
						Prefix:   "System",
						Name:     "Events",
						Modifier: metadata.ModifierDefault,
						Value:    tU32,
						Fallback: []byte{0, 0, 0, 0},
					},
				},
			},
		},
		{
			Name:  "Balances",
			Index: 5,
			Storage: &metadata.Storage{
				Prefix: "Balances",
				Entries: []*metadata.StorageEntry{
					{
						Prefix:   "Balances",
						Name:     "TotalIssuance",
						Modifier: metadata.ModifierDefault,
						Value:    tU128,
						Fallback: u128le(1000),
					},
					{
						Prefix:   "Balances",
						Name:     "Locks",
						Modifier: metadata.ModifierOptional,
						Hashers: []metadata.StorageHasher{
							metadata.HasherBlake2_128Concat, metadata.HasherTwox64Concat,
						},
						Key:   &pair,
						Value: tU32,
					},
					{
						Prefix:   "Balances",
						Name:     "WholeTuple",
						Modifier: metadata.ModifierOptional,
						Hashers:  []metadata.StorageHasher{metadata.HasherBlake2_128},
						Key:      &pair,
						Value:    tU32,
					},
				},
			},
		},
	}
	m, err := metadata.New(reg, pallets, metadata.Extrinsic{Type: tUnit, Version: 4}, tUnit)
	if err != nil {
		t.Fatalf("metadata.New: %v", err)
	}
	return m
}

func u128le(n uint64) []byte {
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out, n)
	return out
}

var testAccount = bytes.Repeat([]byte{0x11}, 32)

func accountValue() dynamic.Value { return dynamic.Bytes(testAccount) }

func TestTwox128_KnownVectors(t *testing.T) {
	vectors := map[string]string{
		"System":        "26aa394eea5630e07c48ae0c9558cef7",
		"Account":       "b99d880ec681799c0cf30e8886371da9",
		"Events":        "80d41e5e16056765bc8461851072c9d7",
		"Balances":      "c2261276cc9d1f8598ea4b6a74b15c2f",
		"TotalIssuance": "57c875e4cff74148e4628f264b974c80",
	}
	for in, want := range vectors {
		if got := hex.EncodeToString(storage.Twox128([]byte(in))); got != want {
			t.Fatalf("Twox128(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPrefix(t *testing.T) {
	m := testMeta(t)
	got, err := storage.Prefix(m, "System", "Account")
	if err != nil {
		t.Fatalf("Prefix: %v", err)
	}
	want := "0x26aa394eea5630e07c48ae0c9558cef7b99d880ec681799c0cf30e8886371da9"
	if got.Hex() != want {
		t.Fatalf("prefix = %s, want %s", got.Hex(), want)
	}

	if _, err := storage.Prefix(m, "System", "Nope"); !errors.Is(err, metadata.ErrUnknownStorage) {
		t.Fatalf("err = %v, want ErrUnknownStorage", err)
	}
}

func TestKey_PlainEntry(t *testing.T) {
	m := testMeta(t)
	key, err := storage.Key(m, "Balances", "TotalIssuance")
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	want := "0xc2261276cc9d1f8598ea4b6a74b15c2f57c875e4cff74148e4628f264b974c80"
	if key.Hex() != want {
		t.Fatalf("key = %s, want %s", key.Hex(), want)
	}

	if _, err := storage.Key(m, "Balances", "TotalIssuance", dynamic.Uint(1)); !errors.Is(err, storage.ErrKeyArity) {
		t.Fatalf("err = %v, want ErrKeyArity", err)
	}
}

func TestKey_SingleHasherMap(t *testing.T) {
	m := testMeta(t)
	key, err := storage.Key(m, "System", "Account", accountValue())
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if len(key) != 32+8+32 {
		t.Fatalf("key length = %d, want 72", len(key))
	}
	prefix, _ := storage.Prefix(m, "System", "Account")
	if !bytes.HasPrefix(key, prefix) {
		t.Fatalf("key %s lacks entry prefix", key.Hex())
	}
	// Twox64Concat keeps the encoded key in the clear after the hash.
	if !bytes.HasSuffix(key, testAccount) {
		t.Fatalf("key %s lacks plain key suffix", key.Hex())
	}
	h := xxhash.NewWithSeed(0)
	h.Write(testAccount)
	want := make([]byte, 8)
	binary.LittleEndian.PutUint64(want, h.Sum64())
	if !bytes.Equal(key[32:40], want) {
		t.Fatalf("twox64 segment = %x, want %x", key[32:40], want)
	}
}

func TestKey_TwoHashersHashEachPart(t *testing.T) {
	m := testMeta(t)
	key, err := storage.Key(m, "Balances", "Locks", dynamic.Uint(7), accountValue())
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	// prefix ++ blake2_128(enc u32) ++ enc u32 ++ twox64(enc account) ++ enc account
	if len(key) != 32+16+4+8+32 {
		t.Fatalf("key length = %d, want 92", len(key))
	}
	encU32 := []byte{7, 0, 0, 0}
	bh, _ := blake2b.New(16, nil)
	bh.Write(encU32)
	if !bytes.Equal(key[32:48], bh.Sum(nil)) {
		t.Fatalf("blake2_128 segment = %x", key[32:48])
	}
	if !bytes.Equal(key[48:52], encU32) {
		t.Fatalf("u32 concat segment = %x", key[48:52])
	}
	xh := xxhash.NewWithSeed(0)
	xh.Write(testAccount)
	wantTwox := make([]byte, 8)
	binary.LittleEndian.PutUint64(wantTwox, xh.Sum64())
	if !bytes.Equal(key[52:60], wantTwox) {
		t.Fatalf("twox64 segment = %x", key[52:60])
	}
	if !bytes.Equal(key[60:], testAccount) {
		t.Fatalf("account concat segment = %x", key[60:])
	}
}

func TestKey_SingleHasherOverTuple(t *testing.T) {
	m := testMeta(t)
	key, err := storage.Key(m, "Balances", "WholeTuple", dynamic.Uint(7), accountValue())
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if len(key) != 32+16 {
		t.Fatalf("key length = %d, want 48", len(key))
	}
	whole := append([]byte{7, 0, 0, 0}, testAccount...)
	bh, _ := blake2b.New(16, nil)
	bh.Write(whole)
	if !bytes.Equal(key[32:], bh.Sum(nil)) {
		t.Fatalf("blake2_128 segment = %x", key[32:])
	}
}

func TestKey_Arity(t *testing.T) {
	m := testMeta(t)
	cases := [][]dynamic.Value{
		nil,
		{dynamic.Uint(7)},
		{dynamic.Uint(7), accountValue(), dynamic.Uint(9)},
	}
	for _, keys := range cases {
		if _, err := storage.Key(m, "Balances", "Locks", keys...); !errors.Is(err, storage.ErrKeyArity) {
			t.Fatalf("%d parts: err = %v, want ErrKeyArity", len(keys), err)
		}
	}
	if _, err := storage.Key(m, "System", "Account"); !errors.Is(err, storage.ErrKeyArity) {
		t.Fatalf("err = %v, want ErrKeyArity", err)
	}
}

// storageClient wires a storage client to a scripted node.
func storageClient(t *testing.T, node *sigiltest.MockNode) *storage.Client {
	t.Helper()
	rc := rpc.NewClient(node)
	t.Cleanup(func() { rc.Close() })
	return storage.NewClient(rc, testMeta(t))
}

func TestFetch(t *testing.T) {
	node := sigiltest.NewMockNode()
	var gotKey types.HexBytes
	node.Handle("state_getStorage", func(params []json.RawMessage) (any, error) {
		if err := json.Unmarshal(params[0], &gotKey); err != nil {
			return nil, err
		}
		return "0x0a000000", nil
	})
	c := storageClient(t, node)

	key := types.HexBytes{0xde, 0xad}
	val, err := c.Fetch(context.Background(), key, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(val, []byte{0x0a, 0, 0, 0}) {
		t.Fatalf("value = %x", val)
	}
	if !bytes.Equal(gotKey, key) {
		t.Fatalf("node saw key %x", gotKey)
	}
}

func TestFetch_AbsentIsNil(t *testing.T) {
	node := sigiltest.NewMockNode()
	node.Handle("state_getStorage", func([]json.RawMessage) (any, error) {
		return nil, nil
	})
	c := storageClient(t, node)

	val, err := c.Fetch(context.Background(), types.HexBytes{0x01}, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if val != nil {
		t.Fatalf("value = %x, want nil", val)
	}
}

func TestFetch_PinsBlock(t *testing.T) {
	node := sigiltest.NewMockNode()
	var sawAt string
	node.Handle("state_getStorage", func(params []json.RawMessage) (any, error) {
		if len(params) != 2 {
			t.Errorf("params = %d, want 2", len(params))
			return nil, nil
		}
		if err := json.Unmarshal(params[1], &sawAt); err != nil {
			return nil, err
		}
		return nil, nil
	})
	c := storageClient(t, node)

	at := types.Hash{0xcd}
	if _, err := c.Fetch(context.Background(), types.HexBytes{0x01}, &at); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sawAt != at.Hex() {
		t.Fatalf("node saw at = %q, want %q", sawAt, at.Hex())
	}
}

func TestValue_DecodesPresent(t *testing.T) {
	node := sigiltest.NewMockNode()
	node.Handle("state_getStorage", func([]json.RawMessage) (any, error) {
		return types.HexBytes(u128le(42)).Hex(), nil
	})
	c := storageClient(t, node)

	v, found, err := c.Value(context.Background(), "System", "Account", []dynamic.Value{accountValue()}, nil)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if !found {
		t.Fatal("found = false")
	}
	if got, ok := v.AsUint64(); !ok || got != 42 {
		t.Fatalf("value = %v", v)
	}
}

func TestValue_AbsentDecodesFallback(t *testing.T) {
	node := sigiltest.NewMockNode()
	node.Handle("state_getStorage", func([]json.RawMessage) (any, error) {
		return nil, nil
	})
	c := storageClient(t, node)

	v, found, err := c.Value(context.Background(), "System", "Account", []dynamic.Value{accountValue()}, nil)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if found {
		t.Fatal("found = true for absent key")
	}
	if got, ok := v.AsUint64(); !ok || got != 5 {
		t.Fatalf("fallback = %v, want 5", v)
	}
}

func TestValue_AbsentOptionalIsZero(t *testing.T) {
	node := sigiltest.NewMockNode()
	node.Handle("state_getStorage", func([]json.RawMessage) (any, error) {
		return nil, nil
	})
	c := storageClient(t, node)

	_, found, err := c.Value(context.Background(), "Balances", "Locks",
		[]dynamic.Value{dynamic.Uint(1), accountValue()}, nil)
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if found {
		t.Fatal("found = true for absent key")
	}
}

func TestValue_DecodeErrorNamesEntry(t *testing.T) {
	node := sigiltest.NewMockNode()
	node.Handle("state_getStorage", func([]json.RawMessage) (any, error) {
		return "0x01", nil // too short for u128
	})
	c := storageClient(t, node)

	_, _, err := c.Value(context.Background(), "Balances", "TotalIssuance", nil, nil)
	if err == nil {
		t.Fatal("want decode error")
	}
	if !errors.Is(err, scale.ErrUnexpectedEnd) {
		t.Fatalf("err = %v, want ErrUnexpectedEnd in the chain", err)
	}
	if !strings.Contains(err.Error(), "Balances.TotalIssuance") {
		t.Fatalf("error %q does not name the entry", err)
	}
}

func TestChangeSet_Unmarshal(t *testing.T) {
	raw := `{"block":"0x` + hex.EncodeToString(bytes.Repeat([]byte{0xab}, 32)) + `",` +
		`"changes":[["0x0102","0x0a"],["0x0304",null]]}`
	var cs storage.ChangeSet
	if err := json.Unmarshal([]byte(raw), &cs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cs.Block != types.Hash(bytes.Repeat([]byte{0xab}, 32)) {
		t.Fatalf("block = %s", cs.Block)
	}
	if len(cs.Changes) != 2 {
		t.Fatalf("changes = %d", len(cs.Changes))
	}
	if !bytes.Equal(cs.Changes[0].Key, []byte{1, 2}) || !bytes.Equal(cs.Changes[0].Value, []byte{0x0a}) {
		t.Fatalf("change 0 = %+v", cs.Changes[0])
	}
	if cs.Changes[1].Value != nil {
		t.Fatalf("null value decoded to %x", cs.Changes[1].Value)
	}

	if err := json.Unmarshal([]byte(`{"changes":[["0x01"]]}`), &cs); err == nil {
		t.Fatal("one-element pair should fail")
	}
}

func TestKeys_WalksPages(t *testing.T) {
	m := testMeta(t)
	prefix, _ := storage.Prefix(m, "System", "Account")
	k := func(b byte) types.HexBytes { return append(append(types.HexBytes{}, prefix...), b) }

	node := sigiltest.NewMockNode()
	pages := 0
	node.Handle("state_getKeysPaged", func(params []json.RawMessage) (any, error) {
		pages++
		var start types.HexBytes
		if len(params) >= 3 {
			if err := json.Unmarshal(params[2], &start); err != nil {
				return nil, err
			}
		}
		switch {
		case start == nil:
			return []string{k(1).Hex(), k(2).Hex()}, nil
		case bytes.Equal(start, k(2)):
			return []string{k(3).Hex()}, nil
		default:
			t.Errorf("unexpected start key %x", start)
			return []string{}, nil
		}
	})
	node.Handle("state_queryStorageAt", func(params []json.RawMessage) (any, error) {
		var keys []types.HexBytes
		if err := json.Unmarshal(params[0], &keys); err != nil {
			return nil, err
		}
		changes := make([][]any, 0, len(keys))
		for _, key := range keys {
			n := uint64(key[len(key)-1]) * 100
			changes = append(changes, []any{key.Hex(), types.HexBytes(u128le(n)).Hex()})
		}
		return []map[string]any{{
			"block":   types.Hash{0xff}.Hex(),
			"changes": changes,
		}}, nil
	})
	c := storageClient(t, node)

	it, err := c.Keys(context.Background(), "System", "Account", 2, nil)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	var got []uint64
	for {
		e, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		n, valOK := e.Value.AsUint64()
		if !valOK {
			t.Fatalf("value %v is not a uint", e.Value)
		}
		got = append(got, n)
	}
	if len(got) != 3 || got[0] != 100 || got[1] != 200 || got[2] != 300 {
		t.Fatalf("values = %v", got)
	}
	if pages != 2 {
		t.Fatalf("page fetches = %d, want 2", pages)
	}
}

func TestKeys_SkipsVanishedValues(t *testing.T) {
	m := testMeta(t)
	prefix, _ := storage.Prefix(m, "System", "Account")
	k1 := append(append(types.HexBytes{}, prefix...), 1)
	k2 := append(append(types.HexBytes{}, prefix...), 2)

	node := sigiltest.NewMockNode()
	node.Handle("state_getKeysPaged", func(params []json.RawMessage) (any, error) {
		var start types.HexBytes
		if len(params) >= 3 {
			_ = json.Unmarshal(params[2], &start)
		}
		if start != nil {
			return []string{}, nil
		}
		return []string{k1.Hex(), k2.Hex()}, nil
	})
	node.Handle("state_queryStorageAt", func([]json.RawMessage) (any, error) {
		return []map[string]any{{
			"block": types.Hash{0xff}.Hex(),
			"changes": [][]any{
				{k1.Hex(), nil},
				{k2.Hex(), types.HexBytes(u128le(7)).Hex()},
			},
		}}, nil
	})
	c := storageClient(t, node)

	it, err := c.Keys(context.Background(), "System", "Account", 10, nil)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	e, ok, err := it.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next: %v ok=%v", err, ok)
	}
	if !bytes.Equal(e.Key, k2) {
		t.Fatalf("key = %x, want the surviving key", e.Key)
	}
	if _, ok, _ := it.Next(context.Background()); ok {
		t.Fatal("iterator returned a vanished key")
	}
}

func TestQueryAt(t *testing.T) {
	node := sigiltest.NewMockNode()
	node.Handle("state_queryStorageAt", func(params []json.RawMessage) (any, error) {
		var keys []types.HexBytes
		if err := json.Unmarshal(params[0], &keys); err != nil {
			return nil, err
		}
		if len(keys) != 2 {
			return nil, errors.New("want 2 keys")
		}
		return []map[string]any{{
			"block": types.Hash{0x01}.Hex(),
			"changes": [][]any{
				{keys[0].Hex(), "0x2a"},
				{keys[1].Hex(), nil},
			},
		}}, nil
	})
	c := storageClient(t, node)

	sets, err := c.QueryAt(context.Background(),
		[]types.HexBytes{{0xaa}, {0xbb}}, nil)
	if err != nil {
		t.Fatalf("QueryAt: %v", err)
	}
	if len(sets) != 1 || len(sets[0].Changes) != 2 {
		t.Fatalf("sets = %+v", sets)
	}
	if !bytes.Equal(sets[0].Changes[0].Value, []byte{0x2a}) {
		t.Fatalf("first value = %x", sets[0].Changes[0].Value)
	}
	if sets[0].Changes[1].Value != nil {
		t.Fatalf("second value = %x, want nil", sets[0].Changes[1].Value)
	}
}
