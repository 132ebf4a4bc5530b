package storage

import (
	"errors"
	"fmt"

	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/types"
)

// ErrKeyArity is returned when the number of key parts does not match
// the entry's declaration.
var ErrKeyArity = errors.New("storage: wrong number of key parts")

// Prefix returns the key prefix for a storage entry, twox128 of the
// pallet's storage prefix followed by twox128 of the entry name. For
// a plain entry this is the entry's full key; for a map it is the
// prefix all its keys share.
func Prefix(m *metadata.Metadata, pallet, item string) (types.HexBytes, error) {
	entry, err := m.Storage(pallet, item)
	if err != nil {
		return nil, err
	}
	return prefixOf(entry), nil
}

func prefixOf(entry *metadata.StorageEntry) types.HexBytes {
	key := make(types.HexBytes, 0, 32)
	key = append(key, Twox128([]byte(entry.Prefix))...)
	key = append(key, Twox128([]byte(entry.Name))...)
	return key
}

// Key builds the full storage key for an entry. Plain entries take no
// key parts. A map declaring one hasher hashes its whole encoded key
// in one piece, so the parts are joined into the key tuple; a map
// declaring N hashers takes exactly N parts, each hashed on its own.
func Key(m *metadata.Metadata, pallet, item string, keys ...dynamic.Value) (types.HexBytes, error) {
	entry, err := m.Storage(pallet, item)
	if err != nil {
		return nil, err
	}
	out := prefixOf(entry)

	if entry.IsPlain() {
		if len(keys) != 0 {
			return nil, fmt.Errorf("%w: %s.%s is a plain entry, got %d parts",
				ErrKeyArity, pallet, item, len(keys))
		}
		return out, nil
	}

	if len(entry.Hashers) == 1 {
		if len(keys) == 0 {
			return nil, fmt.Errorf("%w: %s.%s needs a key", ErrKeyArity, pallet, item)
		}
		whole := keys[0]
		if len(keys) > 1 {
			whole = dynamic.Tuple(keys...)
		}
		encoded, err := dynamic.Encode(m.Types, *entry.Key, whole)
		if err != nil {
			return nil, fmt.Errorf("storage: encode %s.%s key: %w", pallet, item, err)
		}
		hashed, err := hashKeyPart(entry.Hashers[0], encoded)
		if err != nil {
			return nil, err
		}
		return append(out, hashed...), nil
	}

	if len(keys) != len(entry.Hashers) {
		return nil, fmt.Errorf("%w: %s.%s wants %d parts, got %d",
			ErrKeyArity, pallet, item, len(entry.Hashers), len(keys))
	}
	parts, err := keyTupleElems(m.Types, *entry.Key, len(entry.Hashers))
	if err != nil {
		return nil, fmt.Errorf("storage: %s.%s: %w", pallet, item, err)
	}
	for i, part := range keys {
		encoded, err := dynamic.Encode(m.Types, parts[i], part)
		if err != nil {
			return nil, fmt.Errorf("storage: encode %s.%s key part %d: %w", pallet, item, i, err)
		}
		hashed, err := hashKeyPart(entry.Hashers[i], encoded)
		if err != nil {
			return nil, err
		}
		out = append(out, hashed...)
	}
	return out, nil
}

// keyTupleElems resolves a map's key type to its component types when
// more than one hasher is declared.
func keyTupleElems(reg *metadata.Registry, id metadata.TypeID, want int) ([]metadata.TypeID, error) {
	t, err := reg.Resolve(id)
	if err != nil {
		return nil, err
	}
	tup, ok := t.Def.(metadata.DefTuple)
	if !ok {
		return nil, fmt.Errorf("%d hashers declared but key type %d is not a tuple", want, id)
	}
	if len(tup.Elems) != want {
		return nil, fmt.Errorf("%d hashers declared for a %d-tuple key", want, len(tup.Elems))
	}
	return tup.Elems, nil
}
