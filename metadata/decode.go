package metadata

import (
	"fmt"
	"math"

	"github.com/sigil-dev/sigil/scale"
)

// magic is the document prefix "meta" read as a little-endian u32.
const magic uint64 = 0x6174656d

// Decode parses a metadata document and validates its internal
// consistency. The returned Metadata is read-only.
func Decode(doc []byte) (*Metadata, error) {
	r := scale.NewReader(doc)

	gotMagic, err := r.Uint(4)
	if err != nil {
		return nil, fmt.Errorf("metadata: magic: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("%w: %#x", ErrBadMagic, gotMagic)
	}
	version, err := r.Byte()
	if err != nil {
		return nil, fmt.Errorf("metadata: version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrVersionUnsupported, version, Version)
	}

	m := &Metadata{
		byName:  make(map[string]*Pallet),
		byIndex: make(map[byte]*Pallet),
	}
	if m.Types, err = decodeRegistry(r); err != nil {
		return nil, err
	}

	palletCount, err := decodeCount(r)
	if err != nil {
		return nil, fmt.Errorf("metadata: pallet count: %w", err)
	}
	for i := 0; i < palletCount; i++ {
		p, err := decodePallet(r)
		if err != nil {
			return nil, fmt.Errorf("metadata: pallet %d: %w", i, err)
		}
		m.Pallets = append(m.Pallets, p)
	}

	if m.Extrinsic, err = decodeExtrinsic(r); err != nil {
		return nil, fmt.Errorf("metadata: extrinsic: %w", err)
	}
	if m.RuntimeType, err = decodeTypeID(r); err != nil {
		return nil, fmt.Errorf("metadata: runtime type: %w", err)
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("metadata: %d trailing bytes after document", r.Remaining())
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeRegistry(r *scale.Reader) (*Registry, error) {
	n, err := decodeCount(r)
	if err != nil {
		return nil, fmt.Errorf("metadata: type count: %w", err)
	}
	reg := &Registry{types: make(map[TypeID]*Type, n)}
	for i := 0; i < n; i++ {
		id, err := decodeTypeID(r)
		if err != nil {
			return nil, fmt.Errorf("metadata: type entry %d: %w", i, err)
		}
		if _, dup := reg.types[id]; dup {
			return nil, fmt.Errorf("metadata: type id %d declared twice", id)
		}
		t, err := decodeType(r)
		if err != nil {
			return nil, fmt.Errorf("metadata: type %d: %w", id, err)
		}
		reg.types[id] = t
	}
	return reg, nil
}

func decodeType(r *scale.Reader) (*Type, error) {
	t := &Type{}
	var err error
	if t.Path, err = decodeStrings(r); err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	paramCount, err := decodeCount(r)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	for i := 0; i < paramCount; i++ {
		var p TypeParam
		if p.Name, err = r.Str(); err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		if p.Type, err = decodeOptionTypeID(r); err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		t.Params = append(t.Params, p)
	}
	if t.Def, err = decodeTypeDef(r); err != nil {
		return nil, err
	}
	if t.Docs, err = decodeStrings(r); err != nil {
		return nil, fmt.Errorf("docs: %w", err)
	}
	return t, nil
}

func decodeTypeDef(r *scale.Reader) (TypeDef, error) {
	tag, err := r.Byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		fields, err := decodeFieldList(r)
		if err != nil {
			return nil, err
		}
		return DefComposite{Fields: fields}, nil
	case 1:
		n, err := decodeCount(r)
		if err != nil {
			return nil, err
		}
		def := DefVariant{}
		for i := 0; i < n; i++ {
			var v Variant
			if v.Name, err = r.Str(); err != nil {
				return nil, fmt.Errorf("variant %d: %w", i, err)
			}
			if v.Fields, err = decodeFieldList(r); err != nil {
				return nil, fmt.Errorf("variant %q: %w", v.Name, err)
			}
			if v.Index, err = r.Byte(); err != nil {
				return nil, fmt.Errorf("variant %q: %w", v.Name, err)
			}
			if v.Docs, err = decodeStrings(r); err != nil {
				return nil, fmt.Errorf("variant %q: %w", v.Name, err)
			}
			def.Variants = append(def.Variants, v)
		}
		return def, nil
	case 2:
		elem, err := decodeTypeID(r)
		if err != nil {
			return nil, err
		}
		return DefSequence{Elem: elem}, nil
	case 3:
		length, err := r.Uint(4)
		if err != nil {
			return nil, err
		}
		elem, err := decodeTypeID(r)
		if err != nil {
			return nil, err
		}
		return DefArray{Len: uint32(length), Elem: elem}, nil
	case 4:
		n, err := decodeCount(r)
		if err != nil {
			return nil, err
		}
		def := DefTuple{}
		for i := 0; i < n; i++ {
			id, err := decodeTypeID(r)
			if err != nil {
				return nil, err
			}
			def.Elems = append(def.Elems, id)
		}
		return def, nil
	case 5:
		kind, err := r.Byte()
		if err != nil {
			return nil, err
		}
		if kind > byte(PrimI256) {
			return nil, fmt.Errorf("%w: primitive %d", scale.ErrInvalidDiscriminant, kind)
		}
		return DefPrimitive{Kind: Primitive(kind)}, nil
	case 6:
		elem, err := decodeTypeID(r)
		if err != nil {
			return nil, err
		}
		return DefCompact{Elem: elem}, nil
	case 7:
		store, err := decodeTypeID(r)
		if err != nil {
			return nil, err
		}
		order, err := decodeTypeID(r)
		if err != nil {
			return nil, err
		}
		return DefBitSequence{Store: store, Order: order}, nil
	default:
		return nil, fmt.Errorf("%w: type definition tag %d", scale.ErrInvalidDiscriminant, tag)
	}
}

func decodeFieldList(r *scale.Reader) ([]Field, error) {
	n, err := decodeCount(r)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		var f Field
		present, err := r.Option()
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		if present {
			if f.Name, err = r.Str(); err != nil {
				return nil, fmt.Errorf("field %d name: %w", i, err)
			}
		}
		if f.Type, err = decodeTypeID(r); err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		present, err = r.Option()
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		if present {
			if f.TypeName, err = r.Str(); err != nil {
				return nil, fmt.Errorf("field %d type name: %w", i, err)
			}
		}
		if f.Docs, err = decodeStrings(r); err != nil {
			return nil, fmt.Errorf("field %d docs: %w", i, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func decodePallet(r *scale.Reader) (*Pallet, error) {
	p := &Pallet{}
	var err error
	if p.Name, err = r.Str(); err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}

	hasStorage, err := r.Option()
	if err != nil {
		return nil, fmt.Errorf("%q storage: %w", p.Name, err)
	}
	if hasStorage {
		s := &Storage{}
		if s.Prefix, err = r.Str(); err != nil {
			return nil, fmt.Errorf("%q storage prefix: %w", p.Name, err)
		}
		n, err := decodeCount(r)
		if err != nil {
			return nil, fmt.Errorf("%q storage entries: %w", p.Name, err)
		}
		for i := 0; i < n; i++ {
			e, err := decodeStorageEntry(r, s.Prefix)
			if err != nil {
				return nil, fmt.Errorf("%q storage entry %d: %w", p.Name, i, err)
			}
			s.Entries = append(s.Entries, e)
		}
		p.Storage = s
	}

	if p.CallType, err = decodeOptionTypeID(r); err != nil {
		return nil, fmt.Errorf("%q calls: %w", p.Name, err)
	}
	if p.EventType, err = decodeOptionTypeID(r); err != nil {
		return nil, fmt.Errorf("%q event: %w", p.Name, err)
	}

	constCount, err := decodeCount(r)
	if err != nil {
		return nil, fmt.Errorf("%q constants: %w", p.Name, err)
	}
	for i := 0; i < constCount; i++ {
		c := &Constant{}
		if c.Name, err = r.Str(); err != nil {
			return nil, fmt.Errorf("%q constant %d: %w", p.Name, i, err)
		}
		if c.Type, err = decodeTypeID(r); err != nil {
			return nil, fmt.Errorf("%q constant %q: %w", p.Name, c.Name, err)
		}
		if c.Value, err = decodeBytes(r); err != nil {
			return nil, fmt.Errorf("%q constant %q: %w", p.Name, c.Name, err)
		}
		if c.Docs, err = decodeStrings(r); err != nil {
			return nil, fmt.Errorf("%q constant %q: %w", p.Name, c.Name, err)
		}
		p.Constants = append(p.Constants, c)
	}

	if p.ErrorType, err = decodeOptionTypeID(r); err != nil {
		return nil, fmt.Errorf("%q errors: %w", p.Name, err)
	}
	if p.Index, err = r.Byte(); err != nil {
		return nil, fmt.Errorf("%q index: %w", p.Name, err)
	}
	return p, nil
}

func decodeStorageEntry(r *scale.Reader, prefix string) (*StorageEntry, error) {
	e := &StorageEntry{Prefix: prefix}
	var err error
	if e.Name, err = r.Str(); err != nil {
		return nil, err
	}
	mod, err := r.Byte()
	if err != nil {
		return nil, err
	}
	if mod > byte(ModifierDefault) {
		return nil, fmt.Errorf("%w: storage modifier %d", scale.ErrInvalidDiscriminant, mod)
	}
	e.Modifier = StorageModifier(mod)

	tag, err := r.Byte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0: // plain value
		if e.Value, err = decodeTypeID(r); err != nil {
			return nil, err
		}
	case 1: // map
		n, err := decodeCount(r)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			h, err := r.Byte()
			if err != nil {
				return nil, err
			}
			if h > byte(HasherIdentity) {
				return nil, fmt.Errorf("%w: storage hasher %d", scale.ErrInvalidDiscriminant, h)
			}
			e.Hashers = append(e.Hashers, StorageHasher(h))
		}
		key, err := decodeTypeID(r)
		if err != nil {
			return nil, err
		}
		e.Key = &key
		if e.Value, err = decodeTypeID(r); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: storage entry kind %d", scale.ErrInvalidDiscriminant, tag)
	}

	if e.Fallback, err = decodeBytes(r); err != nil {
		return nil, err
	}
	if e.Docs, err = decodeStrings(r); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeExtrinsic(r *scale.Reader) (Extrinsic, error) {
	var ext Extrinsic
	var err error
	if ext.Type, err = decodeTypeID(r); err != nil {
		return ext, err
	}
	if ext.Version, err = r.Byte(); err != nil {
		return ext, err
	}
	n, err := decodeCount(r)
	if err != nil {
		return ext, err
	}
	for i := 0; i < n; i++ {
		var se SignedExtension
		if se.Identifier, err = r.Str(); err != nil {
			return ext, fmt.Errorf("signed extension %d: %w", i, err)
		}
		if se.Type, err = decodeTypeID(r); err != nil {
			return ext, fmt.Errorf("signed extension %q: %w", se.Identifier, err)
		}
		if se.AdditionalSigned, err = decodeTypeID(r); err != nil {
			return ext, fmt.Errorf("signed extension %q: %w", se.Identifier, err)
		}
		ext.SignedExtensions = append(ext.SignedExtensions, se)
	}
	return ext, nil
}

func decodeTypeID(r *scale.Reader) (TypeID, error) {
	v, err := r.CompactUint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("metadata: type id %d overflows u32", v)
	}
	return TypeID(v), nil
}

func decodeOptionTypeID(r *scale.Reader) (*TypeID, error) {
	present, err := r.Option()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	id, err := decodeTypeID(r)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// decodeCount reads a compact element count, bounding it by the bytes
// remaining so a corrupt prefix cannot drive huge allocations.
func decodeCount(r *scale.Reader) (int, error) {
	n, err := r.CompactUint()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Remaining()) {
		return 0, fmt.Errorf("%w: %d elements with %d bytes left", scale.ErrUnexpectedEnd, n, r.Remaining())
	}
	return int(n), nil
}

func decodeBytes(r *scale.Reader) ([]byte, error) {
	n, err := decodeCount(r)
	if err != nil {
		return nil, err
	}
	return r.Bytes(n)
}

func decodeStrings(r *scale.Reader) ([]string, error) {
	n, err := decodeCount(r)
	if err != nil {
		return nil, err
	}
	var out []string
	for i := 0; i < n; i++ {
		s, err := r.Str()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
