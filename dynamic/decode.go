package dynamic

import (
	"fmt"
	"unicode/utf8"

	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/scale"
)

// Decode decodes one value of type id from data, which must be
// consumed exactly.
func Decode(reg *metadata.Registry, id metadata.TypeID, data []byte) (Value, error) {
	r := scale.NewReader(data)
	v, err := DecodeFrom(reg, id, r)
	if err != nil {
		return Value{}, fmt.Errorf("%w (offset %d)", err, r.Offset())
	}
	if r.Remaining() != 0 {
		return Value{}, fmt.Errorf("dynamic: %d trailing bytes after value", r.Remaining())
	}
	return v, nil
}

// DecodeFrom decodes one value of type id from r, leaving the cursor
// on the first byte after it.
func DecodeFrom(reg *metadata.Registry, id metadata.TypeID, r *scale.Reader) (Value, error) {
	return decodeValue(reg, id, r, 0)
}

func decodeValue(reg *metadata.Registry, id metadata.TypeID, r *scale.Reader, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%w: type %d", ErrTooDeep, id)
	}
	t, err := reg.Resolve(id)
	if err != nil {
		return Value{}, fmt.Errorf("dynamic: %w", err)
	}
	switch def := t.Def.(type) {
	case metadata.DefComposite:
		fields, err := decodeFields(reg, def.Fields, r, depth)
		if err != nil {
			return Value{}, err
		}
		return Composite(fields...), nil

	case metadata.DefVariant:
		tag, err := r.Byte()
		if err != nil {
			return Value{}, fmt.Errorf("dynamic: type %d tag: %w", id, err)
		}
		for _, arm := range def.Variants {
			if arm.Index != tag {
				continue
			}
			fields, err := decodeFields(reg, arm.Fields, r, depth)
			if err != nil {
				return Value{}, fmt.Errorf("variant %s: %w", arm.Name, err)
			}
			return Variant(arm.Name, fields...), nil
		}
		return Value{}, fmt.Errorf("dynamic: type %d: %w: variant tag %#x", id, scale.ErrInvalidDiscriminant, tag)

	case metadata.DefSequence:
		n, err := elemCount(r)
		if err != nil {
			return Value{}, fmt.Errorf("dynamic: type %d count: %w", id, err)
		}
		if isByteElem(reg, def.Elem) {
			b, err := r.Bytes(n)
			if err != nil {
				return Value{}, fmt.Errorf("dynamic: type %d: %w", id, err)
			}
			return Value{kind: KindBytes, raw: b}, nil
		}
		elems := make([]Value, n)
		for i := range elems {
			e, err := decodeValue(reg, def.Elem, r, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = e
		}
		return Value{kind: KindSeq, list: elems}, nil

	case metadata.DefArray:
		if isByteElem(reg, def.Elem) {
			b, err := r.Bytes(int(def.Len))
			if err != nil {
				return Value{}, fmt.Errorf("dynamic: type %d: %w", id, err)
			}
			return Value{kind: KindBytes, raw: b}, nil
		}
		if uint64(def.Len) > uint64(r.Remaining()) {
			return Value{}, fmt.Errorf("dynamic: type %d: %w: %d elements with %d bytes left",
				id, scale.ErrUnexpectedEnd, def.Len, r.Remaining())
		}
		elems := make([]Value, def.Len)
		for i := range elems {
			e, err := decodeValue(reg, def.Elem, r, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = e
		}
		return Value{kind: KindSeq, list: elems}, nil

	case metadata.DefTuple:
		elems := make([]Value, len(def.Elems))
		for i, eid := range def.Elems {
			e, err := decodeValue(reg, eid, r, depth+1)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = e
		}
		return Value{kind: KindTuple, list: elems}, nil

	case metadata.DefPrimitive:
		return decodePrimitive(id, def.Kind, r)

	case metadata.DefCompact:
		u, err := r.Compact()
		if err != nil {
			return Value{}, fmt.Errorf("dynamic: type %d: %w", id, err)
		}
		return Value{kind: KindUint, u: u}, nil

	case metadata.DefBitSequence:
		msb, err := bitOrder(reg, def)
		if err != nil {
			return Value{}, err
		}
		nbits, err := r.CompactUint()
		if err != nil {
			return Value{}, fmt.Errorf("dynamic: type %d count: %w", id, err)
		}
		if nbits > uint64(r.Remaining())*8 {
			return Value{}, fmt.Errorf("dynamic: type %d: %w: %d bits with %d bytes left",
				id, scale.ErrUnexpectedEnd, nbits, r.Remaining())
		}
		b, err := r.Bytes(int((nbits + 7) / 8))
		if err != nil {
			return Value{}, fmt.Errorf("dynamic: type %d: %w", id, err)
		}
		return Value{kind: KindBits, bits: unpackBits(b, int(nbits), msb)}, nil
	}
	return Value{}, fmt.Errorf("dynamic: type %d has unknown definition %T", id, t.Def)
}

func decodeFields(reg *metadata.Registry, defs []metadata.Field, r *scale.Reader, depth int) ([]Field, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	fields := make([]Field, len(defs))
	for i, df := range defs {
		v, err := decodeValue(reg, df.Type, r, depth+1)
		if err != nil {
			if df.Name != "" {
				return nil, fmt.Errorf("field %q: %w", df.Name, err)
			}
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields[i] = Field{Name: df.Name, Value: v}
	}
	return fields, nil
}

func decodePrimitive(id metadata.TypeID, p metadata.Primitive, r *scale.Reader) (Value, error) {
	fail := func(err error) (Value, error) {
		return Value{}, fmt.Errorf("dynamic: type %d: %w", id, err)
	}
	switch {
	case p == metadata.PrimBool:
		b, err := r.Bool()
		if err != nil {
			return fail(err)
		}
		return Bool(b), nil
	case p == metadata.PrimChar:
		u, err := r.Uint(4)
		if err != nil {
			return fail(err)
		}
		ch := rune(u)
		if !utf8.ValidRune(ch) {
			return Value{}, fmt.Errorf("dynamic: type %d: invalid char %#x", id, u)
		}
		return Char(ch), nil
	case p == metadata.PrimStr:
		s, err := r.Str()
		if err != nil {
			return fail(err)
		}
		return Str(s), nil
	case p.Unsigned():
		u, err := r.BigUint(p.Width())
		if err != nil {
			return fail(err)
		}
		return Value{kind: KindUint, u: u}, nil
	case p.Signed():
		i, err := r.BigInt(p.Width())
		if err != nil {
			return fail(err)
		}
		return Value{kind: KindInt, i: i}, nil
	}
	return Value{}, fmt.Errorf("dynamic: type %d has unknown primitive %s", id, p)
}

// elemCount reads a compact element count and bounds it by the bytes
// left, since every element occupies at least one byte.
func elemCount(r *scale.Reader) (int, error) {
	n, err := r.CompactUint()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Remaining()) {
		return 0, fmt.Errorf("%w: %d elements with %d bytes left", scale.ErrUnexpectedEnd, n, r.Remaining())
	}
	return int(n), nil
}

func unpackBits(b []byte, n int, msb bool) []bool {
	bits := make([]bool, n)
	for i := range bits {
		if msb {
			bits[i] = b[i/8]&(1<<(7-i%8)) != 0
		} else {
			bits[i] = b[i/8]&(1<<(i%8)) != 0
		}
	}
	return bits
}
