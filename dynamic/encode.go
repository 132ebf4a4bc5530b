package dynamic

import (
	"fmt"
	"unicode/utf8"

	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/scale"
)

// Encode encodes v against the descriptor id and returns the wire
// bytes.
func Encode(reg *metadata.Registry, id metadata.TypeID, v Value) ([]byte, error) {
	w := scale.NewWriter()
	if err := EncodeTo(reg, id, v, w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeTo encodes v against the descriptor id, appending to w.
func EncodeTo(reg *metadata.Registry, id metadata.TypeID, v Value, w *scale.Writer) error {
	return encodeValue(reg, id, v, w, 0)
}

func encodeValue(reg *metadata.Registry, id metadata.TypeID, v Value, w *scale.Writer, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: type %d", ErrTooDeep, id)
	}
	t, err := reg.Resolve(id)
	if err != nil {
		return fmt.Errorf("dynamic: %w", err)
	}
	switch def := t.Def.(type) {
	case metadata.DefComposite:
		// A single-field wrapper is transparent: a bare value encodes
		// as its inner field.
		if v.kind != KindComposite && len(def.Fields) == 1 {
			return encodeValue(reg, def.Fields[0].Type, v, w, depth+1)
		}
		fields, ok := v.AsComposite()
		if !ok {
			return mismatch(id, fmt.Sprintf("composite with %d fields", len(def.Fields)), v.kind)
		}
		return encodeFields(reg, id, def.Fields, fields, w, depth)

	case metadata.DefVariant:
		name, fields, ok := v.AsVariant()
		if !ok {
			return mismatch(id, "variant", v.kind)
		}
		for _, arm := range def.Variants {
			if arm.Name != name {
				continue
			}
			w.PutByte(arm.Index)
			if err := encodeFields(reg, id, arm.Fields, fields, w, depth); err != nil {
				return err
			}
			return nil
		}
		return &ShapeMismatchError{Type: id, Want: fmt.Sprintf("variant with arm %q", name), Got: v.kind}

	case metadata.DefSequence:
		if v.kind == KindBytes && isByteElem(reg, def.Elem) {
			b, _ := v.AsBytes()
			w.PutCompactUint(uint64(len(b)))
			w.PutBytes(b)
			return nil
		}
		elems, ok := v.Elems()
		if !ok || v.kind != KindSeq {
			return mismatch(id, "sequence", v.kind)
		}
		w.PutCompactUint(uint64(len(elems)))
		for i, e := range elems {
			if err := encodeValue(reg, def.Elem, e, w, depth+1); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil

	case metadata.DefArray:
		if v.kind == KindBytes && isByteElem(reg, def.Elem) {
			b, _ := v.AsBytes()
			if uint32(len(b)) != def.Len {
				return mismatch(id, fmt.Sprintf("%d bytes", def.Len), v.kind)
			}
			w.PutBytes(b)
			return nil
		}
		elems, ok := v.Elems()
		if !ok || v.kind != KindSeq {
			return mismatch(id, fmt.Sprintf("sequence of %d", def.Len), v.kind)
		}
		if uint32(len(elems)) != def.Len {
			return mismatch(id, fmt.Sprintf("sequence of %d", def.Len), v.kind)
		}
		for i, e := range elems {
			if err := encodeValue(reg, def.Elem, e, w, depth+1); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil

	case metadata.DefTuple:
		elems, ok := v.Elems()
		if !ok || v.kind != KindTuple {
			return mismatch(id, fmt.Sprintf("tuple of %d", len(def.Elems)), v.kind)
		}
		if len(elems) != len(def.Elems) {
			return mismatch(id, fmt.Sprintf("tuple of %d", len(def.Elems)), v.kind)
		}
		for i, e := range elems {
			if err := encodeValue(reg, def.Elems[i], e, w, depth+1); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil

	case metadata.DefPrimitive:
		return encodePrimitive(id, def.Kind, v, w)

	case metadata.DefCompact:
		// The compact form carries the value alone; the inner type's
		// nominal width does not bound it here.
		inner := v
		if inner.kind == KindComposite && len(inner.fields) == 1 {
			inner = inner.fields[0].Value
		}
		u, ok := inner.AsUint()
		if !ok {
			return mismatch(id, "compact unsigned", v.kind)
		}
		w.PutCompact(u)
		return nil

	case metadata.DefBitSequence:
		bits, ok := v.AsBits()
		if !ok {
			return mismatch(id, "bits", v.kind)
		}
		msb, err := bitOrder(reg, def)
		if err != nil {
			return err
		}
		w.PutCompactUint(uint64(len(bits)))
		w.PutBytes(packBits(bits, msb))
		return nil
	}
	return fmt.Errorf("dynamic: type %d has unknown definition %T", id, t.Def)
}

func encodeFields(reg *metadata.Registry, id metadata.TypeID, defs []metadata.Field, fields []Field, w *scale.Writer, depth int) error {
	if len(fields) != len(defs) {
		return mismatch(id, fmt.Sprintf("%d fields", len(defs)), KindComposite)
	}
	byName := fieldsNamed(defs) && valueFieldsNamed(fields)
	for i, df := range defs {
		fv := fields[i].Value
		if byName {
			found := false
			for _, f := range fields {
				if f.Name == df.Name {
					fv = f.Value
					found = true
					break
				}
			}
			if !found {
				return &ShapeMismatchError{Type: id, Want: fmt.Sprintf("field %q", df.Name), Got: KindComposite}
			}
		}
		if err := encodeValue(reg, df.Type, fv, w, depth+1); err != nil {
			if df.Name != "" {
				return fmt.Errorf("field %q: %w", df.Name, err)
			}
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	return nil
}

func encodePrimitive(id metadata.TypeID, p metadata.Primitive, v Value, w *scale.Writer) error {
	switch {
	case p == metadata.PrimBool:
		b, ok := v.AsBool()
		if !ok {
			return mismatch(id, "bool", v.kind)
		}
		w.PutBool(b)
		return nil
	case p == metadata.PrimChar:
		ch, ok := v.AsChar()
		if !ok {
			return mismatch(id, "char", v.kind)
		}
		if !utf8.ValidRune(ch) {
			return fmt.Errorf("dynamic: type %d: invalid char %#x", id, ch)
		}
		return w.PutUint(uint64(uint32(ch)), 4)
	case p == metadata.PrimStr:
		s, ok := v.AsStr()
		if !ok {
			return mismatch(id, "str", v.kind)
		}
		w.PutStr(s)
		return nil
	case p.Unsigned():
		u, ok := v.AsUint()
		if !ok {
			return mismatch(id, p.String(), v.kind)
		}
		if err := w.PutBigUint(u, p.Width()); err != nil {
			return fmt.Errorf("dynamic: type %d: %w", id, err)
		}
		return nil
	case p.Signed():
		i, ok := v.AsInt()
		if !ok {
			return mismatch(id, p.String(), v.kind)
		}
		if err := w.PutBigInt(i, p.Width()); err != nil {
			return fmt.Errorf("dynamic: type %d: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("dynamic: type %d has unknown primitive %s", id, p)
}

func fieldsNamed(defs []metadata.Field) bool {
	if len(defs) == 0 {
		return false
	}
	for _, f := range defs {
		if f.Name == "" {
			return false
		}
	}
	return true
}

func valueFieldsNamed(fields []Field) bool {
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if f.Name == "" {
			return false
		}
	}
	return true
}

// isByteElem reports whether id is the u8 primitive, the element type
// that selects the packed byte-string form.
func isByteElem(reg *metadata.Registry, id metadata.TypeID) bool {
	t, err := reg.Resolve(id)
	if err != nil {
		return false
	}
	p, ok := t.Def.(metadata.DefPrimitive)
	return ok && p.Kind == metadata.PrimU8
}

// bitOrder resolves a bit sequence's store and order descriptors and
// reports whether bits fill bytes most significant first. Only byte
// stores are supported.
func bitOrder(reg *metadata.Registry, def metadata.DefBitSequence) (msb bool, err error) {
	st, err := reg.Resolve(def.Store)
	if err != nil {
		return false, fmt.Errorf("dynamic: %w", err)
	}
	if p, ok := st.Def.(metadata.DefPrimitive); !ok || p.Kind != metadata.PrimU8 {
		return false, fmt.Errorf("%w: store %s", ErrBitStore, st.Name())
	}
	ord, err := reg.Resolve(def.Order)
	if err != nil {
		return false, fmt.Errorf("dynamic: %w", err)
	}
	switch ord.Name() {
	case "Lsb0":
		return false, nil
	case "Msb0":
		return true, nil
	}
	return false, fmt.Errorf("%w: order %s", ErrBitStore, ord.Name())
}

func packBits(bits []bool, msb bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if !bit {
			continue
		}
		if msb {
			out[i/8] |= 1 << (7 - i%8)
		} else {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}
