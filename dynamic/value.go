// Package dynamic encodes and decodes values against type
// descriptors resolved from a metadata registry at runtime. Value is
// a closed tagged variant mirroring the descriptor shapes; the codec
// dispatches on both tags exhaustively and never coerces one shape
// into another.
package dynamic

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Kind tags the shape a Value carries.
type Kind uint8

const (
	KindBool Kind = iota
	KindChar
	KindStr
	KindUint
	KindInt
	KindBytes
	KindComposite
	KindVariant
	KindSeq
	KindTuple
	KindBits
)

var kindNames = [...]string{
	"bool", "char", "str", "uint", "int", "bytes",
	"composite", "variant", "sequence", "tuple", "bits",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one node of a dynamically typed value tree. Values are
// immutable once constructed; accessors return internal state that
// callers must not modify.
type Value struct {
	kind   Kind
	b      bool
	ch     rune
	s      string
	u      *uint256.Int
	i      *big.Int
	raw    []byte
	name   string
	fields []Field
	list   []Value
	bits   []bool
}

// Field is one member of a composite or variant value. Name is empty
// for unnamed fields.
type Field struct {
	Name  string
	Value Value
}

// Named builds a named field.
func Named(name string, v Value) Field { return Field{Name: name, Value: v} }

// Unnamed builds an unnamed field.
func Unnamed(v Value) Field { return Field{Value: v} }

// Bool builds a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Char builds a character value.
func Char(r rune) Value { return Value{kind: KindChar, ch: r} }

// Str builds a string value.
func Str(s string) Value { return Value{kind: KindStr, s: s} }

// Uint builds an unsigned integer value.
func Uint(v uint64) Value { return Value{kind: KindUint, u: uint256.NewInt(v)} }

// BigUint builds an unsigned integer value from v, copying it.
func BigUint(v *uint256.Int) Value {
	return Value{kind: KindUint, u: new(uint256.Int).Set(v)}
}

// Int builds a signed integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: big.NewInt(v)} }

// BigInt builds a signed integer value from v, copying it.
func BigInt(v *big.Int) Value {
	return Value{kind: KindInt, i: new(big.Int).Set(v)}
}

// Bytes builds a byte-string value, copying b.
func Bytes(b []byte) Value {
	out := make([]byte, len(b))
	copy(out, b)
	return Value{kind: KindBytes, raw: out}
}

// Composite builds a composite value from fields in order.
func Composite(fields ...Field) Value {
	return Value{kind: KindComposite, fields: fields}
}

// Variant builds a variant value with the given arm name.
func Variant(name string, fields ...Field) Value {
	return Value{kind: KindVariant, name: name, fields: fields}
}

// Seq builds a variable-length sequence value.
func Seq(elems ...Value) Value { return Value{kind: KindSeq, list: elems} }

// Tuple builds a fixed positional grouping.
func Tuple(elems ...Value) Value { return Value{kind: KindTuple, list: elems} }

// Bits builds a bit-sequence value; index 0 is the first bit on the
// wire.
func Bits(bits ...bool) Value { return Value{kind: KindBits, bits: bits} }

// Kind returns the value's shape tag.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsChar returns the character payload.
func (v Value) AsChar() (rune, bool) { return v.ch, v.kind == KindChar }

// AsStr returns the string payload.
func (v Value) AsStr() (string, bool) { return v.s, v.kind == KindStr }

// AsUint returns the unsigned payload.
func (v Value) AsUint() (*uint256.Int, bool) { return v.u, v.kind == KindUint }

// AsUint64 returns the unsigned payload when it fits a uint64.
func (v Value) AsUint64() (uint64, bool) {
	if v.kind != KindUint || !v.u.IsUint64() {
		return 0, false
	}
	return v.u.Uint64(), true
}

// AsInt returns the signed payload.
func (v Value) AsInt() (*big.Int, bool) { return v.i, v.kind == KindInt }

// AsInt64 returns the signed payload when it fits an int64.
func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInt || !v.i.IsInt64() {
		return 0, false
	}
	return v.i.Int64(), true
}

// AsBytes returns the byte-string payload.
func (v Value) AsBytes() ([]byte, bool) { return v.raw, v.kind == KindBytes }

// AsComposite returns the composite fields.
func (v Value) AsComposite() ([]Field, bool) { return v.fields, v.kind == KindComposite }

// AsVariant returns the variant arm name and fields.
func (v Value) AsVariant() (string, []Field, bool) {
	return v.name, v.fields, v.kind == KindVariant
}

// VariantName returns the variant arm name.
func (v Value) VariantName() (string, bool) { return v.name, v.kind == KindVariant }

// Elems returns the elements of a sequence or tuple.
func (v Value) Elems() ([]Value, bool) {
	return v.list, v.kind == KindSeq || v.kind == KindTuple
}

// AsBits returns the bit-sequence payload.
func (v Value) AsBits() ([]bool, bool) { return v.bits, v.kind == KindBits }

// Field returns the named field of a composite or variant.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindComposite && v.kind != KindVariant {
		return Value{}, false
	}
	for _, f := range v.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// At returns the i'th field or element of a compound value.
func (v Value) At(i int) (Value, bool) {
	switch v.kind {
	case KindComposite, KindVariant:
		if i < 0 || i >= len(v.fields) {
			return Value{}, false
		}
		return v.fields[i].Value, true
	case KindSeq, KindTuple:
		if i < 0 || i >= len(v.list) {
			return Value{}, false
		}
		return v.list[i], true
	}
	return Value{}, false
}

// Len returns the number of fields, elements, bytes or bits of a
// compound value, and 0 for leaves.
func (v Value) Len() int {
	switch v.kind {
	case KindComposite, KindVariant:
		return len(v.fields)
	case KindSeq, KindTuple:
		return len(v.list)
	case KindBytes:
		return len(v.raw)
	case KindBits:
		return len(v.bits)
	}
	return 0
}

// Equal reports deep structural equality. Kinds must match exactly:
// a sequence never equals a tuple, an unsigned never equals a signed.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindChar:
		return v.ch == o.ch
	case KindStr:
		return v.s == o.s
	case KindUint:
		return v.u.Eq(o.u)
	case KindInt:
		return v.i.Cmp(o.i) == 0
	case KindBytes:
		return string(v.raw) == string(o.raw)
	case KindComposite, KindVariant:
		if v.name != o.name || len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Name != o.fields[i].Name {
				return false
			}
			if !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	case KindSeq, KindTuple:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindBits:
		if len(v.bits) != len(o.bits) {
			return false
		}
		for i := range v.bits {
			if v.bits[i] != o.bits[i] {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a debug form of the value.
func (v Value) String() string {
	var sb strings.Builder
	v.render(&sb)
	return sb.String()
}

func (v Value) render(sb *strings.Builder) {
	switch v.kind {
	case KindBool:
		fmt.Fprintf(sb, "%t", v.b)
	case KindChar:
		fmt.Fprintf(sb, "%q", v.ch)
	case KindStr:
		fmt.Fprintf(sb, "%q", v.s)
	case KindUint:
		sb.WriteString(v.u.Dec())
	case KindInt:
		sb.WriteString(v.i.String())
	case KindBytes:
		fmt.Fprintf(sb, "0x%x", v.raw)
	case KindComposite:
		renderFields(sb, v.fields)
	case KindVariant:
		sb.WriteString(v.name)
		renderFields(sb, v.fields)
	case KindSeq:
		sb.WriteByte('[')
		for i, e := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.render(sb)
		}
		sb.WriteByte(']')
	case KindTuple:
		sb.WriteByte('(')
		for i, e := range v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.render(sb)
		}
		sb.WriteByte(')')
	case KindBits:
		sb.WriteString("0b")
		for _, bit := range v.bits {
			if bit {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
	}
}

func renderFields(sb *strings.Builder, fields []Field) {
	sb.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		if f.Name != "" {
			sb.WriteString(f.Name)
			sb.WriteString(": ")
		}
		f.Value.render(sb)
	}
	sb.WriteByte('}')
}
