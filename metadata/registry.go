package metadata

import "fmt"

// TypeID addresses one entry in a Registry. IDs are assigned by the
// node and are stable for the lifetime of one metadata document.
type TypeID uint32

// Type is one node in the registry graph.
type Type struct {
	Path   []string
	Params []TypeParam
	Def    TypeDef
	Docs   []string
}

// Name returns the last path segment, or "" for anonymous types.
func (t *Type) Name() string {
	if len(t.Path) == 0 {
		return ""
	}
	return t.Path[len(t.Path)-1]
}

// TypeParam is a generic parameter of a Type.
type TypeParam struct {
	Name string
	Type *TypeID // nil when the parameter is unbound
}

// TypeDef is the closed set of type shapes a descriptor can take.
// Codec sites switch exhaustively over the Def* structs.
type TypeDef interface{ isTypeDef() }

type (
	// DefComposite is a struct: ordered fields, optionally named.
	DefComposite struct{ Fields []Field }

	// DefVariant is a tagged union.
	DefVariant struct{ Variants []Variant }

	// DefSequence is a variable-length list with a compact count
	// prefix.
	DefSequence struct{ Elem TypeID }

	// DefArray is a fixed-length list with no prefix.
	DefArray struct {
		Len  uint32
		Elem TypeID
	}

	// DefTuple is an ordered, unnamed grouping.
	DefTuple struct{ Elems []TypeID }

	// DefPrimitive is a leaf value.
	DefPrimitive struct{ Kind Primitive }

	// DefCompact wraps an integer type in the compact encoding.
	DefCompact struct{ Elem TypeID }

	// DefBitSequence is a bit vector; Store and Order reference the
	// store unit and bit-order marker types.
	DefBitSequence struct{ Store, Order TypeID }
)

func (DefComposite) isTypeDef()   {}
func (DefVariant) isTypeDef()     {}
func (DefSequence) isTypeDef()    {}
func (DefArray) isTypeDef()       {}
func (DefTuple) isTypeDef()       {}
func (DefPrimitive) isTypeDef()   {}
func (DefCompact) isTypeDef()     {}
func (DefBitSequence) isTypeDef() {}

// Field is one member of a composite or variant.
type Field struct {
	Name     string // "" for unnamed fields
	Type     TypeID
	TypeName string // source-level spelling, informational
	Docs     []string
}

// Variant is one arm of a DefVariant. Index is the wire discriminant,
// which need not match the arm's position.
type Variant struct {
	Name   string
	Fields []Field
	Index  byte
	Docs   []string
}

// Primitive enumerates the leaf types with their wire discriminants.
type Primitive byte

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

var primitiveNames = [...]string{
	"bool", "char", "str",
	"u8", "u16", "u32", "u64", "u128", "u256",
	"i8", "i16", "i32", "i64", "i128", "i256",
}

func (p Primitive) String() string {
	if int(p) < len(primitiveNames) {
		return primitiveNames[p]
	}
	return fmt.Sprintf("primitive(%d)", byte(p))
}

// Signed reports whether the primitive is a signed integer.
func (p Primitive) Signed() bool { return p >= PrimI8 && p <= PrimI256 }

// Unsigned reports whether the primitive is an unsigned integer.
func (p Primitive) Unsigned() bool { return p >= PrimU8 && p <= PrimU256 }

// Width returns the byte width of an integer primitive, or 0.
func (p Primitive) Width() int {
	switch p {
	case PrimU8, PrimI8:
		return 1
	case PrimU16, PrimI16:
		return 2
	case PrimU32, PrimI32:
		return 4
	case PrimU64, PrimI64:
		return 8
	case PrimU128, PrimI128:
		return 16
	case PrimU256, PrimI256:
		return 32
	}
	return 0
}

// Registry is the arena of type descriptors. It is built once by
// Decode and read-only thereafter; cyclic references stay as TypeIDs
// and are resolved lazily by callers.
type Registry struct {
	types map[TypeID]*Type
}

// NewRegistry builds a registry directly from descriptors keyed by
// id. Decode populates one from a wire document; this constructor
// serves callers assembling descriptors by hand.
func NewRegistry(types map[TypeID]*Type) *Registry {
	m := make(map[TypeID]*Type, len(types))
	for id, t := range types {
		m[id] = t
	}
	return &Registry{types: m}
}

// Resolve returns the descriptor for id.
func (r *Registry) Resolve(id TypeID) (*Type, error) {
	t, ok := r.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDanglingType, id)
	}
	return t, nil
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return len(r.types) }
