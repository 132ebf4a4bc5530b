// Package metadata parses the node's versioned metadata document into
// a registry of type descriptors plus pallet, extrinsic and runtime
// definitions, and answers the lookups every other component builds
// on: calls by name, storage entries by name, constants, and module
// errors by wire index.
//
// A Metadata is built once per session by Decode, validated for
// internal consistency, and treated as read-only shared state
// thereafter.
package metadata

import "fmt"

// Version is the one document format version this client accepts.
const Version byte = 14

// Metadata is a fully parsed and validated document.
type Metadata struct {
	Types       *Registry
	Pallets     []*Pallet
	Extrinsic   Extrinsic
	RuntimeType TypeID

	byName  map[string]*Pallet
	byIndex map[byte]*Pallet
}

// New assembles and validates a document from already-built parts.
// Decode is the usual constructor; this serves callers putting
// documents together by hand.
func New(types *Registry, pallets []*Pallet, ext Extrinsic, runtimeType TypeID) (*Metadata, error) {
	m := &Metadata{
		Types:       types,
		Pallets:     pallets,
		Extrinsic:   ext,
		RuntimeType: runtimeType,
		byName:      make(map[string]*Pallet),
		byIndex:     make(map[byte]*Pallet),
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Pallet is one runtime module: its wire index and the type ids of
// its call, event and error variants, plus storage and constants.
type Pallet struct {
	Name      string
	Index     byte
	Storage   *Storage // nil when the pallet declares no storage
	CallType  *TypeID  // nil when the pallet declares no calls
	EventType *TypeID
	ErrorType *TypeID
	Constants []*Constant
}

// Storage is a pallet's storage declaration.
type Storage struct {
	Prefix  string
	Entries []*StorageEntry
}

// StorageModifier says how an absent storage value reads.
type StorageModifier byte

const (
	// ModifierOptional reads absent values as absent.
	ModifierOptional StorageModifier = 0
	// ModifierDefault reads absent values as the entry's fallback.
	ModifierDefault StorageModifier = 1
)

// StorageHasher enumerates the key-hashing schemes a storage map can
// declare, with their wire discriminants.
type StorageHasher byte

const (
	HasherBlake2_128       StorageHasher = 0
	HasherBlake2_256       StorageHasher = 1
	HasherBlake2_128Concat StorageHasher = 2
	HasherTwox128          StorageHasher = 3
	HasherTwox256          StorageHasher = 4
	HasherTwox64Concat     StorageHasher = 5
	HasherIdentity         StorageHasher = 6
)

var hasherNames = [...]string{
	"blake2_128", "blake2_256", "blake2_128_concat",
	"twox128", "twox256", "twox64_concat", "identity",
}

func (h StorageHasher) String() string {
	if int(h) < len(hasherNames) {
		return hasherNames[h]
	}
	return fmt.Sprintf("hasher(%d)", byte(h))
}

// StorageEntry is one storage item. Plain entries have a nil Key and
// no hashers; maps declare one hasher per key part (a single hasher
// covers the whole key).
type StorageEntry struct {
	Prefix   string // the owning pallet's storage prefix
	Name     string
	Modifier StorageModifier
	Hashers  []StorageHasher
	Key      *TypeID
	Value    TypeID
	Fallback []byte
	Docs     []string
}

// IsPlain reports whether the entry is a plain value rather than a map.
func (e *StorageEntry) IsPlain() bool { return e.Key == nil }

// Constant is a pallet constant with its encoded value.
type Constant struct {
	Name  string
	Type  TypeID
	Value []byte
	Docs  []string
}

// Extrinsic describes the chain's extrinsic format.
type Extrinsic struct {
	Type             TypeID
	Version          byte
	SignedExtensions []SignedExtension
}

// SignedExtension is one entry of the chain's signed-extension chain:
// Type feeds the extra block, AdditionalSigned the implicit payload
// tail.
type SignedExtension struct {
	Identifier       string
	Type             TypeID
	AdditionalSigned TypeID
}

// CallRef locates a dispatchable call and carries its argument fields.
type CallRef struct {
	Pallet      string
	PalletIndex byte
	CallIndex   byte
	Args        []Field
}

// ErrorRef names a module error resolved from its wire index.
type ErrorRef struct {
	Pallet string
	Name   string
	Docs   []string
}

// Pallet returns the pallet declared under name.
func (m *Metadata) Pallet(name string) (*Pallet, error) {
	p, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPallet, name)
	}
	return p, nil
}

// PalletByIndex returns the pallet declared at the wire index.
func (m *Metadata) PalletByIndex(index byte) (*Pallet, error) {
	p, ok := m.byIndex[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownPallet, index)
	}
	return p, nil
}

// Call resolves a call by pallet and call name to its wire indices
// and argument fields.
func (m *Metadata) Call(pallet, call string) (*CallRef, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return nil, err
	}
	if p.CallType == nil {
		return nil, fmt.Errorf("%w: pallet %q declares no calls", ErrUnknownCall, pallet)
	}
	def, err := m.variantDef(*p.CallType)
	if err != nil {
		return nil, fmt.Errorf("pallet %q calls: %w", pallet, err)
	}
	for i := range def.Variants {
		if v := &def.Variants[i]; v.Name == call {
			return &CallRef{
				Pallet:      p.Name,
				PalletIndex: p.Index,
				CallIndex:   v.Index,
				Args:        v.Fields,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in pallet %q", ErrUnknownCall, call, pallet)
}

// Storage resolves a storage entry by pallet and entry name.
func (m *Metadata) Storage(pallet, entry string) (*StorageEntry, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return nil, err
	}
	if p.Storage != nil {
		for _, e := range p.Storage.Entries {
			if e.Name == entry {
				return e, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %q in pallet %q", ErrUnknownStorage, entry, pallet)
}

// Constant resolves a pallet constant by name.
func (m *Metadata) Constant(pallet, name string) (*Constant, error) {
	p, err := m.Pallet(pallet)
	if err != nil {
		return nil, err
	}
	for _, c := range p.Constants {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in pallet %q", ErrUnknownConstant, name, pallet)
}

// ModuleError resolves a dispatch error's pallet index and error
// bytes to the declared error variant. The first error byte is the
// variant discriminant; the rest pad newer runtimes' wider indices.
func (m *Metadata) ModuleError(palletIndex byte, errorBytes [4]byte) (*ErrorRef, error) {
	p, err := m.PalletByIndex(palletIndex)
	if err != nil {
		return nil, err
	}
	if p.ErrorType == nil {
		return nil, fmt.Errorf("%w: pallet %q declares no errors", ErrUnknownVariant, p.Name)
	}
	def, err := m.variantDef(*p.ErrorType)
	if err != nil {
		return nil, fmt.Errorf("pallet %q errors: %w", p.Name, err)
	}
	for i := range def.Variants {
		if v := &def.Variants[i]; v.Index == errorBytes[0] {
			return &ErrorRef{Pallet: p.Name, Name: v.Name, Docs: v.Docs}, nil
		}
	}
	return nil, fmt.Errorf("%w: error index %d in pallet %q", ErrUnknownVariant, errorBytes[0], p.Name)
}

// variantDef resolves id and requires a variant definition.
func (m *Metadata) variantDef(id TypeID) (*DefVariant, error) {
	t, err := m.Types.Resolve(id)
	if err != nil {
		return nil, err
	}
	def, ok := t.Def.(DefVariant)
	if !ok {
		return nil, fmt.Errorf("%w: type %d", ErrNotVariant, id)
	}
	return &def, nil
}
