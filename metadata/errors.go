package metadata

import "errors"

var (
	// ErrVersionUnsupported signals a document whose format version
	// this client does not understand.
	ErrVersionUnsupported = errors.New("metadata: unsupported document version")

	// ErrBadMagic signals a document that is not a metadata document.
	ErrBadMagic = errors.New("metadata: bad magic number")

	// ErrDanglingType signals a TypeID with no registry entry.
	ErrDanglingType = errors.New("metadata: dangling type id")

	// ErrDuplicatePallet signals two pallets sharing an index.
	ErrDuplicatePallet = errors.New("metadata: duplicate pallet index")

	// ErrDuplicateName signals a name collision within one pallet.
	ErrDuplicateName = errors.New("metadata: duplicate name")

	// ErrUnknownPallet signals a lookup for a pallet the document
	// does not declare.
	ErrUnknownPallet = errors.New("metadata: unknown pallet")

	// ErrUnknownCall signals a lookup for a call the pallet does not
	// declare.
	ErrUnknownCall = errors.New("metadata: unknown call")

	// ErrUnknownStorage signals a lookup for a storage entry the
	// pallet does not declare.
	ErrUnknownStorage = errors.New("metadata: unknown storage entry")

	// ErrUnknownConstant signals a lookup for a constant the pallet
	// does not declare.
	ErrUnknownConstant = errors.New("metadata: unknown constant")

	// ErrUnknownVariant signals a discriminant or name with no match
	// in the resolved variant type.
	ErrUnknownVariant = errors.New("metadata: unknown variant")

	// ErrNotVariant signals a pallet call/event/error type that did
	// not resolve to a variant definition.
	ErrNotVariant = errors.New("metadata: type is not a variant")
)
