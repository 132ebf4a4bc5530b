package dynamic

import (
	"errors"
	"fmt"

	"github.com/sigil-dev/sigil/metadata"
)

// ErrTooDeep is returned when a value or descriptor nests beyond the
// supported depth.
var ErrTooDeep = errors.New("dynamic: nesting too deep")

// ErrBitStore is returned when a bit sequence descriptor uses a store
// or ordering the codec does not support.
var ErrBitStore = errors.New("dynamic: unsupported bit sequence store or order")

// maxDepth bounds recursion through descriptors and values. Cyclic
// descriptors hit this rather than overflowing the stack.
const maxDepth = 64

// ShapeMismatchError is returned when a value's shape does not fit
// the descriptor it is being encoded against.
type ShapeMismatchError struct {
	Type metadata.TypeID
	Want string
	Got  Kind
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("dynamic: type %d wants %s, got %s", e.Type, e.Want, e.Got)
}

// IsShapeMismatch reports whether err is a shape mismatch and
// returns it when so.
func IsShapeMismatch(err error) (*ShapeMismatchError, bool) {
	var e *ShapeMismatchError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func mismatch(id metadata.TypeID, want string, got Kind) error {
	return &ShapeMismatchError{Type: id, Want: want, Got: got}
}
