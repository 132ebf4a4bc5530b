package extrinsic

import (
	"errors"
	"fmt"

	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/scale"
)

// ErrArity is returned when a call is built with the wrong number of
// arguments.
var ErrArity = errors.New("extrinsic: wrong argument count")

// Call is a fully encoded runtime call: the pallet and call indices
// followed by the encoded arguments.
type Call struct {
	PalletIndex byte
	CallIndex   byte
	Args        []byte
}

// NewCall resolves pallet.call in m and encodes args against the
// call's declared argument types. Arity and argument shapes are
// checked here, before anything reaches the wire.
func NewCall(m *metadata.Metadata, pallet, call string, args ...dynamic.Value) (Call, error) {
	ref, err := m.Call(pallet, call)
	if err != nil {
		return Call{}, err
	}
	if len(args) != len(ref.Args) {
		return Call{}, fmt.Errorf("%w: %s.%s takes %d arguments, got %d",
			ErrArity, pallet, call, len(ref.Args), len(args))
	}
	w := scale.NewWriter()
	for i, f := range ref.Args {
		if err := dynamic.EncodeTo(m.Types, f.Type, args[i], w); err != nil {
			name := f.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return Call{}, fmt.Errorf("extrinsic: %s.%s argument %s: %w", pallet, call, name, err)
		}
	}
	return Call{PalletIndex: ref.PalletIndex, CallIndex: ref.CallIndex, Args: w.Bytes()}, nil
}

// EncodeTo appends the call's wire form.
func (c Call) EncodeTo(w *scale.Writer) {
	w.PutByte(c.PalletIndex)
	w.PutByte(c.CallIndex)
	w.PutBytes(c.Args)
}
