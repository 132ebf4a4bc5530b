// Package scale implements the node's binary codec: little-endian
// fixed-width integers, compact (variable-length) integers, and the
// one-byte option and boolean forms.
//
// A Writer appends encoded fields to a growing buffer. A Reader is a
// cursor over an immutable input; every failed read reports the input
// offset it failed at. Readers are strict by default and reject
// non-minimal compact encodings; NewLenientReader accepts them.
package scale

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedEnd signals truncated input.
	ErrUnexpectedEnd = errors.New("scale: unexpected end of input")

	// ErrNonCanonical signals a compact encoding that is valid but
	// not minimal, rejected by strict readers.
	ErrNonCanonical = errors.New("scale: non-canonical compact encoding")

	// ErrInvalidDiscriminant signals a tag byte with no matching case.
	ErrInvalidDiscriminant = errors.New("scale: invalid discriminant")

	// ErrInvalidBool signals a boolean byte other than 0 or 1.
	ErrInvalidBool = errors.New("scale: invalid boolean byte")

	// ErrCompactTooLarge signals a compact value beyond 2^256-1,
	// which this client cannot represent.
	ErrCompactTooLarge = errors.New("scale: compact value too large")

	// ErrOverflow signals a value that does not fit the target width.
	ErrOverflow = errors.New("scale: value overflows target width")

	// ErrWidth signals an unsupported fixed-integer width.
	ErrWidth = errors.New("scale: unsupported integer width")
)

// validWidth reports whether width is a fixed-integer size the codec
// supports, in bytes.
func validWidth(width int) bool {
	switch width {
	case 1, 2, 4, 8, 16, 32:
		return true
	}
	return false
}

func widthErr(width int) error {
	return fmt.Errorf("%w: %d bytes", ErrWidth, width)
}
