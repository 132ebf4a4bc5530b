package scale

import (
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/holiman/uint256"
)

// Reader is a decoding cursor over an immutable byte slice.
type Reader struct {
	data    []byte
	off     int
	lenient bool
}

// NewReader returns a strict Reader over data. Strict readers reject
// non-minimal compact encodings with ErrNonCanonical.
func NewReader(data []byte) *Reader { return &Reader{data: data} }

// NewLenientReader returns a Reader that accepts non-minimal compact
// encodings.
func NewLenientReader(data []byte) *Reader { return &Reader{data: data, lenient: true} }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Len returns the total input length.
func (r *Reader) Len() int { return len(r.data) }

// errAt wraps err with the current cursor position.
func (r *Reader) errAt(err error) error {
	return fmt.Errorf("%w (offset %d)", err, r.off)
}

// Byte consumes one byte.
func (r *Reader) Byte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, r.errAt(ErrUnexpectedEnd)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

// Bytes consumes n bytes and returns a copy.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, r.errAt(ErrUnexpectedEnd)
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}

// Bool consumes one byte, requiring 0 or 1.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		r.off--
		return false, r.errAt(fmt.Errorf("%w: %#x", ErrInvalidBool, b))
	}
}

// Option consumes the option discriminant, reporting whether a value
// follows. Bytes other than 0 and 1 are invalid.
func (r *Reader) Option() (bool, error) {
	b, err := r.Byte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		r.off--
		return false, r.errAt(fmt.Errorf("%w: option byte %#x", ErrInvalidDiscriminant, b))
	}
}

// Uint consumes a little-endian unsigned integer of the given width
// (1, 2, 4 or 8 bytes).
func (r *Reader) Uint(width int) (uint64, error) {
	switch width {
	case 1, 2, 4, 8:
	default:
		return 0, widthErr(width)
	}
	if r.Remaining() < width {
		return 0, r.errAt(ErrUnexpectedEnd)
	}
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(r.data[r.off+i]) << (8 * i)
	}
	r.off += width
	return v, nil
}

// BigUint consumes a little-endian unsigned integer of the given
// width (up to 32 bytes).
func (r *Reader) BigUint(width int) (*uint256.Int, error) {
	if !validWidth(width) {
		return nil, widthErr(width)
	}
	if r.Remaining() < width {
		return nil, r.errAt(ErrUnexpectedEnd)
	}
	var be [32]byte
	for i := 0; i < width; i++ {
		be[31-i] = r.data[r.off+i]
	}
	r.off += width
	return new(uint256.Int).SetBytes32(be[:]), nil
}

// Int consumes a little-endian two's complement integer of the given
// width (1, 2, 4 or 8 bytes), sign-extended.
func (r *Reader) Int(width int) (int64, error) {
	u, err := r.Uint(width)
	if err != nil {
		return 0, err
	}
	if width < 8 {
		shift := 64 - 8*width
		return int64(u<<shift) >> shift, nil
	}
	return int64(u), nil
}

// BigInt consumes a little-endian two's complement integer of the
// given width (up to 32 bytes).
func (r *Reader) BigInt(width int) (*big.Int, error) {
	if !validWidth(width) {
		return nil, widthErr(width)
	}
	if r.Remaining() < width {
		return nil, r.errAt(ErrUnexpectedEnd)
	}
	be := make([]byte, width)
	for i := 0; i < width; i++ {
		be[width-1-i] = r.data[r.off+i]
	}
	r.off += width
	v := new(big.Int).SetBytes(be)
	if be[0]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(8*width)))
	}
	return v, nil
}

// Compact consumes a compact integer.
func (r *Reader) Compact() (*uint256.Int, error) {
	start := r.off
	first, err := r.Byte()
	if err != nil {
		return nil, err
	}
	switch first & 0b11 {
	case 0b00:
		return uint256.NewInt(uint64(first >> 2)), nil

	case 0b01:
		second, err := r.Byte()
		if err != nil {
			return nil, err
		}
		v := (uint64(first) | uint64(second)<<8) >> 2
		if !r.lenient && v < 1<<6 {
			r.off = start
			return nil, r.errAt(ErrNonCanonical)
		}
		return uint256.NewInt(v), nil

	case 0b10:
		rest, err := r.Bytes(3)
		if err != nil {
			return nil, err
		}
		v := (uint64(first) | uint64(rest[0])<<8 | uint64(rest[1])<<16 | uint64(rest[2])<<24) >> 2
		if !r.lenient && v < 1<<14 {
			r.off = start
			return nil, r.errAt(ErrNonCanonical)
		}
		return uint256.NewInt(v), nil

	default:
		n := int(first>>2) + 4
		if n > 32 {
			r.off = start
			return nil, r.errAt(fmt.Errorf("%w: %d-byte payload", ErrCompactTooLarge, n))
		}
		payload, err := r.Bytes(n)
		if err != nil {
			return nil, err
		}
		if !r.lenient && payload[n-1] == 0 {
			r.off = start
			return nil, r.errAt(ErrNonCanonical)
		}
		be := make([]byte, n)
		for i := range payload {
			be[n-1-i] = payload[i]
		}
		v := new(uint256.Int).SetBytes(be)
		if !r.lenient && v.LtUint64(1<<30) {
			r.off = start
			return nil, r.errAt(ErrNonCanonical)
		}
		return v, nil
	}
}

// CompactUint consumes a compact integer that must fit in a uint64.
func (r *Reader) CompactUint() (uint64, error) {
	v, err := r.Compact()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, r.errAt(fmt.Errorf("%w: compact %s as uint64", ErrOverflow, v))
	}
	return v.Uint64(), nil
}

// Str consumes a compact length prefix followed by that many UTF-8
// bytes.
func (r *Reader) Str() (string, error) {
	n, err := r.CompactUint()
	if err != nil {
		return "", err
	}
	if n > uint64(r.Remaining()) {
		return "", r.errAt(ErrUnexpectedEnd)
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.errAt(fmt.Errorf("scale: string is not valid UTF-8"))
	}
	return string(b), nil
}
