package scale

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Writer accumulates encoded fields. The zero value is ready to use.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding. The slice is owned by the
// Writer; callers that keep writing must copy it first.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// PutByte appends a single byte.
func (w *Writer) PutByte(b byte) { w.buf = append(w.buf, b) }

// PutBytes appends raw bytes with no length prefix.
func (w *Writer) PutBytes(p []byte) { w.buf = append(w.buf, p...) }

// PutBool appends 1 for true, 0 for false.
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// PutOption appends the option discriminant: 1 if a value follows,
// 0 otherwise.
func (w *Writer) PutOption(present bool) { w.PutBool(present) }

// PutUint appends v little-endian at the given width (1, 2, 4 or 8
// bytes). Values that do not fit the width are rejected.
func (w *Writer) PutUint(v uint64, width int) error {
	switch width {
	case 1, 2, 4, 8:
	default:
		return widthErr(width)
	}
	if width < 8 && v>>(8*width) != 0 {
		return fmt.Errorf("%w: %d in %d bytes", ErrOverflow, v, width)
	}
	for i := 0; i < width; i++ {
		w.buf = append(w.buf, byte(v>>(8*i)))
	}
	return nil
}

// PutBigUint appends v little-endian at the given width (up to 32
// bytes).
func (w *Writer) PutBigUint(v *uint256.Int, width int) error {
	if !validWidth(width) {
		return widthErr(width)
	}
	if v.ByteLen() > width {
		return fmt.Errorf("%w: %s in %d bytes", ErrOverflow, v, width)
	}
	be := v.Bytes32()
	for i := 0; i < width; i++ {
		w.buf = append(w.buf, be[31-i])
	}
	return nil
}

// PutInt appends v little-endian two's complement at the given width
// (1, 2, 4 or 8 bytes).
func (w *Writer) PutInt(v int64, width int) error {
	switch width {
	case 1, 2, 4, 8:
	default:
		return widthErr(width)
	}
	if width < 8 {
		limit := int64(1) << (8*width - 1)
		if v >= limit || v < -limit {
			return fmt.Errorf("%w: %d in %d bytes", ErrOverflow, v, width)
		}
	}
	u := uint64(v)
	for i := 0; i < width; i++ {
		w.buf = append(w.buf, byte(u>>(8*i)))
	}
	return nil
}

// PutBigInt appends v little-endian two's complement at the given
// width (up to 32 bytes).
func (w *Writer) PutBigInt(v *big.Int, width int) error {
	if !validWidth(width) {
		return widthErr(width)
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(8*width-1))
	enc := v
	if v.Sign() < 0 {
		if new(big.Int).Neg(v).Cmp(limit) > 0 {
			return fmt.Errorf("%w: %s in %d bytes", ErrOverflow, v, width)
		}
		enc = new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), uint(8*width)), v)
	} else if v.Cmp(limit) >= 0 {
		return fmt.Errorf("%w: %s in %d bytes", ErrOverflow, v, width)
	}
	be := enc.Bytes()
	for i := 0; i < width; i++ {
		if i < len(be) {
			w.buf = append(w.buf, be[len(be)-1-i])
		} else {
			w.buf = append(w.buf, 0)
		}
	}
	return nil
}

// PutCompactUint appends v in the compact form.
func (w *Writer) PutCompactUint(v uint64) {
	w.PutCompact(uint256.NewInt(v))
}

// PutCompact appends v in the compact form: two low mode bits select a
// 1, 2 or 4 byte little-endian value (6, 14 and 30 bit modes), and the
// big mode carries a byte-length header followed by the minimal
// little-endian payload.
func (w *Writer) PutCompact(v *uint256.Int) {
	switch {
	case v.LtUint64(1 << 6):
		w.buf = append(w.buf, byte(v.Uint64())<<2)
	case v.LtUint64(1 << 14):
		u := uint32(v.Uint64())<<2 | 0b01
		w.buf = append(w.buf, byte(u), byte(u>>8))
	case v.LtUint64(1 << 30):
		u := uint32(v.Uint64())<<2 | 0b10
		w.buf = append(w.buf, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	default:
		be := v.Bytes()
		w.buf = append(w.buf, byte(len(be)-4)<<2|0b11)
		for i := len(be) - 1; i >= 0; i-- {
			w.buf = append(w.buf, be[i])
		}
	}
}

// PutStr appends a compact length prefix followed by the UTF-8 bytes.
func (w *Writer) PutStr(s string) {
	w.PutCompactUint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}
