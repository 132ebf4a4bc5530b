package extrinsic

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/sigil-dev/sigil/scale"
)

// ErrInvalidEra is returned when two era bytes do not describe a
// usable period and phase.
var ErrInvalidEra = errors.New("extrinsic: invalid era")

// Era bounds how long an extrinsic stays includable. The zero value
// is the immortal era, valid forever. Mortal eras cover a window of
// period blocks whose position is fixed by phase; both are held in
// the quantized form that survives the two-byte wire encoding.
type Era struct {
	period uint64
	phase  uint64
}

// Immortal is the era of extrinsics that never expire.
var Immortal = Era{}

// Mortal builds an era spanning roughly period blocks around the
// block number current. The period is rounded up to a power of two
// and clamped to [4, 65536]; the phase is quantized to fit the wire
// form, so the window may start slightly before current.
func Mortal(period, current uint64) Era {
	p := uint64(1) << 16
	if period <= 1<<16 {
		p = nextPowerOfTwo(period)
		if p < 4 {
			p = 4
		}
	}
	q := quantizeFactor(p)
	phase := current % p
	return Era{period: p, phase: phase / q * q}
}

func nextPowerOfTwo(v uint64) uint64 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len64(v-1)
}

func quantizeFactor(period uint64) uint64 {
	if q := period >> 12; q > 1 {
		return q
	}
	return 1
}

// IsImmortal reports whether the era never expires.
func (e Era) IsImmortal() bool { return e.period == 0 }

// Period returns the window length in blocks, 0 when immortal.
func (e Era) Period() uint64 { return e.period }

// Phase returns the quantized offset of the window within the chain,
// 0 when immortal.
func (e Era) Phase() uint64 { return e.phase }

func (e Era) String() string {
	if e.IsImmortal() {
		return "immortal"
	}
	return fmt.Sprintf("mortal(period=%d, phase=%d)", e.period, e.phase)
}

// EncodeTo appends the era's wire form: a single zero byte when
// immortal, otherwise two little-endian bytes packing log2(period)-1
// in the low nibble and the quantized phase above it. The first byte
// of a mortal era is never zero, which is what keeps the two shapes
// distinguishable.
func (e Era) EncodeTo(w *scale.Writer) {
	if e.period == 0 {
		w.PutByte(0)
		return
	}
	// period is a power of two in [4, 65536], so the nibble lands in
	// [1, 15].
	nibble := uint64(bits.TrailingZeros64(e.period)) - 1
	encoded := uint16(nibble) | uint16(e.phase/quantizeFactor(e.period))<<4
	w.PutByte(byte(encoded))
	w.PutByte(byte(encoded >> 8))
}

// DecodeEra reads an era from r, accepting exactly the two shapes
// EncodeTo produces.
func DecodeEra(r *scale.Reader) (Era, error) {
	first, err := r.Byte()
	if err != nil {
		return Era{}, err
	}
	if first == 0 {
		return Immortal, nil
	}
	second, err := r.Byte()
	if err != nil {
		return Era{}, err
	}
	encoded := uint64(first) | uint64(second)<<8
	period := uint64(2) << (encoded & 0xf)
	phase := (encoded >> 4) * quantizeFactor(period)
	if period < 4 || phase >= period {
		return Era{}, fmt.Errorf("%w: period %d phase %d", ErrInvalidEra, period, phase)
	}
	return Era{period: period, phase: phase}, nil
}
