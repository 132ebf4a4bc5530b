package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/sigil-dev/sigil/metadata"
)

// twox64 is one xxhash64 round at the given seed, little endian.
func twox64(seed uint64, data []byte) []byte {
	h := xxhash.NewWithSeed(seed)
	h.Write(data)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, h.Sum64())
	return out
}

// twoxRounds concatenates n xxhash64 rounds at seeds 0..n-1.
func twoxRounds(n uint64, data []byte) []byte {
	out := make([]byte, 0, 8*n)
	for seed := uint64(0); seed < n; seed++ {
		out = append(out, twox64(seed, data)...)
	}
	return out
}

// Twox128 is the 16-byte hash used for storage prefixes: two
// xxhash64 rounds at seeds 0 and 1, little endian, concatenated.
func Twox128(data []byte) []byte { return twoxRounds(2, data) }

func blake2b128(data []byte) []byte {
	h, _ := blake2b.New(16, nil) // digest size 16 is always in range
	h.Write(data)
	return h.Sum(nil)
}

// hashKeyPart applies one declared hasher to an encoded key part.
func hashKeyPart(h metadata.StorageHasher, encoded []byte) ([]byte, error) {
	switch h {
	case metadata.HasherIdentity:
		return encoded, nil
	case metadata.HasherTwox64Concat:
		return append(twox64(0, encoded), encoded...), nil
	case metadata.HasherTwox128:
		return twoxRounds(2, encoded), nil
	case metadata.HasherTwox256:
		return twoxRounds(4, encoded), nil
	case metadata.HasherBlake2_128:
		return blake2b128(encoded), nil
	case metadata.HasherBlake2_128Concat:
		return append(blake2b128(encoded), encoded...), nil
	case metadata.HasherBlake2_256:
		sum := blake2b.Sum256(encoded)
		return sum[:], nil
	}
	return nil, fmt.Errorf("storage: unknown hasher %s", h)
}
