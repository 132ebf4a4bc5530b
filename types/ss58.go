package types

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// ss58Preamble is mixed into the checksum so that an address
// checksum never collides with other blake2b uses of the same bytes.
const ss58Preamble = "SS58PRE"

// maxSS58Network is the largest encodable network prefix (14 bits).
const maxSS58Network = 0x3fff

// SS58 renders the account id as an SS58 address for the given
// network prefix. Prefixes below 64 use the one-byte form, the rest
// the two-byte form.
func (id AccountID) SS58(network uint16) (string, error) {
	if network > maxSS58Network {
		return "", fmt.Errorf("types: ss58 network prefix %d out of range", network)
	}
	data := make([]byte, 0, 2+len(id)+2)
	if network < 64 {
		data = append(data, byte(network))
	} else {
		first := 0b0100_0000 | byte((network&0b1111_1100)>>2)
		second := byte(network>>8) | byte(network&0b11)<<6
		data = append(data, first, second)
	}
	data = append(data, id[:]...)
	sum := ss58Checksum(data)
	data = append(data, sum[0], sum[1])
	return base58.Encode(data), nil
}

// ParseSS58 decodes an SS58 address into the account id and the
// network prefix it was encoded for. The checksum must verify.
func ParseSS58(s string) (AccountID, uint16, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return AccountID{}, 0, fmt.Errorf("types: ss58 base58 decode: %w", err)
	}
	if len(raw) < 1 {
		return AccountID{}, 0, fmt.Errorf("types: ss58 address empty")
	}
	var (
		network uint16
		body    []byte
	)
	switch {
	case raw[0] < 64:
		network = uint16(raw[0])
		body = raw[1:]
	case raw[0] < 128:
		if len(raw) < 2 {
			return AccountID{}, 0, fmt.Errorf("types: ss58 address truncated")
		}
		low := (raw[0]&0b0011_1111)<<2 | raw[1]>>6
		high := raw[1] & 0b0011_1111
		network = uint16(low) | uint16(high)<<8
		body = raw[2:]
	default:
		return AccountID{}, 0, fmt.Errorf("types: ss58 prefix byte %#x reserved", raw[0])
	}
	if len(body) != 34 {
		return AccountID{}, 0, fmt.Errorf("types: ss58 payload is %d bytes, want 34", len(body))
	}
	sum := ss58Checksum(raw[:len(raw)-2])
	if !bytes.Equal(sum[:2], body[32:]) {
		return AccountID{}, 0, fmt.Errorf("types: ss58 checksum mismatch")
	}
	id, err := NewAccountID(body[:32])
	if err != nil {
		return AccountID{}, 0, err
	}
	return id, network, nil
}

func ss58Checksum(data []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write([]byte(ss58Preamble))
	h.Write(data)
	return h.Sum(nil)
}
