package types

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockNumber is a block height as nodes report it over JSON-RPC, a
// 0x-prefixed hex string without leading zeros.
type BlockNumber uint64

// MarshalText implements encoding.TextMarshaler.
func (n BlockNumber) MarshalText() ([]byte, error) {
	return []byte("0x" + strconv.FormatUint(uint64(n), 16)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *BlockNumber) UnmarshalText(text []byte) error {
	s := string(text)
	if !strings.HasPrefix(s, "0x") {
		return fmt.Errorf("types: block number %q missing 0x prefix", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return fmt.Errorf("types: invalid block number %q: %w", s, err)
	}
	*n = BlockNumber(v)
	return nil
}

func (n BlockNumber) String() string { return strconv.FormatUint(uint64(n), 10) }

// Header is one block header as the node serves it. The number and
// parent hash are what anchor mortal eras; the digest logs stay raw
// because the client never interprets consensus engine output.
type Header struct {
	ParentHash     Hash        `json:"parentHash"`
	Number         BlockNumber `json:"number"`
	StateRoot      Hash        `json:"stateRoot"`
	ExtrinsicsRoot Hash        `json:"extrinsicsRoot"`
	Digest         Digest      `json:"digest"`
}

// Digest carries the header's consensus log items.
type Digest struct {
	Logs []HexBytes `json:"logs"`
}
