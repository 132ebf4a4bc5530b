// Package txstatus follows the lifecycle reports a node emits for a
// submitted extrinsic, from pool admission through finality.
package txstatus

import (
	"encoding/json"
	"fmt"

	"github.com/sigil-dev/sigil/types"
)

// Kind identifies one lifecycle state.
type Kind uint8

const (
	Future Kind = iota
	Ready
	Broadcast
	InBlock
	Retracted
	FinalityTimeout
	Finalized
	Usurped
	Dropped
	Invalid
)

// Terminal reports whether no further status can follow this one.
func (k Kind) Terminal() bool {
	switch k {
	case FinalityTimeout, Finalized, Usurped, Dropped, Invalid:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case Future:
		return "Future"
	case Ready:
		return "Ready"
	case Broadcast:
		return "Broadcast"
	case InBlock:
		return "InBlock"
	case Retracted:
		return "Retracted"
	case FinalityTimeout:
		return "FinalityTimeout"
	case Finalized:
		return "Finalized"
	case Usurped:
		return "Usurped"
	case Dropped:
		return "Dropped"
	case Invalid:
		return "Invalid"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// wireName is the camelCase tag the node uses on the wire.
func (k Kind) wireName() string {
	switch k {
	case Future:
		return "future"
	case Ready:
		return "ready"
	case Broadcast:
		return "broadcast"
	case InBlock:
		return "inBlock"
	case Retracted:
		return "retracted"
	case FinalityTimeout:
		return "finalityTimeout"
	case Finalized:
		return "finalized"
	case Usurped:
		return "usurped"
	case Dropped:
		return "dropped"
	case Invalid:
		return "invalid"
	}
	return ""
}

func kindFromWire(name string) (Kind, bool) {
	for k := Future; k <= Invalid; k++ {
		if k.wireName() == name {
			return k, true
		}
	}
	return 0, false
}

// hasHash reports whether the status carries a block hash (or, for
// Usurped, the hash of the replacing extrinsic).
func (k Kind) hasHash() bool {
	switch k {
	case InBlock, Retracted, FinalityTimeout, Finalized, Usurped:
		return true
	}
	return false
}

// Status is one lifecycle report. Hash is set for the block-anchored
// kinds and Usurped; Peers is set for Broadcast.
type Status struct {
	Kind  Kind
	Hash  types.Hash
	Peers []string
}

// Terminal reports whether no further status can follow.
func (s Status) Terminal() bool { return s.Kind.Terminal() }

func (s Status) String() string {
	switch {
	case s.Kind == Broadcast:
		return fmt.Sprintf("Broadcast(%d peers)", len(s.Peers))
	case s.Kind.hasHash():
		return fmt.Sprintf("%s(%s)", s.Kind, s.Hash)
	}
	return s.Kind.String()
}

// UnmarshalJSON accepts both shapes the node emits: a bare string for
// payload-free kinds ("ready") and a single-key object for the rest
// ({"finalized": "0x.."}).
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		k, ok := kindFromWire(name)
		if !ok || k == Broadcast || k.hasHash() {
			return fmt.Errorf("txstatus: unknown status %q", name)
		}
		*s = Status{Kind: k}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("txstatus: malformed status report: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("txstatus: status object has %d keys, want one", len(obj))
	}
	for name, raw := range obj {
		k, ok := kindFromWire(name)
		switch {
		case ok && k == Broadcast:
			var peers []string
			if err := json.Unmarshal(raw, &peers); err != nil {
				return fmt.Errorf("txstatus: broadcast peers: %w", err)
			}
			*s = Status{Kind: Broadcast, Peers: peers}
		case ok && k.hasHash():
			var h types.Hash
			if err := json.Unmarshal(raw, &h); err != nil {
				return fmt.Errorf("txstatus: %s hash: %w", name, err)
			}
			*s = Status{Kind: k, Hash: h}
		default:
			return fmt.Errorf("txstatus: unknown status %q", name)
		}
	}
	return nil
}

// MarshalJSON emits the node's wire shape for the status.
func (s Status) MarshalJSON() ([]byte, error) {
	switch {
	case s.Kind == Broadcast:
		peers := s.Peers
		if peers == nil {
			peers = []string{}
		}
		return json.Marshal(map[string][]string{"broadcast": peers})
	case s.Kind.hasHash():
		return json.Marshal(map[string]string{s.Kind.wireName(): s.Hash.Hex()})
	case s.Kind.wireName() != "":
		return json.Marshal(s.Kind.wireName())
	}
	return nil, fmt.Errorf("txstatus: cannot marshal kind %d", uint8(s.Kind))
}
