// Package events decodes the record list a node keeps under
// System.Events: which pallet emitted what, in which block phase,
// with which fields.
package events

import (
	"fmt"

	"github.com/sigil-dev/sigil/dynamic"
	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/storage"
	"github.com/sigil-dev/sigil/types"
)

// PhaseKind says where in block execution an event was emitted.
type PhaseKind uint8

const (
	PhaseApplyExtrinsic PhaseKind = iota
	PhaseFinalization
	PhaseInitialization
)

// Phase is an event's position in block execution. ExtrinsicIndex is
// meaningful only for PhaseApplyExtrinsic.
type Phase struct {
	Kind           PhaseKind
	ExtrinsicIndex uint32
}

func (p Phase) String() string {
	switch p.Kind {
	case PhaseApplyExtrinsic:
		return fmt.Sprintf("ApplyExtrinsic(%d)", p.ExtrinsicIndex)
	case PhaseFinalization:
		return "Finalization"
	case PhaseInitialization:
		return "Initialization"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p.Kind))
}

// Record is one decoded event record.
type Record struct {
	Phase  Phase
	Pallet string
	Name   string
	Fields dynamic.Value // composite of the event's fields
	Topics []types.Hash
}

// Key returns the storage key of the System.Events record list.
func Key(m *metadata.Metadata) (types.HexBytes, error) {
	return storage.Key(m, "System", "Events")
}

// Find filters records down to one pallet's event by name.
func Find(records []Record, pallet, name string) []Record {
	var out []Record
	for _, r := range records {
		if r.Pallet == pallet && r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Decode reads the raw System.Events storage value into records,
// resolving record and event shapes through the metadata.
func Decode(m *metadata.Metadata, data []byte) ([]Record, error) {
	entry, err := m.Storage("System", "Events")
	if err != nil {
		return nil, err
	}
	v, err := dynamic.Decode(m.Types, entry.Value, data)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	elems, ok := v.Elems()
	if !ok {
		return nil, fmt.Errorf("events: record list decoded to %s, want a sequence", v.Kind())
	}
	records := make([]Record, 0, len(elems))
	for i, el := range elems {
		rec, err := parseRecord(el)
		if err != nil {
			return nil, fmt.Errorf("events: record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRecord(v dynamic.Value) (Record, error) {
	phaseVal, err := recordField(v, "phase", 0)
	if err != nil {
		return Record{}, err
	}
	phase, err := parsePhase(phaseVal)
	if err != nil {
		return Record{}, err
	}

	eventVal, err := recordField(v, "event", 1)
	if err != nil {
		return Record{}, err
	}
	pallet, name, fields, err := parseEvent(eventVal)
	if err != nil {
		return Record{}, err
	}

	topicsVal, err := recordField(v, "topics", 2)
	if err != nil {
		return Record{}, err
	}
	topics, err := parseTopics(topicsVal)
	if err != nil {
		return Record{}, err
	}

	return Record{Phase: phase, Pallet: pallet, Name: name, Fields: fields, Topics: topics}, nil
}

// recordField reads a record component by name, falling back to its
// position for registries with unnamed record fields.
func recordField(rec dynamic.Value, name string, idx int) (dynamic.Value, error) {
	if v, ok := rec.Field(name); ok {
		return v, nil
	}
	if v, ok := rec.At(idx); ok {
		return v, nil
	}
	return dynamic.Value{}, fmt.Errorf("record has no %q component", name)
}

func parsePhase(v dynamic.Value) (Phase, error) {
	name, fields, ok := v.AsVariant()
	if !ok {
		return Phase{}, fmt.Errorf("phase is %s, want a variant", v.Kind())
	}
	switch name {
	case "ApplyExtrinsic":
		if len(fields) != 1 {
			return Phase{}, fmt.Errorf("ApplyExtrinsic carries %d fields, want 1", len(fields))
		}
		idx, ok := fields[0].Value.AsUint64()
		if !ok {
			return Phase{}, fmt.Errorf("extrinsic index is %s, want an unsigned", fields[0].Value.Kind())
		}
		return Phase{Kind: PhaseApplyExtrinsic, ExtrinsicIndex: uint32(idx)}, nil
	case "Finalization":
		return Phase{Kind: PhaseFinalization}, nil
	case "Initialization":
		return Phase{Kind: PhaseInitialization}, nil
	}
	return Phase{}, fmt.Errorf("unknown phase %q", name)
}

// parseEvent splits the runtime's two-level event variant: the outer
// arm names the pallet, its single field is that pallet's own event
// variant.
func parseEvent(v dynamic.Value) (pallet, name string, fields dynamic.Value, err error) {
	palletName, outer, ok := v.AsVariant()
	if !ok {
		return "", "", dynamic.Value{}, fmt.Errorf("event is %s, want a variant", v.Kind())
	}
	if len(outer) != 1 {
		return "", "", dynamic.Value{}, fmt.Errorf("event arm %s carries %d fields, want 1", palletName, len(outer))
	}
	eventName, inner, ok := outer[0].Value.AsVariant()
	if !ok {
		return "", "", dynamic.Value{}, fmt.Errorf("%s event payload is %s, want a variant", palletName, outer[0].Value.Kind())
	}
	return palletName, eventName, dynamic.Composite(inner...), nil
}

func parseTopics(v dynamic.Value) ([]types.Hash, error) {
	elems, ok := v.Elems()
	if !ok {
		return nil, fmt.Errorf("topics are %s, want a sequence", v.Kind())
	}
	if len(elems) == 0 {
		return nil, nil
	}
	topics := make([]types.Hash, 0, len(elems))
	for i, el := range elems {
		h, err := hashFromValue(el)
		if err != nil {
			return nil, fmt.Errorf("topic %d: %w", i, err)
		}
		topics = append(topics, h)
	}
	return topics, nil
}

// hashFromValue unwraps newtype layers until it reaches hash bytes.
func hashFromValue(v dynamic.Value) (types.Hash, error) {
	for {
		if b, ok := v.AsBytes(); ok {
			return types.NewHash(b)
		}
		if fields, ok := v.AsComposite(); ok && len(fields) == 1 {
			v = fields[0].Value
			continue
		}
		return types.Hash{}, fmt.Errorf("value is %s, want 32 bytes", v.Kind())
	}
}
