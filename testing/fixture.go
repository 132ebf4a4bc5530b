package sigiltest

import (
	"fmt"

	"github.com/sigil-dev/sigil/metadata"
	"github.com/sigil-dev/sigil/scale"
)

// Registry ids of the fixture runtime. The document below is the
// single source of truth; these names only keep it readable.
const (
	tU8 metadata.TypeID = iota
	tU16
	tU32
	tU64
	tU128
	tRawHash // [u8; 32]
	tAccountID
	tHash
	tRawBytes // Vec<u8>
	tCompactU128
	tCompactU32
	tUnit
	tEra
	tSystemCall
	tBalancesCall
	tSystemEvent
	tBalancesEvent
	tRuntimeEvent
	tPhase
	tEventRecord
	tEventList // Vec<EventRecord>
	tTopicList // Vec<H256>
	tAccountInfo
	tAccountData
	tExtrinsicType
	tBalancesError
	tRuntime

	fixtureTypeCount
)

// Fixture decodes the fixture runtime's metadata: System at pallet
// index 0 (Account and Events storage, the remark call, lifecycle
// events), Balances at 5 (transfer and transfer_keep_alive, the
// Transfer event, TotalIssuance), and the standard six signed
// extensions. It panics when the built-in document is broken, which
// only a bad edit to this file can cause.
func Fixture() *metadata.Metadata {
	m, err := metadata.Decode(FixtureBytes())
	if err != nil {
		panic(fmt.Sprintf("sigiltest: fixture metadata does not decode: %v", err))
	}
	return m
}

// FixtureBytes returns the fixture runtime's metadata as a SCALE
// document, the form state_getMetadata serves.
func FixtureBytes() []byte {
	w := scale.NewWriter()
	_ = w.PutUint(0x6174656d, 4) // "meta"
	w.PutByte(metadata.Version)
	d := docWriter{w}

	w.PutCompactUint(uint64(fixtureTypeCount))

	d.typ(tU8, nil, d.primitive(3))
	d.typ(tU16, nil, d.primitive(4))
	d.typ(tU32, nil, d.primitive(5))
	d.typ(tU64, nil, d.primitive(6))
	d.typ(tU128, nil, d.primitive(7))

	d.typ(tRawHash, nil, func() {
		w.PutByte(3) // array
		_ = w.PutUint(32, 4)
		d.id(tU8)
	})
	d.typ(tAccountID, []string{"sp_core", "crypto", "AccountId32"}, func() {
		w.PutByte(0) // composite
		w.PutCompactUint(1)
		d.field("", tRawHash)
	})
	d.typ(tHash, []string{"primitive_types", "H256"}, func() {
		w.PutByte(0)
		w.PutCompactUint(1)
		d.field("", tRawHash)
	})
	d.typ(tRawBytes, nil, func() {
		w.PutByte(2) // sequence
		d.id(tU8)
	})
	d.typ(tCompactU128, nil, func() {
		w.PutByte(6) // compact
		d.id(tU128)
	})
	d.typ(tCompactU32, nil, func() {
		w.PutByte(6)
		d.id(tU32)
	})
	d.typ(tUnit, nil, func() {
		w.PutByte(4) // tuple
		w.PutCompactUint(0)
	})
	d.typ(tEra, []string{"sp_runtime", "generic", "era", "Era"}, func() {
		w.PutByte(1) // variant
		w.PutCompactUint(2)
		d.arm("Immortal", 0, func() { w.PutCompactUint(0) })
		d.arm("Mortal", 1, func() {
			w.PutCompactUint(2)
			d.field("period", tU64)
			d.field("phase", tU64)
		})
	})

	d.typ(tSystemCall, []string{"frame_system", "pallet", "Call"}, func() {
		w.PutByte(1)
		w.PutCompactUint(1)
		d.arm("remark", 0, func() {
			w.PutCompactUint(1)
			d.field("remark", tRawBytes)
		})
	})
	d.typ(tBalancesCall, []string{"pallet_balances", "pallet", "Call"}, func() {
		w.PutByte(1)
		w.PutCompactUint(2)
		d.arm("transfer", 0, func() {
			w.PutCompactUint(2)
			d.field("dest", tAccountID)
			d.field("value", tCompactU128)
		})
		d.arm("transfer_keep_alive", 3, func() {
			w.PutCompactUint(2)
			d.field("dest", tAccountID)
			d.field("value", tCompactU128)
		})
	})
	d.typ(tSystemEvent, []string{"frame_system", "pallet", "Event"}, func() {
		w.PutByte(1)
		w.PutCompactUint(2)
		d.arm("ExtrinsicSuccess", 0, func() { w.PutCompactUint(0) })
		d.arm("ExtrinsicFailed", 1, func() { w.PutCompactUint(0) })
	})
	d.typ(tBalancesEvent, []string{"pallet_balances", "pallet", "Event"}, func() {
		w.PutByte(1)
		w.PutCompactUint(1)
		d.arm("Transfer", 2, func() {
			w.PutCompactUint(3)
			d.field("from", tAccountID)
			d.field("to", tAccountID)
			d.field("amount", tU128)
		})
	})
	d.typ(tRuntimeEvent, []string{"fixture_runtime", "RuntimeEvent"}, func() {
		w.PutByte(1)
		w.PutCompactUint(2)
		d.arm("System", 0, func() {
			w.PutCompactUint(1)
			d.field("", tSystemEvent)
		})
		d.arm("Balances", 5, func() {
			w.PutCompactUint(1)
			d.field("", tBalancesEvent)
		})
	})
	d.typ(tPhase, []string{"frame_system", "Phase"}, func() {
		w.PutByte(1)
		w.PutCompactUint(3)
		d.arm("ApplyExtrinsic", 0, func() {
			w.PutCompactUint(1)
			d.field("", tU32)
		})
		d.arm("Finalization", 1, func() { w.PutCompactUint(0) })
		d.arm("Initialization", 2, func() { w.PutCompactUint(0) })
	})
	d.typ(tEventRecord, []string{"frame_system", "EventRecord"}, func() {
		w.PutByte(0)
		w.PutCompactUint(3)
		d.field("phase", tPhase)
		d.field("event", tRuntimeEvent)
		d.field("topics", tTopicList)
	})
	d.typ(tEventList, nil, func() {
		w.PutByte(2)
		d.id(tEventRecord)
	})
	d.typ(tTopicList, nil, func() {
		w.PutByte(2)
		d.id(tHash)
	})
	d.typ(tAccountInfo, []string{"frame_system", "AccountInfo"}, func() {
		w.PutByte(0)
		w.PutCompactUint(4)
		d.field("nonce", tU32)
		d.field("consumers", tU32)
		d.field("providers", tU32)
		d.field("data", tAccountData)
	})
	d.typ(tAccountData, []string{"pallet_balances", "types", "AccountData"}, func() {
		w.PutByte(0)
		w.PutCompactUint(2)
		d.field("free", tU128)
		d.field("reserved", tU128)
	})
	d.typ(tExtrinsicType, []string{"sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"}, func() {
		w.PutByte(0)
		w.PutCompactUint(1)
		d.field("", tRawBytes)
	})
	d.typ(tBalancesError, []string{"pallet_balances", "pallet", "Error"}, func() {
		w.PutByte(1)
		w.PutCompactUint(2)
		d.arm("InsufficientBalance", 0, func() { w.PutCompactUint(0) })
		d.arm("KeepAlive", 1, func() { w.PutCompactUint(0) })
	})
	d.typ(tRuntime, []string{"fixture_runtime", "Runtime"}, func() {
		w.PutByte(0)
		w.PutCompactUint(0)
	})

	// Pallets.
	w.PutCompactUint(2)

	// System, index 0.
	d.str("System")
	w.PutOption(true)
	d.str("System")
	w.PutCompactUint(2)
	d.str("Account")
	w.PutByte(1) // default
	w.PutByte(1) // map
	w.PutCompactUint(1)
	w.PutByte(2) // blake2_128_concat
	d.id(tAccountID)
	d.id(tAccountInfo)
	d.blob(make([]byte, 44)) // zero AccountInfo
	d.strs()
	d.str("Events")
	w.PutByte(1)
	w.PutByte(0) // plain
	d.id(tEventList)
	d.blob([]byte{0x00}) // empty list
	d.strs()
	d.someID(tSystemCall)
	d.someID(tSystemEvent)
	w.PutCompactUint(1)
	d.str("SS58Prefix")
	d.id(tU16)
	d.blob([]byte{42, 0})
	d.strs(" The address format of this chain.")
	d.noneID()
	w.PutByte(0)

	// Balances, index 5.
	d.str("Balances")
	w.PutOption(true)
	d.str("Balances")
	w.PutCompactUint(1)
	d.str("TotalIssuance")
	w.PutByte(1)
	w.PutByte(0)
	d.id(tU128)
	d.blob(make([]byte, 16))
	d.strs()
	d.someID(tBalancesCall)
	d.someID(tBalancesEvent)
	w.PutCompactUint(1)
	d.str("ExistentialDeposit")
	d.id(tU128)
	ed := make([]byte, 16)
	ed[0], ed[1] = 0xf4, 0x01 // 500
	d.blob(ed)
	d.strs(" The minimum balance an account keeps.")
	d.someID(tBalancesError)
	w.PutByte(5)

	// Extrinsic format and the extension set BuildPayload encodes.
	d.id(tExtrinsicType)
	w.PutByte(4)
	w.PutCompactUint(6)
	d.str("CheckSpecVersion")
	d.id(tUnit)
	d.id(tU32)
	d.str("CheckTxVersion")
	d.id(tUnit)
	d.id(tU32)
	d.str("CheckGenesis")
	d.id(tUnit)
	d.id(tHash)
	d.str("CheckMortality")
	d.id(tEra)
	d.id(tHash)
	d.str("CheckNonce")
	d.id(tCompactU32)
	d.id(tUnit)
	d.str("ChargeTransactionPayment")
	d.id(tCompactU128)
	d.id(tUnit)

	d.id(tRuntime)

	return w.Bytes()
}

// docWriter adds the scale-info document idioms on top of the scale
// writer.
type docWriter struct {
	w *scale.Writer
}

func (d docWriter) str(s string) { d.w.PutStr(s) }

func (d docWriter) strs(ss ...string) {
	d.w.PutCompactUint(uint64(len(ss)))
	for _, s := range ss {
		d.w.PutStr(s)
	}
}

func (d docWriter) id(id metadata.TypeID) { d.w.PutCompactUint(uint64(id)) }

func (d docWriter) someID(id metadata.TypeID) {
	d.w.PutOption(true)
	d.id(id)
}

func (d docWriter) noneID() { d.w.PutOption(false) }

func (d docWriter) blob(b []byte) {
	d.w.PutCompactUint(uint64(len(b)))
	d.w.PutBytes(b)
}

// typ writes one registry entry: id, path, no params, the def, no
// docs.
func (d docWriter) typ(id metadata.TypeID, path []string, def func()) {
	d.id(id)
	d.strs(path...)
	d.w.PutCompactUint(0)
	def()
	d.strs()
}

func (d docWriter) primitive(kind byte) func() {
	return func() {
		d.w.PutByte(5)
		d.w.PutByte(kind)
	}
}

func (d docWriter) field(name string, id metadata.TypeID) {
	if name == "" {
		d.w.PutOption(false)
	} else {
		d.w.PutOption(true)
		d.str(name)
	}
	d.id(id)
	d.w.PutOption(false)
	d.strs()
}

func (d docWriter) arm(name string, index byte, fields func()) {
	d.str(name)
	fields()
	d.w.PutByte(index)
	d.strs()
}
