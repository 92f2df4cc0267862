package iface

import "google.golang.org/protobuf/encoding/protowire"

// wire field numbers for the symbol-table's binary encoding produced by
// Encode and read back by Decode. Hand-rolled over
// protowire rather than a generated .proto message, since Table's shape is
// entirely internal to this pipeline and not a cross-service contract.
const (
	fieldKey     = 1
	fieldUID     = 2
	fieldVariety = 3
	fieldMul     = 4
	fieldDiv     = 5
	fieldClock   = 6
	fieldSlots   = 7
	fieldMasks   = 8
)

// Encode serialises t to protowire's length-delimited/varint encoding. Type
// payloads are not round-tripped here: Table.Encode carries only the
// fields a backend's class-metadata loader needs to locate and name a
// runtime slot, not the full compile-time type
// lattice.
func (t *Table) Encode() []byte {
	var buf []byte
	for _, s := range t.Symbols {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldKey, protowire.BytesType)
		entry = protowire.AppendString(entry, s.Key)
		entry = protowire.AppendTag(entry, fieldUID, protowire.BytesType)
		entry = protowire.AppendString(entry, s.UID)
		entry = protowire.AppendTag(entry, fieldVariety, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(s.Variety))
		entry = protowire.AppendTag(entry, fieldMul, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(s.Rate.Mul))
		entry = protowire.AppendTag(entry, fieldDiv, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(s.Rate.Div))
		entry = protowire.AppendTag(entry, fieldClock, protowire.BytesType)
		entry = protowire.AppendString(entry, string(s.Clock))

		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, entry)
	}
	buf = protowire.AppendTag(buf, fieldSlots, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(t.StateSlotCount))
	buf = protowire.AppendTag(buf, fieldMasks, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(t.MaskWordCount))
	return buf
}

// Decode parses a buffer produced by Encode back into a Table. Symbol Type
// fields are left nil, matching Encode's narrower wire shape.
func Decode(buf []byte) (*Table, error) {
	t := &Table{}
	var cur *SymbolEntry
	flush := func() {
		if cur != nil {
			t.Symbols = append(t.Symbols, *cur)
			cur = nil
		}
	}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		buf = buf[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			flush()
			e, err := decodeEntry(v)
			if err != nil {
				return nil, err
			}
			cur = e
		case fieldSlots:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			t.StateSlotCount = int(v)
		case fieldMasks:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			t.MaskWordCount = int(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
		}
	}
	flush()
	return t, nil
}

func decodeEntry(buf []byte) (*SymbolEntry, error) {
	e := &SymbolEntry{}
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		buf = buf[n:]
		switch num {
		case fieldKey:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			e.Key = v
		case fieldUID:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			e.UID = v
		case fieldVariety:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			e.Variety = Variety(v)
		case fieldMul:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			e.Rate.Mul = int64(v)
		case fieldDiv:
			v, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			e.Rate.Div = int64(v)
		case fieldClock:
			v, n := protowire.ConsumeString(buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
			e.Clock = Clock(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			buf = buf[n:]
		}
	}
	return e, nil
}
