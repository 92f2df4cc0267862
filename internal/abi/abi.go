// Package abi describes the fixed runtime surface every compiled instance
// exposes to its loader: instance sizing and layout, the per-driver tick
// entry points, and the packed class metadata block a host queries through
// GetClassData. The layout here is bit-exact and versioned; a loader built
// against one version refuses a metadata block stamped with another.
package abi

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sunholo/sigcore/internal/iface"
	"github.com/sunholo/sigcore/internal/reactive"
	"github.com/sunholo/sigcore/internal/types"
)

// MetadataVersion stamps the ClassMetadata layout. Bump on any change to
// the packed struct or the type-description JSON schema.
const MetadataVersion = 1

// instanceAlign is the alignment every instance size is rounded up to.
const instanceAlign = 32

const (
	pointerSize  = 8
	maskWordSize = 8
)

// Layout is the byte layout of one compiled instance: state slots first,
// then the activity bit-mask words, then one pointer slot per external
// symbol, the whole rounded up to instanceAlign.
type Layout struct {
	StateBytes   int
	MaskBytes    int
	SymbolSlots  int
	stateOffsets []int
}

// NewLayout derives the instance layout from the symbol table and the
// per-slot state sizes the lowering pass produced. stateSizes is indexed
// by state-slot index; a missing entry means the slot holds a single
// pointer-sized word.
func NewLayout(table *iface.Table, stateSizes map[int]int) Layout {
	l := Layout{
		MaskBytes:   table.MaskWordCount * maskWordSize,
		SymbolSlots: len(table.Symbols),
	}
	l.stateOffsets = make([]int, table.StateSlotCount)
	off := 0
	for i := 0; i < table.StateSlotCount; i++ {
		l.stateOffsets[i] = off
		sz, ok := stateSizes[i]
		if !ok || sz < pointerSize {
			sz = pointerSize
		}
		off += align(sz, pointerSize)
	}
	l.StateBytes = off
	return l
}

func align(n, to int) int {
	return (n + to - 1) / to * to
}

// Size returns the total bytes one instance occupies: state, bit-mask
// words, and symbol pointer slots, aligned to instanceAlign.
func (l Layout) Size() uint64 {
	raw := l.StateBytes + l.MaskBytes + l.SymbolSlots*pointerSize
	return uint64(align(raw, instanceAlign))
}

// SymbolOffset returns the byte offset of the i-th external pointer slot
// within an instance, the lookup GetSymbolOffset performs at run time.
func (l Layout) SymbolOffset(i int) (uint64, error) {
	if i < 0 || i >= l.SymbolSlots {
		return 0, fmt.Errorf("abi: symbol index %d out of range [0,%d)", i, l.SymbolSlots)
	}
	return uint64(l.StateBytes + l.MaskBytes + i*pointerSize), nil
}

// StateOffset returns the byte offset of a state slot within an instance.
func (l Layout) StateOffset(slot int) (uint64, error) {
	if slot < 0 || slot >= len(l.stateOffsets) {
		return 0, fmt.Errorf("abi: state slot %d out of range [0,%d)", slot, len(l.stateOffsets))
	}
	return uint64(l.stateOffsets[slot]), nil
}

// EntryPoints names the exported functions a compiled instance carries,
// in their fixed metadata order. Tick entries are per driver and listed
// separately in ClassMetadata.Ticks.
type EntryPoints struct {
	GetSize              string `json:"get_size"`
	GetSymbolOffset      string `json:"get_symbol_offset"`
	Initialize           string `json:"initialize"`
	Evaluate             string `json:"evaluate,omitempty"`
	GetValue             string `json:"get_value"`
	SetConfigurationSlot string `json:"set_configuration_slot"`
	GetClassData         string `json:"get_class_data"`
}

// TickEntry is one per-driver tick function: drive the instance from a
// specific clock for a number of super-frames.
type TickEntry struct {
	Driver string `json:"driver"`
	Symbol string `json:"symbol"`
	Mul    int64  `json:"mul"`
	Div    int64  `json:"div"`
}

// SymbolDesc is the loader-facing description of one external slot; Type
// is the type-description JSON rendered by DescribeType.
type SymbolDesc struct {
	Key     string          `json:"key"`
	UID     string          `json:"uid"`
	Variety string          `json:"variety"`
	RateMul int64           `json:"rate_mul,omitempty"`
	RateDiv int64           `json:"rate_div,omitempty"`
	Clock   string          `json:"clock,omitempty"`
	Type    json.RawMessage `json:"type,omitempty"`
}

// ClassMetadata is the packed descriptor GetClassData returns: entry-point
// names, the instance layout, the symbol table with type-description
// JSON, and the per-driver tick table.
type ClassMetadata struct {
	Version     int          `json:"version"`
	Name        string       `json:"name"`
	Size        uint64       `json:"size"`
	StateBytes  int          `json:"state_bytes"`
	MaskWords   int          `json:"mask_words"`
	Entries     EntryPoints  `json:"entries"`
	Ticks       []TickEntry  `json:"ticks"`
	Symbols     []SymbolDesc `json:"symbols"`
	Superclock  int64        `json:"superclock"`
	VectorWidth int          `json:"vector_width"`
}

// Build assembles the class metadata for one compiled instance. name
// prefixes every entry-point symbol so several instances can share one
// linked artifact.
func Build(name string, table *iface.Table, layout Layout, matrix reactive.ActivationMatrix, omitEvaluate bool) *ClassMetadata {
	m := &ClassMetadata{
		Version:    MetadataVersion,
		Name:       name,
		Size:       layout.Size(),
		StateBytes: layout.StateBytes,
		MaskWords:  table.MaskWordCount,
		Entries: EntryPoints{
			GetSize:              name + "_get_size",
			GetSymbolOffset:      name + "_get_symbol_offset",
			Initialize:           name + "_initialize",
			GetValue:             name + "_get_value",
			SetConfigurationSlot: name + "_set_configuration_slot",
			GetClassData:         name + "_get_class_data",
		},
		Superclock:  matrix.Superclock,
		VectorWidth: matrix.VectorLength,
	}
	if !omitEvaluate {
		m.Entries.Evaluate = name + "_evaluate"
	}
	for _, e := range matrix.Entries {
		m.Ticks = append(m.Ticks, TickEntry{
			Driver: e.Driver.ID,
			Symbol: fmt.Sprintf("%s_tick_%s", name, e.Driver.ID),
			Mul:    e.Multiplier,
			Div:    e.Divisor,
		})
	}
	sort.Slice(m.Ticks, func(i, j int) bool { return m.Ticks[i].Driver < m.Ticks[j].Driver })
	for _, s := range table.Symbols {
		m.Symbols = append(m.Symbols, SymbolDesc{
			Key:     s.Key,
			UID:     s.UID,
			Variety: s.Variety.String(),
			RateMul: s.Rate.Mul,
			RateDiv: s.Rate.Div,
			Clock:   string(s.Clock),
			Type:    DescribeType(s.Type),
		})
	}
	return m
}

// Marshal renders the metadata block deterministically; the byte output is
// what GetClassData's interned blob carries.
func (m *ClassMetadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// DescribeType renders a compile-time Type as loader-facing JSON. The
// description covers runtime-relevant structure only; compile-time-only
// kinds (Invariant constants, type tags, quoted graphs) render as their
// kind name, since a loader never allocates storage for them.
func DescribeType(t *types.Type) json.RawMessage {
	if t == nil {
		return nil
	}
	return json.RawMessage(describe(t))
}

func describe(t *types.Type) string {
	switch t.Kind() {
	case types.KindFloat32, types.KindFloat64, types.KindInt32, types.KindInt64,
		types.KindNil, types.KindTrue:
		return fmt.Sprintf("%q", t.Kind().String())
	case types.KindVector:
		return fmt.Sprintf(`{"vector":%q,"width":%d}`, elemName(t.VectorElem()), t.VectorWidth())
	case types.KindTuple:
		return fmt.Sprintf(`{"pair":[%s,%s]}`, describe(t.First()), describe(t.Rest()))
	case types.KindUserType:
		return fmt.Sprintf(`{"user":%q,"content":%s}`, t.Descriptor(), describe(t.Content()))
	case types.KindUnion:
		out := `{"union":[`
		for i, v := range t.Variants() {
			if i > 0 {
				out += ","
			}
			out += describe(v)
		}
		return out + `]}`
	case types.KindArrayView:
		return fmt.Sprintf(`{"array":%s}`, describe(t.ArrayElem()))
	default:
		return fmt.Sprintf("%q", t.Kind().String())
	}
}

func elemName(e types.NativeElem) string {
	switch e {
	case types.ElemFloat32:
		return "Float32"
	case types.ElemFloat64:
		return "Float64"
	case types.ElemInt32:
		return "Int32"
	default:
		return "Int64"
	}
}
