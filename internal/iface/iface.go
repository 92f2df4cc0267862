// Package iface implements the symbol/clock table the core hands a
// backend at end of compilation: for every external input and
// output, a {key, data-type, uid, variety, rate, clock} record, plus the
// activation-matrix and counter-index bookkeeping the backend needs to
// build its own class metadata.
package iface

import (
	"sort"

	"github.com/sunholo/sigcore/internal/types"
)

// Variety classifies an external slot's role.
type Variety int

const (
	VarietyArgument Variety = iota
	VarietyStream
	VarietyConfiguration
	VarietyExternal
	VarietyUnsafeExternal
	VarietyInternal
)

func (v Variety) String() string {
	names := [...]string{"Argument", "Stream", "Configuration", "External", "UnsafeExternal", "Internal"}
	if int(v) < len(names) {
		return names[v]
	}
	return "Unknown"
}

// Rate is a driver's period expressed relative to the compilation unit's
// reference clock, mirroring reactive.DriverSignature's (mul, div) pair
// without importing package reactive (iface is a leaf package consumed by
// both reactive-analysis-adjacent code and the backend).
type Rate struct {
	Mul, Div int64
}

// Clock names the external activation source a symbol is driven by (the
// reactive.DriverNode.ID string, carried here as plain data so iface has
// no dependency on package reactive).
type Clock string

// SymbolEntry is one row of the symbol/clock table.
type SymbolEntry struct {
	Key     string
	UID     string
	Type    *types.Type
	Variety Variety
	Rate    Rate
	Clock   Clock
}

// Table is the full symbol/clock table handed to a backend, plus the
// activation-matrix-derived counter/mask-word counts the backend's class
// metadata needs.
type Table struct {
	Symbols        []SymbolEntry
	StateSlotCount int
	MaskWordCount  int
}

// ByKey returns the symbol table indexed by Key, for a backend that wants
// random-access lookup rather than the canonical ordered slice.
func (t *Table) ByKey() map[string]SymbolEntry {
	m := make(map[string]SymbolEntry, len(t.Symbols))
	for _, s := range t.Symbols {
		m[s.Key] = s
	}
	return m
}

// Builder accumulates SymbolEntry rows in insertion order, then yields a
// Table with entries sorted deterministically by Key (a fluent
// builder-construction shape).
type Builder struct {
	entries []SymbolEntry
}

// NewBuilder creates an empty symbol-table builder.
func NewBuilder() *Builder { return &Builder{} }

// Add appends a symbol entry and returns the builder for chaining.
func (b *Builder) Add(e SymbolEntry) *Builder {
	b.entries = append(b.entries, e)
	return b
}

// Argument registers an argument-variety symbol (the compiled instance's
// runtime argument data).
func (b *Builder) Argument(key, uid string, t *types.Type) *Builder {
	return b.Add(SymbolEntry{Key: key, UID: uid, Type: t, Variety: VarietyArgument})
}

// Stream registers a rate/clock-bearing external stream symbol.
func (b *Builder) Stream(key, uid string, t *types.Type, rate Rate, clock Clock) *Builder {
	return b.Add(SymbolEntry{Key: key, UID: uid, Type: t, Variety: VarietyStream, Rate: rate, Clock: clock})
}

// Configuration registers a pre-initialization configuration-slot symbol.
func (b *Builder) Configuration(key, uid string, t *types.Type) *Builder {
	return b.Add(SymbolEntry{Key: key, UID: uid, Type: t, Variety: VarietyConfiguration})
}

// Build finalises the table, sorting entries by Key for deterministic
// backend consumption, with the given state-slot and mask-word counts.
func (b *Builder) Build(stateSlotCount, maskWordCount int) *Table {
	out := make([]SymbolEntry, len(b.entries))
	copy(out, b.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return &Table{Symbols: out, StateSlotCount: stateSlotCount, MaskWordCount: maskWordCount}
}
