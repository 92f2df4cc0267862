// Package reactive implements the ReactivityNode graph and the bottom-up
// reactive analysis pass: every typed node is assigned a clock
// signature describing when it fires, sample-rate boundaries are inserted
// where adjacent reactivities differ, and a top-level activation matrix is
// derived for the scheduler.
package reactive

import (
	"sort"

	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// DriverClass orders driver signatures for deterministic scheduling (lowest
// first), mirroring DriverSignature::DriverClassEnum.
type DriverClass int

const (
	ClassInitOrNull DriverClass = iota
	ClassRecursive
	ClassEvalArgument
	ClassUser
)

// DriverSignature is a clock identifier projected from a Type.
type DriverSignature struct {
	Metadata   *types.Type
	Priority   *types.Type
	Mul, Div   int64
	Masks      []int
	Class      DriverClass
}

// OrdinalCompare gives DriverSignature a total order: class first, then
// multiplier/divisor ratio, then metadata hash, matching the original's
// comparison operators built atop a single OrdinalCompare.
func (d DriverSignature) OrdinalCompare(o DriverSignature) int {
	if d.Class != o.Class {
		if d.Class < o.Class {
			return -1
		}
		return 1
	}
	lr, rr := d.ratio(), o.ratio()
	switch {
	case lr < rr:
		return -1
	case lr > rr:
		return 1
	}
	var lh, rh types.Hash
	if d.Metadata != nil {
		lh = types.HashOf(d.Metadata)
	}
	if o.Metadata != nil {
		rh = types.HashOf(o.Metadata)
	}
	for i := range lh {
		if lh[i] != rh[i] {
			if lh[i] < rh[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (d DriverSignature) ratio() float64 {
	div := d.Div
	if div == 0 {
		div = 1
	}
	return float64(d.Mul) / float64(div)
}

// Node is the interface common to both ReactivityNode sub-kinds: a
// DAG parallel to the typed graph, assigned bottom-up by Analyze.
type Node interface {
	isReactivityNode()
	// Signature returns a representative DriverSignature for ordering and
	// scheduling purposes; a FusedSet returns its dominant (highest-class,
	// fastest-ratio) member.
	Signature() DriverSignature
}

// DriverNode is a leaf reactivity: an external clock (audio, control,
// initialization, argument). Per ReactivityGraph.h's ComputeGraphHash
// override, reactivity nodes carry no independent structural hash of their
// own; identity is by pointer (Go map/pointer equality serves that role
// here without a hash override).
type DriverNode struct {
	ID  string
	Sig DriverSignature
}

func (*DriverNode) isReactivityNode()         {}
func (d *DriverNode) Signature() DriverSignature { return d.Sig }

// FusedSet groups upstream reactivities unified because they must fire
// together — the common case for a Native node with two differently-clocked
// operands that happen to share a common multiple.
type FusedSet struct {
	Drivers []Node
}

func (*FusedSet) isReactivityNode() {}
func (f *FusedSet) Signature() DriverSignature {
	best := f.Drivers[0].Signature()
	for _, d := range f.Drivers[1:] {
		if d.Signature().OrdinalCompare(best) > 0 {
			best = d.Signature()
		}
	}
	return best
}

// driverKey identifies a DriverNode for deduplication during fusion; two
// upstream reactivities referring to the same external clock must fuse to
// the *same* DriverNode instance, not merely an equal one, so downstream
// pointer-identity comparisons (e.g. the scheduler's mask assignment) see
// them as one driver.
type driverKey struct {
	id  string
	mul int64
	div int64
}

// Analysis holds the per-node reactivity assignment and the derived
// activation matrix produced by Analyze.
type Analysis struct {
	nodeReactivity map[typed.Ref]Node
	drivers        []*DriverNode
	driverIndex    map[driverKey]*DriverNode
}

// Reactivity returns the ReactivityNode assigned to n, or nil if n is
// statically active (never gated on any driver).
func (a *Analysis) Reactivity(n typed.Ref) Node { return a.nodeReactivity[n] }

// Drivers returns every distinct driver discovered during analysis, sorted
// by DriverSignature.OrdinalCompare for deterministic scheduling.
func (a *Analysis) Drivers() []*DriverNode {
	out := make([]*DriverNode, len(a.drivers))
	copy(out, a.drivers)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Sig.OrdinalCompare(out[j].Sig) < 0
	})
	return out
}

// internDriver returns the canonical DriverNode for (id, mul, div),
// allocating one on first use.
func (a *Analysis) internDriver(id string, mul, div int64, class DriverClass, metadata *types.Type) *DriverNode {
	key := driverKey{id: id, mul: mul, div: div}
	if d, ok := a.driverIndex[key]; ok {
		return d
	}
	d := &DriverNode{ID: id, Sig: DriverSignature{Metadata: metadata, Mul: mul, Div: div, Class: class}}
	a.driverIndex[key] = d
	a.drivers = append(a.drivers, d)
	return d
}

// fuse combines a node's upstream reactivities into its own. Identical
// drivers collapse by pointer identity; more than one distinct driver
// produces a FusedSet; zero upstream reactivities (all statically active)
// leaves the node statically active too.
func fuse(ups []Node) Node {
	seen := make(map[Node]bool)
	var distinct []Node
	for _, u := range ups {
		if u == nil || seen[u] {
			continue
		}
		seen[u] = true
		distinct = append(distinct, u)
	}
	switch len(distinct) {
	case 0:
		return nil
	case 1:
		return distinct[0]
	default:
		return &FusedSet{Drivers: distinct}
	}
}
