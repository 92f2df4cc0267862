package reactive

import "github.com/bits-and-blooms/bitset"

// ActivityMaskVector is a sorted disjunction of conjunctions of driver-mask
// indices — "OR of ANDs" — used by the scheduler to decide
// which nodes share a contiguous activation block. Each conjunction is one
// bitset word; a driver that is statically always-active collapses to the
// empty conjunction (every bit clear), matching "drivers that are
// statically always-active collapse to empty conjunctions".
type ActivityMaskVector struct {
	Conjunctions []*bitset.BitSet
}

// MaskFor derives the ActivityMaskVector a reactivity node activates under,
// given the index each driver occupies in the activation matrix. A nil
// reactivity (statically active) yields a single empty conjunction.
func MaskFor(n Node, index map[*DriverNode]uint) ActivityMaskVector {
	if n == nil {
		return ActivityMaskVector{Conjunctions: []*bitset.BitSet{bitset.New(uint(len(index)))}}
	}
	switch v := n.(type) {
	case *DriverNode:
		b := bitset.New(uint(len(index)))
		if i, ok := index[v]; ok {
			b.Set(i)
		}
		return ActivityMaskVector{Conjunctions: []*bitset.BitSet{b}}
	case *FusedSet:
		b := bitset.New(uint(len(index)))
		for _, d := range v.Drivers {
			if dn, ok := d.(*DriverNode); ok {
				if i, ok := index[dn]; ok {
					b.Set(i)
				}
			}
		}
		return ActivityMaskVector{Conjunctions: []*bitset.BitSet{b}}
	default:
		return ActivityMaskVector{Conjunctions: []*bitset.BitSet{bitset.New(uint(len(index)))}}
	}
}

// Equal reports whether two mask vectors denote the same set of
// conjunctions, used by the scheduler to group a maximal run of nodes
// sharing one non-empty mask into a contiguous block.
func (m ActivityMaskVector) Equal(o ActivityMaskVector) bool {
	if len(m.Conjunctions) != len(o.Conjunctions) {
		return false
	}
	for i := range m.Conjunctions {
		if !m.Conjunctions[i].Equal(o.Conjunctions[i]) {
			return false
		}
	}
	return true
}

// Empty reports whether the vector is the always-active empty conjunction.
func (m ActivityMaskVector) Empty() bool {
	for _, c := range m.Conjunctions {
		if c.Any() {
			return false
		}
	}
	return true
}
