package lower

import (
	"github.com/sunholo/sigcore/internal/reactive"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// elemSize returns a type's storage size in bytes for buffer sizing. Types
// with no fixed runtime representation (Invariant, TypeTag, …) occupy zero
// bytes, matching reactive/specialize's isZeroSize treatment of the same
// kinds.
func elemSize(t *types.Type) int {
	switch t.Kind() {
	case types.KindFloat32, types.KindInt32:
		return 4
	case types.KindFloat64, types.KindInt64:
		return 8
	case types.KindVector:
		w := t.VectorWidth()
		switch t.VectorElem() {
		case types.ElemFloat64, types.ElemInt64:
			return w * 8
		default:
			return w * 4
		}
	default:
		return 0
	}
}

// Result is the output of SideEffectTransform: the lowered value graph plus
// the side-effecting nodes (Copy/SetSlot) the pure value DAG does not
// itself reference but which the scheduler must still emit every tick — a
// ring buffer's store into next tick's slot has no consumer in the value
// graph, only an ordering dependency on the values it reads.
type Result struct {
	Region  *Region
	Value   Ref
	Effects []Ref
}

// SideEffectTransform lowers the functional typed graph reachable from root
// into the imperative IR: ring buffers become a Module Buffer plus a
// read-position state slot with explicit Copy/Dereference/AtIndex wiring;
// every reactive.Boundary reported by the reactive analysis becomes a
// BoundaryBuffer; everything else carries over as a KindPassthrough node
// referencing the original typed node directly.
func SideEffectTransform(root typed.Ref, boundaries []reactive.Boundary) Result {
	r := NewRegion()
	memo := make(map[typed.Ref]Ref)
	var effects []Ref
	isBoundary := make(map[typed.Ref]map[typed.Ref]bool) // from -> to -> true
	for _, b := range boundaries {
		if isBoundary[b.From] == nil {
			isBoundary[b.From] = make(map[typed.Ref]bool)
		}
		isBoundary[b.From][b.To] = true
	}

	var walk func(t typed.Ref, caller typed.Ref) Ref
	walk = func(t typed.Ref, caller typed.Ref) Ref {
		if lr, ok := memo[t]; ok {
			return withBoundary(r, lr, t, caller, isBoundary)
		}

		n := t.Node()
		var lr Ref
		if n.Kind() == typed.KindRingBuffer {
			lr = lowerRingBuffer(r, t, memo, walk, &effects)
		} else {
			ups := n.Upstreams()
			lowered := make([]Ref, len(ups))
			for i, u := range ups {
				lowered[i] = walk(u, t)
			}
			lr = r.NewPassthrough(t, lowered)
		}
		memo[t] = lr
		return withBoundary(r, lr, t, caller, isBoundary)
	}

	value := walk(root, typed.Ref{})
	return Result{Region: r, Value: value, Effects: effects}
}

func withBoundary(r *Region, lr Ref, from, to typed.Ref, isBoundary map[typed.Ref]map[typed.Ref]bool) Ref {
	if isBoundary[from] == nil || !isBoundary[from][to] {
		return lr
	}
	return r.NewBoundaryBuffer(lr, boundaryCapacity(from), FillLastValueHeld, lr.Node().Result)
}

// boundaryCapacity returns the buffer capacity for a clock-domain crossing.
// It is always a single frame: the capacity is not derived from the rate
// ratio between the two sides, whatever their driver rates are.
func boundaryCapacity(from typed.Ref) int {
	return 1
}

// lowerRingBuffer expands a typed RingBuffer node into: a Module-allocated
// Buffer of BufferLen elements, a state slot tracking the current write
// position, a Dereference read of the buffer's current slot (the value
// this node's consumers see), and a Copy that stores the recursively
// computed next value — recorded as an effect, since nothing in the value
// DAG consumes a store's result.
//
// The buffer, slot, and read are allocated and registered in memo *before*
// the feedback expression is walked: that expression's upstream chain
// loops back into this very node (the unit-delay shape), and must resolve
// to the read above rather than re-entering the lowering.
func lowerRingBuffer(r *Region, t typed.Ref, memo map[typed.Ref]Ref, walk func(typed.Ref, typed.Ref) Ref, effects *[]Ref) Ref {
	n := t.Node()
	elem := n.Result
	size := elemSize(elem) * n.BufferLen
	buf := r.NewBuffer(AllocModule, size, 4, elem)
	posSlot := r.NewSlot()

	readPtr := r.NewAtIndex(buf, 0, elem)
	current := r.NewDereference(readPtr, elem)
	memo[t] = current

	ups := n.Upstreams()
	if len(ups) == 1 {
		next := walk(ups[0], t)
		writePtr := r.NewAtIndex(buf, 0, elem)
		store := r.NewCopy(writePtr, next, CopyStore, 1)
		// advance's own value only marks that the position slot must be
		// rewritten after store completes; the modular (pos+1) % len
		// arithmetic is a backend codegen concern, not something
		// this pass's node taxonomy represents.
		advance := r.NewSetSlot(posSlot, store)
		*effects = append(*effects, store, advance)
	}
	return current
}
