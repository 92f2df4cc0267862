package graph

import "fmt"

// Region is a MemoryRegion: it owns every node created while it is the
// active allocator and is destroyed as a whole. Regions may
// nest; a value produced in an inner region that must outlive it requires
// an identity-copy walk into the outer region (see CopyInto).
//
// Nodes are stored by index rather than pointer so that a cycle-closing
// edge (RingBuffer's recursive input) can be patched in after the rest of
// the region's nodes exist.
type Region struct {
	parent    *Region
	nodes     []*GenericNode // index 0 is an unused sentinel
	sealed    bool
	cleanups  []func()
	reconnect []Ref // pending Reconnect nodes awaiting NewCycle's PatchCycle call
}

// NewRegion creates a fresh, unsealed region. If parent is non-nil, cross-
// region references from this region must only ever point from this
// (inner, shorter-lived) region upward — never the reverse.
func NewRegion(parent *Region) *Region {
	r := &Region{parent: parent}
	r.nodes = append(r.nodes, nil) // reserve index 0 as the invalid sentinel
	return r
}

// Parent returns the enclosing region, or nil at the outermost scope.
func (r *Region) Parent() *Region { return r.parent }

func (r *Region) alloc(n *GenericNode) Ref {
	if r.sealed {
		panic("graph: alloc on sealed region")
	}
	n.region = r
	n.index = len(r.nodes)
	for _, u := range n.upstreams {
		if u.region != nil && u.region != r && !isAncestor(u.region, r) {
			panic("graph: upstream reference crosses into a non-ancestor region")
		}
		if u.Valid() {
			u.Node().downCount++
		}
	}
	r.nodes = append(r.nodes, n)
	n.hash = computeHash(n)
	return n.Self()
}

func isAncestor(candidate, of *Region) bool {
	for p := of.parent; p != nil; p = p.parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// Seal marks the region immutable; no further nodes may be allocated.
// Reactive analysis's late ReactivityNode assignment and transform-internal
// rewrites are the only permitted post-creation mutations and both
// happen before sealing.
func (r *Region) Seal() {
	if len(r.reconnect) != 0 {
		panic(fmt.Sprintf("graph: sealing region with %d unpatched Reconnect nodes", len(r.reconnect)))
	}
	r.sealed = true
}

// OnClose registers a cleanup hook run (LIFO) when the region is
// destroyed, for payloads with non-trivial teardown.
func (r *Region) OnClose(fn func()) { r.cleanups = append(r.cleanups, fn) }

// Close runs queued cleanup hooks and releases the region's node slice.
// The region and any Refs into it must not be used afterward.
func (r *Region) Close() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
	r.nodes = nil
}

// NewArgument allocates the Argument leaf node: the substitution point for
// a caller's argument.
func (r *Region) NewArgument(pos Pos) Ref {
	return r.alloc(&GenericNode{kind: KindArgument, pos: pos})
}

// NewConstant allocates a compile-time literal.
func (r *Region) NewConstant(pos Pos, lit interface{}) Ref {
	return r.alloc(&GenericNode{kind: KindConstant, pos: pos, Literal: lit})
}

// NewEvaluate allocates the universal call node.
func (r *Region) NewEvaluate(pos Pos, label string, functionExpr, argumentExpr Ref) Ref {
	return r.alloc(&GenericNode{kind: KindEvaluate, pos: pos, Label: label, upstreams: []Ref{functionExpr, argumentExpr}})
}

// NewLambda allocates a candidate form body.
func (r *Region) NewLambda(pos Pos, params []string, body Ref, recurPts []Ref) Ref {
	return r.alloc(&GenericNode{kind: KindLambda, pos: pos, Params: params, upstreams: []Ref{body}, RecurPts: recurPts})
}

// NewPair allocates a cons-cell constructor.
func (r *Region) NewPair(pos Pos, fst, rst Ref) Ref {
	return r.alloc(&GenericNode{kind: KindPair, pos: pos, upstreams: []Ref{fst, rst}})
}

// NewFirst allocates a cons-cell head projection.
func (r *Region) NewFirst(pos Pos, pair Ref) Ref {
	return r.alloc(&GenericNode{kind: KindFirst, pos: pos, upstreams: []Ref{pair}})
}

// NewRest allocates a cons-cell tail projection.
func (r *Region) NewRest(pos Pos, pair Ref) Ref {
	return r.alloc(&GenericNode{kind: KindRest, pos: pos, upstreams: []Ref{pair}})
}

// NewIf allocates a conditional.
func (r *Region) NewIf(pos Pos, cond, then, els Ref) Ref {
	return r.alloc(&GenericNode{kind: KindIf, pos: pos, upstreams: []Ref{cond, then, els}})
}

// NewNative allocates a primitive operation over its operands.
func (r *Region) NewNative(pos Pos, op string, operands ...Ref) Ref {
	return r.alloc(&GenericNode{kind: KindNative, pos: pos, Label: op, upstreams: operands})
}

// NewFunctionSet allocates a named function value carrying one or more
// candidate forms (tried in order by Evaluate) and the
// recursion points inside them.
func (r *Region) NewFunctionSet(pos Pos, name string, forms []Ref, recurPts []Ref) Ref {
	return r.alloc(&GenericNode{kind: KindFunctionSet, pos: pos, Label: name, upstreams: forms, Forms: forms, RecurPts: recurPts})
}

// NewRingBuffer allocates a stateful unit-delay buffer of the given length.
// Its recursive input edge is supplied separately via NewCycle/PatchCycle,
// since at construction time the value feeding back into the buffer has
// not been built yet.
func (r *Region) NewRingBuffer(pos Pos, length int, initial interface{}) (Ref, *Region) {
	self := r.alloc(&GenericNode{kind: KindRingBuffer, pos: pos, BufferLen: length, Initial: initial})
	return self, r
}

// NewCycle allocates a Reconnect placeholder standing in for a not-yet-built
// recursive input, and registers it with the region so Seal will refuse to
// run until PatchCycle closes every pending cycle.
func (r *Region) NewCycle(pos Pos, target Ref) Ref {
	ref := r.alloc(&GenericNode{kind: KindReconnect, pos: pos, upstreams: []Ref{target}})
	r.reconnect = append(r.reconnect, ref)
	return ref
}

// PatchCycle closes a pending Reconnect placeholder by appending its real
// recursive-input edge. This is the only form of post-creation mutation to
// a node's upstream list permitted outside the arena walk that built it.
func (r *Region) PatchCycle(placeholder Ref, recursiveInput Ref) {
	n := placeholder.Node()
	if n == nil || n.kind != KindReconnect {
		panic("graph: PatchCycle on a non-Reconnect node")
	}
	n.upstreams = append(n.upstreams, recursiveInput)
	n.hash = computeHash(n)
	for i, pending := range r.reconnect {
		if pending == placeholder {
			r.reconnect = append(r.reconnect[:i], r.reconnect[i+1:]...)
			break
		}
	}
}

// CopyInto performs an identity-copy walk of ref (and everything it
// transitively references within src) into dst, the required operation
// whenever a value must outlive the region that produced it. Nodes
// already belonging to dst or an ancestor of dst are referenced directly,
// not recopied.
func CopyInto(dst *Region, ref Ref) Ref {
	memo := make(map[int]Ref)
	var walk func(Ref) Ref
	walk = func(r Ref) Ref {
		if !r.Valid() {
			return r
		}
		if r.region == dst || isAncestor(r.region, dst) {
			return r
		}
		if copied, ok := memo[r.index]; ok {
			return copied
		}
		n := r.Node()
		newUp := make([]Ref, len(n.upstreams))
		for i, u := range n.upstreams {
			newUp[i] = walk(u)
		}
		clone := &GenericNode{
			kind:      n.kind,
			pos:       n.pos,
			upstreams: newUp,
			Label:     n.Label,
			Literal:   n.Literal,
			Params:    n.Params,
			BufferLen: n.BufferLen,
			Initial:   n.Initial,
		}
		// A FunctionSet's form list aliases its upstreams; its recursion
		// points live inside those forms, so walking them lands on the
		// already-copied nodes via the memo.
		if n.kind == KindFunctionSet {
			clone.Forms = newUp
			clone.RecurPts = make([]Ref, len(n.RecurPts))
			for i, rp := range n.RecurPts {
				clone.RecurPts[i] = walk(rp)
			}
		}
		out := dst.alloc(clone)
		memo[r.index] = out
		return out
	}
	return walk(ref)
}
