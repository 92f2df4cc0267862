// Package lower implements the side-effect transform and copy-elision
// pass: converting the pure functional TypedGraph into an imperative IR
// with explicit buffers, pointer arithmetic, copies, and process-wide
// state slots, then folding away the copies and pair/first/rest
// reconstructions the transform introduces wherever the dataflow permits.
package lower

import (
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// Kind identifies an imperative-IR node. The first group carries over a
// typed-graph operation unchanged; the second group is new.
type Kind int

const (
	KindPassthrough Kind = iota // wraps a typed.Ref whose own operation is unchanged
	KindBuffer
	KindOffset
	KindAtIndex
	KindDereference
	KindCopy
	KindSubroutine
	KindBoundaryBuffer
	KindGetSlot
	KindSetSlot
)

func (k Kind) String() string {
	names := [...]string{
		"Passthrough", "Buffer", "Offset", "AtIndex", "Dereference",
		"Copy", "Subroutine", "BoundaryBuffer", "GetSlot", "SetSlot",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Allocation classifies a Buffer's storage.
type Allocation int

const (
	AllocStack Allocation = iota
	AllocStackZeroed
	AllocModule
	AllocEmpty
)

// CopyMode classifies a Copy node's behavior.
type CopyMode int

const (
	CopyStore CopyMode = iota
	CopyMemCpy
)

// FillPolicy describes how a BoundaryBuffer behaves when its source has not
// produced a fresh value for the sink's tick.
type FillPolicy int

const (
	FillLastValueHeld FillPolicy = iota
)

// Region is the imperative-IR arena, mirroring typed.Region's index-into-
// slice allocation discipline.
type Region struct {
	nodes    []*Node
	nextSlot int
}

// NewRegion creates an empty lowered-IR arena with a fresh state-slot
// counter starting at 0.
func NewRegion() *Region {
	r := &Region{}
	r.nodes = append(r.nodes, nil) // reserve index 0, matching typed.Region
	return r
}

// NewSlot reserves the next process-wide state-slot index; internal/codegen's
// CodeGenModule owns the authoritative (uid -> index) / (key -> SymbolEntry)
// maps built from the slots this pass reserves.
func (r *Region) NewSlot() int {
	s := r.nextSlot
	r.nextSlot++
	return s
}

// SlotCount returns how many state slots this region has handed out.
func (r *Region) SlotCount() int { return r.nextSlot }

// Ref addresses a Node within its owning Region.
type Ref struct {
	region *Region
	index  int
}

func (r Ref) Valid() bool { return r.region != nil && r.index > 0 }
func (r Ref) Node() *Node {
	if !r.Valid() {
		return nil
	}
	return r.region.nodes[r.index]
}

// Node is an imperative-IR node.
type Node struct {
	kind      Kind
	region    *Region
	index     int
	upstreams []Ref
	Result    *types.Type

	Typed Ref2 // set only for KindPassthrough: the wrapped typed-graph node

	Alloc     Allocation
	Size      int
	Alignment int

	ByteOffset int
	ElemIndex  int

	Mode        CopyMode
	RepeatCount int

	SlotIndex int

	Capacity   int
	FillPolicy FillPolicy

	BodySize int // Subroutine: reported through a per-body global (sizeof_<body-id>)
	TailCall bool
}

func (n *Node) Kind() Kind       { return n.kind }
func (n *Node) Upstreams() []Ref { return n.upstreams }
func (n *Node) Self() Ref        { return Ref{region: n.region, index: n.index} }

// Ref2 addresses a typed.Node; a thin alias kept distinct from lower.Ref so
// Node.Typed's meaning (a reference into the *other* graph) is unambiguous
// at the call site.
type Ref2 = typed.Ref

func (r *Region) alloc(n *Node) Ref {
	n.region = r
	n.index = len(r.nodes)
	r.nodes = append(r.nodes, n)
	return n.Self()
}

func (r *Region) NewPassthrough(t typed.Ref, ups []Ref) Ref {
	res := t.Node().Result
	return r.alloc(&Node{kind: KindPassthrough, Typed: t, upstreams: ups, Result: res})
}

func (r *Region) NewBuffer(alloc Allocation, size, alignment int, elem *types.Type) Ref {
	return r.alloc(&Node{kind: KindBuffer, Alloc: alloc, Size: size, Alignment: alignment, Result: elem})
}

func (r *Region) NewOffset(ptr Ref, byteOffset int) Ref {
	return r.alloc(&Node{kind: KindOffset, upstreams: []Ref{ptr}, ByteOffset: byteOffset, Result: ptr.Node().Result})
}

func (r *Region) NewAtIndex(ptr Ref, elemIndex int, elem *types.Type) Ref {
	return r.alloc(&Node{kind: KindAtIndex, upstreams: []Ref{ptr}, ElemIndex: elemIndex, Result: elem})
}

func (r *Region) NewDereference(ptr Ref, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindDereference, upstreams: []Ref{ptr}, Result: result})
}

func (r *Region) NewCopy(dst, src Ref, mode CopyMode, repeatCount int) Ref {
	return r.alloc(&Node{kind: KindCopy, upstreams: []Ref{dst, src}, Mode: mode, RepeatCount: repeatCount})
}

func (r *Region) NewSubroutine(body Ref, bodySize int, tailCall bool) Ref {
	return r.alloc(&Node{kind: KindSubroutine, upstreams: []Ref{body}, BodySize: bodySize, TailCall: tailCall, Result: body.Node().Result})
}

func (r *Region) NewBoundaryBuffer(src Ref, capacity int, fill FillPolicy, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindBoundaryBuffer, upstreams: []Ref{src}, Capacity: capacity, FillPolicy: fill, Result: result})
}

func (r *Region) NewGetSlot(index int, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindGetSlot, SlotIndex: index, Result: result})
}

func (r *Region) NewSetSlot(index int, value Ref) Ref {
	return r.alloc(&Node{kind: KindSetSlot, upstreams: []Ref{value}, SlotIndex: index})
}
