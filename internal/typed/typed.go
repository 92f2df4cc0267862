// Package typed implements TypedGraph: the output of specialization. Nodes
// carry a fixed result type, are schedulable, and implement reactive /
// side-effect / codegen hooks.
package typed

import (
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/types"
)

// Kind identifies a typed node's dispatch behavior.
type Kind int

const (
	KindArgument Kind = iota
	KindConstant
	KindFunctionCall     // out-of-line call
	KindFunctionSequence // closed-form recursion, repeat N
	KindSwitch           // compile-time case analysis over a Union
	KindPair
	KindFirst
	KindRest
	KindIf
	KindRingBuffer
	KindNative
)

func (k Kind) String() string {
	names := [...]string{
		"Argument", "Constant", "FunctionCall", "FunctionSequence", "Switch",
		"Pair", "First", "Rest", "If", "RingBuffer", "Native",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Reactivity is satisfied by *reactive.ReactivityNode; kept as an opaque
// interface here so package typed does not import package reactive (the
// analysis runs *after* typing and assigns this field in place, the one
// permitted late mutation).
type Reactivity interface {
	isReactivityNode()
}

// Region mirrors graph.Region for the typed side: an arena owning typed
// nodes, addressed by index so side-effect lowering (which rewrites the
// graph extensively) can build new regions freely.
type Region struct {
	nodes []*Node
}

// NewRegion creates an empty typed-node arena.
func NewRegion() *Region {
	r := &Region{}
	r.nodes = append(r.nodes, nil) // reserve index 0
	return r
}

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

// Node is an immutable TypedGraph node. Origin points back at the
// generic-graph node it was specialized from, for diagnostics. Nodes
// synthesized during specialization (e.g. a FunctionSequence's counter and
// formula constants) carry the Origin of the call site that produced them.
type Node struct {
	kind       Kind
	region     *Region
	index      int
	upstreams  []Ref
	Result     *types.Type
	Origin     graph.Ref
	Reactivity Reactivity // nil until reactive analysis runs

	// Scheduling hint: defaults to 0, constants sort -1,
	// typed binary ops sort +1. Overridable per node.
	Priority int

	Label     string      // FunctionCall label / Native op name
	Literal   interface{} // Constant value
	RepeatN   int64       // FunctionSequence: derived repeat count
	Weight    int         // inline-vs-out-of-line cost
	Switch    *SwitchSpec
	BufferLen int
	Initial   interface{}
}

func (n *Node) Kind() Kind          { return n.kind }
func (n *Node) Upstreams() []Ref    { return n.upstreams }
func (n *Node) Self() Ref           { return Ref{region: n.region, index: n.index} }
func (n *Node) SchedPriority() int {
	if n.Priority != 0 {
		return n.Priority
	}
	switch n.kind {
	case KindConstant:
		return -1
	case KindNative:
		return 1
	default:
		return 0
	}
}

// EffectiveWeight returns the node's inline-cost weight,
// defaulting by kind when Weight was not set explicitly at construction.
func (n *Node) EffectiveWeight() int {
	if n.Weight != 0 {
		return n.Weight
	}
	switch n.kind {
	case KindArgument, KindConstant:
		return 0
	case KindFunctionCall:
		return 4
	case KindFunctionSequence:
		return 2
	default:
		return 1
	}
}

func (r *Region) alloc(n *Node) Ref {
	n.region = r
	n.index = len(r.nodes)
	r.nodes = append(r.nodes, n)
	return n.Self()
}

// NewArgument allocates the caller-substituted argument node.
func (r *Region) NewArgument(origin graph.Ref, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindArgument, Origin: origin, Result: result})
}

// NewConstant allocates a folded compile-time constant.
func (r *Region) NewConstant(origin graph.Ref, result *types.Type, lit interface{}) Ref {
	return r.alloc(&Node{kind: KindConstant, Origin: origin, Result: result, Literal: lit})
}

// NewFunctionCall allocates an out-of-line call.
func (r *Region) NewFunctionCall(origin graph.Ref, label string, body Ref, argNode Ref, result *types.Type, weight int) Ref {
	return r.alloc(&Node{kind: KindFunctionCall, Origin: origin, Label: label, upstreams: []Ref{body, argNode}, Result: result, Weight: weight})
}

// NewFunctionSequence allocates a derived closed-form recurrence:
// argFormula/resultFormula/iterator/generator/tail are all Refs into the
// same region representing the corresponding sub-bodies, and n is the solved
// repeat count.
func (r *Region) NewFunctionSequence(origin graph.Ref, argFormula, resultFormula, iterator, generatorBody, tail Ref, n int64, result *types.Type) Ref {
	return r.alloc(&Node{
		kind:      KindFunctionSequence,
		Origin:    origin,
		upstreams: []Ref{argFormula, resultFormula, iterator, generatorBody, tail},
		RepeatN:   n,
		Result:    result,
	})
}

// NewPair, NewFirst, NewRest, NewIf, NewNative, NewRingBuffer mirror the
// generic-graph constructors at the typed level.
func (r *Region) NewPair(origin graph.Ref, fst, rst Ref, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindPair, Origin: origin, upstreams: []Ref{fst, rst}, Result: result})
}

func (r *Region) NewFirst(origin graph.Ref, pair Ref, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindFirst, Origin: origin, upstreams: []Ref{pair}, Result: result})
}

func (r *Region) NewRest(origin graph.Ref, pair Ref, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindRest, Origin: origin, upstreams: []Ref{pair}, Result: result})
}

func (r *Region) NewIf(origin graph.Ref, cond, then, els Ref, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindIf, Origin: origin, upstreams: []Ref{cond, then, els}, Result: result})
}

func (r *Region) NewNative(origin graph.Ref, op string, result *types.Type, operands ...Ref) Ref {
	return r.alloc(&Node{kind: KindNative, Origin: origin, Label: op, upstreams: operands, Result: result})
}

func (r *Region) NewRingBuffer(origin graph.Ref, length int, initial interface{}, result *types.Type, input Ref) Ref {
	return r.alloc(&Node{kind: KindRingBuffer, Origin: origin, BufferLen: length, Initial: initial, Result: result, upstreams: []Ref{input}})
}

// NewRingBufferPlaceholder allocates a ring buffer with its feedback edge
// not yet known, mirroring the generic graph's arena+index cycle-closing
// pattern at the typed level: the node is allocated (and may be
// referenced and cached) before the expression computing its next value
// has been specialized, since that expression typically reads the ring
// buffer's own delayed value.
func (r *Region) NewRingBufferPlaceholder(origin graph.Ref, length int, initial interface{}, result *types.Type) Ref {
	return r.alloc(&Node{kind: KindRingBuffer, Origin: origin, BufferLen: length, Initial: initial, Result: result})
}

// PatchRingBufferInput closes a ring buffer placeholder's feedback edge.
// Like graph.Region.PatchCycle, this is the one permitted post-allocation
// mutation to a typed node's upstream list.
func (r *Region) PatchRingBufferInput(rb Ref, input Ref) {
	n := rb.Node()
	if n == nil || n.kind != KindRingBuffer {
		panic("typed: PatchRingBufferInput on a non-RingBuffer node")
	}
	n.upstreams = []Ref{input}
}
