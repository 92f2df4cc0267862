// Package graph implements the untyped generic expression graph: an
// arena-allocated DAG of immutable nodes, each of which declares a
// specialize operation (see package specialize). Nodes are addressed by
// index into their owning MemoryRegion rather than by pointer, so that
// cycle-closing edges (a unit-delay recursion reconnecting into itself
// through a ring buffer) can be filled in after the rest of the arena
// walk completes.
package graph

import "fmt"

// Pos is a source-text position, carried on GenericNode only:
// TypedNode does not need one, since diagnostics attach to the generic
// node that produced it.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return "<generated>"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Ref is an arena-relative handle to a GenericNode: an index into the
// owning Region's node slice. The zero Ref is never valid (index 0 is
// reserved as a sentinel); use Ref.Valid to test for it.
type Ref struct {
	region *Region
	index  int
}

// Valid reports whether r addresses a real node.
func (r Ref) Valid() bool { return r.region != nil && r.index > 0 }

// Node dereferences r within its owning region.
func (r Ref) Node() *GenericNode {
	if !r.Valid() {
		return nil
	}
	return r.region.nodes[r.index]
}

// Kind identifies a generic-node's behavior; the concrete kinds are listed
// below. Kept as a small closed enum (rather than a type-switch over
// structural shape) because the scheduler and specializer dispatch on it
// directly.
type Kind int

const (
	KindArgument Kind = iota
	KindConstant
	KindEvaluate // the universal call node
	KindLambda   // a candidate form body
	KindPair
	KindFirst
	KindRest
	KindIf
	KindRingBuffer  // stateful unit-delay; cycle-closing input filled via Reconnect
	KindReconnect   // deferred cycle-closing edge, filled post-walk
	KindNative      // a primitive operation (arithmetic, comparison, ...)
	KindFunctionSet // a named function value: one or more candidate forms plus recursion points
)

// GenericNode is an immutable node in the untyped expression graph. Each
// node carries an ordered list of upstream nodes and a stable hash
// combining its local content hash with its upstreams' hashes.
type GenericNode struct {
	kind      Kind
	region    *Region
	index     int
	upstreams []Ref
	pos       Pos
	hash      Hash
	downCount int // approximate downstream count, used only to decide memoization

	// Payload, interpreted according to kind.
	Label     string      // Evaluate: diagnostic label; Native: op name
	Literal   interface{} // Constant: the literal value
	Params    []string    // Lambda: parameter names
	RecurPts  []Ref       // FunctionSet: recursion points inside the forms' bodies (Evaluate nodes)
	Forms     []Ref       // FunctionSet: candidate form bodies, in override order
	BufferLen int         // RingBuffer: element count
	Initial   interface{} // RingBuffer: initial fill value
}

// Kind returns the node's dispatch kind.
func (n *GenericNode) Kind() Kind { return n.kind }

// Position returns the node's source-text position.
func (n *GenericNode) Position() Pos { return n.pos }

// Upstreams returns the node's ordered upstream references.
func (n *GenericNode) Upstreams() []Ref { return n.upstreams }

// Hash returns the node's stable structural hash.
func (n *GenericNode) Hash() Hash { return n.hash }

// Self returns a Ref pointing back at this node.
func (n *GenericNode) Self() Ref { return Ref{region: n.region, index: n.index} }

// DownstreamCount returns the approximate number of nodes that reference
// this one; it is an upper-bound hint used by transforms to decide whether
// memoizing a result is worthwhile, never relied on for correctness.
func (n *GenericNode) DownstreamCount() int { return n.downCount }

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "Argument"
	case KindConstant:
		return "Constant"
	case KindEvaluate:
		return "Evaluate"
	case KindLambda:
		return "Lambda"
	case KindPair:
		return "Pair"
	case KindFirst:
		return "First"
	case KindRest:
		return "Rest"
	case KindIf:
		return "If"
	case KindRingBuffer:
		return "RingBuffer"
	case KindReconnect:
		return "Reconnect"
	case KindNative:
		return "Native"
	case KindFunctionSet:
		return "FunctionSet"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}
