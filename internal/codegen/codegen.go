// Package codegen implements CallGraphAnalysis and CodeGenModule:
// collating the lowered IR's subroutine call graph, allocating
// process-wide state-slot and symbol-table indices through a monotonic
// GetIndex, and deriving the vector-length heuristic and counter/mask-word
// allocation a backend's class metadata needs.
package codegen

import (
	"github.com/sunholo/sigcore/internal/iface"
	"github.com/sunholo/sigcore/internal/lower"
	"github.com/sunholo/sigcore/internal/reactive"
)

// CodeGenModule owns the monotonic state-slot index and the symbol table
// built from it: the (uid -> index) / (key -> SymbolEntry) maps a backend
// reads when assembling its own symbol table.
type CodeGenModule struct {
	region    *lower.Region
	uidIndex  map[string]int
	builder   *iface.Builder
	maskWords int
}

// NewCodeGenModule creates a module bound to region, whose NewSlot calls
// back the allocation this type's GetIndex exposes under a stable uid key.
func NewCodeGenModule(region *lower.Region) *CodeGenModule {
	return &CodeGenModule{region: region, uidIndex: make(map[string]int), builder: iface.NewBuilder()}
}

// GetIndex returns the state-slot index for uid, allocating a fresh one on
// first use via the bound Region's monotonic slot counter.
func (m *CodeGenModule) GetIndex(uid string) int {
	if idx, ok := m.uidIndex[uid]; ok {
		return idx
	}
	idx := m.region.NewSlot()
	m.uidIndex[uid] = idx
	return idx
}

// Register records a symbol-table row for an external input/output.
func (m *CodeGenModule) Register(e iface.SymbolEntry) { m.builder.Add(e) }

// SetMaskWordCount records the bit-mask-word count the activity-mask
// scheduler (package schedule) computed for this module's activation
// matrix.
func (m *CodeGenModule) SetMaskWordCount(n int) { m.maskWords = n }

// Table finalises the symbol/clock table. The state-slot count covers
// every slot the bound region has handed out, whether reserved directly
// by the lowering pass or through GetIndex.
func (m *CodeGenModule) Table() *iface.Table {
	slots := m.region.SlotCount()
	if len(m.uidIndex) > slots {
		slots = len(m.uidIndex)
	}
	return m.builder.Build(slots, m.maskWords)
}

// VectorLengthHeuristic re-derives the SIMD vector length for a backend
// whose hardware cap differs from reactive analysis's default cap
// (typically 16), by narrowing matrix.VectorLength further until it
// both divides the superclock and fits within backendCap.
func VectorLengthHeuristic(matrix reactive.ActivationMatrix, backendCap int) int {
	v := matrix.VectorLength
	if backendCap > 0 && v > backendCap {
		v = backendCap
	}
	for v > 1 && matrix.Superclock%int64(v) != 0 {
		v--
	}
	if v < 1 {
		v = 1
	}
	return v
}

// CallGraphAnalysis collates every Subroutine node reachable from a set of
// roots (the value graph plus any side-effecting nodes with no value-graph
// consumer) into a call graph,
// and flags which subroutines are tail-recursive candidates.
type CallGraphAnalysis struct {
	Subroutines []lower.Ref
	Calls       map[lower.Ref][]lower.Ref
	SelfCalls   map[lower.Ref]bool
}

// AnalyzeCallGraph walks roots, collecting every Subroutine node and the
// call edges between them (a Subroutine A "calls" B when B is reachable
// from A's body without passing through another Subroutine boundary).
func AnalyzeCallGraph(roots []lower.Ref) *CallGraphAnalysis {
	c := &CallGraphAnalysis{Calls: make(map[lower.Ref][]lower.Ref), SelfCalls: make(map[lower.Ref]bool)}
	visited := make(map[lower.Ref]bool)

	var collectSubroutines func(ref lower.Ref)
	collectSubroutines = func(ref lower.Ref) {
		if !ref.Valid() || visited[ref] {
			return
		}
		visited[ref] = true
		n := ref.Node()
		if n.Kind() == lower.KindSubroutine {
			c.Subroutines = append(c.Subroutines, ref)
			callees := calleesOf(ref, make(map[lower.Ref]bool))
			c.Calls[ref] = callees
			for _, callee := range callees {
				if callee == ref {
					c.SelfCalls[ref] = true
				}
			}
		}
		for _, u := range n.Upstreams() {
			collectSubroutines(u)
		}
	}
	for _, root := range roots {
		collectSubroutines(root)
	}
	return c
}

// calleesOf finds every Subroutine node reachable from sub's body. The walk
// stops at each nested Subroutine it reaches (the nested one is recorded as
// a callee, its own body is not walked), and seen keeps any node from being
// visited twice within one walk.
func calleesOf(sub lower.Ref, seen map[lower.Ref]bool) []lower.Ref {
	var out []lower.Ref
	var walk func(ref lower.Ref, isRoot bool)
	walk = func(ref lower.Ref, isRoot bool) {
		if !ref.Valid() || seen[ref] {
			return
		}
		seen[ref] = true
		n := ref.Node()
		if n.Kind() == lower.KindSubroutine && !isRoot {
			out = append(out, ref)
			return
		}
		for _, u := range n.Upstreams() {
			walk(u, false)
		}
	}
	walk(sub, true)
	return out
}

// TailCallEligible reports whether sub may be emitted as a loop-back branch
// rather than a genuine call: it must be a direct self-call (recursion
// through another subroutine is not detected) and its body must not allocate a Stack buffer that a caller
// could still be holding a reference to across the call (a conservative
// proxy for "no local-buffer reference escapes", since this IR has no
// separate escape-analysis pass).
func (c *CallGraphAnalysis) TailCallEligible(sub lower.Ref) bool {
	if !c.SelfCalls[sub] {
		return false
	}
	return !escapesLocalBuffer(sub, make(map[lower.Ref]bool))
}

func escapesLocalBuffer(ref lower.Ref, seen map[lower.Ref]bool) bool {
	if !ref.Valid() || seen[ref] {
		return false
	}
	seen[ref] = true
	n := ref.Node()
	if n.Kind() == lower.KindBuffer && n.Alloc == lower.AllocStack {
		return true
	}
	for _, u := range n.Upstreams() {
		if escapesLocalBuffer(u, seen) {
			return true
		}
	}
	return false
}
