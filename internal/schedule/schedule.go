// Package schedule implements the activity-masked scheduling pass:
// deriving each lowered node's ActivityMaskVector, topologically ordering
// a subroutine body's nodes with the three-key tie-break (data dependency,
// mask-block membership, scheduling priority), and grouping the result
// into maximal runs sharing one mask for the emitter to wrap in an
// eager/passive-emit region.
package schedule

import (
	"sort"

	"github.com/sunholo/sigcore/internal/lower"
	"github.com/sunholo/sigcore/internal/reactive"
)

// Reactivity resolves the reactive.Node governing a lowered node, letting
// the scheduler operate on lower.Ref values without lower itself depending
// on package reactive (reactivity is assigned to typed nodes; a lowered
// KindPassthrough node inherits its wrapped typed node's reactivity, and a
// synthesized node such as a Buffer or Copy inherits the fused reactivity
// of its own upstreams).
type Reactivity struct {
	analysis *reactive.Analysis
	memo     map[lower.Ref]reactive.Node
}

// NewReactivity binds a lowered-IR reactivity resolver to the typed-graph
// reactive.Analysis produced for the same compilation unit.
func NewReactivity(analysis *reactive.Analysis) *Reactivity {
	return &Reactivity{analysis: analysis, memo: make(map[lower.Ref]reactive.Node)}
}

// Of resolves ref's reactivity, memoizing the result.
func (rx *Reactivity) Of(ref lower.Ref) reactive.Node {
	if r, ok := rx.memo[ref]; ok {
		return r
	}
	n := ref.Node()
	if n == nil {
		return nil
	}
	var r reactive.Node
	if n.Kind() == lower.KindPassthrough {
		r = rx.analysis.Reactivity(n.Typed)
	} else {
		r = fuseUpstreams(rx, n.Upstreams())
	}
	rx.memo[ref] = r
	return r
}

func fuseUpstreams(rx *Reactivity, ups []lower.Ref) reactive.Node {
	seen := make(map[reactive.Node]bool)
	var distinct []reactive.Node
	for _, u := range ups {
		r := rx.Of(u)
		if r == nil || seen[r] {
			continue
		}
		seen[r] = true
		distinct = append(distinct, r)
	}
	switch len(distinct) {
	case 0:
		return nil
	case 1:
		return distinct[0]
	default:
		return &reactive.FusedSet{Drivers: distinct}
	}
}

// Priority returns a lowered node's scheduling priority:
// delegated to the wrapped typed node's SchedPriority for a Passthrough,
// defaulting to 0 for every synthesized node.
func Priority(ref lower.Ref) int {
	n := ref.Node()
	if n == nil {
		return 0
	}
	if n.Kind() == lower.KindPassthrough {
		return n.Typed.Node().SchedPriority()
	}
	return 0
}

// Body is everything a subroutine's scheduler processes: the value-graph
// root plus the side-effecting nodes with no value-graph consumer.
type Body struct {
	Value   lower.Ref
	Effects []lower.Ref
}

func (b Body) roots() []lower.Ref {
	out := make([]lower.Ref, 0, len(b.Effects)+1)
	if b.Value.Valid() {
		out = append(out, b.Value)
	}
	out = append(out, b.Effects...)
	return out
}

// Plan is the scheduler's output: a topologically valid total order over
// every node reachable from Body, plus the ActivityMaskVector computed for
// each.
type Plan struct {
	Order []lower.Ref
	Masks map[lower.Ref]reactive.ActivityMaskVector
}

// Schedule derives each reachable node's
// mask, then produces the three-key topological order.
func Schedule(body Body, rx *Reactivity, driverIndex map[*reactive.DriverNode]uint) Plan {
	nodes := reachable(body.roots())
	masks := make(map[lower.Ref]reactive.ActivityMaskVector, len(nodes))
	for _, n := range nodes {
		masks[n] = reactive.MaskFor(rx.Of(n), driverIndex)
	}
	order := topoSort(nodes, masks)
	return Plan{Order: order, Masks: masks}
}

// reachable performs a deterministic post-order walk (upstreams before
// self) from roots, visiting each node exactly once.
func reachable(roots []lower.Ref) []lower.Ref {
	visited := make(map[lower.Ref]bool)
	var order []lower.Ref
	var visit func(ref lower.Ref)
	visit = func(ref lower.Ref) {
		if !ref.Valid() || visited[ref] {
			return
		}
		visited[ref] = true
		n := ref.Node()
		for _, u := range n.Upstreams() {
			visit(u)
		}
		order = append(order, ref)
	}
	for _, r := range roots {
		visit(r)
	}
	return order
}

// maskKey renders a mask to a comparable string so equal (not merely
// pointer-equal) masks group into the same block: nodes sharing an
// identical mask form a contiguous block.
func maskKey(m reactive.ActivityMaskVector) string {
	var sb []byte
	for _, c := range m.Conjunctions {
		sb = append(sb, []byte(c.String())...)
		sb = append(sb, ';')
	}
	return string(sb)
}

// maskSize counts the set driver bits across a mask's conjunctions, the
// "larger mask sets sort earlier" ordering key: scheduling the most
// constrained nodes first makes consecutive nodes likelier to share a mask
// and so fuse into one conditionally-active region.
func maskSize(m reactive.ActivityMaskVector) int {
	total := 0
	for _, c := range m.Conjunctions {
		total += int(c.Count())
	}
	return total
}

// topoSort implements the three-key Kahn's-algorithm tie-break:
// among nodes whose dependencies are all satisfied, prefer continuing the
// current mask block (so runs of one mask stay contiguous), then nodes
// with larger mask sets, then break further ties by scheduling priority
// (descending, so higher-priority nodes schedule earlier within a block),
// then by discovery order for determinism.
func topoSort(nodes []lower.Ref, masks map[lower.Ref]reactive.ActivityMaskVector) []lower.Ref {
	indeg := make(map[lower.Ref]int, len(nodes))
	dependents := make(map[lower.Ref][]lower.Ref)
	position := make(map[lower.Ref]int, len(nodes))
	for i, n := range nodes {
		position[n] = i
		indeg[n] = 0
	}
	for _, n := range nodes {
		for _, u := range n.Node().Upstreams() {
			if _, ok := position[u]; !ok {
				continue
			}
			indeg[n]++
			dependents[u] = append(dependents[u], n)
		}
	}

	var ready []lower.Ref
	for _, n := range nodes {
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}

	var order []lower.Ref
	var currentMask string
	less := func(i, j lower.Ref) bool {
		iCur := maskKey(masks[i]) == currentMask
		jCur := maskKey(masks[j]) == currentMask
		if iCur != jCur {
			return iCur // continuing the current block sorts first
		}
		si, sj := maskSize(masks[i]), maskSize(masks[j])
		if si != sj {
			return si > sj // larger mask sets sort earlier
		}
		pi, pj := Priority(i), Priority(j)
		if pi != pj {
			return pi > pj
		}
		return position[i] < position[j]
	}

	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool { return less(ready[a], ready[b]) })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		currentMask = maskKey(masks[next])
		for _, dep := range dependents[next] {
			indeg[dep]--
			if indeg[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return order
}

// Block is a maximal run of consecutive scheduled nodes sharing one mask
//. Empty-mask blocks are emitted unconditionally; every
// other block becomes an `if(active) { eager } else { passive }` region.
type Block struct {
	Mask  reactive.ActivityMaskVector
	Nodes []lower.Ref
}

// GroupBlocks partitions a scheduled order into maximal contiguous runs of
// equal mask, preserving order.
func GroupBlocks(order []lower.Ref, masks map[lower.Ref]reactive.ActivityMaskVector) []Block {
	var blocks []Block
	for _, n := range order {
		m := masks[n]
		if len(blocks) > 0 && blocks[len(blocks)-1].Mask.Equal(m) {
			blocks[len(blocks)-1].Nodes = append(blocks[len(blocks)-1].Nodes, n)
			continue
		}
		blocks = append(blocks, Block{Mask: m, Nodes: []lower.Ref{n}})
	}
	return blocks
}
