package schedule

import (
	"testing"

	"github.com/sunholo/sigcore/internal/lower"
	"github.com/sunholo/sigcore/internal/reactive"
	"github.com/sunholo/sigcore/internal/types"
)

// buildChain constructs buf -> deref -> copy, a simple linear lowered IR
// with no reactive driver attached (every node statically active), enough
// to exercise the scheduler contract without needing a full typed-graph pipeline.
func buildChain(t *testing.T) (lower.Ref, *Reactivity) {
	t.Helper()
	r := lower.NewRegion()
	buf := r.NewBuffer(lower.AllocModule, 4, 4, types.Float32())
	at := r.NewAtIndex(buf, 0, types.Float32())
	deref := r.NewDereference(at, types.Float32())
	copyNode := r.NewCopy(at, deref, lower.CopyStore, 1)

	analysis := &reactive.Analysis{}
	rx := NewReactivity(analysis)
	_ = copyNode
	return copyNode, rx
}

func TestScheduleIsPermutationAndRespectsDependencies(t *testing.T) {
	root, rx := buildChain(t)
	body := Body{Value: root}
	plan := Schedule(body, rx, map[*reactive.DriverNode]uint{})

	reachableSet := reachable(body.roots())
	if len(plan.Order) != len(reachableSet) {
		t.Fatalf("expected order to be a permutation of reachable set: got %d want %d", len(plan.Order), len(reachableSet))
	}

	seen := make(map[lower.Ref]int)
	for i, n := range plan.Order {
		seen[n] = i
	}
	for _, n := range plan.Order {
		for _, u := range n.Node().Upstreams() {
			if _, ok := seen[u]; !ok {
				continue
			}
			if seen[u] >= seen[n] {
				t.Fatalf("upstream %v did not schedule before %v", u, n)
			}
		}
	}
}

func TestGroupBlocksContiguous(t *testing.T) {
	root, rx := buildChain(t)
	body := Body{Value: root}
	plan := Schedule(body, rx, map[*reactive.DriverNode]uint{})
	blocks := GroupBlocks(plan.Order, plan.Masks)

	total := 0
	for _, b := range blocks {
		total += len(b.Nodes)
	}
	if total != len(plan.Order) {
		t.Fatalf("expected blocks to cover every scheduled node: got %d want %d", total, len(plan.Order))
	}
}
