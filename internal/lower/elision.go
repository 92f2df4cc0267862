package lower

import "github.com/sunholo/sigcore/internal/typed"

// Elide runs the copy-elision forward dataflow pass once over in,
// returning a structurally distinct Region with:
//
//   - Pair(First(x), Rest(x)) folded to x (the canonical reconstruction
//     redundancy this pass targets), checked on the underlying typed-graph
//     node a Passthrough wraps, since that is where Pair/First/Rest nodes
//     actually live.
//   - Copy(dst, src, Store, _) nodes where dst and src are the same Buffer
//     cell (store-to-self) elided entirely.
//
// Running Elide twice on its own output is idempotent:
// neither rule re-fires on a graph already in normal form, since both are
// phrased as exact structural matches that the rewrite itself removes.
func Elide(result Result) Result {
	r := NewRegion()
	// The rewrite allocates no new state, so the slot counter carries over
	// unchanged; slot indices embedded in cloned GetSlot/SetSlot nodes stay
	// valid against it.
	r.nextSlot = result.Region.nextSlot
	memo := make(map[Ref]Ref)

	var rewrite func(ref Ref) Ref
	rewrite = func(ref Ref) Ref {
		if out, ok := memo[ref]; ok {
			return out
		}
		n := ref.Node()
		if n == nil {
			return Ref{}
		}

		if folded, ok := foldPairReconstruction(n); ok {
			out := rewrite(folded)
			memo[ref] = out
			return out
		}

		ups := n.Upstreams()
		newUps := make([]Ref, len(ups))
		for i, u := range ups {
			newUps[i] = rewrite(u)
		}

		if n.kind == KindCopy && storesToSelf(n, newUps) {
			// A Store copy from a cell to itself observably does nothing;
			// its "result" for ordering purposes is simply its destination,
			// which already exists upstream.
			out := newUps[0]
			memo[ref] = out
			return out
		}

		out := cloneWith(r, n, newUps)
		memo[ref] = out
		return out
	}

	value := rewrite(result.Value)
	effects := make([]Ref, 0, len(result.Effects))
	for _, e := range result.Effects {
		if rewritten := rewrite(e); rewritten.Valid() {
			effects = append(effects, rewritten)
		}
	}
	return Result{Region: r, Value: value, Effects: effects}
}

// foldPairReconstruction recognises a Passthrough-wrapped typed Pair node
// whose two components are First(x) and Rest(x) for the same x, and
// returns x's own lowered Ref directly in place of reconstructing the pair.
func foldPairReconstruction(n *Node) (Ref, bool) {
	if n.kind != KindPassthrough || n.Typed.Node() == nil || n.Typed.Node().Kind() != typed.KindPair {
		return Ref{}, false
	}
	ups := n.Upstreams()
	if len(ups) != 2 {
		return Ref{}, false
	}
	fst, rst := ups[0].Node(), ups[1].Node()
	if fst == nil || rst == nil || fst.kind != KindPassthrough || rst.kind != KindPassthrough {
		return Ref{}, false
	}
	fstTyped, rstTyped := fst.Typed.Node(), rst.Typed.Node()
	if fstTyped == nil || rstTyped == nil {
		return Ref{}, false
	}
	if fstTyped.Kind() != typed.KindFirst || rstTyped.Kind() != typed.KindRest {
		return Ref{}, false
	}
	fstSrc, rstSrc := fstTyped.Upstreams(), rstTyped.Upstreams()
	if len(fstSrc) != 1 || len(rstSrc) != 1 || fstSrc[0] != rstSrc[0] {
		return Ref{}, false
	}
	if len(ups[0].Node().Upstreams()) != 1 || len(ups[1].Node().Upstreams()) != 1 {
		return Ref{}, false
	}
	return ups[0].Node().Upstreams()[0], true
}

func storesToSelf(n *Node, newUps []Ref) bool {
	if n.Mode != CopyStore || len(newUps) != 2 {
		return false
	}
	return samePassthroughOrigin(newUps[0], newUps[1])
}

func samePassthroughOrigin(a, b Ref) bool {
	an, bn := a.Node(), b.Node()
	if an == nil || bn == nil {
		return false
	}
	if an.kind != KindPassthrough || bn.kind != KindPassthrough {
		return a == b
	}
	return an.Typed == bn.Typed
}

func cloneWith(r *Region, n *Node, ups []Ref) Ref {
	clone := *n
	clone.upstreams = ups
	return r.alloc(&clone)
}
