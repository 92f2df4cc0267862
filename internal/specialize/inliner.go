package specialize

import "github.com/sunholo/sigcore/internal/typed"

// computeWeight sums node.weight over body's reachable typed nodes,
// memoizing by node so a value shared by several upstreams is only
// counted once.
func computeWeight(body typed.Ref) int {
	visited := make(map[typed.Ref]bool)
	var walk func(typed.Ref) int
	walk = func(r typed.Ref) int {
		if !r.Valid() || visited[r] {
			return 0
		}
		visited[r] = true
		n := r.Node()
		total := n.EffectiveWeight()
		for _, u := range n.Upstreams() {
			total += walk(u)
		}
		return total
	}
	return walk(body)
}

// hoistPureProjection implements the dataflow inliner for the
// common case: the whole result is itself a pure projection chain of the
// caller's argument (Argument, First/Rest, or a Constant) with no
// intervening Native/If/RingBuffer. Such a chain depends only on the
// caller's argument, so it is hoisted directly into the caller rather than
// packed into an out-of-line call body; ok is false when body is not
// entirely such a chain, leaving the residual for the ordinary
// FunctionCall path.
func hoistPureProjection(region *typed.Region, body, argNode typed.Ref) (typed.Ref, bool) {
	n := body.Node()
	switch n.Kind() {
	case typed.KindArgument:
		return argNode, true
	case typed.KindConstant:
		return body, true
	case typed.KindFirst:
		inner, ok := hoistPureProjection(region, n.Upstreams()[0], argNode)
		if !ok {
			return typed.Ref{}, false
		}
		return region.NewFirst(n.Origin, inner, n.Result), true
	case typed.KindRest:
		inner, ok := hoistPureProjection(region, n.Upstreams()[0], argNode)
		if !ok {
			return typed.Ref{}, false
		}
		return region.NewRest(n.Origin, inner, n.Result), true
	default:
		return typed.Ref{}, false
	}
}

// substituteArgument copy-walks body, replacing every Argument leaf with
// argNode: the inline half of the inline-vs-out-of-line decision. Nodes at
// or beyond a call boundary (FunctionCall, FunctionSequence, Switch) are
// left as-is: inlining never descends past a boundary that is itself already
// a separate compiled unit. A RingBuffer is process-wide state and is
// referenced, never duplicated.
func substituteArgument(region *typed.Region, body, argNode typed.Ref, memo map[typed.Ref]typed.Ref) typed.Ref {
	if !body.Valid() {
		return body
	}
	if out, ok := memo[body]; ok {
		return out
	}
	n := body.Node()
	var out typed.Ref
	switch n.Kind() {
	case typed.KindArgument:
		out = argNode
	case typed.KindConstant:
		out = region.NewConstant(n.Origin, n.Result, n.Literal)
	case typed.KindPair:
		ups := n.Upstreams()
		out = region.NewPair(n.Origin,
			substituteArgument(region, ups[0], argNode, memo),
			substituteArgument(region, ups[1], argNode, memo),
			n.Result)
	case typed.KindFirst:
		out = region.NewFirst(n.Origin, substituteArgument(region, n.Upstreams()[0], argNode, memo), n.Result)
	case typed.KindRest:
		out = region.NewRest(n.Origin, substituteArgument(region, n.Upstreams()[0], argNode, memo), n.Result)
	case typed.KindIf:
		ups := n.Upstreams()
		out = region.NewIf(n.Origin,
			substituteArgument(region, ups[0], argNode, memo),
			substituteArgument(region, ups[1], argNode, memo),
			substituteArgument(region, ups[2], argNode, memo),
			n.Result)
	case typed.KindNative:
		ups := n.Upstreams()
		subbed := make([]typed.Ref, len(ups))
		for i, u := range ups {
			subbed[i] = substituteArgument(region, u, argNode, memo)
		}
		out = region.NewNative(n.Origin, n.Label, n.Result, subbed...)
	default:
		// RingBuffer, FunctionCall, FunctionSequence, Switch: referenced
		// as-is rather than duplicated or descended into.
		out = body
	}
	memo[body] = out
	return out
}
