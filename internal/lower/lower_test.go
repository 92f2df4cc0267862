package lower

import (
	"testing"

	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/reactive"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

func TestSideEffectTransformLowersRingBuffer(t *testing.T) {
	tr := typed.NewRegion()
	rb := tr.NewRingBufferPlaceholder(graph.Ref{}, 4, float32(0), types.Float32())
	one := tr.NewConstant(graph.Ref{}, types.Float32(), float32(1))
	feedback := tr.NewNative(graph.Ref{}, "Add", types.Float32(), rb, one)
	tr.PatchRingBufferInput(rb, feedback)

	res := SideEffectTransform(rb, nil)
	if res.Value.Node().Kind() != KindDereference {
		t.Fatalf("expected the ring buffer's lowered value to be a Dereference, got %v", res.Value.Node().Kind())
	}
	if len(res.Effects) != 2 {
		t.Fatalf("expected a Copy and a SetSlot effect, got %d", len(res.Effects))
	}
	if res.Effects[0].Node().Kind() != KindCopy {
		t.Fatalf("expected the first effect to be the Copy store, got %v", res.Effects[0].Node().Kind())
	}
	if res.Effects[1].Node().Kind() != KindSetSlot {
		t.Fatalf("expected the second effect to be the position SetSlot, got %v", res.Effects[1].Node().Kind())
	}
}

func TestSideEffectTransformInsertsBoundaryBuffer(t *testing.T) {
	tr := typed.NewRegion()
	rb := tr.NewRingBufferPlaceholder(graph.Ref{}, 4, float32(0), types.Float32())
	tr.PatchRingBufferInput(rb, rb)
	one := tr.NewConstant(graph.Ref{}, types.Float32(), float32(1))
	sink := tr.NewNative(graph.Ref{}, "Add", types.Float32(), rb, one)

	a, boundaries := reactive.Analyze(sink)
	_ = a
	res := SideEffectTransform(sink, boundaries)
	sinkNode := res.Value.Node()
	if sinkNode.Kind() != KindPassthrough {
		t.Fatalf("expected the sink Native to carry over as a Passthrough, got %v", sinkNode.Kind())
	}
	foundBoundary := false
	for _, u := range sinkNode.Upstreams() {
		if u.Node().Kind() == KindBoundaryBuffer {
			foundBoundary = true
		}
	}
	if !foundBoundary {
		t.Fatalf("expected a BoundaryBuffer on the statically-active constant's edge into the ring-buffer-driven native")
	}
}

func TestElisionFoldsPairReconstruction(t *testing.T) {
	tr := typed.NewRegion()
	x := tr.NewArgument(graph.Ref{}, types.Tuple(types.Float32(), types.Nil()))
	fst := tr.NewFirst(graph.Ref{}, x, types.Float32())
	rst := tr.NewRest(graph.Ref{}, x, types.Nil())
	pair := tr.NewPair(graph.Ref{}, fst, rst, types.Tuple(types.Float32(), types.Nil()))

	res := SideEffectTransform(pair, nil)
	elided := Elide(res)
	if elided.Value.Node().Kind() != KindPassthrough || elided.Value.Node().Typed != x {
		t.Fatalf("expected Pair(First(x), Rest(x)) to fold to x, got %v", elided.Value.Node().Kind())
	}
}

func TestElisionIsIdempotent(t *testing.T) {
	tr := typed.NewRegion()
	rb := tr.NewRingBufferPlaceholder(graph.Ref{}, 4, float32(0), types.Float32())
	one := tr.NewConstant(graph.Ref{}, types.Float32(), float32(1))
	feedback := tr.NewNative(graph.Ref{}, "Add", types.Float32(), rb, one)
	tr.PatchRingBufferInput(rb, feedback)

	res := SideEffectTransform(rb, nil)
	once := Elide(res)
	twice := Elide(once)

	if once.Value.Node().Kind() != twice.Value.Node().Kind() {
		t.Fatalf("expected a second elision pass to be a no-op, got %v vs %v", once.Value.Node().Kind(), twice.Value.Node().Kind())
	}
	if len(once.Effects) != len(twice.Effects) {
		t.Fatalf("expected effect count to be stable across repeated elision, got %d vs %d", len(once.Effects), len(twice.Effects))
	}
}
