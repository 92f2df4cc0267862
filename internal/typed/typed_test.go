package typed

import (
	"testing"

	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/types"
)

func TestCompileDispatchMergesResultTypes(t *testing.T) {
	r := NewRegion()
	union := types.Union(types.Int32(), types.Float32())
	disc := r.NewArgument(graph.Ref{}, union)

	intBranch := r.NewConstant(graph.Ref{}, types.Int32(), int32(1))
	floatBranch := r.NewConstant(graph.Ref{}, types.Float32(), float32(1))

	sw := CompileDispatch(r, graph.Ref{}, disc, union, []Branch{
		{VariantIndex: 0, Body: intBranch, ResultType: types.Int32()},
		{VariantIndex: 1, Body: floatBranch, ResultType: types.Float32()},
	})

	node := sw.Node()
	if node.Kind() != KindSwitch {
		t.Fatal("expected Switch kind")
	}
	if !types.Equal(node.Result, types.Union(types.Int32(), types.Float32())) {
		t.Fatalf("expected merged union result, got %v", node.Result)
	}
}

func TestCompileDispatchPanicsOnNonExhaustive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-exhaustive dispatch")
		}
	}()
	r := NewRegion()
	union := types.Union(types.Int32(), types.Float32())
	disc := r.NewArgument(graph.Ref{}, union)
	intBranch := r.NewConstant(graph.Ref{}, types.Int32(), int32(1))
	CompileDispatch(r, graph.Ref{}, disc, union, []Branch{
		{VariantIndex: 0, Body: intBranch, ResultType: types.Int32()},
	})
}

func TestSchedPriorityDefaults(t *testing.T) {
	r := NewRegion()
	c := r.NewConstant(graph.Ref{}, types.Int32(), int32(1))
	if c.Node().SchedPriority() != -1 {
		t.Fatal("constants should default to priority -1")
	}
	n := r.NewNative(graph.Ref{}, "Add", types.Int32(), c, c)
	if n.Node().SchedPriority() != 1 {
		t.Fatal("native ops should default to priority +1")
	}
}
