package pipeline

import (
	"math/big"
	"strings"
	"testing"

	"github.com/sunholo/sigcore/internal/backend"
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/types"
)

func buildIdentityCall(r *graph.Region) graph.Ref {
	body := r.NewArgument(graph.Pos{})
	form := r.NewLambda(graph.Pos{}, nil, body, nil)
	fnSet := r.NewFunctionSet(graph.Pos{}, "identity", []graph.Ref{form}, nil)
	arg := r.NewArgument(graph.Pos{})
	return r.NewEvaluate(graph.Pos{}, "identity", fnSet, arg)
}

func buildRingBufferCall(r *graph.Region) graph.Ref {
	rb, _ := r.NewRingBuffer(graph.Pos{}, 4, float32(0))
	placeholder := r.NewCycle(graph.Pos{}, rb)
	one := r.NewConstant(graph.Pos{}, float32(1))
	recursiveInput := r.NewNative(graph.Pos{}, "Add", rb, one)
	r.PatchCycle(placeholder, recursiveInput)
	return placeholder
}

func TestCompileScalarIdentity(t *testing.T) {
	r := graph.NewRegion(nil)
	eval := buildIdentityCall(r)
	r.Seal()

	res, err := Compile(Request{Root: eval, ArgType: types.Float32()})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.TypedRoot.Node() == nil {
		t.Fatalf("expected a typed root")
	}
	if res.Symbols == nil {
		t.Fatalf("expected a symbol table")
	}
}

func TestCompileInvariantFailureSurfacesReport(t *testing.T) {
	r := graph.NewRegion(nil)
	// An Evaluate with neither a function nor an argument expression,
	// outside any function body, has no callee to resolve and must surface
	// a FatalFailure through Compile's diagnostic wrapping.
	bad := r.NewEvaluate(graph.Pos{}, "bad", graph.Ref{}, graph.Ref{})
	r.Seal()

	_, err := Compile(Request{Root: bad, ArgType: types.Nil()})
	if err == nil {
		t.Fatalf("expected a failure")
	}
}

func TestCompileRingBufferProducesStateSlot(t *testing.T) {
	r := graph.NewRegion(nil)
	rbCall := buildRingBufferCall(r)
	r.Seal()

	res, err := Compile(Request{Root: rbCall, ArgType: types.Nil()})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Symbols.StateSlotCount == 0 {
		t.Fatalf("expected at least one state slot for the ring buffer's read position")
	}
}

func TestCompileAndEmitAcrossAllBackends(t *testing.T) {
	r := graph.NewRegion(nil)
	twoArg := r.NewArgument(graph.Pos{})
	two := r.NewConstant(graph.Pos{}, big.NewRat(2, 1))
	_ = two
	form := r.NewLambda(graph.Pos{}, nil, twoArg, nil)
	fnSet := r.NewFunctionSet(graph.Pos{}, "id", []graph.Ref{form}, nil)
	arg := r.NewArgument(graph.Pos{})
	eval := r.NewEvaluate(graph.Pos{}, "id", fnSet, arg)
	r.Seal()

	res, err := Compile(Request{Root: eval, ArgType: types.Float32()})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	backends := []backend.Backend{backend.NewNativeBackend(), backend.NewWasmBackend(), backend.NewWaveCoreBackend()}
	for _, b := range backends {
		art := Emit(b, res, "entry")
		out := string(art.Bytes())
		for _, want := range []string{"sizeof_entry", "entry_initialize", "entry_evaluate"} {
			if !strings.Contains(out, want) {
				t.Fatalf("%s: expected %s in output:\n%s", b.Name(), want, out)
			}
		}
	}
}

func TestEmitInstanceProducesMetadata(t *testing.T) {
	r := graph.NewRegion(nil)
	eval := buildIdentityCall(r)
	r.Seal()

	res, err := Compile(Request{Root: eval, ArgType: types.Float32()})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b := backend.NewNativeBackend()
	art, meta, err := EmitInstance(b, res, nil, "osc")
	if err != nil {
		t.Fatalf("EmitInstance: %v", err)
	}
	if meta.Size == 0 || meta.Size%32 != 0 {
		t.Fatalf("instance size %d must be nonzero and 32-aligned", meta.Size)
	}
	out := string(art.Bytes())
	for _, want := range []string{"osc_get_size", "osc_get_class_data", "osc_initialize"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in emitted output:\n%s", want, out)
		}
	}
	if len(meta.Symbols) == 0 {
		t.Fatalf("expected the argument symbol in the metadata table")
	}
}
