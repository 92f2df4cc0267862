package specialize

import (
	"math/big"
	"testing"

	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// buildCall wires a single-form, non-recursive function "label(body)"
// applied to a fresh top-level Argument, returning the Evaluate node ready
// to specialize.
func buildCall(r *graph.Region, label string, bodies []graph.Ref) graph.Ref {
	forms := make([]graph.Ref, len(bodies))
	for i, b := range bodies {
		forms[i] = r.NewLambda(graph.Pos{}, nil, b, nil)
	}
	fnSet := r.NewFunctionSet(graph.Pos{}, label, forms, nil)
	argCall := r.NewArgument(graph.Pos{})
	return r.NewEvaluate(graph.Pos{}, label, fnSet, argCall)
}

func TestScalarIdentitySpecializesToArgument(t *testing.T) {
	r := graph.NewRegion(nil)
	body := r.NewArgument(graph.Pos{}) // λx. x
	eval := buildCall(r, "identity", []graph.Ref{body})
	r.Seal()

	state := NewState(types.Float32(), nil)
	sp := Specialize(state, eval)

	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	if !types.Equal(sp.Result, types.Float32()) {
		t.Fatalf("expected Float32 result, got %v", sp.Result)
	}
	if sp.Node.Node().Kind() != typed.KindArgument {
		t.Fatalf("expected identity to return the Argument node directly, got %v", sp.Node.Node().Kind())
	}
}

func TestInvariantArithmeticFoldsToConstant(t *testing.T) {
	r := graph.NewRegion(nil)
	bodyArg := r.NewArgument(graph.Pos{})
	two := r.NewConstant(graph.Pos{}, big.NewRat(2, 1))
	add := r.NewNative(graph.Pos{}, "Add", bodyArg, two) // λx. Add(x, 2)
	eval := buildCall(r, "addTwo", []graph.Ref{add})
	r.Seal()

	state := NewState(types.Invariant(big.NewRat(3, 1)), nil)
	sp := Specialize(state, eval)

	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	if sp.Result.Kind() != types.KindInvariant || sp.Result.InvariantValue().Cmp(big.NewRat(5, 1)) != 0 {
		t.Fatalf("expected Invariant(5), got %v", sp.Result)
	}
	if sp.Node.Node().Kind() != typed.KindConstant {
		t.Fatalf("expected a folded constant (no runtime code), got %v", sp.Node.Node().Kind())
	}
}

func TestDispatchOnUnionEmitsSwitch(t *testing.T) {
	r := graph.NewRegion(nil)
	intForm := r.NewConstant(graph.Pos{}, int32(1))
	floatForm := r.NewConstant(graph.Pos{}, float32(1))
	eval := buildCall(r, "dispatch", []graph.Ref{intForm, floatForm})
	r.Seal()

	union := types.Union(types.Int32(), types.Float32())
	state := NewState(union, nil)
	sp := Specialize(state, eval)

	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	if sp.Node.Node().Kind() != typed.KindSwitch {
		t.Fatalf("expected Switch, got %v", sp.Node.Node().Kind())
	}
	if !types.Equal(sp.Result, union) {
		t.Fatalf("expected merged union result %v, got %v", union, sp.Result)
	}
}

func TestRingBufferFeedbackWiring(t *testing.T) {
	r := graph.NewRegion(nil)
	rb, _ := r.NewRingBuffer(graph.Pos{}, 4, float32(0))
	placeholder := r.NewCycle(graph.Pos{}, rb)
	one := r.NewConstant(graph.Pos{}, float32(1))
	recursiveInput := r.NewNative(graph.Pos{}, "Add", rb, one)
	r.PatchCycle(placeholder, recursiveInput)
	r.Seal()

	state := NewState(types.Nil(), nil)
	sp := Specialize(state, placeholder)

	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	n := sp.Node.Node()
	if n.Kind() != typed.KindRingBuffer {
		t.Fatalf("expected RingBuffer, got %v", n.Kind())
	}
	if n.BufferLen != 4 {
		t.Fatalf("expected buffer length 4, got %d", n.BufferLen)
	}
	if len(n.Upstreams()) != 1 {
		t.Fatalf("expected the feedback edge to be patched in, got %d upstreams", len(n.Upstreams()))
	}
	if !types.Equal(sp.Result, types.Float32()) {
		t.Fatalf("expected Float32 element type, got %v", sp.Result)
	}
}

func TestEvaluateOutOfLinesHeavyBody(t *testing.T) {
	r := graph.NewRegion(nil)
	chain := r.NewArgument(graph.Pos{})
	for i := 0; i < 30; i++ {
		c := r.NewConstant(graph.Pos{}, float32(1))
		chain = r.NewNative(graph.Pos{}, "Add", chain, c)
	}
	eval := buildCall(r, "chain", []graph.Ref{chain})
	r.Seal()

	state := NewState(types.Float32(), nil)
	sp := Specialize(state, eval)

	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	if sp.Node.Node().Kind() != typed.KindFunctionCall {
		t.Fatalf("expected an out-of-line FunctionCall for a body past the inline weight threshold, got %v", sp.Node.Node().Kind())
	}
	if !types.Equal(sp.Result, types.Float32()) {
		t.Fatalf("expected Float32 result, got %v", sp.Result)
	}
}

func TestInvariantComparisonSelectsBranchStatically(t *testing.T) {
	r := graph.NewRegion(nil)
	bodyArg := r.NewArgument(graph.Pos{})
	zero := r.NewConstant(graph.Pos{}, big.NewRat(0, 1))
	guard := r.NewNative(graph.Pos{}, "Eq", bodyArg, zero)
	thenC := r.NewConstant(graph.Pos{}, big.NewRat(10, 1))
	elseC := r.NewConstant(graph.Pos{}, big.NewRat(20, 1))
	body := r.NewIf(graph.Pos{}, guard, thenC, elseC)
	eval := buildCall(r, "pick", []graph.Ref{body})
	r.Seal()

	state := NewState(types.Invariant(big.NewRat(0, 1)), nil)
	sp := Specialize(state, eval)
	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	if sp.Result.Kind() != types.KindInvariant || sp.Result.InvariantValue().Cmp(big.NewRat(10, 1)) != 0 {
		t.Fatalf("expected the then-branch constant Invariant(10), got %v", sp.Result)
	}
}

// TestRecursionSolverEmitsFunctionSequence drives the whole closed-form
// machinery: a countdown function whose self-call peels 1 off an Invariant
// argument each step. Specializing it at Invariant(4) must produce a
// FunctionSequence rather than a chain of unrolled calls.
func TestRecursionSolverEmitsFunctionSequence(t *testing.T) {
	r := graph.NewRegion(nil)
	bodyArg := r.NewArgument(graph.Pos{})
	zero := r.NewConstant(graph.Pos{}, big.NewRat(0, 1))
	guard := r.NewNative(graph.Pos{}, "Eq", bodyArg, zero)
	one := r.NewConstant(graph.Pos{}, big.NewRat(1, 1))
	next := r.NewNative(graph.Pos{}, "Sub", bodyArg, one)
	// The empty function expression marks a self-call.
	recurCall := r.NewEvaluate(graph.Pos{}, "countdown", graph.Ref{}, next)
	base := r.NewConstant(graph.Pos{}, big.NewRat(0, 1))
	body := r.NewIf(graph.Pos{}, guard, base, recurCall)
	form := r.NewLambda(graph.Pos{}, nil, body, []graph.Ref{recurCall})
	fnSet := r.NewFunctionSet(graph.Pos{}, "countdown", []graph.Ref{form}, []graph.Ref{recurCall})
	top := r.NewArgument(graph.Pos{})
	eval := r.NewEvaluate(graph.Pos{}, "countdown", fnSet, top)
	r.Seal()

	state := NewState(types.Invariant(big.NewRat(4, 1)), nil)
	sp := Specialize(state, eval)
	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	n := sp.Node.Node()
	if n.Kind() != typed.KindFunctionSequence {
		t.Fatalf("expected a FunctionSequence, got %v", n.Kind())
	}
	if n.RepeatN <= 1 {
		t.Fatalf("expected a solved repeat count > 1, got %d", n.RepeatN)
	}
	if sp.Result.Kind() != types.KindInvariant || sp.Result.InvariantValue().Cmp(big.NewRat(0, 1)) != 0 {
		t.Fatalf("expected the recurrence to bottom out at Invariant(0), got %v", sp.Result)
	}
}

// TestRecursionFallsBackToUnrolledForm checks the non-solvable path: when
// the first recursive step already violates the recorded rules (depth 1),
// the call specializes form-by-form and still terminates via the static
// guard.
func TestRecursionFallsBackToUnrolledForm(t *testing.T) {
	r := graph.NewRegion(nil)
	bodyArg := r.NewArgument(graph.Pos{})
	zero := r.NewConstant(graph.Pos{}, big.NewRat(0, 1))
	guard := r.NewNative(graph.Pos{}, "Eq", bodyArg, zero)
	one := r.NewConstant(graph.Pos{}, big.NewRat(1, 1))
	next := r.NewNative(graph.Pos{}, "Sub", bodyArg, one)
	recurCall := r.NewEvaluate(graph.Pos{}, "countdown", graph.Ref{}, next)
	base := r.NewConstant(graph.Pos{}, big.NewRat(0, 1))
	body := r.NewIf(graph.Pos{}, guard, base, recurCall)
	form := r.NewLambda(graph.Pos{}, nil, body, []graph.Ref{recurCall})
	fnSet := r.NewFunctionSet(graph.Pos{}, "countdown", []graph.Ref{form}, []graph.Ref{recurCall})
	top := r.NewArgument(graph.Pos{})
	eval := r.NewEvaluate(graph.Pos{}, "countdown", fnSet, top)
	r.Seal()

	state := NewState(types.Invariant(big.NewRat(1, 1)), nil)
	sp := Specialize(state, eval)
	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	if sp.Result.Kind() != types.KindInvariant || sp.Result.InvariantValue().Cmp(big.NewRat(0, 1)) != 0 {
		t.Fatalf("expected Invariant(0), got %v", sp.Result)
	}
}

// TestSpecializationDeterministic checks that structurally identical
// generic graphs specialize to the same result type and root node kind
// under fresh, identical contexts.
func TestSpecializationDeterministic(t *testing.T) {
	build := func() Specialization {
		r := graph.NewRegion(nil)
		bodyArg := r.NewArgument(graph.Pos{})
		two := r.NewConstant(graph.Pos{}, big.NewRat(2, 1))
		add := r.NewNative(graph.Pos{}, "Add", bodyArg, two)
		eval := buildCall(r, "addTwo", []graph.Ref{add})
		r.Seal()
		state := NewState(types.Invariant(big.NewRat(3, 1)), nil)
		return Specialize(state, eval)
	}
	a, b := build(), build()
	if a.Failed() || b.Failed() {
		t.Fatalf("unexpected failure: %v / %v", a.Result, b.Result)
	}
	if !types.Equal(a.Result, b.Result) {
		t.Fatalf("result types diverge: %v vs %v", a.Result, b.Result)
	}
	if a.Node.Node().Kind() != b.Node.Node().Kind() {
		t.Fatalf("root node kinds diverge: %v vs %v", a.Node.Node().Kind(), b.Node.Node().Kind())
	}
}

// TestListFoldSolvesToFunctionSequence drives the canonical fold through
// the whole call machinery: the argument is the pair (List<Float32,4>,
// Float32), the guard tests the list slot for emptiness, and each
// self-call peels the head into the accumulator. The solver must
// recognise the product-shaped evolution (list slot peels, accumulator
// slot held fixed) and emit a FunctionSequence repeating 4 times instead
// of unrolling.
func TestListFoldSolvesToFunctionSequence(t *testing.T) {
	r := graph.NewRegion(nil)
	bodyArg := r.NewArgument(graph.Pos{})
	xs := r.NewFirst(graph.Pos{}, bodyArg)
	acc := r.NewRest(graph.Pos{}, bodyArg)
	guard := r.NewNative(graph.Pos{}, "IsNil", xs)
	head := r.NewFirst(graph.Pos{}, xs)
	tail := r.NewRest(graph.Pos{}, xs)
	sum := r.NewNative(graph.Pos{}, "Add", head, acc)
	nextArg := r.NewPair(graph.Pos{}, tail, sum)
	recurCall := r.NewEvaluate(graph.Pos{}, "fold", graph.Ref{}, nextArg)
	body := r.NewIf(graph.Pos{}, guard, acc, recurCall)
	form := r.NewLambda(graph.Pos{}, nil, body, []graph.Ref{recurCall})
	fnSet := r.NewFunctionSet(graph.Pos{}, "fold", []graph.Ref{form}, []graph.Ref{recurCall})
	top := r.NewArgument(graph.Pos{})
	eval := r.NewEvaluate(graph.Pos{}, "fold", fnSet, top)
	r.Seal()

	T := types.NewBuilder()
	argTy := types.Tuple(T.ListOf(T.Float32(), 4), T.Float32())
	state := NewState(argTy, nil)
	sp := Specialize(state, eval)
	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	n := sp.Node.Node()
	if n.Kind() != typed.KindFunctionSequence {
		t.Fatalf("expected a FunctionSequence, got %v", n.Kind())
	}
	if n.RepeatN != 4 {
		t.Fatalf("expected repeat count 4, got %d", n.RepeatN)
	}
	if !types.Equal(sp.Result, types.Float32()) {
		t.Fatalf("expected the fold to yield Float32, got %v", sp.Result)
	}
}

// TestListFoldBottomsOutOnEmptyList checks the terminating side of the
// same fold: an empty list slot selects the accumulator branch statically
// and the call collapses to the accumulator projection.
func TestListFoldBottomsOutOnEmptyList(t *testing.T) {
	r := graph.NewRegion(nil)
	bodyArg := r.NewArgument(graph.Pos{})
	xs := r.NewFirst(graph.Pos{}, bodyArg)
	acc := r.NewRest(graph.Pos{}, bodyArg)
	guard := r.NewNative(graph.Pos{}, "IsNil", xs)
	head := r.NewFirst(graph.Pos{}, xs)
	tail := r.NewRest(graph.Pos{}, xs)
	sum := r.NewNative(graph.Pos{}, "Add", head, acc)
	nextArg := r.NewPair(graph.Pos{}, tail, sum)
	recurCall := r.NewEvaluate(graph.Pos{}, "fold", graph.Ref{}, nextArg)
	body := r.NewIf(graph.Pos{}, guard, acc, recurCall)
	form := r.NewLambda(graph.Pos{}, nil, body, []graph.Ref{recurCall})
	fnSet := r.NewFunctionSet(graph.Pos{}, "fold", []graph.Ref{form}, []graph.Ref{recurCall})
	top := r.NewArgument(graph.Pos{})
	eval := r.NewEvaluate(graph.Pos{}, "fold", fnSet, top)
	r.Seal()

	argTy := types.Tuple(types.Nil(), types.Float32())
	state := NewState(argTy, nil)
	sp := Specialize(state, eval)
	if sp.Failed() {
		t.Fatalf("unexpected failure: %v", sp.Result)
	}
	if !types.Equal(sp.Result, types.Float32()) {
		t.Fatalf("expected the accumulator type, got %v", sp.Result)
	}
	if sp.Node.Node().Kind() == typed.KindFunctionSequence {
		t.Fatal("an empty list must not emit a sequence")
	}
}
