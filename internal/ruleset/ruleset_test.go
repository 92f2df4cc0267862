package ruleset

import (
	"math/big"
	"testing"

	"github.com/sunholo/sigcore/internal/types"
)

func TestSolveRecursionDepthHomogeneousListFold(t *testing.T) {
	// The fold's argument is the pair (xs, acc): a List<Float32,4> that
	// loses its head each step and an accumulator whose type never
	// changes. The guard empty(xs) records, against the "First" accessor,
	// that the list stayed non-nil on every step the body ran.
	list := types.List(types.Float32(), types.Float32(), types.Float32(), types.Float32())
	outer := types.Tuple(list, types.Float32())
	inner := types.Tuple(list.Rest(), types.Float32())

	scev := DeriveSCEV(outer, inner)
	if scev.Shape != ShapeProduct {
		t.Fatalf("expected ShapeProduct, got %v", scev.Shape)
	}
	if scev.Fst.Shape != ShapeTupleHeadTail || scev.Rst.Shape != ShapeFixed {
		t.Fatalf("expected (head-tail, fixed) slots, got (%v, %v)", scev.Fst.Shape, scev.Rst.Shape)
	}

	set := NewTypeRuleSet()
	gen := NewGenerator(outer, set)
	if gen.First().IsNilQuery() {
		t.Fatal("a four-element list is not nil")
	}

	check := VerifyChain(set, scev, set.Accessors())
	if n := SolveRecursionDepth(check); n != 4 {
		t.Fatalf("expected recursion depth 4, got %d", n)
	}
}

func TestProjectAccessorWalksPairs(t *testing.T) {
	v := types.Tuple(types.List(types.Float32()), types.Int32())
	if got := ProjectAccessor("First", v); got == nil || !types.Equal(got, types.List(types.Float32())) {
		t.Fatalf("First projection = %v", got)
	}
	if got := ProjectAccessor("First.Rest", v); got == nil || !got.IsNil() {
		t.Fatalf("First.Rest projection should reach the terminator, got %v", got)
	}
	if ProjectAccessor("First", types.Float32()) != nil {
		t.Fatal("projecting First through a scalar must not apply")
	}
	if ProjectAccessor("Add", v) != nil {
		t.Fatal("an arithmetic accessor step has no projection")
	}
}

func TestDeriveSCEVProductRejectsAllFixed(t *testing.T) {
	pair := types.Tuple(types.Float32(), types.Int32())
	scev := DeriveSCEV(pair, pair)
	if scev.Shape != ShapeFixed {
		t.Fatalf("identical pairs derive ShapeFixed, got %v", scev.Shape)
	}
	other := types.Tuple(types.Float32(), types.Float64())
	if got := DeriveSCEV(pair, other); got.Shape != ShapeNone {
		t.Fatalf("a slot with no derivable evolution must yield ShapeNone, got %v", got.Shape)
	}
}

func TestSolveRecursionDepthFallsBackToOne(t *testing.T) {
	set := NewTypeRuleSet()
	acc := Accessor("x")
	set.RecordNumerical(acc, nil, &Bound{Value: big.NewRat(0, 1), Open: false})
	check := func(n int64) bool {
		return set.numericHoldsAt(acc, big.NewRat(n, 1))
	}
	if got := SolveRecursionDepth(check); got != 1 {
		t.Fatalf("expected fallback depth 1, got %d", got)
	}
}

func TestGeneratorRecordsOrdinalBound(t *testing.T) {
	set := NewTypeRuleSet()
	g := NewGenerator(types.InvariantInt(3), set)
	cmp := g.OrdinalCompare(big.NewRat(5, 1))
	if cmp >= 0 {
		t.Fatal("expected 3 < 5")
	}
	if !set.numericHoldsAt(g.path, big.NewRat(4, 1)) {
		t.Fatal("4 should satisfy the recorded upper-bound rule")
	}
	if set.numericHoldsAt(g.path, big.NewRat(6, 1)) {
		t.Fatal("6 should violate the recorded upper-bound rule")
	}
}

func TestSCEVInvariantAdd(t *testing.T) {
	outer := types.InvariantInt(0)
	inner := types.InvariantInt(2)
	scev := DeriveSCEV(outer, inner)
	if scev.Shape != ShapeInvariantAdd {
		t.Fatalf("expected ShapeInvariantAdd, got %v", scev.Shape)
	}
	at3 := scev.Generalized(3)
	if at3.InvariantValue().Cmp(big.NewRat(6, 1)) != 0 {
		t.Fatalf("expected f(3) = 6, got %v", at3.InvariantValue())
	}
}
