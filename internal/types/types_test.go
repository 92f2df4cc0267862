package types

import "testing"

func TestHashStability(t *testing.T) {
	cases := []*Type{
		Nil(),
		True(),
		Float32(),
		Int64(),
		Vector(ElemFloat32, 4),
		InvariantInt(42),
		InvariantString("hello"),
		Tuple(Float32(), Nil()),
		List(Float32(), Int32(), Int64()),
		UserType("Function", Nil()),
		Union(Int32(), Float32()),
		ArrayView(Float32()),
	}

	for _, tc := range cases {
		h1 := HashOf(tc)
		h2 := HashOf(tc)
		if h1 != h2 {
			t.Errorf("hash not stable for %v: %v != %v", tc.Kind(), h1, h2)
		}
	}
}

func TestHashEqualImpliesEqual(t *testing.T) {
	a := List(Float32(), Int32())
	b := List(Float32(), Int32())
	if !Equal(a, b) {
		t.Fatal("expected structural equality")
	}
	if HashOf(a) != HashOf(b) {
		t.Fatal("equal types must hash equal")
	}
}

func TestArity(t *testing.T) {
	if Arity(Float32()) != 1 {
		t.Fatal("scalar arity must be 1")
	}
	chain := Tuple(Float32(), Tuple(Int32(), Int64()))
	if Arity(chain) != 3 {
		t.Fatalf("expected arity 3 for a bare cons chain, got %d", Arity(chain))
	}
	// A nil-terminated list counts its terminator as the final element.
	l := List(Float32(), Int32(), Int64())
	if Arity(l) != 4 {
		t.Fatalf("expected arity 4, got %d", Arity(l))
	}
}

func TestCountLeadingElements(t *testing.T) {
	l := List(Float32(), Float32(), Float32(), Int32())
	n := CountLeadingElements(l, Float32())
	if n != 3 {
		t.Fatalf("expected 3 leading Float32 elements, got %d", n)
	}
}

func TestIsFixed(t *testing.T) {
	if !IsFixed(List(Float32(), Int32())) {
		t.Fatal("plain list should be fixed")
	}
	rg := RuleGenerator(struct{}{})
	if IsFixed(rg) {
		t.Fatal("RuleGenerator must not be fixed")
	}
	if IsFixed(Tuple(Float32(), rg)) {
		t.Fatal("a tuple containing a RuleGenerator anywhere must not be fixed")
	}
}

func TestSameStructuralSize(t *testing.T) {
	good := Union(Int32(), Float32())
	if !SameStructuralSize(good) {
		t.Fatal("Int32/Float32 union should have matching padded size")
	}
	bad := Union(Int32(), Int64())
	if SameStructuralSize(bad) {
		t.Fatal("Int32/Int64 union should not have matching padded size")
	}
}

func TestListIsTupleWithNilRest(t *testing.T) {
	l := List(Float32())
	if l.Kind() != KindTuple {
		t.Fatal("single-element list must be a Tuple")
	}
	if !l.Rest().IsNil() {
		t.Fatal("single-element list's rest must be Nil")
	}
}
