package graph

import "testing"

func TestArenaBasicConstruction(t *testing.T) {
	r := NewRegion(nil)
	arg := r.NewArgument(Pos{})
	two := r.NewConstant(Pos{}, int64(2))
	add := r.NewNative(Pos{}, "Add", arg, two)
	r.Seal()

	if add.Node().Kind() != KindNative {
		t.Fatal("expected Native kind")
	}
	if len(add.Node().Upstreams()) != 2 {
		t.Fatal("expected 2 upstreams")
	}
}

func TestHashDeterministic(t *testing.T) {
	build := func() Hash {
		r := NewRegion(nil)
		arg := r.NewArgument(Pos{})
		two := r.NewConstant(Pos{}, int64(2))
		add := r.NewNative(Pos{}, "Add", arg, two)
		return add.Node().Hash()
	}
	h1 := build()
	h2 := build()
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %v != %v", h1, h2)
	}
}

func TestCycleMustBePatchedBeforeSeal(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic sealing region with unpatched cycle")
		}
	}()
	r := NewRegion(nil)
	rb, _ := r.NewRingBuffer(Pos{}, 4, 0.0)
	placeholder := r.NewCycle(Pos{}, rb)
	_ = placeholder
	r.Seal()
}

func TestCyclePatchedSealsCleanly(t *testing.T) {
	r := NewRegion(nil)
	rb, _ := r.NewRingBuffer(Pos{}, 4, 0.0)
	placeholder := r.NewCycle(Pos{}, rb)
	one := r.NewConstant(Pos{}, int64(1))
	recursiveInput := r.NewNative(Pos{}, "Add", rb, one)
	r.PatchCycle(placeholder, recursiveInput)
	r.Seal() // must not panic
}

func TestCopyIntoOuterRegion(t *testing.T) {
	outer := NewRegion(nil)
	inner := NewRegion(outer)
	c := inner.NewConstant(Pos{}, int64(42))
	copied := CopyInto(outer, c)
	if copied.Node().Literal != int64(42) {
		t.Fatal("expected copied literal to match")
	}
}

func TestCrossRegionUpstreamMustBeAncestor(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on an upstream from an unrelated region")
		}
	}()
	a := NewRegion(nil)
	b := NewRegion(nil)
	x := a.NewConstant(Pos{}, int64(1))
	b.NewFirst(Pos{}, x)
}
