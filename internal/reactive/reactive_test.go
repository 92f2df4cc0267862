package reactive

import (
	"testing"

	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// TestPureNodeIsStaticallyActive checks that a node built only from
// Argument/Constant/Native upstreams (no ring buffer anywhere in its
// ancestry) gets no reactivity assignment at all.
func TestPureNodeIsStaticallyActive(t *testing.T) {
	r := typed.NewRegion()
	arg := r.NewArgument(graph.Ref{}, types.Float32())
	one := r.NewConstant(graph.Ref{}, types.Float32(), float32(1))
	add := r.NewNative(graph.Ref{}, "Add", types.Float32(), arg, one)

	a, boundaries := Analyze(add)
	if a.Reactivity(add) != nil {
		t.Fatalf("expected a pure node to remain statically active, got %v", a.Reactivity(add))
	}
	if len(boundaries) != 0 {
		t.Fatalf("expected no boundaries for a pure chain, got %d", len(boundaries))
	}
}

// TestRingBufferImposesDriver checks that a ring buffer is assigned its own
// DriverNode and that it is the only driver discovered.
func TestRingBufferImposesDriver(t *testing.T) {
	r := typed.NewRegion()
	rb := r.NewRingBufferPlaceholder(graph.Ref{}, 4, float32(0), types.Float32())
	one := r.NewConstant(graph.Ref{}, types.Float32(), float32(1))
	feedback := r.NewNative(graph.Ref{}, "Add", types.Float32(), rb, one)
	r.PatchRingBufferInput(rb, feedback)

	a, _ := Analyze(rb)
	react := a.Reactivity(rb)
	if react == nil {
		t.Fatalf("expected the ring buffer to impose its own driver")
	}
	if _, ok := react.(*DriverNode); !ok {
		t.Fatalf("expected a *DriverNode, got %T", react)
	}
	if len(a.Drivers()) != 1 {
		t.Fatalf("expected exactly one discovered driver, got %d", len(a.Drivers()))
	}
}

// TestBoundaryInsertedAcrossDifferentClocks checks that combining two
// *different* ring buffers inside a Native yields a FusedSet and records a
// boundary on each ring-buffer edge into it.
func TestBoundaryInsertedAcrossDifferentClocks(t *testing.T) {
	r := typed.NewRegion()
	rbA := r.NewRingBufferPlaceholder(graph.Ref{}, 4, float32(0), types.Float32())
	r.PatchRingBufferInput(rbA, rbA)
	rbB := r.NewRingBufferPlaceholder(graph.Ref{}, 8, float32(0), types.Float32())
	r.PatchRingBufferInput(rbB, rbB)
	mix := r.NewNative(graph.Ref{}, "Add", types.Float32(), rbA, rbB)

	a, boundaries := Analyze(mix)
	if _, ok := a.Reactivity(mix).(*FusedSet); !ok {
		t.Fatalf("expected a fused set combining two distinct drivers, got %T", a.Reactivity(mix))
	}
	if len(boundaries) != 2 {
		t.Fatalf("expected a boundary on each ring-buffer edge into the fused Native, got %d", len(boundaries))
	}
}

func TestActivationMatrixSuperclockAndVectorLength(t *testing.T) {
	a := &Analysis{nodeReactivity: map[typed.Ref]Node{}, driverIndex: map[driverKey]*DriverNode{}}
	a.internDriver("audio", 1, 1, ClassUser, nil)
	a.internDriver("control", 1, 480, ClassUser, nil)

	m := BuildActivationMatrix(a)
	if m.Superclock != 480 {
		t.Fatalf("expected superclock 480 (lcm of driver divisors), got %d", m.Superclock)
	}
	if m.VectorLength < 1 || m.VectorLength > maxVectorLength || 480%int64(m.VectorLength) != 0 {
		t.Fatalf("expected a vector length dividing the superclock and capped at %d, got %d", maxVectorLength, m.VectorLength)
	}
}

func TestMaskForDistinguishesDrivers(t *testing.T) {
	a := &Analysis{nodeReactivity: map[typed.Ref]Node{}, driverIndex: map[driverKey]*DriverNode{}}
	d1 := a.internDriver("audio", 1, 1, ClassUser, nil)
	d2 := a.internDriver("control", 1, 480, ClassUser, nil)
	index := map[*DriverNode]uint{d1: 0, d2: 1}

	m1 := MaskFor(d1, index)
	m2 := MaskFor(d2, index)
	if m1.Equal(m2) {
		t.Fatalf("expected distinct drivers to produce distinct masks")
	}
	if MaskFor(nil, index).Equal(m1) {
		t.Fatalf("expected the statically-active mask to differ from any driver's mask")
	}
	if !MaskFor(nil, index).Empty() {
		t.Fatalf("expected the statically-active mask to be empty")
	}
}
