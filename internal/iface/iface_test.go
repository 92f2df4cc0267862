package iface

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sunholo/sigcore/internal/types"
)

func TestBuilderSortsByKey(t *testing.T) {
	tbl := NewBuilder().
		Stream("zeta", "u2", types.Float32(), Rate{Mul: 1, Div: 1}, "audio").
		Argument("alpha", "u1", types.Int32()).
		Build(3, 1)

	if len(tbl.Symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(tbl.Symbols))
	}
	if tbl.Symbols[0].Key != "alpha" || tbl.Symbols[1].Key != "zeta" {
		t.Fatalf("expected sorted order alpha,zeta; got %s,%s", tbl.Symbols[0].Key, tbl.Symbols[1].Key)
	}
	if tbl.StateSlotCount != 3 || tbl.MaskWordCount != 1 {
		t.Fatalf("unexpected counts: %+v", tbl)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tbl := NewBuilder().
		Stream("in", "u1", types.Float32(), Rate{Mul: 1, Div: 480}, "audio").
		Configuration("gain", "u2", types.Float32()).
		Build(5, 2)

	buf := tbl.Encode()
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// The wire shape carries loader-facing fields only; Type payloads stay
	// behind, so the expected rows have their Type cleared.
	want := make([]SymbolEntry, len(tbl.Symbols))
	copy(want, tbl.Symbols)
	for i := range want {
		want[i].Type = nil
	}
	typeEq := cmp.Comparer(types.Equal)
	if diff := cmp.Diff(want, got.Symbols, typeEq); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got.StateSlotCount != tbl.StateSlotCount || got.MaskWordCount != tbl.MaskWordCount {
		t.Fatalf("counts mismatch: want (%d,%d) got (%d,%d)", tbl.StateSlotCount, tbl.MaskWordCount, got.StateSlotCount, got.MaskWordCount)
	}
}

func TestByKey(t *testing.T) {
	tbl := NewBuilder().Argument("a", "u1", types.Int32()).Build(0, 0)
	m := tbl.ByKey()
	if _, ok := m["a"]; !ok {
		t.Fatalf("expected key a in index")
	}
}
