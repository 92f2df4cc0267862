package abi

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sunholo/sigcore/internal/backend"
	"github.com/sunholo/sigcore/internal/iface"
	"github.com/sunholo/sigcore/internal/reactive"
	"github.com/sunholo/sigcore/internal/types"
)

func sampleTable() *iface.Table {
	b := iface.NewBuilder()
	b.Argument("arg", "arg0", types.Float32())
	b.Stream("audio", "audio0", types.Float32(), iface.Rate{Mul: 48000, Div: 1}, "audio")
	return b.Build(2, 1)
}

func TestLayoutSizeIsAligned(t *testing.T) {
	l := NewLayout(sampleTable(), map[int]int{0: 16})
	if l.Size()%32 != 0 {
		t.Fatalf("instance size %d not aligned to 32", l.Size())
	}
	if l.StateBytes != 16+8 {
		t.Fatalf("state bytes = %d, want 24 (16-byte buffer slot + 1 word slot)", l.StateBytes)
	}
}

func TestSymbolOffsetsFollowStateAndMask(t *testing.T) {
	table := sampleTable()
	l := NewLayout(table, nil)
	first, err := l.SymbolOffset(0)
	if err != nil {
		t.Fatalf("SymbolOffset(0): %v", err)
	}
	want := uint64(l.StateBytes + l.MaskBytes)
	if first != want {
		t.Fatalf("first symbol offset = %d, want %d", first, want)
	}
	second, _ := l.SymbolOffset(1)
	if second != first+8 {
		t.Fatalf("symbol slots must be pointer-spaced: %d then %d", first, second)
	}
	if _, err := l.SymbolOffset(2); err == nil {
		t.Fatalf("expected out-of-range error for symbol index 2")
	}
}

func TestBuildMetadataRoundTripsAsJSON(t *testing.T) {
	table := sampleTable()
	layout := NewLayout(table, nil)
	matrix := reactive.ActivationMatrix{Superclock: 480, VectorLength: 16}
	m := Build("osc", table, layout, matrix, false)

	if m.Version != MetadataVersion {
		t.Fatalf("version = %d, want %d", m.Version, MetadataVersion)
	}
	if m.Entries.Evaluate != "osc_evaluate" {
		t.Fatalf("evaluate entry = %q", m.Entries.Evaluate)
	}

	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded ClassMetadata
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Size != m.Size || decoded.Name != "osc" {
		t.Fatalf("round trip lost fields: %+v", decoded)
	}
	if len(decoded.Symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(decoded.Symbols))
	}
}

func TestBuildOmitsEvaluateWhenFlagged(t *testing.T) {
	table := sampleTable()
	m := Build("osc", table, NewLayout(table, nil), reactive.ActivationMatrix{}, true)
	if m.Entries.Evaluate != "" {
		t.Fatalf("evaluate entry should be omitted, got %q", m.Entries.Evaluate)
	}
}

func TestDescribeTypeShapes(t *testing.T) {
	cases := []struct {
		ty   *types.Type
		want string
	}{
		{types.Float32(), `"Float32"`},
		{types.Vector(types.ElemFloat32, 4), `{"vector":"Float32","width":4}`},
		{types.Tuple(types.Int32(), types.Nil()), `{"pair":["Int32","Nil"]}`},
		{types.Union(types.Int32(), types.Float32()), `{"union":["Int32","Float32"]}`},
		{types.UserType("Osc", types.Float64()), `{"user":"Osc","content":"Float64"}`},
	}
	for _, c := range cases {
		got := string(DescribeType(c.ty))
		if got != c.want {
			t.Fatalf("DescribeType(%v) = %s, want %s", c.ty.Kind(), got, c.want)
		}
		if !json.Valid([]byte(got)) {
			t.Fatalf("DescribeType(%v) is not valid JSON: %s", c.ty.Kind(), got)
		}
	}
}

func TestEmitEntryPointsDeclaresSurface(t *testing.T) {
	table := sampleTable()
	layout := NewLayout(table, nil)
	matrix := reactive.ActivationMatrix{
		Entries: []reactive.ActivationEntry{
			{Driver: &reactive.DriverNode{ID: "audio"}, Multiplier: 48000, Divisor: 1},
		},
		Superclock: 480,
	}
	m := Build("osc", table, layout, matrix, false)

	b := backend.NewNativeBackend()
	if err := EmitEntryPoints(b, m, layout, false); err != nil {
		t.Fatalf("EmitEntryPoints: %v", err)
	}
	out := string(b.Finish().Bytes())
	for _, sym := range []string{"osc_get_size", "osc_get_symbol_offset", "osc_get_value", "osc_set_configuration_slot", "osc_get_class_data", "osc_tick_audio"} {
		if !strings.Contains(out, sym) {
			t.Fatalf("emitted output missing %s:\n%s", sym, out)
		}
	}
}
