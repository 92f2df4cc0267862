package backend

import (
	"strings"
	"testing"

	"github.com/sunholo/sigcore/internal/types"
)

func exerciseBackend(t *testing.T, b Backend) string {
	t.Helper()
	f32 := b.TypeOf(types.Float32())
	fn := b.DeclareFunction("identity", []TypeToken{f32}, f32)
	b.DefineFunction(fn, func(e Emitter) {
		c := e.Constant(f32, 0)
		sum := e.Arith("add", c, c)
		e.If(e.Compare("eq", sum, c), func() {
			e.Return(sum)
		}, func() {
			e.Return(c)
		})
	})
	b.FinalizeFunction(fn)
	out := b.Finish().Bytes()
	if len(out) == 0 {
		t.Fatalf("%s: expected non-empty emitted artifact", b.Name())
	}
	return string(out)
}

func TestAllBackendsImplementInterface(t *testing.T) {
	backends := []Backend{NewNativeBackend(), NewWasmBackend(), NewWaveCoreBackend()}
	for _, b := range backends {
		out := exerciseBackend(t, b)
		if !strings.Contains(out, "identity") {
			t.Fatalf("%s: expected emitted function name in output:\n%s", b.Name(), out)
		}
	}
}

func TestTokenForTypeVector(t *testing.T) {
	bits, isFloat := TokenForType(types.Vector(types.ElemFloat32, 4))
	if !isFloat || bits != 128 {
		t.Fatalf("expected 128-bit float vector, got bits=%d float=%v", bits, isFloat)
	}
}
