package backend

import (
	"fmt"
	"strings"

	"github.com/sunholo/sigcore/internal/types"
)

// WaveCoreBackend is the domain-specific DSP-hardware reference target.
// Real WaveCore emission targets a fixed hardware instruction set
// unavailable here; this stand-in emits a flat opcode listing
// sized to that hardware's native word (always 32-bit float/fixed lanes),
// confirming the shared front end needs nothing from the other two
// backends beyond this package's Backend interface.
type WaveCoreBackend struct {
	funcs   []*waveFunc
	globals []string
	interns map[uintptr][]byte
	tmp     int
}

func NewWaveCoreBackend() *WaveCoreBackend { return &WaveCoreBackend{interns: make(map[uintptr][]byte)} }

func (b *WaveCoreBackend) Name() string { return "wavecore" }

type waveType struct{ lanes int }

func (t waveType) String() string { return fmt.Sprintf("f32x%d", t.lanes) }

// WaveCore hardware only natively supports 32-bit lanes; IntType/FloatType
// both normalise to the nearest lane-count regardless of requested width,
// matching the hardware's fixed native word.
func (b *WaveCoreBackend) IntType(bits int) TypeToken   { return waveType{lanes: lanesFor(bits)} }
func (b *WaveCoreBackend) FloatType(bits int) TypeToken { return waveType{lanes: lanesFor(bits)} }
func (b *WaveCoreBackend) PointerType(elem TypeToken) TypeToken { return waveType{lanes: 1} }

func lanesFor(bits int) int {
	if bits <= 32 {
		return 1
	}
	return (bits + 31) / 32
}

func (b *WaveCoreBackend) TypeOf(t *types.Type) TypeToken {
	bits, _ := TokenForType(t)
	return b.FloatType(bits)
}

type waveFunc struct {
	name   string
	params []TypeToken
	result TypeToken
	body   []string
}

func (b *WaveCoreBackend) DeclareFunction(name string, params []TypeToken, result TypeToken) FuncToken {
	fn := &waveFunc{name: name, params: params, result: result}
	b.funcs = append(b.funcs, fn)
	return fn
}

func (b *WaveCoreBackend) DefineFunction(fn FuncToken, body func(Emitter)) {
	wf := fn.(*waveFunc)
	body(&waveEmitter{backend: b, fn: wf})
}

func (b *WaveCoreBackend) FinalizeFunction(fn FuncToken) {}

func (b *WaveCoreBackend) GlobalVariable(name string, t TypeToken, initial ValueToken) ValueToken {
	b.globals = append(b.globals, fmt.Sprintf("GLOBAL %s : %v", name, t))
	return "g." + name
}

func (b *WaveCoreBackend) GlobalImport(name string, t TypeToken) ValueToken {
	b.globals = append(b.globals, fmt.Sprintf("EXTERN %s : %v", name, t))
	return "g." + name
}

func (b *WaveCoreBackend) InternBlob(key uintptr, data []byte) ValueToken {
	b.interns[key] = data
	return fmt.Sprintf("ASSET[%d]", key)
}

func (b *WaveCoreBackend) Finish() Artifact {
	var sb strings.Builder
	for _, g := range b.globals {
		sb.WriteString(g + "\n")
	}
	for _, fn := range b.funcs {
		sb.WriteString(fmt.Sprintf("SUB %s -> %v\n", fn.name, fn.result))
		for _, line := range fn.body {
			sb.WriteString("  " + line + "\n")
		}
		sb.WriteString("ENDSUB\n")
	}
	return waveArtifact(sb.String())
}

type waveArtifact string

func (a waveArtifact) Bytes() []byte { return []byte(a) }

type waveEmitter struct {
	backend *WaveCoreBackend
	fn      *waveFunc
	reg     int
}

func (e *waveEmitter) regName() string {
	e.reg++
	return fmt.Sprintf("R%d", e.reg)
}

func (e *waveEmitter) emit(format string, args ...interface{}) string {
	line := fmt.Sprintf(format, args...)
	e.fn.body = append(e.fn.body, line)
	return line
}

func (e *waveEmitter) Constant(t TypeToken, bits uint64) ValueToken {
	r := e.regName()
	e.emit("%s = LOADI %d", r, bits)
	return r
}

func (e *waveEmitter) Local(t TypeToken, name string) ValueToken {
	e.emit("ALLOC %s : %v", name, t)
	return name
}

func (e *waveEmitter) Arith(op string, lhs, rhs ValueToken) ValueToken {
	r := e.regName()
	e.emit("%s = %s %v, %v", r, strings.ToUpper(op), lhs, rhs)
	return r
}

func (e *waveEmitter) Compare(op string, lhs, rhs ValueToken) ValueToken {
	r := e.regName()
	e.emit("%s = CMP.%s %v, %v", r, strings.ToUpper(op), lhs, rhs)
	return r
}

func (e *waveEmitter) Bitcast(v ValueToken, to TypeToken) ValueToken {
	r := e.regName()
	e.emit("%s = BITCAST %v -> %v", r, v, to)
	return r
}

func (e *waveEmitter) Convert(v ValueToken, to TypeToken) ValueToken {
	r := e.regName()
	e.emit("%s = CONVERT %v -> %v", r, v, to)
	return r
}

func (e *waveEmitter) Load(ptr ValueToken, t TypeToken) ValueToken {
	r := e.regName()
	e.emit("%s = LOAD %v", r, ptr)
	return r
}

func (e *waveEmitter) Store(ptr, value ValueToken) { e.emit("STORE %v, %v", ptr, value) }

func (e *waveEmitter) MemCopy(dst, src ValueToken, size int) {
	e.emit("MEMCPY %v, %v, %d", dst, src, size)
}

func (e *waveEmitter) MemSet(dst ValueToken, value byte, size int) {
	e.emit("MEMSET %v, %d, %d", dst, value, size)
}

func (e *waveEmitter) If(cond ValueToken, then, els func()) {
	e.emit("PREDICATE %v", cond)
	then()
	e.emit("PREDICATE.NOT %v", cond)
	if els != nil {
		els()
	}
	e.emit("PREDICATE.END")
}

func (e *waveEmitter) Loop(body func(brk LoopLabel)) {
	e.emit("LOOP:")
	body("LOOP.END")
	e.emit("JMP LOOP")
	e.emit("LOOP.END:")
}

func (e *waveEmitter) Break(label LoopLabel) { e.emit("JMP %v", label) }

func (e *waveEmitter) Switch(disc ValueToken, cases map[int]func(), fallback func()) {
	e.emit("DISPATCH %v", disc)
	for i, fn := range cases {
		e.emit("CASE %d:", i)
		fn()
	}
	e.emit("DEFAULT:")
	if fallback != nil {
		fallback()
	}
}

// TailCall degenerates to a predicated self-jump on WaveCore hardware,
// matching the "Recursive subroutines with a bounded counter are
// emitted as a predicated self-call that degenerates to the tail form on
// the terminating iteration" for a target with no call stack at all.
func (e *waveEmitter) TailCall(fn FuncToken, args []ValueToken) ValueToken {
	e.emit("JMP.SELF %s %v", fn.(*waveFunc).name, args)
	return nil
}

func (e *waveEmitter) Call(fn FuncToken, args []ValueToken) ValueToken {
	r := e.regName()
	e.emit("%s = CALL %s %v", r, fn.(*waveFunc).name, args)
	return r
}

func (e *waveEmitter) ExternalCall(name string, args []ValueToken, result TypeToken) ValueToken {
	r := e.regName()
	e.emit("%s = XCALL %s %v -> %v", r, name, args, result)
	return r
}

func (e *waveEmitter) SaveStackPointer() ValueToken    { return e.regName() }
func (e *waveEmitter) RestoreStackPointer(v ValueToken) { e.emit("SP.RESTORE %v", v) }

func (e *waveEmitter) Return(v ValueToken) { e.emit("RET %v", v) }
