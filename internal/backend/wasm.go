package backend

import (
	"fmt"
	"strings"

	"github.com/sunholo/sigcore/internal/types"
)

// WasmBackend is the Binaryen-flavoured reference target. Binaryen's
// actual API builds an
// expression tree via its C bindings; this stand-in emits equivalent
// s-expression-style WAT text into an in-memory Artifact, since vendoring
// the real Binaryen library is out of scope for this core.
type WasmBackend struct {
	funcs   []*wasmFunc
	globals []string
	interns map[uintptr][]byte
	tmp     int
}

func NewWasmBackend() *WasmBackend { return &WasmBackend{interns: make(map[uintptr][]byte)} }

func (b *WasmBackend) Name() string { return "wasm-binaryen" }

type wasmType string

func (b *WasmBackend) IntType(bits int) TypeToken {
	if bits <= 32 {
		return wasmType("i32")
	}
	return wasmType("i64")
}

func (b *WasmBackend) FloatType(bits int) TypeToken {
	if bits <= 32 {
		return wasmType("f32")
	}
	return wasmType("f64")
}

func (b *WasmBackend) PointerType(elem TypeToken) TypeToken { return wasmType("i32") } // wasm32 linear memory

func (b *WasmBackend) TypeOf(t *types.Type) TypeToken {
	bits, isFloat := TokenForType(t)
	if isFloat {
		return b.FloatType(bits)
	}
	return b.IntType(bits)
}

type wasmFunc struct {
	name   string
	params []TypeToken
	result TypeToken
	body   []string
}

func (b *WasmBackend) DeclareFunction(name string, params []TypeToken, result TypeToken) FuncToken {
	fn := &wasmFunc{name: name, params: params, result: result}
	b.funcs = append(b.funcs, fn)
	return fn
}

func (b *WasmBackend) DefineFunction(fn FuncToken, body func(Emitter)) {
	wf := fn.(*wasmFunc)
	body(&wasmEmitter{backend: b, fn: wf})
}

func (b *WasmBackend) FinalizeFunction(fn FuncToken) {}

func (b *WasmBackend) GlobalVariable(name string, t TypeToken, initial ValueToken) ValueToken {
	b.globals = append(b.globals, fmt.Sprintf("(global $%s %v (mut))", name, t))
	return "$" + name
}

func (b *WasmBackend) GlobalImport(name string, t TypeToken) ValueToken {
	b.globals = append(b.globals, fmt.Sprintf("(import \"env\" \"%s\" (global $%s %v))", name, name, t))
	return "$" + name
}

func (b *WasmBackend) InternBlob(key uintptr, data []byte) ValueToken {
	b.interns[key] = data
	return fmt.Sprintf("(data.const %d)", key)
}

func (b *WasmBackend) Finish() Artifact {
	var sb strings.Builder
	sb.WriteString("(module\n")
	for _, g := range b.globals {
		sb.WriteString("  " + g + "\n")
	}
	for _, fn := range b.funcs {
		sb.WriteString(fmt.Sprintf("  (func $%s (result %v)\n", fn.name, fn.result))
		for _, line := range fn.body {
			sb.WriteString("    " + line + "\n")
		}
		sb.WriteString("  )\n")
	}
	sb.WriteString(")\n")
	return wasmArtifact(sb.String())
}

type wasmArtifact string

func (a wasmArtifact) Bytes() []byte { return []byte(a) }

type wasmEmitter struct {
	backend *WasmBackend
	fn      *wasmFunc
}

func (e *wasmEmitter) tmpName() string {
	e.backend.tmp++
	return fmt.Sprintf("$l%d", e.backend.tmp)
}

func (e *wasmEmitter) emit(format string, args ...interface{}) string {
	line := fmt.Sprintf(format, args...)
	e.fn.body = append(e.fn.body, line)
	return line
}

func (e *wasmEmitter) Constant(t TypeToken, bits uint64) ValueToken {
	return fmt.Sprintf("(%v.const %d)", t, bits)
}

func (e *wasmEmitter) Local(t TypeToken, name string) ValueToken {
	e.emit("(local $%s %v)", name, t)
	return "$" + name
}

func (e *wasmEmitter) Arith(op string, lhs, rhs ValueToken) ValueToken {
	return fmt.Sprintf("(%s %v %v)", op, lhs, rhs)
}

func (e *wasmEmitter) Compare(op string, lhs, rhs ValueToken) ValueToken {
	return fmt.Sprintf("(%s %v %v)", op, lhs, rhs)
}

func (e *wasmEmitter) Bitcast(v ValueToken, to TypeToken) ValueToken {
	return fmt.Sprintf("(%v.reinterpret %v)", to, v)
}

func (e *wasmEmitter) Convert(v ValueToken, to TypeToken) ValueToken {
	return fmt.Sprintf("(%v.convert %v)", to, v)
}

func (e *wasmEmitter) Load(ptr ValueToken, t TypeToken) ValueToken {
	return fmt.Sprintf("(%v.load %v)", t, ptr)
}

func (e *wasmEmitter) Store(ptr, value ValueToken) {
	e.emit("(store %v %v)", ptr, value)
}

func (e *wasmEmitter) MemCopy(dst, src ValueToken, size int) {
	e.emit("(memory.copy %v %v (i32.const %d))", dst, src, size)
}

func (e *wasmEmitter) MemSet(dst ValueToken, value byte, size int) {
	e.emit("(memory.fill %v (i32.const %d) (i32.const %d))", dst, value, size)
}

func (e *wasmEmitter) If(cond ValueToken, then, els func()) {
	e.emit("(if %v (then", cond)
	then()
	e.emit(") (else")
	if els != nil {
		els()
	}
	e.emit("))")
}

func (e *wasmEmitter) Loop(body func(brk LoopLabel)) {
	e.emit("(loop $L")
	body("$L")
	e.emit("(br $L))")
}

func (e *wasmEmitter) Break(label LoopLabel) { e.emit("(br %v)", label) }

func (e *wasmEmitter) Switch(disc ValueToken, cases map[int]func(), fallback func()) {
	e.emit("(block (br_table %v)", disc)
	for i, fn := range cases {
		e.emit(";; case %d", i)
		fn()
	}
	if fallback != nil {
		fallback()
	}
	e.emit(")")
}

func (e *wasmEmitter) TailCall(fn FuncToken, args []ValueToken) ValueToken {
	e.emit("(return_call $%s %v)", fn.(*wasmFunc).name, args)
	return nil
}

func (e *wasmEmitter) Call(fn FuncToken, args []ValueToken) ValueToken {
	return fmt.Sprintf("(call $%s %v)", fn.(*wasmFunc).name, args)
}

func (e *wasmEmitter) ExternalCall(name string, args []ValueToken, result TypeToken) ValueToken {
	return fmt.Sprintf("(call $%s %v)", name, args)
}

func (e *wasmEmitter) SaveStackPointer() ValueToken {
	return e.tmpName()
}

func (e *wasmEmitter) RestoreStackPointer(saved ValueToken) {
	e.emit("(global.set $__stack_pointer %v)", saved)
}

func (e *wasmEmitter) Return(v ValueToken) { e.emit("(return %v)", v) }
