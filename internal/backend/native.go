package backend

import (
	"fmt"
	"strings"

	"github.com/sunholo/sigcore/internal/types"
)

// NativeBackend is the SSA-producing reference target, suited for an
// LLVM-like toolchain. Rather than binding to a real LLVM C API, it
// emits a textual SSA
// instruction listing into an in-memory Artifact — enough to exercise
// every Emitter call site and to unit-test backend-agnostic passes
// against a concrete target, without vendoring a C++ toolchain dependency.
type NativeBackend struct {
	funcs   []*nativeFunc
	globals []string
	interns map[uintptr][]byte
	tmp     int
}

// NewNativeBackend creates an empty NativeBackend module.
func NewNativeBackend() *NativeBackend {
	return &NativeBackend{interns: make(map[uintptr][]byte)}
}

func (b *NativeBackend) Name() string { return "native-ssa" }

type nativeType struct {
	kind  string // "i" or "f"
	bits  int
	elem  *nativeType
	isPtr bool
}

func (t *nativeType) String() string {
	if t.isPtr {
		return t.elem.String() + "*"
	}
	return fmt.Sprintf("%s%d", t.kind, t.bits)
}

func (b *NativeBackend) IntType(bits int) TypeToken   { return &nativeType{kind: "i", bits: bits} }
func (b *NativeBackend) FloatType(bits int) TypeToken { return &nativeType{kind: "f", bits: bits} }
func (b *NativeBackend) PointerType(elem TypeToken) TypeToken {
	return &nativeType{elem: elem.(*nativeType), isPtr: true}
}

func (b *NativeBackend) TypeOf(t *types.Type) TypeToken {
	bits, isFloat := TokenForType(t)
	if isFloat {
		return b.FloatType(bits)
	}
	return b.IntType(bits)
}

type nativeFunc struct {
	name   string
	params []TypeToken
	result TypeToken
	body   []string
}

func (b *NativeBackend) DeclareFunction(name string, params []TypeToken, result TypeToken) FuncToken {
	fn := &nativeFunc{name: name, params: params, result: result}
	b.funcs = append(b.funcs, fn)
	return fn
}

func (b *NativeBackend) DefineFunction(fn FuncToken, body func(Emitter)) {
	nf := fn.(*nativeFunc)
	em := &nativeEmitter{backend: b, fn: nf}
	body(em)
}

func (b *NativeBackend) FinalizeFunction(fn FuncToken) {}

func (b *NativeBackend) GlobalVariable(name string, t TypeToken, initial ValueToken) ValueToken {
	b.globals = append(b.globals, fmt.Sprintf("@%s = global %v", name, t))
	return "@" + name
}

func (b *NativeBackend) GlobalImport(name string, t TypeToken) ValueToken {
	b.globals = append(b.globals, fmt.Sprintf("@%s = external global %v", name, t))
	return "@" + name
}

func (b *NativeBackend) InternBlob(key uintptr, data []byte) ValueToken {
	if existing, ok := b.interns[key]; ok {
		_ = existing
	}
	b.interns[key] = data
	return fmt.Sprintf("@.blob.%d", key)
}

func (b *NativeBackend) Finish() Artifact {
	var sb strings.Builder
	for _, g := range b.globals {
		sb.WriteString(g)
		sb.WriteByte('\n')
	}
	for _, fn := range b.funcs {
		sb.WriteString(fmt.Sprintf("define %v @%s() {\n", fn.result, fn.name))
		for _, line := range fn.body {
			sb.WriteString("  " + line + "\n")
		}
		sb.WriteString("}\n")
	}
	return nativeArtifact(sb.String())
}

type nativeArtifact string

func (a nativeArtifact) Bytes() []byte { return []byte(a) }

type nativeEmitter struct {
	backend *NativeBackend
	fn      *nativeFunc
}

func (e *nativeEmitter) tmpName() string {
	e.backend.tmp++
	return fmt.Sprintf("%%t%d", e.backend.tmp)
}

func (e *nativeEmitter) emit(format string, args ...interface{}) string {
	line := fmt.Sprintf(format, args...)
	e.fn.body = append(e.fn.body, line)
	return line
}

func (e *nativeEmitter) Constant(t TypeToken, bits uint64) ValueToken {
	name := e.tmpName()
	e.emit("%s = const %v %d", name, t, bits)
	return name
}

func (e *nativeEmitter) Local(t TypeToken, name string) ValueToken {
	e.emit("%%%s = alloca %v", name, t)
	return "%" + name
}

func (e *nativeEmitter) Arith(op string, lhs, rhs ValueToken) ValueToken {
	name := e.tmpName()
	e.emit("%s = %s %v, %v", name, op, lhs, rhs)
	return name
}

func (e *nativeEmitter) Compare(op string, lhs, rhs ValueToken) ValueToken {
	name := e.tmpName()
	e.emit("%s = icmp %s %v, %v", name, op, lhs, rhs)
	return name
}

func (e *nativeEmitter) Bitcast(v ValueToken, to TypeToken) ValueToken {
	name := e.tmpName()
	e.emit("%s = bitcast %v to %v", name, v, to)
	return name
}

func (e *nativeEmitter) Convert(v ValueToken, to TypeToken) ValueToken {
	name := e.tmpName()
	e.emit("%s = convert %v to %v", name, v, to)
	return name
}

func (e *nativeEmitter) Load(ptr ValueToken, t TypeToken) ValueToken {
	name := e.tmpName()
	e.emit("%s = load %v, %v", name, t, ptr)
	return name
}

func (e *nativeEmitter) Store(ptr, value ValueToken) { e.emit("store %v, %v", value, ptr) }

func (e *nativeEmitter) MemCopy(dst, src ValueToken, size int) {
	e.emit("memcpy %v, %v, %d", dst, src, size)
}

func (e *nativeEmitter) MemSet(dst ValueToken, value byte, size int) {
	e.emit("memset %v, %d, %d", dst, value, size)
}

func (e *nativeEmitter) If(cond ValueToken, then, els func()) {
	e.emit("br %v, then, else", cond)
	e.emit("then:")
	then()
	e.emit("else:")
	if els != nil {
		els()
	}
	e.emit("endif:")
}

func (e *nativeEmitter) Loop(body func(brk LoopLabel)) {
	e.emit("loop:")
	body("loop.end")
	e.emit("br loop")
	e.emit("loop.end:")
}

func (e *nativeEmitter) Break(label LoopLabel) { e.emit("br %v", label) }

func (e *nativeEmitter) Switch(disc ValueToken, cases map[int]func(), fallback func()) {
	e.emit("switch %v", disc)
	for i, fn := range cases {
		e.emit("case %d:", i)
		fn()
	}
	e.emit("default:")
	if fallback != nil {
		fallback()
	}
}

func (e *nativeEmitter) TailCall(fn FuncToken, args []ValueToken) ValueToken {
	name := e.tmpName()
	e.emit("%s = musttail call %v(%v)", name, fn.(*nativeFunc).name, args)
	return name
}

func (e *nativeEmitter) Call(fn FuncToken, args []ValueToken) ValueToken {
	name := e.tmpName()
	e.emit("%s = call %v(%v)", name, fn.(*nativeFunc).name, args)
	return name
}

func (e *nativeEmitter) ExternalCall(name string, args []ValueToken, result TypeToken) ValueToken {
	out := e.tmpName()
	e.emit("%s = call @%s(%v) -> %v", out, name, args, result)
	return out
}

func (e *nativeEmitter) SaveStackPointer() ValueToken {
	name := e.tmpName()
	e.emit("%s = stacksave", name)
	return name
}

func (e *nativeEmitter) RestoreStackPointer(saved ValueToken) { e.emit("stackrestore %v", saved) }

func (e *nativeEmitter) Return(v ValueToken) { e.emit("ret %v", v) }
