// Package backend implements the pluggable backend abstraction: the
// emission driver is parametric in this interface and is the only
// component aware of backend-specific tokens; every upstream pass
// (specialize, reactive, lower, codegen, schedule) produces
// backend-agnostic IR.
//
// Three reference targets implement it: an SSA-producing one suited to an
// LLVM-like toolchain, a wasm target in the Binaryen mold, and the
// WaveCore DSP-hardware target. All three share the whole front end and
// only diverge at this package's boundary.
package backend

import "github.com/sunholo/sigcore/internal/types"

// TypeToken is a backend's own representation of a compile-time Type,
// opaque to every pass upstream of GenericEmitter.
type TypeToken interface{}

// ValueToken is a backend's own representation of a runtime value
// (register, wasm local, stack slot, ...).
type ValueToken interface{}

// FuncToken identifies a declared-but-not-yet-defined function.
type FuncToken interface{}

// LoopLabel identifies a structured loop's break target.
type LoopLabel interface{}

// Backend is the capability set a GenericEmitter drives.
type Backend interface {
	Name() string

	// Type tokens.
	IntType(bits int) TypeToken
	FloatType(bits int) TypeToken
	PointerType(elem TypeToken) TypeToken
	TypeOf(t *types.Type) TypeToken

	// Function lifecycle.
	DeclareFunction(name string, params []TypeToken, result TypeToken) FuncToken
	DefineFunction(fn FuncToken, body func(Emitter))
	FinalizeFunction(fn FuncToken)

	// Globals and interning.
	GlobalVariable(name string, t TypeToken, initial ValueToken) ValueToken
	GlobalImport(name string, t TypeToken) ValueToken
	InternBlob(key uintptr, data []byte) ValueToken

	// Emitted artifact, opaque to the core: its internal format is a
	// private concern of the chosen backend.
	Finish() Artifact
}

// Artifact is the opaque handle a backend hands back to a runtime loader.
type Artifact interface {
	Bytes() []byte
}

// Emitter is the basic-block / lexical-scope emission surface passed into
// DefineFunction's body callback.
type Emitter interface {
	Constant(t TypeToken, bits uint64) ValueToken
	Local(t TypeToken, name string) ValueToken

	Arith(op string, lhs, rhs ValueToken) ValueToken
	Compare(op string, lhs, rhs ValueToken) ValueToken
	Bitcast(v ValueToken, to TypeToken) ValueToken
	Convert(v ValueToken, to TypeToken) ValueToken

	Load(ptr ValueToken, t TypeToken) ValueToken
	Store(ptr, value ValueToken)
	MemCopy(dst, src ValueToken, size int)
	MemSet(dst ValueToken, value byte, size int)

	If(cond ValueToken, then, els func())
	Loop(body func(brk LoopLabel))
	Break(label LoopLabel)
	Switch(disc ValueToken, cases map[int]func(), fallback func())

	TailCall(fn FuncToken, args []ValueToken) ValueToken
	Call(fn FuncToken, args []ValueToken) ValueToken
	ExternalCall(name string, args []ValueToken, result TypeToken) ValueToken

	SaveStackPointer() ValueToken
	RestoreStackPointer(saved ValueToken)

	Return(v ValueToken)
}

// TokenForType maps a compile-time Type to the native scalar/vector shape
// every reference backend in this package shares, before any
// backend-specific lowering (e.g. a wasm target widening i32 locals).
func TokenForType(t *types.Type) (bits int, float bool) {
	switch t.Kind() {
	case types.KindFloat32:
		return 32, true
	case types.KindFloat64:
		return 64, true
	case types.KindInt32:
		return 32, false
	case types.KindInt64:
		return 64, false
	case types.KindVector:
		switch t.VectorElem() {
		case types.ElemFloat32:
			return 32 * t.VectorWidth(), true
		case types.ElemFloat64:
			return 64 * t.VectorWidth(), true
		case types.ElemInt32:
			return 32 * t.VectorWidth(), false
		default:
			return 64 * t.VectorWidth(), false
		}
	default:
		return 0, false
	}
}
