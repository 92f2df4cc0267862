// Package types implements the compile-time type lattice: an immutable,
// content-addressed tagged value whose kinds are fixed and closed per the
// data model. Types are freely copied; interned tuple/union payloads are
// shared-ownership.
package types

import (
	"fmt"
	"math/big"
)

// Kind identifies which of the closed set of Type shapes a value carries.
type Kind int

const (
	KindNil Kind = iota
	KindTrue
	KindFloat32
	KindFloat64
	KindInt32
	KindInt64
	KindVector
	KindInvariant
	KindInvariantString
	KindInvariantGraph
	KindTypeTag
	KindTuple
	KindUserType
	KindUnion
	KindArrayView
	KindRuleGenerator
	KindInternalRef
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindTrue:
		return "True"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindVector:
		return "Vector"
	case KindInvariant:
		return "Invariant"
	case KindInvariantString:
		return "InvariantString"
	case KindInvariantGraph:
		return "InvariantGraph"
	case KindTypeTag:
		return "TypeTag"
	case KindTuple:
		return "Tuple"
	case KindUserType:
		return "UserType"
	case KindUnion:
		return "Union"
	case KindArrayView:
		return "ArrayView"
	case KindRuleGenerator:
		return "RuleGenerator"
	case KindInternalRef:
		return "InternalRef"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// NativeElem is the element kind carried by a Vector payload; it is
// restricted to the four native scalar tags.
type NativeElem int

const (
	ElemFloat32 NativeElem = iota
	ElemFloat64
	ElemInt32
	ElemInt64
)

// Type is an immutable tagged value. The concrete shape is determined by
// Kind(); callers type-switch on the accessor methods below rather than on
// the underlying Go type, since every kind shares this one struct (a
// RuleGenerator, see package ruleset, is its own kind holding an opaque
// proxy handle).
type Type struct {
	kind Kind

	// Vector / ArrayView
	elem  *Type
	width int // Vector width, 1..65535

	// Invariant
	real *big.Rat

	// InvariantString
	str string

	// InvariantGraph: opaque handle to a quoted generic graph; kept as an
	// interface{} to avoid an import cycle with package graph.
	quoted interface{}

	// TypeTag / UserType: named descriptor
	descriptor string
	content    *Type // UserType content

	// Tuple
	fst, rst *Type

	// Union
	variants []*Type

	// RuleGenerator: opaque proxy handle; see package ruleset.
	proxy interface{}

	// InternalRef: opaque refcounted payload
	ref interface{}

	nativeElem NativeElem
}

// Kind returns the closed tag for this Type.
func (t *Type) Kind() Kind { return t.kind }

// Constructors -----------------------------------------------------------

var (
	nilType  = &Type{kind: KindNil}
	trueType = &Type{kind: KindTrue}
	f32      = &Type{kind: KindFloat32}
	f64      = &Type{kind: KindFloat64}
	i32      = &Type{kind: KindInt32}
	i64      = &Type{kind: KindInt64}
)

func Nil() *Type     { return nilType }
func True() *Type    { return trueType }
func Float32() *Type { return f32 }
func Float64() *Type { return f64 }
func Int32() *Type   { return i32 }
func Int64() *Type   { return i64 }

// Vector constructs a SIMD vector type of the given native element kind
// and width; width must lie in [1, 65535].
func Vector(elem NativeElem, width int) *Type {
	if width < 1 || width > 65535 {
		panic(fmt.Sprintf("types.Vector: width %d out of range [1,65535]", width))
	}
	return &Type{kind: KindVector, nativeElem: elem, width: width}
}

// Invariant constructs a compile-time arbitrary-precision numeric constant.
func Invariant(r *big.Rat) *Type {
	return &Type{kind: KindInvariant, real: new(big.Rat).Set(r)}
}

// InvariantInt is a convenience constructor for an integer-valued Invariant.
func InvariantInt(n int64) *Type {
	return Invariant(new(big.Rat).SetInt64(n))
}

// InvariantString constructs a compile-time interned UTF-8 string constant.
func InvariantString(s string) *Type {
	return &Type{kind: KindInvariantString, str: s}
}

// InvariantGraph wraps a quoted generic-graph handle as a compile-time
// value. g is opaque here (package graph.Ref) to avoid an import cycle.
func InvariantGraph(g interface{}) *Type {
	return &Type{kind: KindInvariantGraph, quoted: g}
}

// TypeTag constructs a first-class type value named by descriptor.
func TypeTag(descriptor string) *Type {
	return &Type{kind: KindTypeTag, descriptor: descriptor}
}

// NilTuple is the empty list / unit tuple terminator: rst of the innermost
// cons cell. It is the same value as Nil(); a list is a tuple whose rst is
// eventually Nil.
func NilTuple() *Type { return nilType }

// Tuple constructs an ordered pair of types (a cons cell). A "list" is
// simply a tuple whose rst is Nil(); there is no separate list kind.
func Tuple(fst, rst *Type) *Type {
	return &Type{kind: KindTuple, fst: fst, rst: rst}
}

// List builds a nil-terminated tuple chain from elems, in order.
func List(elems ...*Type) *Type {
	result := NilTuple()
	for i := len(elems) - 1; i >= 0; i-- {
		result = Tuple(elems[i], result)
	}
	return result
}

// UserType constructs a nominal wrapper over structural content.
func UserType(descriptor string, content *Type) *Type {
	return &Type{kind: KindUserType, descriptor: descriptor, content: content}
}

// Union constructs a tagged union over an ordered set of variants. Valid
// only when every variant has an identical structural size after padding;
// callers must check SameStructuralSize before relying on runtime dispatch.
func Union(variants ...*Type) *Type {
	cp := make([]*Type, len(variants))
	copy(cp, variants)
	return &Type{kind: KindUnion, variants: cp}
}

// ArrayView constructs a runtime-sized homogeneous array reference.
func ArrayView(elem *Type) *Type {
	return &Type{kind: KindArrayView, elem: elem}
}

// RuleGenerator wraps an opaque speculative type proxy (package ruleset).
// A Type containing a RuleGenerator anywhere is not Fixed (see IsFixed).
func RuleGenerator(proxy interface{}) *Type {
	return &Type{kind: KindRuleGenerator, proxy: proxy}
}

// InternalRef wraps an opaque refcounted payload.
func InternalRef(ref interface{}) *Type {
	return &Type{kind: KindInternalRef, ref: ref}
}

// Accessors ---------------------------------------------------------------

func (t *Type) VectorElem() NativeElem {
	if t.kind != KindVector {
		panic("types: VectorElem on non-Vector")
	}
	return t.nativeElem
}

func (t *Type) VectorWidth() int {
	if t.kind != KindVector {
		panic("types: VectorWidth on non-Vector")
	}
	return t.width
}

func (t *Type) InvariantValue() *big.Rat {
	if t.kind != KindInvariant {
		panic("types: InvariantValue on non-Invariant")
	}
	return t.real
}

func (t *Type) StringValue() string {
	if t.kind != KindInvariantString {
		panic("types: StringValue on non-InvariantString")
	}
	return t.str
}

func (t *Type) QuotedGraph() interface{} {
	if t.kind != KindInvariantGraph {
		panic("types: QuotedGraph on non-InvariantGraph")
	}
	return t.quoted
}

func (t *Type) Descriptor() string {
	if t.kind != KindTypeTag && t.kind != KindUserType {
		panic("types: Descriptor on type without a descriptor")
	}
	return t.descriptor
}

func (t *Type) Content() *Type {
	if t.kind != KindUserType {
		panic("types: Content on non-UserType")
	}
	return t.content
}

func (t *Type) First() *Type {
	if t.kind != KindTuple {
		panic("types: First on non-Tuple")
	}
	return t.fst
}

func (t *Type) Rest() *Type {
	if t.kind != KindTuple {
		panic("types: Rest on non-Tuple")
	}
	return t.rst
}

func (t *Type) Variants() []*Type {
	if t.kind != KindUnion {
		panic("types: Variants on non-Union")
	}
	return t.variants
}

func (t *Type) ArrayElem() *Type {
	if t.kind != KindArrayView {
		panic("types: ArrayElem on non-ArrayView")
	}
	return t.elem
}

func (t *Type) RuleProxy() interface{} {
	if t.kind != KindRuleGenerator {
		panic("types: RuleProxy on non-RuleGenerator")
	}
	return t.proxy
}

func (t *Type) InternalRefValue() interface{} {
	if t.kind != KindInternalRef {
		panic("types: InternalRefValue on non-InternalRef")
	}
	return t.ref
}

// IsPair reports whether t is a non-nil Tuple (a cons cell).
func (t *Type) IsPair() bool { return t.kind == KindTuple }

// IsNil reports whether t is the unit/list-terminator singleton.
func (t *Type) IsNil() bool { return t.kind == KindNil }

// Arity returns 1 for all non-tuple types; for a tuple it is
// 1 + Arity(rst)
func Arity(t *Type) int {
	if t == nil || t.kind != KindTuple {
		return 1
	}
	return 1 + Arity(t.rst)
}

// CountLeadingElements returns the number of cons cells whose fst == e
// (by Equal) before rst diverges
func CountLeadingElements(t *Type, e *Type) int {
	n := 0
	for t != nil && t.kind == KindTuple && Equal(t.fst, e) {
		n++
		t = t.rst
	}
	return n
}
