package types

// Builder provides a fluent API for constructing Type values: readable,
// self-documenting construction instead of verbose nested struct literals.
//
// Example usage:
//
//	T := NewBuilder()
//	pairTy := T.TupleOf(T.Float32(), T.Int32())
//	listTy := T.ListOf(T.Float32(), 4)
type Builder struct{}

// NewBuilder creates a new type builder.
func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Nil() *Type     { return Nil() }
func (b *Builder) True() *Type    { return True() }
func (b *Builder) Float32() *Type { return Float32() }
func (b *Builder) Float64() *Type { return Float64() }
func (b *Builder) Int32() *Type   { return Int32() }
func (b *Builder) Int64() *Type   { return Int64() }

// Vector builds a SIMD vector type of elem repeated width times.
func (b *Builder) Vector(elem NativeElem, width int) *Type {
	return Vector(elem, width)
}

// TupleOf builds a right-nested cons chain nil-terminated, i.e. a tuple.
func (b *Builder) TupleOf(elems ...*Type) *Type { return List(elems...) }

// ListOf builds a homogeneous fixed-length list: elem repeated n times,
// nil-terminated. This is the canonical encoding the recursion solver
// recognises when deriving a closed-form list fold.
func (b *Builder) ListOf(elem *Type, n int) *Type {
	elems := make([]*Type, n)
	for i := range elems {
		elems[i] = elem
	}
	return List(elems...)
}

// Wrap builds a nominal UserType wrapping content under descriptor.
func (b *Builder) Wrap(descriptor string, content *Type) *Type {
	return UserType(descriptor, content)
}

// UnionOf builds a Union over the given variants.
func (b *Builder) UnionOf(variants ...*Type) *Type { return Union(variants...) }

// FunctionTag is the UserType descriptor used to mark a closure value
// (name, recursion points, candidate forms, captured environment)
// step 2.
const FunctionTag = "Function"
