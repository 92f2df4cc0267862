package ruleset

import (
	"math/big"

	"github.com/sunholo/sigcore/internal/types"
)

// SCEVShape identifies the supported closed-form argument/result evolution
// shapes: given outer arg A and inner recursive-call arg A', seek f(N)
// with f(0)=A, f(1)=A'. Only these shapes are generalised; any other
// relationship falls back to form-by-form specialization.
type SCEVShape int

const (
	ShapeNone SCEVShape = iota
	ShapeFixed
	ShapeInvariantAdd
	ShapeTupleHeadTail
	ShapeUserTypeWrap
	ShapeProduct
)

// SCEV is a symbolic formula describing how a value changes over
// induction steps: f(0) = Outer, f(1) = Inner, generalised to f(N).
type SCEV struct {
	Shape SCEVShape

	// ShapeInvariantAdd: f(N) = Outer + N*Delta
	Delta *big.Rat

	// ShapeTupleHeadTail: f(N) peels N elements off a homogeneous tuple;
	// ElemType is the (uniform) head type being peeled.
	ElemType *types.Type

	// ShapeUserTypeWrap: f(N) wraps/unwraps N layers of Descriptor.
	Descriptor string

	// ShapeProduct: the argument is a cons pair whose slots evolve
	// independently; Fst/Rst carry the per-slot formulas. A slot whose
	// outer and inner types agree is held fixed (ShapeFixed).
	Fst, Rst *SCEV

	Outer, Inner *types.Type
}

// DeriveSCEV attempts to recognise outer→inner as one of the supported
// closed-form shapes. Returns ShapeNone if no shape matches, signalling
// the caller should fall back to form-by-form specialization. Equal
// outer/inner derive ShapeFixed: valid as a product component or a result
// formula, but useless as a whole-argument evolution (the recursion would
// make no progress), which callers reject.
func DeriveSCEV(outer, inner *types.Type) *SCEV {
	if types.Equal(outer, inner) {
		return &SCEV{Shape: ShapeFixed, Outer: outer, Inner: inner}
	}
	if s := deriveInvariantAdd(outer, inner); s != nil {
		return s
	}
	if s := deriveTupleHeadTail(outer, inner); s != nil {
		return s
	}
	if s := deriveUserTypeWrap(outer, inner); s != nil {
		return s
	}
	if s := deriveProduct(outer, inner); s != nil {
		return s
	}
	return &SCEV{Shape: ShapeNone, Outer: outer, Inner: inner}
}

func deriveInvariantAdd(outer, inner *types.Type) *SCEV {
	if outer.Kind() != types.KindInvariant || inner.Kind() != types.KindInvariant {
		return nil
	}
	delta := new(big.Rat).Sub(inner.InvariantValue(), outer.InvariantValue())
	return &SCEV{Shape: ShapeInvariantAdd, Delta: delta, Outer: outer, Inner: inner}
}

func deriveTupleHeadTail(outer, inner *types.Type) *SCEV {
	if outer.Kind() != types.KindTuple {
		return nil
	}
	if types.Equal(outer.Rest(), inner) {
		return &SCEV{Shape: ShapeTupleHeadTail, ElemType: outer.First(), Outer: outer, Inner: inner}
	}
	return nil
}

func deriveUserTypeWrap(outer, inner *types.Type) *SCEV {
	if outer.Kind() != types.KindUserType {
		return nil
	}
	if types.Equal(outer.Content(), inner) {
		return &SCEV{Shape: ShapeUserTypeWrap, Descriptor: outer.Descriptor(), Outer: outer, Inner: inner}
	}
	return nil
}

// deriveProduct decomposes a cons-pair argument slot-wise: each slot
// derives its own evolution, and a slot whose outer/inner types agree is
// held fixed. This is the shape a list fold's (xs, acc) argument takes:
// the list slot peels head/tail while the accumulator slot's type never
// changes. At least one slot must make progress, else the pair is not a
// recurrence at all.
func deriveProduct(outer, inner *types.Type) *SCEV {
	if outer.Kind() != types.KindTuple || inner.Kind() != types.KindTuple {
		return nil
	}
	fst := DeriveSCEV(outer.First(), inner.First())
	rst := DeriveSCEV(outer.Rest(), inner.Rest())
	if fst.Shape == ShapeNone || rst.Shape == ShapeNone {
		return nil
	}
	if fst.Shape == ShapeFixed && rst.Shape == ShapeFixed {
		return nil
	}
	return &SCEV{Shape: ShapeProduct, Fst: fst, Rst: rst, Outer: outer, Inner: inner}
}

// Generalized returns the closed-form argument type at step n: f(n).
func (s *SCEV) Generalized(n int64) *types.Type {
	switch s.Shape {
	case ShapeFixed:
		return s.Outer
	case ShapeInvariantAdd:
		delta := new(big.Rat).Mul(s.Delta, new(big.Rat).SetInt64(n))
		return types.Invariant(new(big.Rat).Add(s.Outer.InvariantValue(), delta))
	case ShapeTupleHeadTail:
		// f(0) = Outer = Tuple(ElemType, Inner); each further step peels
		// one more head off the (finite, concretely-built) argument type.
		t := s.Outer
		for i := int64(0); i < n && t.Kind() == types.KindTuple; i++ {
			t = t.Rest()
		}
		return t
	case ShapeUserTypeWrap:
		t := s.Outer
		for i := int64(0); i < n && t.Kind() == types.KindUserType; i++ {
			t = t.Content()
		}
		return t
	case ShapeProduct:
		return types.Tuple(s.Fst.Generalized(n), s.Rst.Generalized(n))
	default:
		return s.Outer
	}
}
