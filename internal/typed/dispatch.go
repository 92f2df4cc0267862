package typed

import (
	"fmt"

	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/types"
)

// SwitchSpec is the compiled form of a dispatch-on-union: source-
// level polymorphic dispatch over a Union never becomes a vtable, it
// becomes a compile-time-enumerated Switch over the union's finite tag.
//
// This pipeline's Union never has nested sub-patterns, so the dispatch
// tree is always exactly one level deep: one case per variant tag, each
// case typically a FunctionCall.
type SwitchSpec struct {
	Discriminant Ref              // the Union-typed value being dispatched on
	Cases        map[int]Ref      // variant index -> branch body (typically a FunctionCall)
	CaseTypes    map[int]*types.Type
	MergedResult *types.Type // Union of every branch's result type
}

func (s *SwitchSpec) String() string {
	return fmt.Sprintf("Switch(cases=%d)", len(s.Cases))
}

// Branch is one candidate dispatch target: the generic form matching
// variant VariantIndex of the source Union, already specialized to Body
// with a fixed ResultType.
type Branch struct {
	VariantIndex int
	Body         Ref
	ResultType   *types.Type
}

// CompileDispatch builds a SwitchSpec from the per-variant branches of a
// union dispatch call: a function value whose argument specializes to a
// Union, one branch per variant, the result union merging every branch's
// result type. Branches must cover every variant of union or
// CompileDispatch panics; exhaustiveness over a closed Union is a
// compile-time guarantee.
func CompileDispatch(region *Region, origin graph.Ref, discriminant Ref, union *types.Type, branches []Branch) Ref {
	if union.Kind() != types.KindUnion {
		panic("typed: CompileDispatch requires a Union-typed discriminant")
	}
	if len(branches) != len(union.Variants()) {
		panic(fmt.Sprintf("typed: CompileDispatch got %d branches for %d variants (non-exhaustive)", len(branches), len(union.Variants())))
	}

	spec := &SwitchSpec{
		Discriminant: discriminant,
		Cases:        make(map[int]Ref, len(branches)),
		CaseTypes:    make(map[int]*types.Type, len(branches)),
	}
	variantResults := make([]*types.Type, len(branches))
	for _, b := range branches {
		spec.Cases[b.VariantIndex] = b.Body
		spec.CaseTypes[b.VariantIndex] = b.ResultType
		variantResults[b.VariantIndex] = b.ResultType
	}
	spec.MergedResult = types.Union(variantResults...)

	upstream := make([]Ref, 0, len(branches)+1)
	upstream = append(upstream, discriminant)
	for _, b := range branches {
		upstream = append(upstream, b.Body)
	}

	n := &Node{kind: KindSwitch, upstreams: upstream, Result: spec.MergedResult, Switch: spec, Origin: origin}
	return region.alloc(n)
}
