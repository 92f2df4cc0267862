package specialize

import (
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/types"
)

// RecursionTrap is the payload carried by a RecursionTrap-kind failure:
// a tagged struct, not state smuggled through an error string. It names the
// recursive call site encountered while speculatively specializing a
// function body under a RuleGenerator-wrapped argument type, the
// recursive-call's own (still speculative) argument type, and the cache as
// it stood at the moment the boundary was hit, so the caller can restore it
// verbatim if the closed-form attempt fails.
type RecursionTrap struct {
	RecurPoint   graph.Ref
	RecursiveArg *types.Type
	SavedCache   Snapshot
}

// trapResult wraps trap as a Specialization result via the closed type
// lattice's InternalRef escape hatch: RecursionTrap carries a
// side-effecting Go payload that has no place in the TypeTag failure
// descriptors used for the other six kinds.
func trapResult(trap *RecursionTrap) *types.Type {
	return types.InternalRef(trap)
}

// AsRecursionTrap extracts a RecursionTrap from a Specialization's result
// type, if present.
func AsRecursionTrap(result *types.Type) (*RecursionTrap, bool) {
	if result == nil || result.Kind() != types.KindInternalRef {
		return nil, false
	}
	trap, ok := result.InternalRefValue().(*RecursionTrap)
	return trap, ok
}
