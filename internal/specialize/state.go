// Package specialize implements the generic graph's specialize operation:
// the contract every generic-node kind satisfies, dispatched from a
// single Evaluate call-site algorithm. The dispatch is a recursive walk
// over a closed node-kind switch with failures returned as values rather
// than raised.
package specialize

import (
	"fmt"
	"math/big"

	"github.com/sunholo/sigcore/internal/diag"
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// Mode gates which generic-node kinds are permitted to specialize.
type Mode int

const (
	// ModeNormal allows every kind, including stateful constructs.
	ModeNormal Mode = iota
	// ModeConfiguration forbids stateful constructs (ring buffers and
	// anything reactive); used when specializing a configuration-time
	// expression that must produce a pure compile-time value.
	ModeConfiguration
)

// State carries everything a specialize call needs: the current argument
// type, where diagnostics go, the memoization cache, the evaluation mode,
// the typed arena new nodes are allocated into, and (only while probing a
// recursion) the set of Evaluate nodes currently being treated as
// recursion boundaries rather than ordinary calls.
type State struct {
	ArgType  *types.Type
	Sink     diag.Sink
	Cache    *Cache
	Mode     Mode
	Out      *typed.Region
	RecurPts map[graph.Ref]bool
	Closure  *FunctionClosure // function whose form is being specialized; resolves self-calls
	Depth    int              // nesting depth through Evaluate -> form body, for WithNewStack
}

// NewState creates the initial state for specializing a generic graph
// against argType, with a fresh typed output arena and memoization cache.
func NewState(argType *types.Type, sink diag.Sink) *State {
	return &State{
		ArgType: argType,
		Sink:    sink,
		Cache:   NewCache(),
		Mode:    ModeNormal,
		Out:     typed.NewRegion(),
	}
}

// withArg returns a derived state bound to a different argument type, with
// RecurPts cleared (concrete re-specialization, not speculative probing).
func (s *State) withArg(argType *types.Type) *State {
	return &State{ArgType: argType, Sink: s.Sink, Cache: s.Cache, Mode: s.Mode, Out: s.Out, Closure: s.Closure, Depth: s.Depth + 1}
}

// Specialization is the result of specializing a generic node: either a
// typed node paired with its result type, or (Node invalid) a result whose
// TypeTag descriptor names the failure class.
type Specialization struct {
	Node   typed.Ref
	Result *types.Type
}

// Failed reports whether this Specialization represents one of the seven
// failure kinds, or a speculative RecursionTrap in flight, rather than a
// real typed value. Treating a trap as "failed" lets every ordinary
// specializeXXX call site's existing short-circuit-on-failure logic also
// carry a trap up to the speculative run's top level untouched, without a
// second parallel propagation path.
func (s Specialization) Failed() bool {
	if _, ok := FailureKind(s.Result); ok {
		return true
	}
	_, ok := AsRecursionTrap(s.Result)
	return ok
}

// FailureKind extracts the failure class from a Specialization's result
// type, if it is one.
func FailureKind(result *types.Type) (diag.Kind, bool) {
	if result == nil || result.Kind() != types.KindTypeTag {
		return "", false
	}
	k := diag.Kind(result.Descriptor())
	switch k {
	case diag.SpecializationFailure, diag.PropagateFailure, diag.NoEvalFallback,
		diag.FatalFailure, diag.RecursionTrap, diag.MonitoredError, diag.UserException:
		return k, true
	}
	return "", false
}

// fail builds a failed Specialization, emitting a diagnostic report.
func fail(state *State, kind diag.Kind, msg string) Specialization {
	diag.Emit(state.Sink, diag.New(kind, "specialize", msg))
	return Specialization{Result: types.TypeTag(string(kind))}
}

// literalType infers the closed Type a raw Go literal embeds as. Returns nil
// for a literal with no representable type (a FatalFailure at the call
// site).
func literalType(lit interface{}) *types.Type {
	switch v := lit.(type) {
	case int32:
		return types.Int32()
	case int64:
		return types.Int64()
	case float32:
		return types.Float32()
	case float64:
		return types.Float64()
	case bool:
		// This pipeline's closed lattice has no separate Bool kind:
		// a compile-time "true" is the True singleton; "false" is encoded
		// as the Int32 zero a native comparison would otherwise produce.
		if v {
			return types.True()
		}
		return types.Int32()
	case string:
		return types.InvariantString(v)
	case *big.Rat:
		return types.Invariant(v)
	case nil:
		return types.Nil()
	default:
		return nil
	}
}

// isZeroSize reports whether t occupies no runtime storage: compile-time
// constants and markers never reach codegen.
func isZeroSize(t *types.Type) bool {
	switch t.Kind() {
	case types.KindNil, types.KindTrue, types.KindTypeTag,
		types.KindInvariant, types.KindInvariantString, types.KindInvariantGraph:
		return true
	default:
		return false
	}
}

func unhandledKind(k graph.Kind) string {
	return fmt.Sprintf("specialize: unhandled generic node kind %v", k)
}
