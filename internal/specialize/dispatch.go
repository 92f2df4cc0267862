package specialize

import (
	"fmt"
	"math/big"

	"github.com/sunholo/sigcore/internal/diag"
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/ruleset"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// FunctionClosure is the typed Constant literal a FunctionSet node
// specializes to: "A0 is a UserType(FunctionTag, (name, recurPts, forms,
// _))". Forms and RecurPts stay as generic-graph references;
// they are only specialized against a concrete argument type once Evaluate
// knows what that type is.
type FunctionClosure struct {
	Name     string
	Forms    []graph.Ref
	RecurPts []graph.Ref
}

// Specialize is the single dispatch entry point every generic node goes
// through: a memoized switch over graph.Kind implementing each kind's
// specialize operation.
func Specialize(state *State, ref graph.Ref) Specialization {
	if !ref.Valid() {
		return fail(state, diag.FatalFailure, "specialize: invalid generic reference")
	}
	n := ref.Node()

	if entry, ok := state.Cache.Get(n.Hash(), state.ArgType); ok {
		return Specialization{Node: entry.Body, Result: entry.Result}
	}

	var sp Specialization
	switch n.Kind() {
	case graph.KindArgument:
		sp = specializeArgument(state, ref)
	case graph.KindConstant:
		sp = specializeConstant(state, ref)
	case graph.KindNative:
		sp = specializeNative(state, ref)
	case graph.KindPair:
		sp = specializePair(state, ref)
	case graph.KindFirst:
		sp = specializeFirst(state, ref)
	case graph.KindRest:
		sp = specializeRest(state, ref)
	case graph.KindIf:
		sp = specializeIf(state, ref)
	case graph.KindLambda:
		sp = Specialize(state, n.Upstreams()[0])
	case graph.KindFunctionSet:
		sp = specializeFunctionSet(state, ref)
	case graph.KindRingBuffer:
		sp = specializeRingBuffer(state, ref)
	case graph.KindReconnect:
		sp = specializeReconnect(state, ref)
	case graph.KindEvaluate:
		if state.RecurPts != nil && state.RecurPts[ref] {
			sp = trapRecursion(state, ref)
		} else {
			sp = Evaluate(state, ref)
		}
	default:
		sp = fail(state, diag.FatalFailure, unhandledKind(n.Kind()))
	}

	if _, isTrap := AsRecursionTrap(sp.Result); !isTrap {
		state.Cache.Put(n.Hash(), state.ArgType, &CacheEntry{Body: sp.Node, Result: sp.Result})
	}
	return sp
}

func specializeArgument(state *State, ref graph.Ref) Specialization {
	return Specialization{Node: state.Out.NewArgument(ref, state.ArgType), Result: state.ArgType}
}

func specializeConstant(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	t := literalType(n.Literal)
	if t == nil {
		return fail(state, diag.FatalFailure, "specialize: constant literal has no representable type")
	}
	return Specialization{Node: state.Out.NewConstant(ref, t, n.Literal), Result: t}
}

// asRuleGenerator unwraps t if it is a speculative proxy, used so
// the structural specializers below can run unmodified whether the
// argument is a concrete type or a RuleGenerator recording constraints.
func asRuleGenerator(t *types.Type) (*ruleset.Generator, bool) {
	if t.Kind() != types.KindRuleGenerator {
		return nil, false
	}
	g, ok := t.RuleProxy().(*ruleset.Generator)
	return g, ok
}

// unwrapSpeculative replaces every RuleGenerator buried in t with its
// concrete template, recursing through the structural kinds a speculative
// body can rebuild around a proxy.
func unwrapSpeculative(t *types.Type) *types.Type {
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case types.KindRuleGenerator:
		if gen, ok := asRuleGenerator(t); ok {
			return unwrapSpeculative(gen.Template)
		}
		return t
	case types.KindTuple:
		return types.Tuple(unwrapSpeculative(t.First()), unwrapSpeculative(t.Rest()))
	case types.KindUserType:
		return types.UserType(t.Descriptor(), unwrapSpeculative(t.Content()))
	default:
		return t
	}
}

func specializePair(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	fst := Specialize(state, n.Upstreams()[0])
	if fst.Failed() {
		return fst
	}
	rst := Specialize(state, n.Upstreams()[1])
	if rst.Failed() {
		return rst
	}
	result := types.Tuple(fst.Result, rst.Result)
	return Specialization{Node: state.Out.NewPair(ref, fst.Node, rst.Node, result), Result: result}
}

func specializeFirst(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	pair := Specialize(state, n.Upstreams()[0])
	if pair.Failed() {
		return pair
	}
	if gen, ok := asRuleGenerator(pair.Result); ok {
		if !gen.IsPair() {
			return fail(state, diag.SpecializationFailure, "specialize: First on a non-pair speculative argument")
		}
		return Specialization{Result: gen.First().AsType()}
	}
	if pair.Result.Kind() != types.KindTuple {
		return fail(state, diag.SpecializationFailure, "specialize: First on a non-pair argument")
	}
	result := pair.Result.First()
	return Specialization{Node: state.Out.NewFirst(ref, pair.Node, result), Result: result}
}

func specializeRest(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	pair := Specialize(state, n.Upstreams()[0])
	if pair.Failed() {
		return pair
	}
	if gen, ok := asRuleGenerator(pair.Result); ok {
		if !gen.IsPair() {
			return fail(state, diag.SpecializationFailure, "specialize: Rest on a non-pair speculative argument")
		}
		return Specialization{Result: gen.Rest().AsType()}
	}
	if pair.Result.Kind() != types.KindTuple {
		return fail(state, diag.SpecializationFailure, "specialize: Rest on a non-pair argument")
	}
	result := pair.Result.Rest()
	return Specialization{Node: state.Out.NewRest(ref, pair.Node, result), Result: result}
}

func specializeIf(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	ups := n.Upstreams()
	cond := Specialize(state, ups[0])
	if cond.Failed() {
		return cond
	}
	// A condition known at compile time selects its branch outright; the
	// untaken branch is never specialized, which is what lets a guarded
	// recursion bottom out instead of expanding forever.
	switch cond.Result.Kind() {
	case types.KindTrue:
		return Specialize(state, ups[1])
	case types.KindNil:
		return Specialize(state, ups[2])
	}
	then := Specialize(state, ups[1])
	if then.Failed() {
		return then
	}
	els := Specialize(state, ups[2])
	if els.Failed() {
		return els
	}
	var result *types.Type
	if types.Equal(then.Result, els.Result) {
		result = then.Result
	} else {
		result = types.Union(then.Result, els.Result)
		if !types.SameStructuralSize(result) {
			return fail(state, diag.FatalFailure, "specialize: if-branches have incompatible result sizes for union dispatch")
		}
	}
	return Specialization{Node: state.Out.NewIf(ref, cond.Node, then.Node, els.Node, result), Result: result}
}

func specializeNative(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	ups := n.Upstreams()
	operands := make([]Specialization, len(ups))
	for i, u := range ups {
		operands[i] = Specialize(state, u)
		if operands[i].Failed() {
			return operands[i]
		}
	}

	// Speculative path: recording a numerical/axiom rule against a
	// RuleGenerator-wrapped operand rather than performing real arithmetic.
	for i, op := range operands {
		gen, ok := asRuleGenerator(op.Result)
		if !ok {
			continue
		}
		if n.Label == "IsNil" && len(operands) == 1 {
			return Specialization{Result: literalBoolResult(gen.IsNilQuery())}
		}
		if len(operands) == 2 {
			other := operands[(i+1)%2]
			if other.Result.Kind() == types.KindInvariant {
				switch n.Label {
				case "Add":
					return Specialization{Result: gen.Add(other.Result.InvariantValue()).AsType()}
				case "Sub":
					return Specialization{Result: gen.Sub(other.Result.InvariantValue()).AsType()}
				case "Lt", "Gt", "Le", "Ge", "Eq":
					cmp := gen.OrdinalCompare(other.Result.InvariantValue())
					return Specialization{Result: literalBoolResult(nativeCompareHolds(n.Label, cmp))}
				}
			}
		}
		// Any other query against a speculative operand degenerates to an
		// opaque rule-free pass-through: the solver only needs the shapes
		// above to drive the recursion-depth bisection.
		return Specialization{Result: gen.AsType()}
	}

	// IsNil is a structural test answered entirely by the operand's type:
	// it folds to the True/Nil singletons like an invariant comparison, so
	// a recursion guarded on list emptiness bottoms out statically.
	if n.Label == "IsNil" {
		if len(operands) != 1 {
			return fail(state, diag.FatalFailure, "specialize: IsNil takes exactly one operand")
		}
		result := literalBoolResult(operands[0].Result.IsNil())
		return Specialization{Node: state.Out.NewConstant(ref, result, nil), Result: result}
	}

	// Invariant operands fold at compile time rather than emitting a Native
	// node; Equal is useless here since two Invariants of different value
	// are, correctly, never Equal. Comparisons fold to the True/Nil
	// singletons so a downstream If can select its branch statically.
	if allInvariant(operands) {
		if len(operands) == 2 && isCompareOp(n.Label) {
			cmp := operands[0].Result.InvariantValue().Cmp(operands[1].Result.InvariantValue())
			result := literalBoolResult(nativeCompareHolds(n.Label, cmp))
			return Specialization{Node: state.Out.NewConstant(ref, result, nil), Result: result}
		}
		folded, err := foldInvariant(n.Label, operands)
		if err != nil {
			return fail(state, diag.FatalFailure, "specialize: "+err.Error())
		}
		return Specialization{Node: state.Out.NewConstant(ref, folded, folded.InvariantValue()), Result: folded}
	}

	nodes := make([]typed.Ref, len(operands))
	var result *types.Type
	for i, op := range operands {
		nodes[i] = op.Node
		if i == 0 {
			result = op.Result
			continue
		}
		if !types.Equal(result, op.Result) {
			return fail(state, diag.FatalFailure, "specialize: native op "+n.Label+" operand type mismatch")
		}
	}
	return Specialization{Node: state.Out.NewNative(ref, n.Label, result, nodes...), Result: result}
}

func allInvariant(operands []Specialization) bool {
	for _, op := range operands {
		if op.Result.Kind() != types.KindInvariant {
			return false
		}
	}
	return true
}

func foldInvariant(op string, operands []Specialization) (*types.Type, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("native op %s: no operands", op)
	}
	acc := new(big.Rat).Set(operands[0].Result.InvariantValue())
	for _, o := range operands[1:] {
		v := o.Result.InvariantValue()
		switch op {
		case "Add":
			acc.Add(acc, v)
		case "Sub":
			acc.Sub(acc, v)
		case "Mul":
			acc.Mul(acc, v)
		case "Div":
			if v.Sign() == 0 {
				return nil, fmt.Errorf("native op Div: division by zero")
			}
			acc.Quo(acc, v)
		default:
			return nil, fmt.Errorf("native op %s: not foldable over Invariant operands", op)
		}
	}
	return types.Invariant(acc), nil
}

// literalBoolResult maps a compile-time truth value onto the lattice's
// singletons: True for truth, Nil for falsity. Both are zero-size, so a
// statically decided comparison never reaches codegen.
func literalBoolResult(v bool) *types.Type {
	if v {
		return types.True()
	}
	return types.Nil()
}

func isCompareOp(op string) bool {
	switch op {
	case "Lt", "Gt", "Le", "Ge", "Eq":
		return true
	}
	return false
}

func nativeCompareHolds(op string, cmp int) bool {
	switch op {
	case "Lt":
		return cmp < 0
	case "Gt":
		return cmp > 0
	case "Le":
		return cmp <= 0
	case "Ge":
		return cmp >= 0
	case "Eq":
		return cmp == 0
	default:
		return false
	}
}

func specializeFunctionSet(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	closure := &FunctionClosure{
		Name:     n.Label,
		Forms:    append([]graph.Ref(nil), n.Forms...),
		RecurPts: append([]graph.Ref(nil), n.RecurPts...),
	}
	result := types.UserType(types.FunctionTag, types.Nil())
	return Specialization{Node: state.Out.NewConstant(ref, result, closure), Result: result}
}

func specializeRingBuffer(state *State, ref graph.Ref) Specialization {
	if state.Mode == ModeConfiguration {
		return fail(state, diag.FatalFailure, "specialize: stateful ring buffer not permitted in Configuration mode")
	}
	n := ref.Node()
	result := literalType(n.Initial)
	if result == nil {
		return fail(state, diag.FatalFailure, "specialize: ring buffer initial value has no representable type")
	}
	body := state.Out.NewRingBufferPlaceholder(ref, n.BufferLen, n.Initial, result)
	return Specialization{Node: body, Result: result}
}

// specializeReconnect closes a ring buffer's deferred cycle edge: its
// first upstream is the ring buffer being fed back into, its second is the
// expression computing the next value. Specializing the ring buffer first
// seeds the cache so that the recursive-input expression's own reference
// back to the same ring buffer resolves to the same typed node rather than
// recursing forever.
func specializeReconnect(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	ups := n.Upstreams()
	if len(ups) != 2 {
		return fail(state, diag.FatalFailure, "specialize: reconnect missing its patched recursive-input edge")
	}
	target := Specialize(state, ups[0])
	if target.Failed() {
		return target
	}
	input := Specialize(state, ups[1])
	if input.Failed() {
		return input
	}
	if !types.Equal(target.Result, input.Result) {
		return fail(state, diag.FatalFailure, "specialize: ring buffer feedback type does not match its element type")
	}
	state.Out.PatchRingBufferInput(target.Node, input.Node)
	return Specialization{Node: target.Node, Result: target.Result}
}

// trapRecursion is reached instead of an ordinary Evaluate dispatch when
// ref is one of the active speculative recursion points: it
// specializes only the recursive call's own argument expression (to learn
// A'), then surfaces a RecursionTrap rather than actually following the
// call, letting trySolveRecursion inspect the boundary without unbounded
// speculative recursion.
func trapRecursion(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	argSpec := Specialize(state, n.Upstreams()[1])
	if argSpec.Failed() {
		return argSpec
	}
	// The closed form is derived between concrete types; speculative
	// proxies hand over their templates, which carry the concrete values
	// the recursive call would receive at step one. A product argument
	// rebuilt by the body (a fold's Pair(tail, sum)) embeds proxies per
	// slot, so the unwrap walks the whole structure.
	recursiveArg := unwrapSpeculative(argSpec.Result)
	trap := &RecursionTrap{
		RecurPoint:   ref,
		RecursiveArg: recursiveArg,
		SavedCache:   state.Cache.Snapshot(),
	}
	diag.Emit(state.Sink, diag.New(diag.RecursionTrap, "specialize", "recursion boundary reached during speculative probe"))
	return Specialization{Result: trapResult(trap)}
}
