package specialize

import (
	"github.com/sunholo/sigcore/internal/diag"
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/ruleset"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// maxInlineWeight is the inline-vs-out-of-line threshold: bodies whose
// summed node weight stays at or below it are inlined at the call site.
const maxInlineWeight = 24

// Evaluate implements the universal call node's algorithm. label
// names the call for diagnostics; the special label "dispatch" selects
// union-variant dispatch rather than ordinary function application.
func Evaluate(state *State, ref graph.Ref) Specialization {
	n := ref.Node()
	ups := n.Upstreams()
	if len(ups) != 2 {
		return fail(state, diag.FatalFailure, "specialize: Evaluate requires exactly a function and an argument expression")
	}

	// An absent function expression is a self-call: the call site recurses
	// into the function whose form is currently being specialized.
	var closure *FunctionClosure
	if ups[0].Valid() {
		fnSpec := Specialize(state, ups[0])
		if fnSpec.Failed() {
			return fnSpec
		}
		c, ok := fnSpec.Node.Node().Literal.(*FunctionClosure)
		if !ok || fnSpec.Result.Kind() != types.KindUserType || fnSpec.Result.Descriptor() != types.FunctionTag {
			return fail(state, diag.FatalFailure, "specialize: Evaluate target is not a function value")
		}
		closure = c
	} else if state.Closure != nil {
		closure = state.Closure
	} else {
		return fail(state, diag.FatalFailure, "specialize: Evaluate target is not a function value")
	}
	argSpec := Specialize(state, ups[1])
	if argSpec.Failed() {
		return argSpec
	}
	if len(closure.Forms) == 0 {
		return fail(state, diag.FatalFailure, "specialize: function "+closure.Name+" has no candidate forms")
	}
	// Nesting through Evaluate -> form body is bounded at 10 000 levels; a
	// deeper chain fails rather than recursing further.
	const maxSpecializationDepth = 10000
	if state.Depth >= maxSpecializationDepth {
		return fail(state, diag.FatalFailure, "specialize: recursion depth bound of 10000 nested evaluations exceeded")
	}

	if n.Label == "dispatch" {
		return evaluateDispatch(state, ref, closure, argSpec)
	}

	if len(closure.RecurPts) > 0 {
		if seq, ok := trySolveRecursion(state, ref, n.Label, closure, argSpec.Result); ok {
			return seq
		}
	}

	var lastFailure Specialization
	for i, form := range closure.Forms {
		snapshot := state.Cache.Snapshot()
		formState := state.withArg(argSpec.Result)
		formState.Closure = closure
		fs := WithNewStack(formState.Depth, func() Specialization { return Specialize(formState, form) })
		if !fs.Failed() {
			return postProcess(state, ref, n.Label, argSpec, fs, i > 0)
		}
		kind, _ := FailureKind(fs.Result)
		if kind == diag.NoEvalFallback {
			return fs
		}
		if !kind.IsSwallowedByEvaluate() {
			return fs
		}
		state.Cache.Restore(snapshot)
		lastFailure = fs
	}
	return lastFailure
}

// evaluateDispatch compiles a union-typed argument dispatch into a
// Switch: one candidate form per union variant, each specialized against
// its own variant type.
func evaluateDispatch(state *State, ref graph.Ref, closure *FunctionClosure, argSpec Specialization) Specialization {
	if argSpec.Result.Kind() != types.KindUnion {
		return fail(state, diag.FatalFailure, "specialize: dispatch requires a Union-typed argument")
	}
	variants := argSpec.Result.Variants()
	if len(closure.Forms) != len(variants) {
		return fail(state, diag.FatalFailure, "specialize: dispatch form count does not match union arity")
	}
	branches := make([]typed.Branch, len(closure.Forms))
	for i, form := range closure.Forms {
		vState := state.withArg(variants[i])
		vState.Closure = closure
		fs := Specialize(vState, form)
		if fs.Failed() {
			return fs
		}
		branches[i] = typed.Branch{VariantIndex: i, Body: fs.Node, ResultType: fs.Result}
	}
	sw := typed.CompileDispatch(state.Out, ref, argSpec.Node, argSpec.Result, branches)
	return Specialization{Node: sw, Result: sw.Node().Result}
}

// trySolveRecursion attempts the closed-form shortcut: speculatively specialize the
// first candidate form under a RuleGenerator-wrapped argument, looking for
// a RecursionTrap at one of the function's recursion points; if the
// argument (and result) evolution across that boundary matches a
// supported closed form, and the rule set holds for N > 1 steps, emit a
// FunctionSequence instead of recursing form-by-form.
func trySolveRecursion(state *State, origin graph.Ref, label string, closure *FunctionClosure, argType *types.Type) (Specialization, bool) {
	recurPts := make(map[graph.Ref]bool, len(closure.RecurPts))
	for _, rp := range closure.RecurPts {
		recurPts[rp] = true
	}
	formGraph := closure.Forms[0]

	set := ruleset.NewTypeRuleSet()
	gen := ruleset.NewGenerator(argType, set)
	preAttempt := state.Cache.Snapshot()

	specState := &State{ArgType: gen.AsType(), Sink: state.Sink, Cache: state.Cache, Mode: state.Mode, Out: state.Out, RecurPts: recurPts, Closure: closure}
	sp := Specialize(specState, formGraph)
	trap, isTrap := AsRecursionTrap(sp.Result)
	if !isTrap {
		state.Cache.Restore(preAttempt)
		return Specialization{}, false
	}

	// A non-varying argument makes no progress and a shapeless one has no
	// formula; either way there is no counted recurrence to emit. Likewise
	// a speculation that recorded no rules at all leaves the depth
	// unbounded, so nothing justifies a finite repeat count.
	scev := ruleset.DeriveSCEV(argType, trap.RecursiveArg)
	if scev.Shape == ruleset.ShapeNone || scev.Shape == ruleset.ShapeFixed {
		state.Cache.Restore(trap.SavedCache)
		return Specialization{}, false
	}
	accessors := set.Accessors()
	if len(accessors) == 0 {
		state.Cache.Restore(trap.SavedCache)
		return Specialization{}, false
	}

	check := ruleset.VerifyChain(set, scev, accessors)
	n := ruleset.SolveRecursionDepth(check)
	if n <= 1 {
		state.Cache.Restore(trap.SavedCache)
		return Specialization{}, false
	}

	outerState := state.withArg(scev.Generalized(0))
	outerState.Closure = closure
	outer := Specialize(outerState, formGraph)
	if outer.Failed() {
		state.Cache.Restore(trap.SavedCache)
		return Specialization{}, false
	}
	innerState := state.withArg(scev.Generalized(1))
	innerState.Closure = closure
	inner := Specialize(innerState, formGraph)
	if inner.Failed() {
		state.Cache.Restore(trap.SavedCache)
		return Specialization{}, false
	}
	resultSCEV := ruleset.DeriveSCEV(outer.Result, inner.Result)

	// The generator body run at the general argument type is reused as
	// both the per-iteration body and the degenerate tail: the simplest
	// valid instance of "repeat N times", left for a later codegen pass to
	// special-case a distinct terminating iteration should one exist.
	generatorState := state.withArg(argType)
	generatorState.Closure = closure
	generator := Specialize(generatorState, formGraph)
	if generator.Failed() {
		state.Cache.Restore(trap.SavedCache)
		return Specialization{}, false
	}

	counter := state.Out.NewConstant(origin, types.Int64(), n)
	argFormula := state.Out.NewConstant(origin, argType, scevLiteral(scev))
	resultFormula := state.Out.NewConstant(origin, outer.Result, scevLiteral(resultSCEV))

	seq := state.Out.NewFunctionSequence(origin, argFormula, resultFormula, counter, generator.Node, generator.Node, n, outer.Result)
	return Specialization{Node: seq, Result: outer.Result}, true
}

// scevLiteral renders an SCEV as a diagnostic/codegen-facing literal
// description; the backend's lowering of FunctionSequence reads the
// formula nodes' Literal field to reconstruct the closed form rather than
// re-deriving it.
func scevLiteral(s *ruleset.SCEV) string {
	switch s.Shape {
	case ruleset.ShapeFixed:
		return "fixed"
	case ruleset.ShapeInvariantAdd:
		return "invariant-add:" + s.Delta.RatString()
	case ruleset.ShapeTupleHeadTail:
		return "tuple-head-tail"
	case ruleset.ShapeUserTypeWrap:
		return "user-type-wrap:" + s.Descriptor
	case ruleset.ShapeProduct:
		return "product(" + scevLiteral(s.Fst) + "," + scevLiteral(s.Rst) + ")"
	default:
		return "none"
	}
}

// postProcess applies the post-call simplifications: identity/constant/zero-size
// shortcuts, the dataflow inliner, and the inline-vs-out-of-line decision.
func postProcess(state *State, origin graph.Ref, label string, argSpec, formSpec Specialization, usedFallbackForm bool) Specialization {
	body := formSpec.Node.Node()

	switch body.Kind() {
	case typed.KindArgument:
		return argSpec
	case typed.KindConstant:
		return formSpec
	}
	if isZeroSize(formSpec.Result) {
		return Specialization{Node: state.Out.NewConstant(origin, formSpec.Result, nil), Result: formSpec.Result}
	}

	if hoisted, ok := hoistPureProjection(state.Out, formSpec.Node, argSpec.Node); ok {
		return Specialization{Node: hoisted, Result: formSpec.Result}
	}

	weight := computeWeight(formSpec.Node)
	call := state.Out.NewFunctionCall(origin, label, formSpec.Node, argSpec.Node, formSpec.Result, weight)

	if weight <= maxInlineWeight || usedFallbackForm {
		inlined := substituteArgument(state.Out, formSpec.Node, argSpec.Node, make(map[typed.Ref]typed.Ref))
		return Specialization{Node: inlined, Result: formSpec.Result}
	}
	return Specialization{Node: call, Result: formSpec.Result}
}
