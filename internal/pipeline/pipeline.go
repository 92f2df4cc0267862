// Package pipeline wires the whole compiler core together:
// SpecializationTransform, ReactiveAnalysis, SideEffectTransform +
// CopyElision, CallGraphAnalysis + CodeGenModule, the activity-masked
// scheduler, and a pluggable Backend, producing the typed/scheduled IR,
// symbol table, and (optionally) an emitted backend artifact that make up
// the core's output: a single Config-driven Compile entry point sequencing
// pass boundaries, each boundary returning a value or a diag.Report-shaped
// failure.
package pipeline

import (
	"fmt"

	"github.com/sunholo/sigcore/internal/codegen"
	"github.com/sunholo/sigcore/internal/config"
	"github.com/sunholo/sigcore/internal/diag"
	"github.com/sunholo/sigcore/internal/graph"
	"github.com/sunholo/sigcore/internal/iface"
	"github.com/sunholo/sigcore/internal/lower"
	"github.com/sunholo/sigcore/internal/reactive"
	"github.com/sunholo/sigcore/internal/schedule"
	"github.com/sunholo/sigcore/internal/specialize"
	"github.com/sunholo/sigcore/internal/typed"
	"github.com/sunholo/sigcore/internal/types"
)

// Request is everything the pipeline needs to compile one program:
// the root Evaluate node of a generic graph, the runtime argument type,
// and (advisory only — the pipeline does not re-check it) the caller's
// desired result type for diagnostics.
type Request struct {
	Root       graph.Ref
	ArgType    *types.Type
	ResultType *types.Type // optional; used only for a mismatch diagnostic
	Sink       diag.Sink
	Config     *config.Config
}

// Result is the core's end-of-compilation handoff to a backend.
type Result struct {
	TypedRoot        typed.Ref
	Lowered          lower.Result
	Reactivity       *reactive.Analysis
	ActivationMatrix reactive.ActivationMatrix
	Schedule         schedule.Plan
	Blocks           []schedule.Block
	Symbols          *iface.Table
}

// Compile runs every pass in the flow diagram in order and returns the
// handoff package a backend consumes, or a diag.Report-wrapped error from
// whichever pass failed first.
func Compile(req Request) (*Result, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = config.Default()
	}

	// 1. SpecializationTransform: monomorphize the generic graph against
	// the concrete argument type.
	state := specialize.NewState(req.ArgType, req.Sink)
	sp := specialize.Specialize(state, req.Root)
	if sp.Failed() {
		kind, _ := specialize.FailureKind(sp.Result)
		return nil, diag.Wrap(diag.New(kind, "specialize", "specialization failed").WithData("argType", req.ArgType))
	}
	if req.ResultType != nil && types.IsFixed(req.ResultType) && !types.Equal(sp.Result, req.ResultType) {
		diag.Emit(req.Sink, diag.New(diag.FatalFailure, "specialize", fmt.Sprintf("result type mismatch: want %v got %v", req.ResultType, sp.Result)))
	}

	// 2. ReactiveAnalysis: assign a clock signature to every typed node,
	// recording sample-rate boundaries.
	analysis, boundaries := reactive.Analyze(sp.Node)
	matrix := reactive.BuildActivationMatrix(analysis)

	// 3. SideEffectTransform + CopyElision: lower to imperative IR with
	// explicit buffers/copies/state slots, then fold away redundant copies
	// and pair reconstructions.
	lowered := lower.SideEffectTransform(sp.Node, boundaries)
	lowered = lower.Elide(lowered)

	// 4. CallGraphAnalysis + CodeGenModule: collate subroutine call edges,
	// allocate state-slot indices, and build the symbol table.
	cgm := codegen.NewCodeGenModule(lowered.Region)
	roots := append([]lower.Ref{lowered.Value}, lowered.Effects...)
	callGraph := codegen.AnalyzeCallGraph(roots)
	_ = callGraph // tail-call eligibility is consumed by a backend's emission choice, not by this orchestrator

	cgm.Register(iface.SymbolEntry{Key: "arg", UID: "arg0", Type: req.ArgType, Variety: iface.VarietyArgument})
	for _, d := range analysis.Drivers() {
		cgm.Register(iface.SymbolEntry{
			Key:     d.ID,
			UID:     d.ID,
			Type:    d.Sig.Metadata,
			Variety: iface.VarietyStream,
			Rate:    iface.Rate{Mul: d.Sig.Mul, Div: d.Sig.Div},
			Clock:   iface.Clock(d.ID),
		})
	}

	rx := schedule.NewReactivity(analysis)
	driverIndex := make(map[*reactive.DriverNode]uint, len(analysis.Drivers()))
	for i, d := range analysis.Drivers() {
		driverIndex[d] = uint(i)
	}
	cgm.SetMaskWordCount(maskWordCount(len(driverIndex)))

	// 5. Scheduling: derive activity masks and a
	// topological order honoring the three-key tie-break, then group into
	// contiguous masked blocks for eager/passive-emit regions.
	body := schedule.Body{Value: lowered.Value, Effects: lowered.Effects}
	plan := schedule.Schedule(body, rx, driverIndex)
	blocks := schedule.GroupBlocks(plan.Order, plan.Masks)

	return &Result{
		TypedRoot:        sp.Node,
		Lowered:          lowered,
		Reactivity:       analysis,
		ActivationMatrix: matrix,
		Schedule:         plan,
		Blocks:           blocks,
		Symbols:          cgm.Table(),
	}, nil
}

func maskWordCount(drivers int) int {
	if drivers == 0 {
		return 0
	}
	return (drivers + 63) / 64
}
