// Package diag implements the error-handling contract: errors are
// values, not control-flow jumps. The taxonomy covers the seven-kind
// specialization-failure classification this pipeline actually raises,
// rather than a generic parser/loader/typecheck phase taxonomy.
package diag

// Kind is the closed failure-class taxonomy.
type Kind string

const (
	// SpecializationFailure means a form did not match; the Evaluate
	// algorithm tries the next candidate form.
	SpecializationFailure Kind = "SpecializationFailure"

	// PropagateFailure means any failure propagates with no fallback.
	PropagateFailure Kind = "PropagateFailure"

	// NoEvalFallback means skip all remaining forms without raising.
	NoEvalFallback Kind = "NoEvalFallback"

	// FatalFailure is unrecoverable: malformed input, undefined symbol.
	FatalFailure Kind = "FatalFailure"

	// RecursionTrap marks a speculative-recursion trap for the solver. The
	// savedCache handoff travels in the specialization result's tagged
	// trap payload, not in the Report's Data field.
	RecursionTrap Kind = "RecursionTrap"

	// MonitoredError wraps a downstream error for callback reporting,
	// keyed by Data["key"].
	MonitoredError Kind = "MonitoredError"

	// UserException is Raise-d by user code; catchable by Handle.
	UserException Kind = "UserException"
)

// IsSwallowedByEvaluate reports whether the Evaluate call site should
// swallow this kind and try the next candidate form, as opposed to
// propagating it to the caller.
func (k Kind) IsSwallowedByEvaluate() bool {
	return k == SpecializationFailure
}
