package ruleset

import (
	"strings"

	"github.com/sunholo/sigcore/internal/types"
)

// maxProbe bounds the binary search at N = 2^31.
const maxProbe int64 = 1 << 31

// CheckFunc evaluates, for a candidate recursion depth n, whether every
// accessor's recorded rule still holds. In the real pipeline this runs a
// speculative specialization of the rule-generator body at argBundle(n)
// and inspects whatever axioms/numerical facts it records; here it is
// injected so the solver itself stays free of any specialization-state
// dependency (keeping package ruleset a leaf package).
type CheckFunc func(n int64) bool

// SolveRecursionDepth is TypeRuleSet's single entry point: given a
// closed-form argBundle(N) (folded into check), find the largest N >= 1
// for which every recorded rule is satisfied for all argument values in
// argBundle(0..N-1), by doubling probe then bisection. Returns 1 if even
// the first recursive step already violates a rule (no closed form
// applies; the caller falls back to form-by-form specialization).
func SolveRecursionDepth(check CheckFunc) int64 {
	if !check(1) {
		return 1
	}

	// Doubling probe: find an upper bound that fails (or hit the cap).
	lo := int64(1)
	hi := int64(2)
	for hi < maxProbe && check(hi) {
		lo = hi
		hi *= 2
	}
	if hi >= maxProbe {
		return maxProbe
	}

	// Bisect to the largest N in (lo, hi] for which check holds.
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if check(mid) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// ProjectAccessor applies an accessor path to a concrete type: the
// structural-query chain the rule was recorded under, replayed against a
// candidate argument. Returns nil when the path does not apply (a
// projection step the type's shape cannot answer, or an arithmetic step
// like "Add" that has no inverse here) — the verifier treats that as the
// rule no longer being checkable, which stops the depth search
// conservatively.
func ProjectAccessor(acc Accessor, t *types.Type) *types.Type {
	if acc == "" {
		return t
	}
	for _, step := range strings.Split(string(acc), ".") {
		if t == nil {
			return nil
		}
		switch step {
		case "First":
			if t.Kind() != types.KindTuple {
				return nil
			}
			t = t.First()
		case "Rest":
			if t.Kind() != types.KindTuple {
				return nil
			}
			t = t.Rest()
		case "Unwrap":
			if t.Kind() != types.KindUserType {
				return nil
			}
			t = t.Content()
		default:
			return nil
		}
	}
	return t
}

// axiomValue renders a projected type in the value domain axiom rules are
// recorded in: the nil terminator as "nil", compile-time constants as
// their literal text, anything else as its kind name.
func axiomValue(t *types.Type) interface{} {
	switch t.Kind() {
	case types.KindNil:
		return "nil"
	case types.KindInvariant:
		return t.InvariantValue().RatString()
	case types.KindInvariantString:
		return t.StringValue()
	default:
		return t.Kind().String()
	}
}

// VerifyChain builds the depth-solver's check function for a derived
// closed form: check(n) holds when every recorded rule is satisfied at
// the last executed step, f(n-1) — the rules describe what the body's
// guards required of each argument the body actually ran on, and along
// the monotone chains this pipeline derives closed forms for, the last
// step is the binding one. Each accessor's projection is replayed against
// the generalized argument; numerical rules check the projected
// invariant's value, axiom rules its rendered literal.
func VerifyChain(s *TypeRuleSet, scev *SCEV, accessors []Accessor) CheckFunc {
	return func(n int64) bool {
		v := scev.Generalized(n - 1)
		for _, acc := range accessors {
			p := ProjectAccessor(acc, v)
			if p == nil {
				return false
			}
			if p.Kind() == types.KindInvariant {
				if !s.numericHoldsAt(acc, p.InvariantValue()) {
					return false
				}
			}
			if !s.axiomHoldsAt(acc, axiomValue(p)) {
				return false
			}
		}
		return true
	}
}
