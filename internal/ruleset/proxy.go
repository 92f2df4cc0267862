package ruleset

import (
	"math/big"

	"github.com/sunholo/sigcore/internal/types"
)

// Generator is a RuleGenerator: a type proxy wrapping a template Type,
// bound to a shared TypeRuleSet. Projections (First, Rest,
// UnwrapUserType) and arithmetic (Add, Sub) return a fresh Generator with an
// extended accessor path and record nothing; the value queries
// (OrdinalCompare, IsNilQuery, IsEqual) record a constraint into Set at
// that path.
type Generator struct {
	Template *types.Type
	Set      *TypeRuleSet
	path     Accessor // accumulated accessor path for this proxy, e.g. "First.Rest"
}

// NewGenerator wraps template as a fresh speculative proxy bound to set,
// ("wrap A1's argument type in a fresh RuleGenerator bound
// to a new TypeRuleSet").
func NewGenerator(template *types.Type, set *TypeRuleSet) *Generator {
	return &Generator{Template: template, Set: set, path: ""}
}

func (g *Generator) extend(suffix string) Accessor {
	if g.path == "" {
		return Accessor(suffix)
	}
	return Accessor(string(g.path) + "." + suffix)
}

// AsType wraps this generator as a types.Type bearing KindRuleGenerator.
func (g *Generator) AsType() *types.Type { return types.RuleGenerator(g) }

// IsPair answers whether the template is a Tuple. When the template type
// is itself unknown this would record an axiom; in this closed model the
// template is always concrete so the answer is rule-free.
func (g *Generator) IsPair() bool { return g.Template.Kind() == types.KindTuple }

// First returns a new Generator proxying the template's head, with "First"
// appended to the accessor path so later queries record their rules
// against it. It records no rule itself.
func (g *Generator) First() *Generator {
	child := &Generator{Template: g.Template.First(), Set: g.Set, path: g.extend("First")}
	return child
}

// Rest returns a new Generator proxying the template's tail.
func (g *Generator) Rest() *Generator {
	child := &Generator{Template: g.Template.Rest(), Set: g.Set, path: g.extend("Rest")}
	return child
}

// UnwrapUserType returns a new Generator proxying the template's content.
func (g *Generator) UnwrapUserType() *Generator {
	child := &Generator{Template: g.Template.Content(), Set: g.Set, path: g.extend("Unwrap")}
	return child
}

// OrdinalCompare records a numerical rule bounding this accessor relative
// to other, and returns the three-way comparison of the underlying
// Invariant templates (both sides must be concrete Invariants here: the
// generator always wraps a concrete speculative argument, never an
// unresolved symbolic unknown).
func (g *Generator) OrdinalCompare(other *big.Rat) int {
	cmp := g.Template.InvariantValue().Cmp(other)
	switch {
	case cmp < 0:
		g.Set.RecordNumerical(g.path, nil, &Bound{Value: other, Open: true})
	case cmp > 0:
		g.Set.RecordNumerical(g.path, &Bound{Value: other, Open: true}, nil)
	default:
		g.Set.RecordAxiom(g.path, other.RatString(), true)
	}
	return cmp
}

// IsNilQuery answers whether the template is the nil terminator and
// records the corresponding axiom: a recursion guarded on emptiness
// records, at this accessor, that the value stayed non-nil for every step
// the body ran (or was nil on the terminating probe). The depth solver
// replays the accessor against the closed form to find where that stops
// holding.
func (g *Generator) IsNilQuery() bool {
	isNil := g.Template.IsNil()
	g.Set.RecordAxiom(g.path, "nil", isNil)
	return isNil
}

// IsEqual records an axiom that this accessor equals (or does not equal)
// value, and returns the boolean result for the concrete template.
func (g *Generator) IsEqual(value interface{}) bool {
	eq := equalValue(g.Template, value)
	g.Set.RecordAxiom(g.path, value, eq)
	return eq
}

func equalValue(t *types.Type, value interface{}) bool {
	switch v := value.(type) {
	case *big.Rat:
		return t.Kind() == types.KindInvariant && t.InvariantValue().Cmp(v) == 0
	case int64:
		return t.Kind() == types.KindInvariant && t.InvariantValue().Cmp(new(big.Rat).SetInt64(v)) == 0
	case string:
		return t.Kind() == types.KindInvariantString && t.StringValue() == v
	default:
		return false
	}
}

// Add is a rule-free arithmetic combination: a new Generator whose template
// is the sum and whose accessor path gains an "Add" step. No rule is
// recorded.
func (g *Generator) Add(delta *big.Rat) *Generator {
	sum := new(big.Rat).Add(g.Template.InvariantValue(), delta)
	child := &Generator{Template: types.Invariant(sum), Set: g.Set, path: g.extend("Add")}
	return child
}

// Sub is the Add counterpart for subtraction.
func (g *Generator) Sub(delta *big.Rat) *Generator {
	return g.Add(new(big.Rat).Neg(delta))
}
