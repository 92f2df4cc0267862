package reactive

import (
	"fmt"

	"github.com/sunholo/sigcore/internal/typed"
)

// maxVectorLength caps the SIMD batching width the activation matrix may
// pick.
const maxVectorLength = 16

// Analyze performs the bottom-up reactive analysis over every node
// reachable from root: native/pure nodes adopt the fused set of their
// upstream reactivities; ring buffers impose a DriverNode for their own
// clock; edges whose endpoints disagree on reactivity are recorded as
// Boundary values for the side-effect lowering pass to turn into
// BoundaryBuffer nodes.
//
// A ring buffer's feedback edge loops back into the buffer itself;
// Analyze assigns the buffer's own DriverNode *before* walking its
// upstreams, so the recursive reference resolves to an
// already-assigned node instead of walking forever — the same "allocate
// the placeholder, then fill the cycle-closing edge" discipline the typed
// and generic graphs use for the node itself, applied here to its
// reactivity.
func Analyze(root typed.Ref) (*Analysis, []Boundary) {
	a := &Analysis{
		nodeReactivity: make(map[typed.Ref]Node),
		driverIndex:    make(map[driverKey]*DriverNode),
	}
	var boundaries []Boundary
	ringBufferCount := 0

	var walk func(ref typed.Ref) Node
	walk = func(ref typed.Ref) Node {
		if r, ok := a.nodeReactivity[ref]; ok {
			return r
		}
		n := ref.Node()
		if n == nil {
			return nil
		}

		if n.Kind() == typed.KindRingBuffer {
			ringBufferCount++
			driver := a.internDriver(ringBufferID(ringBufferCount), 1, 1, ClassRecursive, n.Result)
			a.nodeReactivity[ref] = driver
			for _, up := range n.Upstreams() {
				if upR := walk(up); differs(upR, Node(driver)) {
					boundaries = append(boundaries, Boundary{From: up, To: ref, Source: upR, Sink: driver})
				}
			}
			return driver
		}

		ups := n.Upstreams()
		upReactivities := make([]Node, len(ups))
		for i, up := range ups {
			upReactivities[i] = walk(up)
		}
		r := fuse(upReactivities)
		a.nodeReactivity[ref] = r

		for i, up := range ups {
			if differs(upReactivities[i], r) {
				boundaries = append(boundaries, Boundary{From: up, To: ref, Source: upReactivities[i], Sink: r})
			}
		}
		return r
	}

	walk(root)
	return a, boundaries
}

func ringBufferID(n int) string {
	return fmt.Sprintf("rbuf%d", n)
}

func differs(a, b Node) bool {
	if a == nil && b == nil {
		return false
	}
	if a == nil || b == nil {
		return true
	}
	return a != b
}

// Boundary records an IR edge whose source and sink reactivities differ:
// the side-effect lowering pass turns these into last-value-held
// BoundaryBuffer nodes of single-frame capacity (not derived from the two
// sides' rate ratio).
type Boundary struct {
	From, To typed.Ref
	Source   Node
	Sink     Node
}

// ActivationEntry is one driver's contribution to the activation matrix: its
// rate relative to the compilation unit's superclock, expressed as the
// (multiplier, divisor) pair the driver itself carries.
type ActivationEntry struct {
	Driver     *DriverNode
	Multiplier int64
	Divisor    int64
}

// ActivationMatrix is the top-level output of reactive analysis consumed by
// the scheduler: the superclock length (LCM of every driver period)
// and the vector iteration length picked for SIMD batching.
type ActivationMatrix struct {
	Entries      []ActivationEntry
	Superclock   int64
	VectorLength int
}

// BuildActivationMatrix derives the superclock (LCM of every driver's
// divisor) and a vector length dividing it, capped at maxVectorLength.
func BuildActivationMatrix(a *Analysis) ActivationMatrix {
	drivers := a.Drivers()
	entries := make([]ActivationEntry, len(drivers))
	superclock := int64(1)
	for i, d := range drivers {
		mul, div := d.Sig.Mul, d.Sig.Div
		if mul == 0 {
			mul = 1
		}
		if div == 0 {
			div = 1
		}
		entries[i] = ActivationEntry{Driver: d, Multiplier: mul, Divisor: div}
		superclock = lcm(superclock, div)
	}
	if superclock < 1 {
		superclock = 1
	}

	vecLen := maxVectorLength
	for vecLen > 1 && superclock%int64(vecLen) != 0 {
		vecLen--
	}
	return ActivationMatrix{Entries: entries, Superclock: superclock, VectorLength: vecLen}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

func lcm(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	v := a / gcd(a, b) * b
	if v < 0 {
		return -v
	}
	return v
}
