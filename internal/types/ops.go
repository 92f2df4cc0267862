package types

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Hash is a stable structural hash: hash(clone(t)) == hash(t) for all fixed
// t, and hash(a) == hash(b) whenever Equal(a, b). It is computed over a
// canonical byte encoding of the tagged value.
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:8]) }

// HashOf computes the structural hash of t.
func HashOf(t *Type) Hash { return hashType(t) }

func hashType(t *Type) Hash {
	hs := sha256.New()
	writeType(hs, t)
	var out Hash
	copy(out[:], hs.Sum(nil))
	return out
}

func writeType(w interface{ Write([]byte) (int, error) }, t *Type) {
	if t == nil {
		w.Write([]byte{0xff})
		return
	}
	var kindBuf [8]byte
	binary.LittleEndian.PutUint64(kindBuf[:], uint64(t.kind))
	w.Write(kindBuf[:])

	switch t.kind {
	case KindVector:
		var b [16]byte
		binary.LittleEndian.PutUint64(b[:8], uint64(t.nativeElem))
		binary.LittleEndian.PutUint64(b[8:], uint64(t.width))
		w.Write(b[:])
	case KindInvariant:
		w.Write([]byte(t.real.RatString()))
	case KindInvariantString:
		w.Write([]byte(t.str))
	case KindInvariantGraph:
		w.Write([]byte(fmt.Sprintf("%p", t.quoted)))
	case KindTypeTag:
		w.Write([]byte(t.descriptor))
	case KindTuple:
		writeType(w, t.fst)
		writeType(w, t.rst)
	case KindUserType:
		w.Write([]byte(t.descriptor))
		writeType(w, t.content)
	case KindUnion:
		for _, v := range t.variants {
			writeType(w, v)
		}
	case KindArrayView:
		writeType(w, t.elem)
	case KindRuleGenerator:
		w.Write([]byte(fmt.Sprintf("%p", t.proxy)))
	case KindInternalRef:
		w.Write([]byte(fmt.Sprintf("%p", t.ref)))
	}
}

// IsFixed reports whether t contains no RuleGenerator anywhere; only fixed
// types may cross between transforms.
func IsFixed(t *Type) bool {
	if t == nil {
		return true
	}
	switch t.kind {
	case KindRuleGenerator:
		return false
	case KindTuple:
		return IsFixed(t.fst) && IsFixed(t.rst)
	case KindUserType:
		return IsFixed(t.content)
	case KindUnion:
		for _, v := range t.variants {
			if !IsFixed(v) {
				return false
			}
		}
		return true
	case KindArrayView:
		return IsFixed(t.elem)
	default:
		return true
	}
}

// Equal reports structural equality: deep comparison of the tagged value.
// The hash agreeing on equal values is maintained by construction, so Equal
// performs the deep compare directly and callers may use Hash as a
// cheap pre-filter (e.g. map keys) when comparing many pairs.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil, KindTrue, KindFloat32, KindFloat64, KindInt32, KindInt64:
		return true
	case KindVector:
		return a.nativeElem == b.nativeElem && a.width == b.width
	case KindInvariant:
		return a.real.Cmp(b.real) == 0
	case KindInvariantString:
		return a.str == b.str
	case KindInvariantGraph:
		return a.quoted == b.quoted
	case KindTypeTag:
		return a.descriptor == b.descriptor
	case KindTuple:
		return Equal(a.fst, b.fst) && Equal(a.rst, b.rst)
	case KindUserType:
		return a.descriptor == b.descriptor && Equal(a.content, b.content)
	case KindUnion:
		if len(a.variants) != len(b.variants) {
			return false
		}
		for i := range a.variants {
			if !Equal(a.variants[i], b.variants[i]) {
				return false
			}
		}
		return true
	case KindArrayView:
		return Equal(a.elem, b.elem)
	case KindRuleGenerator:
		return a.proxy == b.proxy
	case KindInternalRef:
		return a.ref == b.ref
	default:
		return false
	}
}

// nativeSize returns the padded byte size of a native scalar/vector kind,
// used by SameStructuralSize to validate Union variant compatibility.
func nativeSize(t *Type) (int, bool) {
	switch t.kind {
	case KindFloat32, KindInt32:
		return 4, true
	case KindFloat64, KindInt64:
		return 8, true
	case KindNil, KindTrue:
		return 0, true
	case KindVector:
		elemSize, ok := nativeElemSize(t.nativeElem)
		if !ok {
			return 0, false
		}
		return elemSize * t.width, true
	case KindTuple:
		fSize, ok := nativeSize(t.fst)
		if !ok {
			return 0, false
		}
		rSize, ok := nativeSize(t.rst)
		if !ok {
			return 0, false
		}
		return fSize + rSize, true
	case KindUserType:
		return nativeSize(t.content)
	default:
		return 0, false
	}
}

func nativeElemSize(e NativeElem) (int, bool) {
	switch e {
	case ElemFloat32, ElemInt32:
		return 4, true
	case ElemFloat64, ElemInt64:
		return 8, true
	default:
		return 0, false
	}
}

// SameStructuralSize reports whether every variant of a Union type has an
// identical structural size after padding, the precondition runtime
// dispatch relies on.
func SameStructuralSize(u *Type) bool {
	if u.kind != KindUnion || len(u.variants) == 0 {
		return true
	}
	first, ok := nativeSize(u.variants[0])
	if !ok {
		return false
	}
	for _, v := range u.variants[1:] {
		sz, ok := nativeSize(v)
		if !ok || sz != first {
			return false
		}
	}
	return true
}
