package graph

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Hash is a node's stable structural hash: its local content hash
// combined with its upstreams' hashes, so two structurally identical
// sub-graphs collide regardless of where they were built.
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:8]) }

// computeHash is called once, at allocation time, since nodes are
// immutable after creation, with PatchCycle the one exception:
// PatchCycle recomputes the Reconnect node's hash since that is one of the
// exceptions (closing a deferred cycle edge).
func computeHash(n *GenericNode) Hash {
	hs := sha256.New()

	var kindBuf [8]byte
	binary.LittleEndian.PutUint64(kindBuf[:], uint64(n.kind))
	hs.Write(kindBuf[:])
	hs.Write([]byte(n.Label))
	hs.Write([]byte(fmt.Sprintf("%v", n.Literal)))

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(n.BufferLen))
	hs.Write(lenBuf[:])

	for _, p := range n.Params {
		hs.Write([]byte(p))
		hs.Write([]byte{0})
	}

	for _, u := range n.upstreams {
		if u.Valid() {
			uh := u.Node().hash
			hs.Write(uh[:])
		} else {
			hs.Write([]byte{0xff})
		}
	}

	var out Hash
	copy(out[:], hs.Sum(nil))
	return out
}
