package tree

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Summary is the aggregate of one tree node: a point mass located at the
// node's center of mass.
type Summary struct {
	Mass float64
	COM  mgl64.Vec2
}

// Flatten writes a pre-order listing of every node with nonzero mass into buf
// and returns it. Children are visited in NW, NE, SW, SE order and zero-mass
// subtrees are pruned.
//
// Both internal nodes and leaves are emitted, so a particle's mass appears
// once for every level of the tree above it. The list is therefore a crude
// "soft field" rather than a Barnes-Hut decomposition; see SummaryMass.
func (t *Tree) Flatten(buf []Summary) []Summary {
	buf = buf[:0]

	t.stack = append(t.stack[:0], Root)
	for len(t.stack) > 0 {
		i := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]

		n := &t.nodes[i]
		if n.Mass == 0 {
			continue
		}
		buf = append(buf, Summary{n.Mass, n.COM})

		if n.IsLeaf() {
			continue
		}
		// Pushed in reverse so that NW is popped first.
		for q := int32(3); q >= 0; q-- {
			t.stack = append(t.stack, n.child+q)
		}
	}

	return buf
}

// SummaryMass returns the total mass listed in a summary list. For any tree
// which has been subdivided this is larger than the tree's mass, since
// internal nodes repeat the mass of their descendants.
func SummaryMass(list []Summary) float64 {
	sum := 0.0
	for i := range list {
		sum += list[i].Mass
	}
	return sum
}
