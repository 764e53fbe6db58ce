package tree

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phil-mansfield/quadgrav/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// preorder is a recursive reference traversal for Flatten.
func preorder(tr *Tree, i int32, out []Summary) []Summary {
	n := tr.Node(i)
	if n.Mass == 0 {
		return out
	}
	out = append(out, Summary{n.Mass, n.COM})
	if first, ok := n.Children(); ok {
		for q := int32(0); q < geom.QuadrantCount; q++ {
			out = preorder(tr, first+q, out)
		}
	}
	return out
}

func TestFlattenCompleteness(t *testing.T) {
	gen := rand.New(rand.NewSource(99))
	tr := newTestTree()
	var list []Summary

	for _, n := range []int{1, 2, 17, 256, 3000} {
		tr.Build(randomPoints(gen, n, 4), 1, nil)
		list = tr.Flatten(list)

		assert.Equal(t, tr.NonzeroNodes(), len(list), "n = %d", n)
		require.NotEmpty(t, list)

		// The root comes first and alone accounts for the total mass.
		assert.Equal(t, tr.Mass(), list[0].Mass)
		assert.Equal(t, tr.Node(Root).COM, list[0].COM)
		assert.InDelta(t, float64(n), list[0].Mass, 1e-9)

		assert.Equal(t, preorder(tr, Root, nil), list, "n = %d", n)
	}
}

// The summary list repeats the mass of every particle at each tree level
// above it. This is the documented behavior of the flat summary mode and
// the reason force.BarnesHut walks the tree instead.
func TestFlattenDoubleCounts(t *testing.T) {
	tr := newTestTree()
	tr.Insert(mgl64.Vec2{-1, -1}, 1)
	tr.Insert(mgl64.Vec2{1, 1}, 1)

	list := tr.Flatten(nil)
	require.Len(t, list, 3)
	assert.Equal(t, 2.0, tr.Mass())
	assert.Equal(t, 4.0, SummaryMass(list))

	gen := rand.New(rand.NewSource(5))
	tr.Build(randomPoints(gen, 1000, 4), 1, nil)
	list = tr.Flatten(list)
	assert.Greater(t, SummaryMass(list), tr.Mass())
}

func TestFlattenSingle(t *testing.T) {
	tr := newTestTree()
	assert.Empty(t, tr.Flatten(nil), "empty tree has no entries")

	tr.Insert(mgl64.Vec2{0.5, 0.25}, 2)
	list := tr.Flatten(nil)
	require.Len(t, list, 1)
	assert.Equal(t, Summary{2, mgl64.Vec2{0.5, 0.25}}, list[0])
	assert.Equal(t, tr.Mass(), SummaryMass(list))
}

func TestFlattenPrunesEmptyQuadrants(t *testing.T) {
	tr := newTestTree()
	tr.Insert(mgl64.Vec2{1, 1}, 1)
	tr.Insert(mgl64.Vec2{1.5, 1.5}, 1)

	list := tr.Flatten(nil)
	assert.Less(t, len(list), tr.Len())
	for _, s := range list {
		assert.NotZero(t, s.Mass)
	}
}
