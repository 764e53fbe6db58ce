// Package tree builds quadrant-subdivision aggregation trees over 2D point
// masses. A Tree is rebuilt from scratch every simulation step: Build
// bulk-clears the node arena and re-inserts every particle, so nodes are
// addressed by index and never freed individually.
package tree

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phil-mansfield/quadgrav/geom"
)

const (
	// Root is the arena index of the root node.
	Root int32 = 0

	noChild int32 = -1
)

// Node is one aggregation node of a Tree. Mass and COM are the aggregate
// mass and center of mass of everything below the node. COM is meaningless
// when Mass is zero.
type Node struct {
	Bounds geom.Rect
	Mass   float64
	COM    mgl64.Vec2

	// index of the first of four consecutive children, or noChild.
	child int32

	hasSample  bool
	sample     mgl64.Vec2
	sampleMass float64
}

// IsLeaf returns true if the node has not been subdivided.
func (n *Node) IsLeaf() bool { return n.child == noChild }

// Children returns the index of the node's NW child. The remaining children
// follow it in NE, SW, SE order. ok is false for leaves.
func (n *Node) Children() (first int32, ok bool) {
	return n.child, n.child != noChild
}

// Sample returns the point mass held directly by a leaf.
func (n *Node) Sample() (p mgl64.Vec2, m float64, ok bool) {
	return n.sample, n.sampleMass, n.hasSample
}

func (n *Node) empty() bool {
	return n.child == noChild && !n.hasSample
}

func (n *Node) setSample(p mgl64.Vec2, m float64) {
	n.hasSample = true
	n.sample, n.sampleMass = p, m
	n.Mass, n.COM = m, p
}

// merge folds a point mass into the node's sample. The sample is moved to the
// combined center of mass so that a later subdivision re-inserts the merged
// cluster where its mass actually is.
func (n *Node) merge(p mgl64.Vec2, m float64) {
	total := n.sampleMass + m
	if total > 0 {
		n.sample = n.sample.Mul(n.sampleMass / total).Add(p.Mul(m / total))
	}
	n.sampleMass = total
	n.Mass, n.COM = total, n.sample
}

// Tree is an arena of Nodes.
type Tree struct {
	nodes    []Node
	bounds   geom.Rect
	minWidth float64
	mergeEps float64

	stats BuildStats
	stack []int32
}

// BuildStats counts the corrective actions taken while building a Tree.
type BuildStats struct {
	// Inserted is the number of particles inserted into the tree.
	Inserted int
	// OutOfBounds is the number of particles which were outside the root
	// bounds and were left out of the tree.
	OutOfBounds int
	// Skipped is the number of particles which were excluded by the caller.
	Skipped int
	// Degenerate is the number of insertions merged into an existing sample
	// because the node was too small to subdivide.
	Degenerate int
}

// New returns an empty Tree whose root covers bounds. Nodes narrower than
// minWidth along either axis are never subdivided and points within mergeEps
// of a leaf's sample along both axes are merged into it.
func New(bounds geom.Rect, minWidth, mergeEps float64) *Tree {
	t := &Tree{bounds: bounds, minWidth: minWidth, mergeEps: mergeEps}
	t.Reset()
	return t
}

// Reset discards every node except an empty root. The arena's backing array
// is retained.
func (t *Tree) Reset() {
	t.nodes = t.nodes[:0]
	t.nodes = append(t.nodes, Node{Bounds: t.bounds, child: noChild})
	t.stats = BuildStats{}
}

// Bounds returns the bounds of the root node.
func (t *Tree) Bounds() geom.Rect { return t.bounds }

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node at index i. The pointer is invalidated by the next
// call to Insert, Build, or Reset.
func (t *Tree) Node(i int32) *Node { return &t.nodes[i] }

// Stats returns the counters accumulated since the last Reset.
func (t *Tree) Stats() BuildStats { return t.stats }

// Mass returns the total mass held by the tree.
func (t *Tree) Mass() float64 { return t.nodes[Root].Mass }

// Build resets the tree and inserts every position in xs, in order, with
// mass m. Particles with skip[i] set are left out; skip may be nil. Positions
// outside the root bounds are left out too and counted in OutOfBounds.
func (t *Tree) Build(xs []mgl64.Vec2, m float64, skip []bool) BuildStats {
	t.Reset()
	for i, p := range xs {
		if skip != nil && skip[i] {
			t.stats.Skipped++
			continue
		}
		t.Insert(p, m)
	}
	return t.stats
}

// Insert adds a point mass to the tree. Points outside the root bounds are
// not inserted and Insert returns false.
func (t *Tree) Insert(p mgl64.Vec2, m float64) bool {
	if !t.bounds.Contains(p) {
		t.stats.OutOfBounds++
		return false
	}
	t.stats.Inserted++
	t.insert(Root, p, m)
	return true
}

func (t *Tree) colocated(a, b mgl64.Vec2) bool {
	return math.Abs(a[0]-b[0]) <= t.mergeEps &&
		math.Abs(a[1]-b[1]) <= t.mergeEps
}

func (t *Tree) insert(i int32, p mgl64.Vec2, m float64) {
	n := &t.nodes[i]

	if n.empty() {
		n.setSample(p, m)
		return
	} else if n.hasSample && t.colocated(n.sample, p) {
		n.merge(p, m)
		return
	}

	if n.IsLeaf() {
		if n.Bounds.Width() < t.minWidth || n.Bounds.Height() < t.minWidth {
			n.merge(p, m)
			t.stats.Degenerate++
			return
		}

		t.subdivide(i)
		n = &t.nodes[i]

		if n.hasSample {
			s, sm := n.sample, n.sampleMass
			n.hasSample = false
			n.sample, n.sampleMass = mgl64.Vec2{}, 0
			t.insert(n.child+int32(n.Bounds.Quadrant(s)), s, sm)
			n = &t.nodes[i]
		}
	}

	t.insert(n.child+int32(n.Bounds.Quadrant(p)), p, m)
	t.aggregate(i)
}

// subdivide appends the four quadrant children of node i to the arena.
func (t *Tree) subdivide(i int32) {
	first := int32(len(t.nodes))
	bounds := t.nodes[i].Bounds
	for q := 0; q < geom.QuadrantCount; q++ {
		t.nodes = append(t.nodes, Node{Bounds: bounds.Child(q), child: noChild})
	}
	t.nodes[i].child = first
}

// aggregate recomputes the mass and center of mass of node i from its
// children.
func (t *Tree) aggregate(i int32) {
	n := &t.nodes[i]
	mass, com := 0.0, mgl64.Vec2{}
	for q := int32(0); q < geom.QuadrantCount; q++ {
		c := &t.nodes[n.child+q]
		if c.Mass == 0 {
			continue
		}
		mass += c.Mass
		com = com.Add(c.COM.Mul(c.Mass))
	}
	n.Mass = mass
	if mass > 0 {
		n.COM = com.Mul(1 / mass)
	}
}

// NonzeroNodes returns the number of nodes with nonzero mass.
func (t *Tree) NonzeroNodes() int {
	n := 0
	for i := range t.nodes {
		if t.nodes[i].Mass != 0 {
			n++
		}
	}
	return n
}

// Depth returns the number of levels in the tree. A tree holding only a root
// has depth 1.
func (t *Tree) Depth() int {
	return t.depth(Root)
}

func (t *Tree) depth(i int32) int {
	n := &t.nodes[i]
	if n.IsLeaf() {
		return 1
	}
	deepest := 0
	for q := int32(0); q < geom.QuadrantCount; q++ {
		if d := t.depth(n.child + q); d > deepest {
			deepest = d
		}
	}
	return deepest + 1
}
