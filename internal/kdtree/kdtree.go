// Package kdtree implements an in-memory KD-tree over record vectors.
//
// The tree is a hint, not an authority: removals only mark nodes stale and
// query results must be verified against the live record set by the caller.
// Nodes live in an arena and are addressed by uint32 ordinals; the stale set
// is a roaring bitmap over those ordinals.
//
// A Tree is safe for concurrent queries. Mutations must be serialized with
// respect to queries by the caller.
package kdtree

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/lsmvec/distance"
	"github.com/hupe1980/lsmvec/internal/queue"
	"github.com/hupe1980/lsmvec/model"
)

// ErrDimensionMismatch is returned for a record whose vector length differs
// from the tree's dimension.
var ErrDimensionMismatch = errors.New("kdtree: dimension mismatch")

const none = -1

type node struct {
	rec   model.Record
	axis  int
	left  int32
	right int32
}

// Tree is a KD-tree. The zero value is not usable; use Build or New.
type Tree struct {
	dim   int
	nodes []node
	root  int32
	byID  map[string]uint32
	stale *roaring.Bitmap
}

// New returns an empty tree for vectors of length dim. A dim of 0 is fixed
// by the first inserted record.
func New(dim int) *Tree {
	return &Tree{
		dim:   dim,
		root:  none,
		byID:  make(map[string]uint32),
		stale: roaring.New(),
	}
}

// Build constructs a balanced tree by splitting at the median of the
// depth-cycled axis.
func Build(records []model.Record) (*Tree, error) {
	dim := 0
	if len(records) > 0 {
		dim = records[0].Dimension()
		if dim == 0 {
			return nil, fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
		}
	}
	t := New(dim)
	items := make([]model.Record, 0, len(records))
	seen := make(map[string]int, len(records))
	for _, rec := range records {
		if rec.Dimension() != dim {
			return nil, fmt.Errorf("%w: record %s has %d, want %d", ErrDimensionMismatch, rec.ID, rec.Dimension(), dim)
		}
		// Last duplicate wins.
		if i, ok := seen[rec.ID]; ok {
			items[i] = rec
			continue
		}
		seen[rec.ID] = len(items)
		items = append(items, rec)
	}
	t.nodes = make([]node, 0, len(items))
	t.root = t.build(items, 0)
	return t, nil
}

func (t *Tree) build(items []model.Record, depth int) int32 {
	if len(items) == 0 {
		return none
	}
	axis := depth % t.dim
	slices.SortFunc(items, func(a, b model.Record) int {
		return cmp.Compare(a.Vector[axis], b.Vector[axis])
	})
	m := len(items) / 2

	ord := t.addNode(items[m], axis)
	left := t.build(items[:m], depth+1)
	right := t.build(items[m+1:], depth+1)
	t.nodes[ord].left = left
	t.nodes[ord].right = right
	return int32(ord)
}

func (t *Tree) addNode(rec model.Record, axis int) uint32 {
	ord := uint32(len(t.nodes))
	t.nodes = append(t.nodes, node{rec: rec, axis: axis, left: none, right: none})
	if prev, ok := t.byID[rec.ID]; ok {
		t.stale.Add(prev)
	}
	t.byID[rec.ID] = ord
	return ord
}

// Insert descends by the node axis, going left when the new coordinate is
// smaller and right otherwise. There is no rebalancing. Inserting an id that
// is already present supersedes the earlier node.
func (t *Tree) Insert(rec model.Record) error {
	if t.dim == 0 {
		t.dim = rec.Dimension()
	}
	if rec.Dimension() != t.dim || t.dim == 0 {
		return fmt.Errorf("%w: record %s has %d, want %d", ErrDimensionMismatch, rec.ID, rec.Dimension(), t.dim)
	}
	if t.root == none {
		t.root = int32(t.addNode(rec, 0))
		return nil
	}

	cur := t.root
	depth := 0
	for {
		n := &t.nodes[cur]
		goLeft := rec.Vector[n.axis] < n.rec.Vector[n.axis]
		next := n.right
		if goLeft {
			next = n.left
		}
		depth++
		if next != none {
			cur = next
			continue
		}
		ord := int32(t.addNode(rec, depth%t.dim))
		// addNode may have grown the arena; re-resolve the parent.
		if goLeft {
			t.nodes[cur].left = ord
		} else {
			t.nodes[cur].right = ord
		}
		return nil
	}
}

// RemoveByID marks the node for id stale. Traversal is unchanged; stale
// nodes are no longer offered as candidates.
func (t *Tree) RemoveByID(id string) {
	if ord, ok := t.byID[id]; ok {
		t.stale.Add(ord)
		delete(t.byID, id)
	}
}

// Dimension returns the vector length indexed by the tree.
func (t *Tree) Dimension() int { return t.dim }

// Len returns the number of nodes, stale ones included.
func (t *Tree) Len() int { return len(t.nodes) }

// Live returns the number of non-stale nodes.
func (t *Tree) Live() int { return len(t.byID) }

// StaleRatio returns the fraction of nodes that are stale.
func (t *Tree) StaleRatio() float64 {
	if len(t.nodes) == 0 {
		return 0
	}
	return float64(t.stale.GetCardinality()) / float64(len(t.nodes))
}

// Depth returns the height of the tree.
func (t *Tree) Depth() int {
	var walk func(ord int32) int
	walk = func(ord int32) int {
		if ord == none {
			return 0
		}
		n := &t.nodes[ord]
		return 1 + max(walk(n.left), walk(n.right))
	}
	return walk(t.root)
}

// KNNEuclidean returns up to k ids nearest to q by euclidean distance,
// nearest first. The far subtree is pruned once k candidates are held and
// the splitting plane is farther away than the current worst candidate.
func (t *Tree) KNNEuclidean(q []float64, k int) []string {
	if k <= 0 || len(q) != t.dim || t.root == none {
		return nil
	}
	top := queue.NewSmallestK(min(k, len(t.nodes)))
	t.searchEuclidean(t.root, q, top)
	return t.ids(top)
}

func (t *Tree) searchEuclidean(ord int32, q []float64, top *queue.TopK) {
	if ord == none {
		return
	}
	n := &t.nodes[ord]
	if !t.stale.Contains(uint32(ord)) {
		top.Offer(queue.Item{Node: uint32(ord), Priority: distance.SquaredEuclidean(q, n.rec.Vector)})
	}

	diff := q[n.axis] - n.rec.Vector[n.axis]
	near, far := n.left, n.right
	if diff >= 0 {
		near, far = n.right, n.left
	}
	t.searchEuclidean(near, q, top)

	if top.Full() {
		worst, _ := top.Worst()
		if diff*diff > worst.Priority {
			return
		}
	}
	t.searchEuclidean(far, q, top)
}

// KNNCosine returns up to k ids most similar to q by cosine similarity, most
// similar first. Axis distance gives no bound on cosine similarity, so every
// node is visited; the near child is still visited first.
func (t *Tree) KNNCosine(q []float64, k int) []string {
	if k <= 0 || len(q) != t.dim || t.root == none {
		return nil
	}
	top := queue.NewLargestK(min(k, len(t.nodes)))
	t.searchCosine(t.root, q, top)
	return t.ids(top)
}

func (t *Tree) searchCosine(ord int32, q []float64, top *queue.TopK) {
	if ord == none {
		return
	}
	n := &t.nodes[ord]
	if !t.stale.Contains(uint32(ord)) {
		top.Offer(queue.Item{Node: uint32(ord), Priority: distance.Cosine(q, n.rec.Vector)})
	}
	near, far := n.left, n.right
	if q[n.axis] >= n.rec.Vector[n.axis] {
		near, far = n.right, n.left
	}
	t.searchCosine(near, q, top)
	t.searchCosine(far, q, top)
}

func (t *Tree) ids(top *queue.TopK) []string {
	items := top.Sorted()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = t.nodes[it.Node].rec.ID
	}
	return out
}
