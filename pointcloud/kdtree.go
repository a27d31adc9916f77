package pointcloud

import (
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// KDTree is a read-only spatial index over a snapshot of a point cloud,
// supporting exact nearest neighbor, radius and hybrid (radius bounded,
// count capped) queries. It is built once over a finalized cloud and is
// safe for concurrent readers.
type KDTree struct {
	tree   *kdtree.Tree
	points []PointAndData
}

// treePoint is the kdtree.Comparable the index is built over. It remembers
// the index of the point in the snapshot so query results can be mapped back
// to their Data.
type treePoint struct {
	pos r3.Vector
	idx int
}

func (p treePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(treePoint)
	switch d {
	case 0:
		return p.pos.X - q.pos.X
	case 1:
		return p.pos.Y - q.pos.Y
	default:
		return p.pos.Z - q.pos.Z
	}
}

func (p treePoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance, per the kdtree contract.
func (p treePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(treePoint)
	return p.pos.Sub(q.pos).Norm2()
}

type treePoints []treePoint

func (p treePoints) Index(i int) kdtree.Comparable { return p[i] }

func (p treePoints) Len() int { return len(p) }

func (p treePoints) Pivot(d kdtree.Dim) int {
	return treePlane{treePoints: p, Dim: d}.Pivot()
}

func (p treePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type treePlane struct {
	kdtree.Dim
	treePoints
}

func (p treePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.treePoints[i].pos.X < p.treePoints[j].pos.X
	case 1:
		return p.treePoints[i].pos.Y < p.treePoints[j].pos.Y
	default:
		return p.treePoints[i].pos.Z < p.treePoints[j].pos.Z
	}
}

func (p treePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p treePlane) Slice(start, end int) kdtree.SortSlicer {
	p.treePoints = p.treePoints[start:end]
	return p
}

func (p treePlane) Swap(i, j int) {
	p.treePoints[i], p.treePoints[j] = p.treePoints[j], p.treePoints[i]
}

// NewKDTree creates a KDTree from a point cloud. The tree holds its own
// snapshot of the cloud; later mutation of the input does not affect it.
func NewKDTree(cloud PointCloud) *KDTree {
	points := make([]PointAndData, 0, cloud.Size())
	tps := make(treePoints, 0, cloud.Size())
	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		tps = append(tps, treePoint{pos: p, idx: len(points)})
		points = append(points, PointAndData{p, d})
		return true
	})
	return &KDTree{
		tree:   kdtree.New(tps, false),
		points: points,
	}
}

// Size returns the number of points in the tree.
func (kd *KDTree) Size() int {
	return len(kd.points)
}

// At returns the point and data of the i-th point of the snapshot, in the
// iteration order of the source cloud.
func (kd *KDTree) At(i int) PointAndData {
	return kd.points[i]
}

// NearestNeighbors returns the k nearest points to the given point, in order
// of increasing distance. k must be between 1 and the size of the tree.
func (kd *KDTree) NearestNeighbors(p r3.Vector, k int) ([]PointAndData, error) {
	if k < 1 || k > len(kd.points) {
		return nil, invalidParameterf("k must be between 1 and the cloud size %d, got %d", len(kd.points), k)
	}
	keep := kdtree.NewNKeeper(k)
	kd.tree.NearestSet(keep, treePoint{pos: p, idx: -1})
	return kd.collect(keep.Heap), nil
}

// RadiusNearestNeighbors returns all points within radius of the given point,
// in order of increasing distance. If includeSelf is false, an exact match of
// the query point is omitted. radius must be positive.
func (kd *KDTree) RadiusNearestNeighbors(p r3.Vector, radius float64, includeSelf bool) ([]PointAndData, error) {
	if !(radius > 0) {
		return nil, invalidParameterf("radius must be positive, got %v", radius)
	}
	keep := kdtree.NewDistKeeper(radius * radius)
	kd.tree.NearestSet(keep, treePoint{pos: p, idx: -1})
	nbrs := kd.collect(keep.Heap)
	if !includeSelf && len(nbrs) > 0 && nbrs[0].P == p {
		nbrs = nbrs[1:]
	}
	return nbrs, nil
}

// HybridNearestNeighbors returns the points within radius of the given point,
// capped at the k nearest, in order of increasing distance. The query point
// itself, if present in the tree, counts as its own neighbor.
func (kd *KDTree) HybridNearestNeighbors(p r3.Vector, radius float64, k int) ([]PointAndData, error) {
	if !(radius > 0) {
		return nil, invalidParameterf("radius must be positive, got %v", radius)
	}
	if k < 1 || k > len(kd.points) {
		return nil, invalidParameterf("k must be between 1 and the cloud size %d, got %d", len(kd.points), k)
	}
	keep := kdtree.NewNKeeper(k)
	kd.tree.NearestSet(keep, treePoint{pos: p, idx: -1})
	r2 := radius * radius
	nbrs := make([]nbrDist, 0, keep.Heap.Len())
	for _, c := range keep.Heap {
		tp, ok := c.Comparable.(treePoint)
		if !ok || c.Dist > r2 {
			continue
		}
		nbrs = append(nbrs, nbrDist{kd.points[tp.idx], c.Dist})
	}
	return sortNeighbors(nbrs), nil
}

type nbrDist struct {
	pd   PointAndData
	dist float64
}

func sortNeighbors(nbrs []nbrDist) []PointAndData {
	sort.Slice(nbrs, func(i, j int) bool { return nbrs[i].dist < nbrs[j].dist })
	out := make([]PointAndData, len(nbrs))
	for i, n := range nbrs {
		out[i] = n.pd
	}
	return out
}

// collect maps raw keeper results back to snapshot points, dropping keeper
// sentinels and ordering by increasing distance.
func (kd *KDTree) collect(h kdtree.Heap) []PointAndData {
	nbrs := make([]nbrDist, 0, len(h))
	for _, c := range h {
		tp, ok := c.Comparable.(treePoint)
		if !ok {
			continue
		}
		nbrs = append(nbrs, nbrDist{kd.points[tp.idx], c.Dist})
	}
	return sortNeighbors(nbrs)
}
