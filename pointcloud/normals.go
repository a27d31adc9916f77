package pointcloud

import (
	"context"
	"sync/atomic"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/roboscan/pointcloud3d/utils"
)

// NormalEstimationConfig bounds the neighborhood used to fit a local plane at
// each point.
type NormalEstimationConfig struct {
	// Radius is the neighbor search radius.
	Radius float64
	// MaxNeighbors caps the number of neighbors used per point.
	MaxNeighbors int
}

// Validate returns every parameter violation in the config, combined.
func (cfg NormalEstimationConfig) Validate() error {
	var err error
	if !(cfg.Radius > 0) {
		err = multierr.Combine(err, invalidParameterf("radius must be positive, got %v", cfg.Radius))
	}
	if cfg.MaxNeighbors < 1 {
		err = multierr.Combine(err, invalidParameterf("max neighbors must be at least 1, got %d", cfg.MaxNeighbors))
	}
	return err
}

// EstimateNormals computes a unit surface normal for each point of the cloud
// from the covariance of its hybrid neighborhood (all points within
// cfg.Radius, capped at the cfg.MaxNeighbors nearest, the point itself
// included). The returned cloud holds the same points in the same order, with
// each computed normal set on the point's Data.
//
// A point whose neighborhood has fewer than 3 points cannot support a plane
// fit; its normal is left unset and the rest of the cloud is still processed.
//
// Normal signs are made deterministic by orienting every normal toward +Z,
// with exact-perpendicular ties broken toward +Y and then +X.
func EstimateNormals(ctx context.Context, cloud PointCloud, cfg NormalEstimationConfig, logger golog.Logger) (PointCloud, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cloud.Size() == 0 {
		return New(), nil
	}

	kd := NewKDTree(cloud)
	size := kd.Size()
	maxNeighbors := utils.MinInt(cfg.MaxNeighbors, size)

	normals := make([]r3.Vector, size)
	hasNormal := make([]bool, size)
	var degenerate int64

	err := utils.GroupWorkParallel(
		ctx,
		size,
		func(numGroups int) {},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			groupDegenerate := 0
			return func(memberNum, workNum int) {
					p := kd.At(workNum).P
					nbrs, err := kd.HybridNearestNeighbors(p, cfg.Radius, maxNeighbors)
					if err != nil || len(nbrs) < 3 {
						groupDegenerate++
						return
					}
					positions := make([]r3.Vector, len(nbrs))
					for i, n := range nbrs {
						positions[i] = n.P
					}
					normal, ok := estimatePlaneNormalFromPoints(positions)
					if !ok {
						groupDegenerate++
						return
					}
					normals[workNum] = orientNormal(normal)
					hasNormal[workNum] = true
				}, func() {
					atomic.AddInt64(&degenerate, int64(groupDegenerate))
				}
		})
	if err != nil {
		return nil, err
	}

	out := NewWithPrealloc(size)
	for i := 0; i < size; i++ {
		pd := kd.At(i)
		d := pd.D
		if hasNormal[i] {
			// copy rather than SetNormal, the input cloud's data must not change
			nd := &basicData{hasNormal: true, normal: normals[i]}
			if d != nil && d.HasValue() {
				nd.hasValue = true
				nd.value = d.Value()
			}
			d = nd
		}
		if err := out.Set(pd.P, d); err != nil {
			return nil, err
		}
	}
	if logger != nil {
		logger.Debugf("estimated normals for %d of %d points (%d degenerate neighborhoods)",
			int64(size)-degenerate, size, degenerate)
	}
	return out, nil
}

// estimatePlaneNormalFromPoints fits a plane to the points and returns its
// unit normal, the eigenvector of the smallest eigenvalue of the covariance
// matrix of the points about their centroid. Returns false if the
// decomposition fails or the points do not span a plane.
func estimatePlaneNormalFromPoints(points []r3.Vector) (r3.Vector, bool) {
	if len(points) < 3 {
		return r3.Vector{}, false
	}
	center := GetPointsCentroid(points)
	var xx, xy, xz, yy, yz, zz float64
	for _, pt := range points {
		d := pt.Sub(center)
		xx += d.X * d.X
		xy += d.X * d.Y
		xz += d.X * d.Z
		yy += d.Y * d.Y
		yz += d.Y * d.Z
		zz += d.Z * d.Z
	}
	n := float64(len(points))
	cov := mat.NewSymDense(3, []float64{
		xx / n, xy / n, xz / n,
		xy / n, yy / n, yz / n,
		xz / n, yz / n, zz / n,
	})
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return r3.Vector{}, false
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// eigenvalues are sorted in increasing order; column 0 is the
	// direction of least variance
	normal := r3.Vector{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)}
	if normal.Norm() == 0 {
		return r3.Vector{}, false
	}
	return normal.Normalize(), true
}

// orientNormal resolves the sign ambiguity of an eigenvector normal by
// pointing it toward +Z, breaking exact-perpendicular ties toward +Y and
// then +X.
func orientNormal(n r3.Vector) r3.Vector {
	switch {
	case n.Z != 0:
		if n.Z < 0 {
			return n.Mul(-1)
		}
	case n.Y != 0:
		if n.Y < 0 {
			return n.Mul(-1)
		}
	case n.X < 0:
		return n.Mul(-1)
	}
	return n
}
