package pointcloud

import (
	"github.com/golang/geo/r3"
)

// VoxelDownsample reduces a cloud by bucketing its points into an axis-aligned
// voxel grid of cell side voxelSize and emitting the centroid of each occupied
// cell. Cell coordinates are taken relative to the minimum corner of the
// cloud. The output ordering is deterministic: centroids are emitted in order
// of the first input point seen in each cell.
//
// An empty cloud downsamples to an empty cloud. voxelSize must be positive.
func VoxelDownsample(cloud PointCloud, voxelSize float64) (PointCloud, error) {
	if !(voxelSize > 0) {
		return nil, invalidParameterf("voxel size must be positive, got %v", voxelSize)
	}
	out := New()
	if cloud.Size() == 0 {
		return out, nil
	}

	meta := cloud.MetaData()
	ptMin := r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ}

	type cell struct {
		sum   r3.Vector
		count int
	}
	cells := make(map[VoxelCoords]*cell)
	// first-seen cell order, so output does not depend on map iteration
	order := make([]VoxelCoords, 0)

	cloud.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		coords := GetVoxelCoordinates(p, ptMin, voxelSize)
		c, ok := cells[coords]
		if !ok {
			c = &cell{}
			cells[coords] = c
			order = append(order, coords)
		}
		c.sum = c.sum.Add(p)
		c.count++
		return true
	})

	for _, coords := range order {
		c := cells[coords]
		centroid := c.sum.Mul(1. / float64(c.count))
		if err := out.Set(centroid, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}
