package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const (
	// Points beyond this range cannot be stored back at full precision in a
	// float64 keyed map, so Set refuses them rather than silently merging
	// distinct positions.
	maxPreciseFloat64 = float64(1 << 53)
	minPreciseFloat64 = -float64(1 << 53)
)

// storage is a buffer of points that backs a PointCloud. It preserves
// insertion order when iterating.
type storage interface {
	Size() int
	Set(p r3.Vector, d Data) error
	Unset(x, y, z float64)
	At(x, y, z float64) (Data, bool)
	Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool)
}

// matrixStorage keeps points in a flat slice with a position keyed index map
// for constant time lookups.
type matrixStorage struct {
	points   []PointAndData
	indexMap map[r3.Vector]uint
}

func (ms *matrixStorage) Size() int {
	return len(ms.points)
}

// Set validates that the point can be precisely stored before setting it in
// the cloud.
func (ms *matrixStorage) Set(p r3.Vector, d Data) error {
	if !pointPrecise(p) {
		return errors.Errorf("point (%v, %v, %v) exceeds the precision range "+
			"[%v, %v] of the point cloud", p.X, p.Y, p.Z, minPreciseFloat64, maxPreciseFloat64)
	}
	if i, found := ms.indexMap[p]; found {
		ms.points[i].D = d
		return nil
	}
	ms.indexMap[p] = uint(len(ms.points))
	ms.points = append(ms.points, PointAndData{p, d})
	return nil
}

func (ms *matrixStorage) Unset(x, y, z float64) {
	p := r3.Vector{X: x, Y: y, Z: z}
	i, found := ms.indexMap[p]
	if !found {
		return
	}
	ms.points = append(ms.points[:i], ms.points[i+1:]...)
	delete(ms.indexMap, p)
	// reindex everything that shifted down
	for j := int(i); j < len(ms.points); j++ {
		ms.indexMap[ms.points[j].P] = uint(j)
	}
}

func (ms *matrixStorage) At(x, y, z float64) (Data, bool) {
	i, found := ms.indexMap[r3.Vector{X: x, Y: y, Z: z}]
	if !found {
		return nil, false
	}
	return ms.points[i].D, true
}

func (ms *matrixStorage) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	if numBatches <= 0 {
		for _, pd := range ms.points {
			if cont := fn(pd.P, pd.D); !cont {
				return
			}
		}
		return
	}
	batchSize := (len(ms.points) + numBatches - 1) / numBatches
	from := myBatch * batchSize
	to := from + batchSize
	if to > len(ms.points) {
		to = len(ms.points)
	}
	for ; from < to; from++ {
		if cont := fn(ms.points[from].P, ms.points[from].D); !cont {
			return
		}
	}
}

func pointPrecise(p r3.Vector) bool {
	return p.X >= minPreciseFloat64 && p.X <= maxPreciseFloat64 &&
		p.Y >= minPreciseFloat64 && p.Y <= maxPreciseFloat64 &&
		p.Z >= minPreciseFloat64 && p.Z <= maxPreciseFloat64
}
