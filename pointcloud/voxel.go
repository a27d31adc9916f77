package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/roboscan/pointcloud3d/utils"
)

// A Voxel represents a value on a regular grid in three-dimensional space.
// Each voxel buckets the points of a cloud that fall into one axis-aligned
// cell of side voxelSize, with cell coordinates taken relative to the minimum
// corner of the cloud.

// VoxelCoords stores Voxel coordinates in VoxelGrid axes.
type VoxelCoords struct {
	I, J, K int64
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// GetVoxelCoordinates computes the voxel coordinates of a point, given the
// minimum corner of the cloud and the voxel size.
func GetVoxelCoordinates(pt, ptMin r3.Vector, voxelSize float64) VoxelCoords {
	local := pt.Sub(ptMin)
	return VoxelCoords{
		I: int64(math.Floor(local.X / voxelSize)),
		J: int64(math.Floor(local.Y / voxelSize)),
		K: int64(math.Floor(local.Z / voxelSize)),
	}
}

// GetPointsCentroid computes the barycenter of a slice of points.
func GetPointsCentroid(points []r3.Vector) r3.Vector {
	center := r3.Vector{}
	if len(points) == 0 {
		return center
	}
	for _, pt := range points {
		center = center.Add(pt)
	}
	return center.Mul(1. / float64(len(points)))
}

// GetOffset computes the offset of the plane with given normal vector and a
// point in it.
func GetOffset(center, normal r3.Vector) float64 {
	return -normal.Dot(center)
}

// GetResidual computes the mean fitting error of points to a given plane.
func GetResidual(points []r3.Vector, plane Plane) float64 {
	res := 0.0
	for _, pt := range points {
		d := plane.Distance(pt)
		res += d * d
	}
	res /= float64(len(points))
	return math.Sqrt(res)
}

// GetWeight computes a relevance weight for a voxel's plane estimate, used by
// region growing segmentation. lam is a relaxation parameter.
func GetWeight(points []r3.Vector, lam, residual float64) float64 {
	nPoints := len(points)
	dR := float64(nPoints) / 10.
	w := math.Exp(-dR*dR/(2*lam*lam)) * math.Exp(-residual*residual/(2*lam*lam))
	return w
}

// Voxel is the structure to store data relevant to Voxel operations in point clouds.
type Voxel struct {
	Key             VoxelCoords
	Label           int
	Points          []r3.Vector
	Center          r3.Vector
	Normal          r3.Vector
	Offset          float64
	Residual        float64
	Weight          float64
	SortedWeightIdx int
	PointLabels     []int
}

// NewVoxel creates a pointer to a Voxel struct.
func NewVoxel(coords VoxelCoords) *Voxel {
	return &Voxel{
		Key:      coords,
		Points:   make([]r3.Vector, 0),
		Residual: 100000,
	}
}

// NewVoxelFromPoint creates a new voxel from a point.
func NewVoxelFromPoint(pt, ptMin r3.Vector, voxelSize float64) *Voxel {
	coords := GetVoxelCoordinates(pt, ptMin, voxelSize)
	return &Voxel{
		Key:    coords,
		Points: []r3.Vector{pt},
	}
}

// SetLabel sets the label of a voxel.
func (v1 *Voxel) SetLabel(label int) {
	v1.Label = label
}

// IsSmooth returns true if two voxels respect the smoothness constraint, false otherwise.
// angleTh is expressed in degrees.
func (v1 *Voxel) IsSmooth(v2 *Voxel, angleTh float64) bool {
	angle := math.Abs(v1.Normal.Dot(v2.Normal))
	if angle > 1 { // acos domain, unit vector dot can overshoot 1
		angle = 1
	}
	angle = math.Abs(math.Acos(angle))
	angle = utils.RadToDeg(angle)
	return angle < angleTh
}

// IsContinuous returns true if two voxels respect the continuity constraint, false otherwise.
// cosTh is in [0,1].
func (v1 *Voxel) IsContinuous(v2 *Voxel, cosTh float64) bool {
	v := v2.Center.Sub(v1.Center).Normalize()
	phi := math.Abs(v.Dot(v1.Normal))
	return phi < cosTh
}

// CanMerge returns true if two voxels can be added to the same connected component.
func (v1 *Voxel) CanMerge(v2 *Voxel, angleTh, cosTh float64) bool {
	return v1.IsSmooth(v2, angleTh) && v1.IsContinuous(v2, cosTh)
}

// ComputeCenter computes the barycenter of the points in the voxel.
func (v1 *Voxel) ComputeCenter() {
	center := GetPointsCentroid(v1.Points)
	v1.Center.X = center.X
	v1.Center.Y = center.Y
	v1.Center.Z = center.Z
}

// GetPlane returns the plane struct with the voxel data.
func (v1 *Voxel) GetPlane() Plane {
	// create key slice for plane struct
	keys := make([]VoxelCoords, len(v1.Points))
	for i := range keys {
		keys[i] = v1.Key
	}
	return &voxelPlane{
		normal:    v1.Normal,
		center:    v1.Center,
		offset:    v1.Offset,
		points:    v1.Points,
		voxelKeys: keys,
	}
}

// VoxelSlice is a slice that contains Voxels.
type VoxelSlice []*Voxel

// Swap for VoxelSlice sorting interface.
func (d VoxelSlice) Swap(i, j int) {
	d[i], d[j] = d[j], d[i]
}

// Len for VoxelSlice sorting interface.
func (d VoxelSlice) Len() int {
	return len(d)
}

// Less for VoxelSlice sorting interface.
func (d VoxelSlice) Less(i, j int) bool {
	return d[i].Weight < d[j].Weight
}

// ReverseVoxelSlice reverses a slice of voxels.
func ReverseVoxelSlice(s VoxelSlice) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// VoxelGrid contains the sparse grid of Voxels of a point cloud.
type VoxelGrid struct {
	Voxels    map[VoxelCoords]*Voxel
	maxLabel  int
	voxelSize float64
}

// NewVoxelGrid returns a pointer to an empty VoxelGrid with the given voxel size.
func NewVoxelGrid(voxelSize float64) *VoxelGrid {
	return &VoxelGrid{
		Voxels:    make(map[VoxelCoords]*Voxel),
		voxelSize: voxelSize,
	}
}

// VoxelSize returns the side length of the cells of the grid.
func (vg *VoxelGrid) VoxelSize() float64 {
	return vg.voxelSize
}

// GetVoxelFromKey returns a pointer to a voxel from a VoxelCoords key.
func (vg *VoxelGrid) GetVoxelFromKey(coords VoxelCoords) *Voxel {
	return vg.Voxels[coords]
}

// GetAdjacentVoxels gets adjacent voxels in point cloud in 26-connectivity.
func (vg *VoxelGrid) GetAdjacentVoxels(v *Voxel) []VoxelCoords {
	I, J, K := v.Key.I, v.Key.J, v.Key.K
	is := []int64{I - 1, I, I + 1}
	js := []int64{J - 1, J, J + 1}
	ks := []int64{K - 1, K, K + 1}
	neighborKeys := make([]VoxelCoords, 0)
	for _, i := range is {
		for _, j := range js {
			for _, k := range ks {
				vox := VoxelCoords{i, j, k}
				_, ok := vg.Voxels[vox]
				// if neighboring voxel is in VoxelGrid and is not current voxel
				if ok && !v.Key.IsEqual(vox) {
					neighborKeys = append(neighborKeys, vox)
				}
			}
		}
	}
	return neighborKeys
}

// ConvertToPointCloudWithValue converts the voxel grid to a point cloud with
// the voxel labels as values.
func (vg *VoxelGrid) ConvertToPointCloudWithValue() (PointCloud, error) {
	pc := New()
	for _, vox := range vg.Voxels {
		for i, pt := range vox.Points {
			label := vox.Label
			if vox.PointLabels != nil {
				label = vox.PointLabels[i]
			}
			if err := pc.Set(pt, NewValueData(label)); err != nil {
				return nil, err
			}
		}
	}
	return pc, nil
}

// NewVoxelGridFromPointCloud creates and fills a VoxelGrid from a point cloud.
// lam is the relaxation parameter for the voxel plane weights.
func NewVoxelGridFromPointCloud(pc PointCloud, voxelSize, lam float64) (*VoxelGrid, error) {
	if !(voxelSize > 0) {
		return nil, invalidParameterf("voxel size must be positive, got %v", voxelSize)
	}
	vg := NewVoxelGrid(voxelSize)
	if pc.Size() == 0 {
		return vg, nil
	}

	meta := pc.MetaData()
	ptMin := r3.Vector{X: meta.MinX, Y: meta.MinY, Z: meta.MinZ}

	pc.Iterate(0, 0, func(pt r3.Vector, d Data) bool {
		coords := GetVoxelCoordinates(pt, ptMin, voxelSize)
		vox, ok := vg.Voxels[coords]
		if !ok {
			vg.Voxels[coords] = NewVoxelFromPoint(pt, ptMin, voxelSize)
		} else {
			vox.Points = append(vox.Points, pt)
		}
		return true
	})

	// All points are now assigned to a voxel in the voxel grid.
	// Compute voxel attributes.
	for k, vox := range vg.Voxels {
		vox.Key = k
		vox.ComputeCenter()

		// below 5 points, normal and plane estimation are not relevant
		if len(vox.Points) > 5 {
			normal, ok := estimatePlaneNormalFromPoints(vox.Points)
			if !ok {
				continue
			}
			vox.Normal = normal
			vox.Offset = GetOffset(vox.Center, vox.Normal)
			vox.Residual = GetResidual(vox.Points, vox.GetPlane())
			vox.Weight = GetWeight(vox.Points, lam, vox.Residual)
		}
	}
	return vg, nil
}
