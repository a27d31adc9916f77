package pointcloud

import (
	"errors"
	"sort"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestVoxelCoords(t *testing.T) {
	// Test creation
	c1 := VoxelCoords{}
	c2 := VoxelCoords{}
	c3 := VoxelCoords{2, 1, 3}
	test.That(t, c1.IsEqual(c2), test.ShouldBeTrue)
	test.That(t, c1.IsEqual(c3), test.ShouldBeFalse)

	// Test getting voxel coordinates
	ptMin := r3.Vector{}
	pt := r3.Vector{X: 1.2, Y: 0.5, Z: 2.8}
	coords := GetVoxelCoordinates(pt, ptMin, 1.0)
	test.That(t, coords, test.ShouldResemble, VoxelCoords{1, 0, 2})

	coords = GetVoxelCoordinates(pt, ptMin, 0.5)
	test.That(t, coords, test.ShouldResemble, VoxelCoords{2, 1, 5})

	// negative local coordinates round down
	coords = GetVoxelCoordinates(r3.Vector{X: -0.1, Y: 0, Z: 0}, ptMin, 1.0)
	test.That(t, coords, test.ShouldResemble, VoxelCoords{-1, 0, 0})
}

func TestGetPointsCentroid(t *testing.T) {
	test.That(t, GetPointsCentroid(nil), test.ShouldResemble, r3.Vector{})

	pts := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 4, Z: 6}}
	c := GetPointsCentroid(pts)
	test.That(t, c.X, test.ShouldAlmostEqual, 1)
	test.That(t, c.Y, test.ShouldAlmostEqual, 2)
	test.That(t, c.Z, test.ShouldAlmostEqual, 3)
}

func TestVoxelPlaneAttributes(t *testing.T) {
	center := r3.Vector{X: 0.5, Y: 0.5, Z: 0}
	normal := r3.Vector{X: 0, Y: 0, Z: 1}
	test.That(t, GetOffset(center, normal), test.ShouldAlmostEqual, 0)
	test.That(t, GetOffset(r3.Vector{X: 0, Y: 0, Z: 2}, normal), test.ShouldAlmostEqual, -2)

	vox := NewVoxel(VoxelCoords{0, 0, 0})
	vox.Points = []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 1, Y: 1, Z: 0}}
	vox.ComputeCenter()
	test.That(t, vox.Center.X, test.ShouldAlmostEqual, 0.5)
	test.That(t, vox.Center.Y, test.ShouldAlmostEqual, 0.5)
	test.That(t, vox.Center.Z, test.ShouldAlmostEqual, 0)

	vox.Normal = normal
	vox.Offset = GetOffset(vox.Center, vox.Normal)
	plane := vox.GetPlane()
	test.That(t, GetResidual(vox.Points, plane), test.ShouldAlmostEqual, 0)
	// residual of points off the plane
	test.That(t, GetResidual([]r3.Vector{{X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: -1}}, plane), test.ShouldAlmostEqual, 1)
}

func TestVoxelGridFromPointCloud(t *testing.T) {
	pc := New()
	// 8 points in the cell (0,0,0), one in the cell (2,0,0)
	for i := 0; i < 8; i++ {
		x := float64(i%4) * 0.2
		y := float64(i/4) * 0.2
		test.That(t, pc.Set(NewVector(x, y, 0), nil), test.ShouldBeNil)
	}
	test.That(t, pc.Set(NewVector(2.5, 0, 0), nil), test.ShouldBeNil)

	vg, err := NewVoxelGridFromPointCloud(pc, 1.0, 1.0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(vg.Voxels), test.ShouldEqual, 2)
	test.That(t, vg.VoxelSize(), test.ShouldEqual, 1.0)

	vox := vg.GetVoxelFromKey(VoxelCoords{0, 0, 0})
	test.That(t, vox, test.ShouldNotBeNil)
	test.That(t, len(vox.Points), test.ShouldEqual, 8)
	// enough points for a plane fit, normal is vertical for a flat cell
	test.That(t, vox.Normal.Norm(), test.ShouldAlmostEqual, 1)
	test.That(t, vox.Weight, test.ShouldBeGreaterThan, 0)

	vox2 := vg.GetVoxelFromKey(VoxelCoords{2, 0, 0})
	test.That(t, vox2, test.ShouldNotBeNil)
	test.That(t, len(vox2.Points), test.ShouldEqual, 1)
	// a single point voxel has no plane estimate
	test.That(t, vox2.Normal.Norm(), test.ShouldEqual, 0)

	// adjacency: the two occupied cells are not 26-connected
	test.That(t, len(vg.GetAdjacentVoxels(vox)), test.ShouldEqual, 0)

	// invalid voxel size
	_, err = NewVoxelGridFromPointCloud(pc, 0, 1.0)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
}

func TestVoxelGridConvertToPointCloudWithValue(t *testing.T) {
	pc := New()
	for i := 0; i < 6; i++ {
		test.That(t, pc.Set(NewVector(float64(i)*0.1, 0, 0), nil), test.ShouldBeNil)
	}
	vg, err := NewVoxelGridFromPointCloud(pc, 1.0, 1.0)
	test.That(t, err, test.ShouldBeNil)

	vg.GetVoxelFromKey(VoxelCoords{0, 0, 0}).SetLabel(3)
	out, err := vg.ConvertToPointCloudWithValue()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 6)
	d, got := out.At(0, 0, 0)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d.HasValue(), test.ShouldBeTrue)
	test.That(t, d.Value(), test.ShouldEqual, 3)
}

func TestVoxelSliceSorting(t *testing.T) {
	v1 := NewVoxel(VoxelCoords{0, 0, 0})
	v1.Weight = 0.1
	v2 := NewVoxel(VoxelCoords{1, 0, 0})
	v2.Weight = 0.9
	v3 := NewVoxel(VoxelCoords{2, 0, 0})
	v3.Weight = 0.5

	s := VoxelSlice{v2, v1, v3}
	test.That(t, s.Len(), test.ShouldEqual, 3)

	sort.Sort(s)
	test.That(t, s[0], test.ShouldEqual, v1)
	test.That(t, s[2], test.ShouldEqual, v2)

	ReverseVoxelSlice(s)
	test.That(t, s[0], test.ShouldEqual, v2)
	test.That(t, s[2], test.ShouldEqual, v1)
}
