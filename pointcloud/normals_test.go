package pointcloud

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNormalEstimationConfigValidate(t *testing.T) {
	test.That(t, NormalEstimationConfig{Radius: 0.1, MaxNeighbors: 30}.Validate(), test.ShouldBeNil)

	err := NormalEstimationConfig{Radius: 0, MaxNeighbors: 30}.Validate()
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	err = NormalEstimationConfig{Radius: 0.1, MaxNeighbors: 0}.Validate()
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)

	// both violations are reported together
	err = NormalEstimationConfig{Radius: -1, MaxNeighbors: -1}.Validate()
	test.That(t, err, test.ShouldBeError)
	test.That(t, err.Error(), test.ShouldContainSubstring, "radius")
	test.That(t, err.Error(), test.ShouldContainSubstring, "max neighbors")
}

func TestEstimateNormalsInvalidParameter(t *testing.T) {
	logger := golog.NewTestLogger(t)
	pc := New()
	test.That(t, pc.Set(NewVector(0, 0, 0), nil), test.ShouldBeNil)

	out, err := EstimateNormals(context.Background(), pc, NormalEstimationConfig{Radius: -1, MaxNeighbors: 30}, logger)
	test.That(t, out, test.ShouldBeNil)
	test.That(t, errors.Is(err, ErrInvalidParameter), test.ShouldBeTrue)
}

func TestEstimateNormalsEmpty(t *testing.T) {
	logger := golog.NewTestLogger(t)
	out, err := EstimateNormals(context.Background(), New(), NormalEstimationConfig{Radius: 1, MaxNeighbors: 5}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 0)
}

func TestEstimateNormalsPlanar(t *testing.T) {
	logger := golog.NewTestLogger(t)
	// a 5x5 grid in the XY plane
	pc := New()
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			test.That(t, pc.Set(NewVector(float64(i)*0.1, float64(j)*0.1, 0), nil), test.ShouldBeNil)
		}
	}

	out, err := EstimateNormals(context.Background(), pc, NormalEstimationConfig{Radius: 0.5, MaxNeighbors: 10}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, pc.Size())

	count := 0
	out.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		test.That(t, d, test.ShouldNotBeNil)
		test.That(t, d.HasNormal(), test.ShouldBeTrue)
		n := d.Normal()
		// unit length
		test.That(t, math.Abs(n.Norm()-1), test.ShouldBeLessThan, 1e-6)
		// the plane lies in XY, so the normal is +Z after orientation
		test.That(t, n.X, test.ShouldAlmostEqual, 0, 1e-6)
		test.That(t, n.Y, test.ShouldAlmostEqual, 0, 1e-6)
		test.That(t, n.Z, test.ShouldAlmostEqual, 1, 1e-6)
		count++
		return true
	})
	test.That(t, count, test.ShouldEqual, 25)
}

func TestEstimateNormalsIsolatedPoint(t *testing.T) {
	logger := golog.NewTestLogger(t)
	pc := New()
	// a tight planar cluster and one far away point
	test.That(t, pc.Set(NewVector(0, 0, 0), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(0.1, 0, 0), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(0, 0.1, 0), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(0.1, 0.1, 0), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(100, 100, 100), nil), test.ShouldBeNil)

	out, err := EstimateNormals(context.Background(), pc, NormalEstimationConfig{Radius: 0.5, MaxNeighbors: 10}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Size(), test.ShouldEqual, 5)

	// isolated point has only itself as neighbor, no plane can be fit
	d, got := out.At(100, 100, 100)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d == nil || !d.HasNormal(), test.ShouldBeTrue)

	// the cluster points all have normals
	d, got = out.At(0, 0, 0)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d.HasNormal(), test.ShouldBeTrue)
}

func TestEstimateNormalsPreservesOrderAndData(t *testing.T) {
	logger := golog.NewTestLogger(t)
	pc := New()
	pts := []r3.Vector{
		{X: 0, Y: 0, Z: 0}, {X: 0.1, Y: 0, Z: 0}, {X: 0, Y: 0.1, Z: 0}, {X: 0.1, Y: 0.1, Z: 0}, {X: 0.05, Y: 0.05, Z: 0},
	}
	for i, p := range pts {
		test.That(t, pc.Set(p, NewValueData(i)), test.ShouldBeNil)
	}

	out, err := EstimateNormals(context.Background(), pc, NormalEstimationConfig{Radius: 1, MaxNeighbors: 5}, logger)
	test.That(t, err, test.ShouldBeNil)

	i := 0
	out.Iterate(0, 0, func(p r3.Vector, d Data) bool {
		// same points, same order
		test.That(t, p, test.ShouldResemble, pts[i])
		// pre-existing data values survive normal estimation
		test.That(t, d.HasValue(), test.ShouldBeTrue)
		test.That(t, d.Value(), test.ShouldEqual, i)
		test.That(t, d.HasNormal(), test.ShouldBeTrue)
		i++
		return true
	})
	test.That(t, i, test.ShouldEqual, len(pts))
}

func TestEstimatePlaneNormalFromPoints(t *testing.T) {
	// too few points
	_, ok := estimatePlaneNormalFromPoints([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}})
	test.That(t, ok, test.ShouldBeFalse)

	// tilted plane z = x
	pts := []r3.Vector{}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			x, y := float64(i), float64(j)
			pts = append(pts, r3.Vector{X: x, Y: y, Z: x})
		}
	}
	normal, ok := estimatePlaneNormalFromPoints(pts)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, math.Abs(normal.Norm()-1), test.ShouldBeLessThan, 1e-6)
	want := r3.Vector{X: -1 / math.Sqrt2, Y: 0, Z: 1 / math.Sqrt2}
	dot := math.Abs(normal.Dot(want))
	test.That(t, dot, test.ShouldAlmostEqual, 1, 1e-6)
}

func TestOrientNormal(t *testing.T) {
	n := orientNormal(r3.Vector{X: 0, Y: 0, Z: -1})
	test.That(t, n, test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 1})

	n = orientNormal(r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})
	test.That(t, n, test.ShouldResemble, r3.Vector{X: 0.5, Y: 0.5, Z: 0.5})

	// ties perpendicular to Z break toward +Y, then +X
	n = orientNormal(r3.Vector{X: 1, Y: -1, Z: 0})
	test.That(t, n, test.ShouldResemble, r3.Vector{X: -1, Y: 1, Z: 0})
	n = orientNormal(r3.Vector{X: -1, Y: 0, Z: 0})
	test.That(t, n, test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: 0})
}
