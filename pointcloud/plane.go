package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// Plane defines a planar object in a point cloud.
type Plane interface {
	// Equation returns the plane equation [0]x + [1]y + [2]z + [3] = 0.
	Equation() [4]float64
	// Normal returns the normal vector of the plane.
	Normal() r3.Vector
	// Center returns the vector of the center point of the plane.
	Center() r3.Vector
	// Offset returns the vector offset of the plane from the origin.
	Offset() float64
	// PointCloud returns the underlying point cloud of the plane.
	PointCloud() (PointCloud, error)
	// Distance returns the distance of a given point to the plane.
	Distance(p r3.Vector) float64
	// Intersect returns the point of intersection of the plane with the
	// line defined by p0 and p1, or nil if the line is parallel.
	Intersect(p0, p1 r3.Vector) *r3.Vector
}

type pointcloudPlane struct {
	pointcloud PointCloud
	equation   [4]float64
	center     r3.Vector
}

// NewEmptyPlane initializes an empty plane object.
func NewEmptyPlane() Plane {
	return &pointcloudPlane{New(), [4]float64{}, r3.Vector{}}
}

// NewPlane creates a new plane object from a point cloud.
func NewPlane(cloud PointCloud, equation [4]float64) Plane {
	var center r3.Vector
	if cloud != nil {
		center = CloudCentroid(cloud)
	}
	return NewPlaneWithCenter(cloud, equation, center)
}

// NewPlaneWithCenter creates a new plane object from a point cloud with its known center.
func NewPlaneWithCenter(cloud PointCloud, equation [4]float64, center r3.Vector) Plane {
	return &pointcloudPlane{cloud, equation, center}
}

// PointCloud returns the underlying point cloud of the plane.
func (p *pointcloudPlane) PointCloud() (PointCloud, error) {
	if p.pointcloud == nil {
		return New(), nil
	}
	return p.pointcloud, nil
}

// Normal returns the normal vector of the plane, the first 3 entries of the plane equation.
func (p *pointcloudPlane) Normal() r3.Vector {
	return r3.Vector{X: p.equation[0], Y: p.equation[1], Z: p.equation[2]}
}

// Center returns the vector of the center point of the plane.
func (p *pointcloudPlane) Center() r3.Vector {
	return p.center
}

// Offset returns the offset of the plane from the origin, the 4th entry of the plane equation.
func (p *pointcloudPlane) Offset() float64 {
	return p.equation[3]
}

// Equation returns the plane equation [0]x + [1]y + [2]z + [3] = 0.
func (p *pointcloudPlane) Equation() [4]float64 {
	return p.equation
}

// Distance calculates the distance from the plane to the input point.
func (p *pointcloudPlane) Distance(pt r3.Vector) float64 {
	return planeDistance(p.equation, pt)
}

// Intersect calculates the intersection point of the plane with line defined by p0,p1.
func (p *pointcloudPlane) Intersect(p0, p1 r3.Vector) *r3.Vector {
	return planeIntersect(p.equation, p0, p1)
}

// voxelPlane is a Plane fit to the points of one or more voxels by the region
// growing segmentation.
type voxelPlane struct {
	normal    r3.Vector
	center    r3.Vector
	offset    float64
	points    []r3.Vector
	voxelKeys []VoxelCoords
}

// PointCloud returns the points of the plane as a point cloud.
func (p *voxelPlane) PointCloud() (PointCloud, error) {
	pc := NewWithPrealloc(len(p.points))
	for _, pt := range p.points {
		if err := pc.Set(pt, NewNormalData(p.normal)); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// Normal returns the normal vector of the plane.
func (p *voxelPlane) Normal() r3.Vector {
	return p.normal
}

// Center returns the vector of the center point of the plane.
func (p *voxelPlane) Center() r3.Vector {
	return p.center
}

// Offset returns the offset of the plane from the origin.
func (p *voxelPlane) Offset() float64 {
	return p.offset
}

// Equation returns the plane equation [0]x + [1]y + [2]z + [3] = 0.
func (p *voxelPlane) Equation() [4]float64 {
	return [4]float64{p.normal.X, p.normal.Y, p.normal.Z, p.offset}
}

// Distance calculates the distance from the plane to the input point.
func (p *voxelPlane) Distance(pt r3.Vector) float64 {
	return planeDistance(p.Equation(), pt)
}

// Intersect calculates the intersection point of the plane with line defined by p0,p1.
func (p *voxelPlane) Intersect(p0, p1 r3.Vector) *r3.Vector {
	return planeIntersect(p.Equation(), p0, p1)
}

func planeDistance(equation [4]float64, pt r3.Vector) float64 {
	norm := math.Sqrt(equation[0]*equation[0] + equation[1]*equation[1] + equation[2]*equation[2])
	if norm == 0 {
		return 0
	}
	return (equation[0]*pt.X + equation[1]*pt.Y + equation[2]*pt.Z + equation[3]) / norm
}

func planeIntersect(equation [4]float64, p0, p1 r3.Vector) *r3.Vector {
	normal := r3.Vector{X: equation[0], Y: equation[1], Z: equation[2]}
	line := p1.Sub(p0)
	parallel := normal.Dot(line)
	if math.Abs(parallel) < 1e-6 { // the line is parallel to the plane
		return nil
	}
	t := -(normal.Dot(p0) + equation[3]) / parallel
	result := p0.Add(line.Mul(t))
	return &result
}
