package reco

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type CellInfo struct {
	Pitch      float64 // cm, strip width
	HalfLength float64 // cm, half the strip length
}

// Placement maps local cell coordinates to global detector coordinates.
type Placement struct {
	Rotation    *mat.Dense
	Translation *mat.VecDense
}

// NewPlacement builds a placement from a translation and rotation angles in
// degrees, applied as Rz*Ry*Rx.
func NewPlacement(x, y, z, rotX, rotY, rotZ float64) Placement {
	return Placement{
		Rotation:    rotationMatrix(rotX, rotY, rotZ),
		Translation: mat.NewVecDense(3, []float64{x, y, z}),
	}
}

func rotationMatrix(rotX, rotY, rotZ float64) *mat.Dense {
	ax, ay, az := rotX*math.Pi/180, rotY*math.Pi/180, rotZ*math.Pi/180
	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, math.Cos(ax), -math.Sin(ax),
		0, math.Sin(ax), math.Cos(ax),
	})
	ry := mat.NewDense(3, 3, []float64{
		math.Cos(ay), 0, math.Sin(ay),
		0, 1, 0,
		-math.Sin(ay), 0, math.Cos(ay),
	})
	rz := mat.NewDense(3, 3, []float64{
		math.Cos(az), -math.Sin(az), 0,
		math.Sin(az), math.Cos(az), 0,
		0, 0, 1,
	})
	var zy, r mat.Dense
	zy.Mul(rz, ry)
	r.Mul(&zy, rx)
	return &r
}

func (p Placement) Apply(local Vec3) Vec3 {
	v := mat.NewVecDense(3, []float64{local.X, local.Y, local.Z})
	var g mat.VecDense
	if p.Rotation != nil {
		g.MulVec(p.Rotation, v)
	} else {
		g.CloneFromVec(v)
	}
	if p.Translation != nil {
		g.AddVec(&g, p.Translation)
	}
	return Vec3{X: g.AtVec(0), Y: g.AtVec(1), Z: g.AtVec(2)}
}

// Geometry is the channel placement service. The side of the address is
// ignored.
type Geometry interface {
	Transform(a Address) (Placement, error)
	CellInfo(a Address) (CellInfo, error)
	ChannelCount(key ModuleKey) int
	TotalChannels() int
}

type geometryCell struct {
	info      CellInfo
	placement Placement
}

// CellGeometry is an in-memory Geometry filled from the run conditions.
type CellGeometry struct {
	cells    map[ChannelKey]geometryCell
	channels map[ModuleKey]int
}

func NewCellGeometry() *CellGeometry {
	return &CellGeometry{
		cells:    make(map[ChannelKey]geometryCell),
		channels: make(map[ModuleKey]int),
	}
}

func (g *CellGeometry) AddCell(key ChannelKey, info CellInfo, placement Placement) {
	g.cells[key] = geometryCell{info: info, placement: placement}
	if key.Channel+1 > g.channels[key.ModuleKey] {
		g.channels[key.ModuleKey] = key.Channel + 1
	}
}

func (g *CellGeometry) Transform(a Address) (Placement, error) {
	cell, ok := g.cells[a.ChannelKey()]
	if !ok {
		return Placement{}, &ErrGeometryLookup{Address: a}
	}
	return cell.placement, nil
}

func (g *CellGeometry) CellInfo(a Address) (CellInfo, error) {
	cell, ok := g.cells[a.ChannelKey()]
	if !ok {
		return CellInfo{}, &ErrGeometryLookup{Address: a}
	}
	return cell.info, nil
}

// ChannelCount is one past the highest channel index known for the module.
func (g *CellGeometry) ChannelCount(key ModuleKey) int {
	return g.channels[key]
}

func (g *CellGeometry) TotalChannels() int {
	total := 0
	for _, n := range g.channels {
		total += n
	}
	return total
}
