package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/spatial/r2"
)

// Boundary is a projected (multi)polygon used to keep break points inside
// the study area. A point is inside when any member polygon contains it.
type Boundary struct {
	shape orb.MultiPolygon
	bound orb.Bound
}

// NewBoundary projects a WGS84 multipolygon (lon/lat points) with proj.
func NewBoundary(mp orb.MultiPolygon, proj *UTM) *Boundary {
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, poly := range mp {
		pp := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			pr := make(orb.Ring, len(ring))
			for i, pt := range ring {
				v := proj.Project(lonLat(pt))
				pr[i] = orb.Point{v.X, v.Y}
			}
			pp = append(pp, pr)
		}
		out = append(out, pp)
	}
	return &Boundary{shape: out, bound: out.Bound()}
}

// Contains reports whether the projected point lies inside the boundary.
func (b *Boundary) Contains(p r2.Vec) bool {
	if b == nil || len(b.shape) == 0 {
		return false
	}
	pt := orb.Point{p.X, p.Y}
	if !b.bound.Contains(pt) {
		return false
	}
	return planar.MultiPolygonContains(b.shape, pt)
}

// Polygons returns the number of member polygons.
func (b *Boundary) Polygons() int { return len(b.shape) }
