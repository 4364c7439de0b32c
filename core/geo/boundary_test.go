package geo

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/kilianp07/hpcdemand/core/model"
)

func square(minLon, minLat, maxLon, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}
}

func TestBoundaryContains(t *testing.T) {
	u, _ := ParseCRS(DefaultCRS)
	b := NewBoundary(orb.MultiPolygon{square(8, 49, 10, 51), square(12, 52, 13, 53)}, u)
	if b.Polygons() != 2 {
		t.Fatalf("expected 2 polygons")
	}
	cases := []struct {
		c    model.Coordinate
		want bool
	}{
		{model.Coordinate{Lat: 50, Lon: 9}, true},
		{model.Coordinate{Lat: 52.5, Lon: 12.5}, true},
		{model.Coordinate{Lat: 52, Lon: 9}, false},
		{model.Coordinate{Lat: 50, Lon: 11}, false},
	}
	for _, c := range cases {
		if got := b.Contains(u.Project(c.c)); got != c.want {
			t.Fatalf("%+v: got %v want %v", c.c, got, c.want)
		}
	}
}

func TestBoundaryHole(t *testing.T) {
	u, _ := ParseCRS(DefaultCRS)
	poly := square(8, 49, 10, 51)
	poly = append(poly, orb.Ring{{8.8, 49.8}, {9.2, 49.8}, {9.2, 50.2}, {8.8, 50.2}, {8.8, 49.8}})
	b := NewBoundary(orb.MultiPolygon{poly}, u)
	if b.Contains(u.Project(model.Coordinate{Lat: 50, Lon: 9})) {
		t.Fatalf("point in hole reported inside")
	}
	if !b.Contains(u.Project(model.Coordinate{Lat: 49.5, Lon: 8.5})) {
		t.Fatalf("point outside hole reported outside")
	}
}

func TestNilBoundary(t *testing.T) {
	var b *Boundary
	u, _ := ParseCRS(DefaultCRS)
	if b.Contains(u.Project(model.Coordinate{Lat: 50, Lon: 9})) {
		t.Fatalf("nil boundary contains nothing")
	}
}
