package geo

import (
	"github.com/paulmach/orb"

	"github.com/kilianp07/hpcdemand/core/model"
)

// lonLat converts a GeoJSON ordered point.
func lonLat(p orb.Point) model.Coordinate {
	return model.Coordinate{Lat: p.Lat(), Lon: p.Lon()}
}
