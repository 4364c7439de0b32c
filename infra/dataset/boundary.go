package dataset

import (
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrEmptyBoundary is returned when a boundary file holds no polygons.
var ErrEmptyBoundary = errors.New("boundary has no polygons")

// LoadBoundary reads a GeoJSON FeatureCollection, or a bare geometry, and
// dissolves every Polygon and MultiPolygon into one MultiPolygon with
// lon/lat points. Other geometry types are rejected.
func LoadBoundary(r io.Reader) (orb.MultiPolygon, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var geoms []orb.Geometry
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else {
		g, gerr := geojson.UnmarshalGeometry(data)
		if gerr != nil {
			if err != nil {
				return nil, fmt.Errorf("parse boundary: %w", err)
			}
			return nil, ErrEmptyBoundary
		}
		geoms = append(geoms, g.Geometry())
	}

	var out orb.MultiPolygon
	for i, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			out = append(out, v)
		case orb.MultiPolygon:
			out = append(out, v...)
		case nil:
			continue
		default:
			return nil, fmt.Errorf("feature %d: unsupported geometry %s", i, g.GeoJSONType())
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyBoundary
	}
	return out, nil
}
