package dataset

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/hpcdemand/core/demand"
	"github.com/kilianp07/hpcdemand/core/model"
)

// ReadFile opens path and decodes it with load.
func ReadFile[T any](path string, load func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer func() { _ = f.Close() }()
	v, err := load(f)
	if err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// LoadTrips reads trips with columns trip_id, edge_path and optionally
// origin, destination, distance_km, origin_offset_km, driver and weight.
func LoadTrips(r io.Reader) ([]model.Trip, error) {
	t, err := newTable(r, "trip_id", "edge_path")
	if err != nil {
		return nil, err
	}
	var out []model.Trip
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		var trip model.Trip
		if trip.ID, err = t.integer("trip_id"); err != nil {
			return nil, err
		}
		trip.Origin = t.str("origin")
		trip.Destination = t.str("destination")
		if trip.DistanceKm, err = t.float("distance_km"); err != nil {
			return nil, err
		}
		if trip.OriginOffsetKm, err = t.float("origin_offset_km"); err != nil {
			return nil, err
		}
		if trip.Weight, err = t.float("weight"); err != nil {
			return nil, err
		}
		d, err := t.integer("driver")
		if err != nil {
			return nil, err
		}
		if trip.Driver, err = model.ParseDriverMode(int(d)); err != nil {
			return nil, t.errorf("trip %d: %w", trip.ID, err)
		}
		if trip.EdgePath, err = ParseEdgePath(t.str("edge_path")); err != nil {
			return nil, t.errorf("trip %d: %w", trip.ID, err)
		}
		out = append(out, trip)
	}
}

// ParseEdgePath parses "[12, 13, 14]"; brackets are optional and ids may
// be separated by commas or whitespace.
func ParseEdgePath(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("edge path: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// LoadNodes reads node_id, lon, lat rows.
func LoadNodes(r io.Reader) ([]model.Node, error) {
	t, err := newTable(r, "node_id", "lon", "lat")
	if err != nil {
		return nil, err
	}
	var out []model.Node
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		var n model.Node
		if n.ID, err = t.integer("node_id"); err != nil {
			return nil, err
		}
		if n.Coord.Lon, err = t.requiredFloat("lon"); err != nil {
			return nil, err
		}
		if n.Coord.Lat, err = t.requiredFloat("lat"); err != nil {
			return nil, err
		}
		if !n.Coord.Finite() {
			return nil, t.errorf("node %d: coordinate %+v out of range", n.ID, n.Coord)
		}
		out = append(out, n)
	}
}

// LoadEdges reads edge_id, node_a, node_b, distance_km rows.
func LoadEdges(r io.Reader) ([]model.Edge, error) {
	t, err := newTable(r, "edge_id", "node_a", "node_b", "distance_km")
	if err != nil {
		return nil, err
	}
	var out []model.Edge
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		var e model.Edge
		if e.ID, err = t.integer("edge_id"); err != nil {
			return nil, err
		}
		if e.From, err = t.integer("node_a"); err != nil {
			return nil, err
		}
		if e.To, err = t.integer("node_b"); err != nil {
			return nil, err
		}
		if e.LengthKm, err = t.requiredFloat("distance_km"); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}

// LoadNetwork reads nodes and edges into a lookup structure.
func LoadNetwork(nodes, edges io.Reader) (*model.Network, error) {
	ns, err := LoadNodes(nodes)
	if err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	es, err := LoadEdges(edges)
	if err != nil {
		return nil, fmt.Errorf("edges: %w", err)
	}
	return model.NewNetwork(ns, es), nil
}

// LoadSites reads candidate sites with id, lat, lon and optional name and
// highway. Duplicate ids are rejected.
func LoadSites(r io.Reader) ([]model.Site, error) {
	t, err := newTable(r, "id", "lat", "lon")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []model.Site
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		s := model.Site{ID: t.str("id"), Name: t.str("name"), Highway: t.str("highway")}
		if s.ID == "" {
			return nil, t.errorf("empty site id")
		}
		if _, dup := seen[s.ID]; dup {
			return nil, t.errorf("duplicate site id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Coord.Lat, err = t.requiredFloat("lat"); err != nil {
			return nil, err
		}
		if s.Coord.Lon, err = t.requiredFloat("lon"); err != nil {
			return nil, err
		}
		if !s.Coord.Finite() {
			return nil, t.errorf("site %q: coordinate %+v out of range", s.ID, s.Coord)
		}
		out = append(out, s)
	}
}

func readProfile(t *table) (demand.Profile, error) {
	var p demand.Profile
	for i, day := range demand.Weekdays {
		v, err := t.float(day)
		if err != nil {
			return p, err
		}
		p[i] = v
	}
	return p, nil
}

// LoadSections reads toll sections with their weekday profiles.
func LoadSections(r io.Reader) ([]demand.Section, error) {
	req := append([]string{"section_id", "highway", "from_lat", "from_lon", "to_lat", "to_lon"}, demand.Weekdays[:]...)
	t, err := newTable(r, req...)
	if err != nil {
		return nil, err
	}
	var out []demand.Section
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		s := demand.Section{ID: t.str("section_id"), Highway: t.str("highway")}
		coords := []*float64{&s.From.Lat, &s.From.Lon, &s.To.Lat, &s.To.Lon}
		for i, col := range []string{"from_lat", "from_lon", "to_lat", "to_lon"} {
			if *coords[i], err = t.requiredFloat(col); err != nil {
				return nil, err
			}
		}
		if !s.From.Finite() || !s.To.Finite() {
			return nil, t.errorf("section %q: coordinate out of range", s.ID)
		}
		if s.Profile, err = readProfile(t); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// LoadCounts reads measured weekday counts keyed by section_id.
func LoadCounts(r io.Reader) (map[string]demand.Profile, error) {
	t, err := newTable(r, append([]string{"section_id"}, demand.Weekdays[:]...)...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]demand.Profile)
	for {
		ok, err := t.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		p, err := readProfile(t)
		if err != nil {
			return nil, err
		}
		out[t.str("section_id")] = p
	}
}
