package model

import (
	"fmt"
	"math"
)

// DriverMode is the crew configuration of a trip.
type DriverMode int

const (
	SingleDriver DriverMode = 1
	DoubleDriver DriverMode = 2
)

// String returns a human-readable representation of the crew mode.
func (m DriverMode) String() string {
	switch m {
	case SingleDriver:
		return "single"
	case DoubleDriver:
		return "double"
	default:
		return "unknown"
	}
}

// ParseDriverMode converts the numeric crew size used in trip tables.
func ParseDriverMode(n int) (DriverMode, error) {
	switch n {
	case 0, 1:
		return SingleDriver, nil
	case 2:
		return DoubleDriver, nil
	default:
		return 0, fmt.Errorf("invalid driver count %d", n)
	}
}

// Trip is one origin-destination freight journey over the road network.
type Trip struct {
	ID          int64
	Origin      string
	Destination string
	EdgePath    []int64 // network edges in driving order
	DistanceKm  float64 // total distance, 0 means derive from offset and path
	// OriginOffsetKm is the distance driven before the trip enters the
	// network (origin region to the first network node).
	OriginOffsetKm float64
	Driver         DriverMode
	Weight         float64 // truck flow represented by the trip
}

// EffectiveWeight returns the trip weight, defaulting to one truck.
func (t Trip) EffectiveWeight() float64 {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Finite reports whether both components are real numbers within the
// WGS84 range.
func (c Coordinate) Finite() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Lerp returns the point at fraction f on the straight line from c to o.
func (c Coordinate) Lerp(o Coordinate, f float64) Coordinate {
	return Coordinate{
		Lat: c.Lat + (o.Lat-c.Lat)*f,
		Lon: c.Lon + (o.Lon-c.Lon)*f,
	}
}

// Node is a vertex of the road network.
type Node struct {
	ID    int64
	Coord Coordinate
}

// Edge connects two nodes. Edges can be driven in both directions.
type Edge struct {
	ID       int64
	From     int64
	To       int64
	LengthKm float64
}

// Network holds the node and edge tables trips refer to.
type Network struct {
	Nodes map[int64]Node
	Edges map[int64]Edge
}

// NewNetwork indexes the given nodes and edges by id.
func NewNetwork(nodes []Node, edges []Edge) *Network {
	n := &Network{
		Nodes: make(map[int64]Node, len(nodes)),
		Edges: make(map[int64]Edge, len(edges)),
	}
	for _, nd := range nodes {
		n.Nodes[nd.ID] = nd
	}
	for _, e := range edges {
		n.Edges[e.ID] = e
	}
	return n
}
