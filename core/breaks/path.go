package breaks

import (
	"fmt"
	"math"

	"github.com/kilianp07/hpcdemand/core/model"
)

// segment is one oriented edge of a resolved path.
type segment struct {
	edgeID   int64
	a, b     model.Coordinate
	startKm  float64
	lengthKm float64
}

type path struct {
	segs     []segment
	lengthKm float64
	cursor   int
}

// resolvePath orients every edge of the trip so that consecutive edges share
// a node, and accumulates their lengths.
func resolvePath(net *model.Network, trip model.Trip) (*path, error) {
	if net == nil || len(trip.EdgePath) == 0 {
		return nil, ErrMalformedPath
	}
	edges := make([]model.Edge, len(trip.EdgePath))
	for i, id := range trip.EdgePath {
		e, ok := net.Edges[id]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrUnknownEdge, id)
		}
		if math.IsNaN(e.LengthKm) || math.IsInf(e.LengthKm, 0) || e.LengthKm <= 0 {
			return nil, fmt.Errorf("%w: edge %d length %v", ErrInvalidLength, id, e.LengthKm)
		}
		edges[i] = e
	}

	entry := edges[0].From
	if len(edges) > 1 {
		first, next := edges[0], edges[1]
		fromShared := first.From == next.From || first.From == next.To
		toShared := first.To == next.From || first.To == next.To
		if fromShared && !toShared {
			entry = first.To
		}
	}

	p := &path{segs: make([]segment, 0, len(edges))}
	for i, e := range edges {
		var exit int64
		switch entry {
		case e.From:
			exit = e.To
		case e.To:
			exit = e.From
		default:
			return nil, fmt.Errorf("%w at position %d (edge %d)", ErrDisconnectedPath, i, e.ID)
		}
		na, ok := net.Nodes[entry]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrUnknownNode, entry)
		}
		nb, ok := net.Nodes[exit]
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrUnknownNode, exit)
		}
		if !na.Coord.Finite() {
			return nil, fmt.Errorf("%w: node %d %+v", ErrInvalidCoord, entry, na.Coord)
		}
		if !nb.Coord.Finite() {
			return nil, fmt.Errorf("%w: node %d %+v", ErrInvalidCoord, exit, nb.Coord)
		}
		p.segs = append(p.segs, segment{
			edgeID:   e.ID,
			a:        na.Coord,
			b:        nb.Coord,
			startKm:  p.lengthKm,
			lengthKm: e.LengthKm,
		})
		p.lengthKm += e.LengthKm
		entry = exit
	}
	return p, nil
}

// locate interpolates the point at km along the path. Calls must use
// non-decreasing km.
func (p *path) locate(km float64) (model.Coordinate, int64) {
	for p.cursor < len(p.segs)-1 && km > p.segs[p.cursor].startKm+p.segs[p.cursor].lengthKm {
		p.cursor++
	}
	s := p.segs[p.cursor]
	f := (km - s.startKm) / s.lengthKm
	f = math.Min(math.Max(f, 0), 1)
	return s.a.Lerp(s.b, f), s.edgeID
}
