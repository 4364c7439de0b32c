package breaks

import (
	"github.com/kilianp07/hpcdemand/core/model"
)

// lineNetwork builds a straight north-bound road along 9°E with one edge
// per given length. Node i sits at the cumulative distance of the first i
// edges, one degree of latitude per 200 km so long corridors stay below
// the pole.
func lineNetwork(lengths ...float64) (*model.Network, []int64) {
	nodes := []model.Node{{ID: 0, Coord: model.Coordinate{Lat: 48, Lon: 9}}}
	var edges []model.Edge
	var ids []int64
	cum := 0.0
	for i, l := range lengths {
		cum += l
		id := int64(i + 1)
		nodes = append(nodes, model.Node{ID: id, Coord: model.Coordinate{Lat: 48 + cum/200, Lon: 9}})
		edges = append(edges, model.Edge{ID: 100 + id, From: id - 1, To: id, LengthKm: l})
		ids = append(ids, 100+id)
	}
	return model.NewNetwork(nodes, edges), ids
}

func repeat(l float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = l
	}
	return out
}

func newTestGenerator(t interface{ Fatalf(string, ...any) }, cfg Config, net *model.Network) *Generator {
	g, err := New(cfg, net, nil)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func types(evs []model.BreakEvent) string {
	s := ""
	for _, e := range evs {
		if e.Type == model.BreakLong {
			s += "L"
		} else {
			s += "S"
		}
	}
	return s
}
