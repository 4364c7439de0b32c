package assign

import (
	"fmt"

	"github.com/kilianp07/hpcdemand/core/model"
)

// LoadTable is the mutable per-site load state of an assignment pass.
// It is plain data so it can be checkpointed as JSON.
type LoadTable struct {
	Counts    [][model.NumBreakTypes]int     `json:"counts"`
	Weighted  [][model.NumBreakTypes]float64 `json:"weighted"`
	Cursor    int                            `json:"cursor"`
	Discarded int                            `json:"discarded"`
}

// NewLoadTable returns a zeroed table for n sites.
func NewLoadTable(n int) *LoadTable {
	return &LoadTable{
		Counts:   make([][model.NumBreakTypes]int, n),
		Weighted: make([][model.NumBreakTypes]float64, n),
	}
}

// Count is the number of events assigned to site i.
func (t *LoadTable) Count(i int) int {
	n := 0
	for _, c := range t.Counts[i] {
		n += c
	}
	return n
}

// Weight is the summed event weight assigned to site i.
func (t *LoadTable) Weight(i int) float64 {
	w := 0.0
	for _, v := range t.Weighted[i] {
		w += v
	}
	return w
}

// Total is the number of assigned events over all sites.
func (t *LoadTable) Total() int {
	n := 0
	for i := range t.Counts {
		n += t.Count(i)
	}
	return n
}

func (t *LoadTable) key(i int, by BalanceKey) float64 {
	if by == BalanceWeight {
		return t.Weight(i)
	}
	return float64(t.Count(i))
}

func (t *LoadTable) add(i int, ev model.BreakEvent) {
	t.Counts[i][ev.Type]++
	w := ev.Weight
	if w <= 0 {
		w = 1
	}
	t.Weighted[i][ev.Type] += w
}

// Merge adds the loads of o to t. Cursors are not merged.
func (t *LoadTable) Merge(o *LoadTable) error {
	if len(o.Counts) != len(t.Counts) {
		return fmt.Errorf("%w: %d vs %d sites", ErrTableMismatch, len(o.Counts), len(t.Counts))
	}
	for i := range t.Counts {
		for k := 0; k < model.NumBreakTypes; k++ {
			t.Counts[i][k] += o.Counts[i][k]
			t.Weighted[i][k] += o.Weighted[i][k]
		}
	}
	t.Discarded += o.Discarded
	return nil
}

// Clone returns a deep copy.
func (t *LoadTable) Clone() *LoadTable {
	return &LoadTable{
		Counts:    append([][model.NumBreakTypes]int(nil), t.Counts...),
		Weighted:  append([][model.NumBreakTypes]float64(nil), t.Weighted...),
		Cursor:    t.Cursor,
		Discarded: t.Discarded,
	}
}

// SiteLoad is the final load of one site.
type SiteLoad struct {
	SiteID         string
	Count          int
	Weighted       float64
	ByType         [model.NumBreakTypes]int
	WeightedByType [model.NumBreakTypes]float64
}

// Loads pairs the table with the site list, in site input order.
func (t *LoadTable) Loads(sites []model.Site) []SiteLoad {
	out := make([]SiteLoad, len(sites))
	for i, s := range sites {
		out[i] = SiteLoad{
			SiteID:         s.ID,
			Count:          t.Count(i),
			Weighted:       t.Weight(i),
			ByType:         t.Counts[i],
			WeightedByType: t.Weighted[i],
		}
	}
	return out
}
