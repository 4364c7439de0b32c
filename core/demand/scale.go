package demand

import (
	"math"

	"github.com/kilianp07/hpcdemand/core/assign"
	"github.com/kilianp07/hpcdemand/core/model"
)

// SiteDemand is the scaled charging demand of one site.
type SiteDemand struct {
	SiteID    string
	SectionID string
	// Fast and Overnight are annual charging sessions.
	Fast      float64
	Overnight float64
	// Daily values are sessions per weekday, Monday first.
	FastDaily      [DaysPerWeek]int
	OvernightDaily [DaysPerWeek]int
}

// Features returns the fast then overnight daily values as one vector.
func (d SiteDemand) Features() []float64 {
	out := make([]float64, 0, 2*DaysPerWeek)
	for _, v := range d.FastDaily {
		out = append(out, float64(v))
	}
	for _, v := range d.OvernightDaily {
		out = append(out, float64(v))
	}
	return out
}

// Scale converts site loads into demand. Short breaks become fast charging,
// long rests overnight charging. Daily values split the annual figure by
// the weekday shares of the site profile and round half to even; sites
// without a usable profile keep zero daily values.
func Scale(loads []assign.SiteLoad, profiles map[string]Profile, f Factors, basis Basis) []SiteDemand {
	k := f.Product()
	out := make([]SiteDemand, len(loads))
	for i, l := range loads {
		short, long := float64(l.ByType[model.BreakShort]), float64(l.ByType[model.BreakLong])
		if basis != BasisCount {
			short, long = l.WeightedByType[model.BreakShort], l.WeightedByType[model.BreakLong]
		}
		d := SiteDemand{SiteID: l.SiteID, Fast: short * k, Overnight: long * k}
		if p, ok := profiles[l.SiteID]; ok {
			if total := p.Sum(); total > 0 {
				for day, v := range p {
					share := v / total
					d.FastDaily[day] = int(math.RoundToEven(share * d.Fast / f.WeeksPerYear))
					d.OvernightDaily[day] = int(math.RoundToEven(share * d.Overnight / f.WeeksPerYear))
				}
			}
		}
		out[i] = d
	}
	return out
}
