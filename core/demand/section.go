package demand

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kilianp07/hpcdemand/core/model"
)

// ErrNoSection is returned when no toll section shares the site's highway.
var ErrNoSection = errors.New("no toll section on highway")

// DaysPerWeek is the length of a weekly profile.
const DaysPerWeek = 7

// Weekdays are the profile labels, Monday first.
var Weekdays = [DaysPerWeek]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// Profile holds truck counts per weekday, Monday first.
type Profile [DaysPerWeek]float64

// Sum is the weekly total.
func (p Profile) Sum() float64 {
	s := 0.0
	for _, v := range p {
		s += v
	}
	return s
}

// Section is a toll road section with its weekday traffic profile.
type Section struct {
	ID      string
	Highway string
	From    model.Coordinate
	To      model.Coordinate
	Profile Profile
}

// Midpoint is the plain average of both ends, in degrees.
func (s Section) Midpoint() model.Coordinate {
	return model.Coordinate{Lat: (s.From.Lat + s.To.Lat) / 2, Lon: (s.From.Lon + s.To.Lon) / 2}
}

// FilterSections drops sections whose highway label contains any of the
// given substrings.
func FilterSections(sections []Section, exclude []string) []Section {
	out := make([]Section, 0, len(sections))
next:
	for _, s := range sections {
		for _, e := range exclude {
			if strings.Contains(s.Highway, e) {
				continue next
			}
		}
		out = append(out, s)
	}
	return out
}

// ApplyCounts replaces section profiles with measured counts keyed by
// section id. Unknown ids are ignored; the number of updated sections is
// returned.
func ApplyCounts(sections []Section, counts map[string]Profile) int {
	n := 0
	for i := range sections {
		if p, ok := counts[sections[i].ID]; ok {
			sections[i].Profile = p
			n++
		}
	}
	return n
}

// NearestSection picks the section on the site's highway whose midpoint is
// closest in plain degree space. The first one wins on ties.
func NearestSection(site model.Site, sections []Section) (Section, error) {
	hw := strings.TrimSpace(site.Highway)
	best, bestD := -1, math.Inf(1)
	for i, s := range sections {
		if strings.TrimSpace(s.Highway) != hw {
			continue
		}
		m := s.Midpoint()
		d := math.Hypot(m.Lon-site.Coord.Lon, m.Lat-site.Coord.Lat)
		if d < bestD {
			best, bestD = i, d
		}
	}
	if best < 0 {
		return Section{}, fmt.Errorf("site %s: %w %q", site.ID, ErrNoSection, hw)
	}
	return sections[best], nil
}

// MatchProfiles resolves the weekday profile of every site. Sites without a
// matching section are reported in missing and left out of the map.
func MatchProfiles(sites []model.Site, sections []Section) (profiles map[string]Profile, sectionOf map[string]string, missing []string) {
	profiles = make(map[string]Profile, len(sites))
	sectionOf = make(map[string]string, len(sites))
	for _, s := range sites {
		sec, err := NearestSection(s, sections)
		if err != nil {
			missing = append(missing, s.ID)
			continue
		}
		profiles[s.ID] = sec.Profile
		sectionOf[s.ID] = sec.ID
	}
	return profiles, sectionOf, missing
}
