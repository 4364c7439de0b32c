package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/hpcdemand/core/assign"
	"github.com/kilianp07/hpcdemand/core/demand"
	"github.com/kilianp07/hpcdemand/core/model"
)

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func writeAll(w io.Writer, header []string, n int, row func(i int) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := cw.Write(row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBreaksCSV writes break events, one row per event.
func WriteBreaksCSV(w io.Writer, events []model.BreakEvent) error {
	header := []string{"trip_id", "seq", "type", "lat", "lon", "path_km", "driven_km", "edge_id", "driver", "weight"}
	return writeAll(w, header, len(events), func(i int) []string {
		e := events[i]
		return []string{
			strconv.FormatInt(e.TripID, 10),
			strconv.Itoa(e.Seq),
			e.Type.String(),
			ftoa(e.Coord.Lat),
			ftoa(e.Coord.Lon),
			ftoa(e.PathKm),
			ftoa(e.DrivenKm),
			strconv.FormatInt(e.EdgeID, 10),
			strconv.Itoa(int(e.Driver)),
			ftoa(e.Weight),
		}
	})
}

// WriteSiteLoadsCSV writes the final per-site break counts.
func WriteSiteLoadsCSV(w io.Writer, loads []assign.SiteLoad) error {
	header := []string{"site_id", "short", "long", "total", "short_weighted", "long_weighted"}
	return writeAll(w, header, len(loads), func(i int) []string {
		l := loads[i]
		return []string{
			l.SiteID,
			strconv.Itoa(l.ByType[model.BreakShort]),
			strconv.Itoa(l.ByType[model.BreakLong]),
			strconv.Itoa(l.Count),
			ftoa(l.WeightedByType[model.BreakShort]),
			ftoa(l.WeightedByType[model.BreakLong]),
		}
	})
}

// WriteDemandCSV writes annual and per-weekday demand. The cluster column
// is filled when labels are given, 1-based.
func WriteDemandCSV(w io.Writer, demands []demand.SiteDemand, labels []int) error {
	header := []string{"site_id", "section_id", "fast", "overnight"}
	for _, d := range demand.Weekdays {
		header = append(header, "fast_"+d)
	}
	for _, d := range demand.Weekdays {
		header = append(header, "overnight_"+d)
	}
	header = append(header, "cluster")
	return writeAll(w, header, len(demands), func(i int) []string {
		d := demands[i]
		row := []string{d.SiteID, d.SectionID, ftoa(d.Fast), ftoa(d.Overnight)}
		for _, v := range d.FastDaily {
			row = append(row, strconv.Itoa(v))
		}
		for _, v := range d.OvernightDaily {
			row = append(row, strconv.Itoa(v))
		}
		cluster := ""
		if i < len(labels) {
			cluster = strconv.Itoa(labels[i] + 1)
		}
		return append(row, cluster)
	})
}

// WriteClusterCSV writes the typical load profiles.
func WriteClusterCSV(w io.Writer, rows []demand.ClusterProfile) error {
	header := []string{"cluster", "weekday", "charger", "count"}
	return writeAll(w, header, len(rows), func(i int) []string {
		r := rows[i]
		return []string{strconv.Itoa(r.Cluster), strconv.Itoa(r.Weekday), r.Charger, strconv.Itoa(r.Count)}
	})
}
