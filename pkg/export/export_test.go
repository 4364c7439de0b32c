package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/hpcdemand/core/assign"
	"github.com/kilianp07/hpcdemand/core/demand"
	"github.com/kilianp07/hpcdemand/core/model"
)

func TestWriteSiteLoadsCSV(t *testing.T) {
	var buf bytes.Buffer
	loads := []assign.SiteLoad{{
		SiteID:         "A",
		Count:          5,
		ByType:         [model.NumBreakTypes]int{3, 2},
		WeightedByType: [model.NumBreakTypes]float64{30.5, 20},
	}}
	require.NoError(t, WriteSiteLoadsCSV(&buf, loads))
	want := "site_id,short,long,total,short_weighted,long_weighted\nA,3,2,5,30.5,20\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteBreaksCSV(t *testing.T) {
	var buf bytes.Buffer
	evs := []model.BreakEvent{{
		TripID: 7, Seq: 2, Type: model.BreakLong,
		Coord:  model.Coordinate{Lat: 50.1, Lon: 8.25},
		PathKm: 720, DrivenKm: 730, EdgeID: 12, Driver: model.DoubleDriver, Weight: 3,
	}}
	require.NoError(t, WriteBreaksCSV(&buf, evs))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "7,2,long,50.1,8.25,720,730,12,2,3", lines[1])
}

func TestWriteDemandCSV(t *testing.T) {
	var buf bytes.Buffer
	d := []demand.SiteDemand{{SiteID: "A", SectionID: "s1", Fast: 10.5, Overnight: 2}, {SiteID: "B"}}
	d[0].FastDaily[0] = 4
	require.NoError(t, WriteDemandCSV(&buf, d, []int{2}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "site_id,section_id,fast,overnight,fast_mon,"))
	assert.True(t, strings.HasSuffix(lines[0], ",overnight_sun,cluster"))
	assert.Equal(t, "A,s1,10.5,2,4,0,0,0,0,0,0,0,0,0,0,0,0,0,3", lines[1])
	assert.True(t, strings.HasSuffix(lines[2], ","), "missing label leaves the cluster empty")
}

func TestWriteClusterCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []demand.ClusterProfile{{Cluster: 1, Weekday: 3, Charger: demand.ChargerFast, Count: 12}}
	require.NoError(t, WriteClusterCSV(&buf, rows))
	assert.Equal(t, "cluster,weekday,charger,count\n1,3,fast,12\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"sites": 3}))
	var out map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 3, out["sites"])
}
