package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/hpcdemand/core/metrics"
	"github.com/kilianp07/hpcdemand/infra/logger"
)

// InfluxSink writes run results to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordBreakGeneration writes the generator summary.
func (s *InfluxSink) RecordBreakGeneration(ev coremetrics.BreakGenerationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("break_generation").
		AddTag("run_id", ev.RunID).
		AddTag("component", "break_generator").
		AddField("trips", ev.Trips).
		AddField("skipped", ev.Skipped).
		AddField("reclassified", ev.Reclassified).
		AddField("short", ev.Short).
		AddField("long", ev.Long).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes one assignment pass.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment").
		AddTag("run_id", ev.RunID).
		AddTag("category", ev.Category).
		AddTag("component", "assigner").
		AddField("assigned", ev.Assigned).
		AddField("discarded", ev.Discarded).
		AddField("single", ev.Single).
		AddField("balanced", ev.Balanced).
		AddField("nearest", ev.Nearest).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSiteLoads writes one point per site in a single request.
func (s *InfluxSink) RecordSiteLoads(evs []coremetrics.SiteLoadEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, ev := range evs {
		points = append(points, write.NewPointWithMeasurement("site_load").
			AddTag("run_id", ev.RunID).
			AddTag("site_id", ev.SiteID).
			AddField("short", ev.Short).
			AddField("long", ev.Long).
			AddField("short_weighted", round3(ev.ShortWeighted)).
			AddField("long_weighted", round3(ev.LongWeighted)).
			SetTime(ev.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordDataQuality writes one point per skipped trip.
func (s *InfluxSink) RecordDataQuality(evs []coremetrics.DataQualityEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(evs))
	for _, ev := range evs {
		points = append(points, write.NewPointWithMeasurement("data_quality").
			AddTag("run_id", ev.RunID).
			AddTag("trip_id", strconv.FormatInt(ev.TripID, 10)).
			AddField("reason", ev.Reason).
			SetTime(ev.Time))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// Flush closes the client. Writes are blocking, so nothing is pending.
func (s *InfluxSink) Flush() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
