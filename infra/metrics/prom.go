package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/hpcdemand/core/metrics"
)

// PromSink records run results in Prometheus metrics. Batch runs have no
// scrape window, so Flush writes the gathered families to a node-exporter
// textfile when a path is configured.
type PromSink struct {
	trips      *prometheus.CounterVec
	breaks     *prometheus.CounterVec
	assigned   *prometheus.CounterVec
	discarded  *prometheus.CounterVec
	siteBreaks *prometheus.GaugeVec
	siteFlow   *prometheus.GaugeVec
	duration   *prometheus.GaugeVec
	quality    prometheus.Counter

	gatherer prometheus.Gatherer
	textfile string
}

// NewPromSink registers metrics on a private registry and writes them to
// textfile on Flush.
func NewPromSink(textfile string) (*PromSink, error) {
	reg := prometheus.NewRegistry()
	return NewPromSinkWithRegistry(reg, reg, textfile)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer, a nil
// gatherer to the global gatherer.
func NewPromSinkWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer, textfile string) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	s := &PromSink{gatherer: g, textfile: textfile}

	trips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hpc_trips_total",
		Help: "Trips processed by the break generator by outcome",
	}, []string{"outcome"})
	breaks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hpc_break_events_total",
		Help: "Break events generated by type",
	}, []string{"type"})
	assigned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hpc_assignments_total",
		Help: "Break events assigned to sites by category and rule",
	}, []string{"category", "rule"})
	discarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hpc_discarded_breaks_total",
		Help: "Break events outside the study boundary",
	}, []string{"category"})
	siteBreaks := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hpc_site_breaks",
		Help: "Break events assigned to a site",
	}, []string{"site_id", "type"})
	siteFlow := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hpc_site_breaks_weighted",
		Help: "Truck flow weighted breaks assigned to a site",
	}, []string{"site_id", "type"})
	duration := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hpc_stage_duration_seconds",
		Help: "Wall time of a pipeline stage",
	}, []string{"stage"})
	quality := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hpc_data_quality_errors_total",
		Help: "Trips skipped because of malformed input",
	})

	var err error
	if s.trips, err = register(reg, trips); err != nil {
		return nil, err
	}
	if s.breaks, err = register(reg, breaks); err != nil {
		return nil, err
	}
	if s.assigned, err = register(reg, assigned); err != nil {
		return nil, err
	}
	if s.discarded, err = register(reg, discarded); err != nil {
		return nil, err
	}
	if s.siteBreaks, err = register(reg, siteBreaks); err != nil {
		return nil, err
	}
	if s.siteFlow, err = register(reg, siteFlow); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if s.quality, err = register(reg, quality); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when an equal one
// exists, so several sinks can share a registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// RecordBreakGeneration adds the generator summary.
func (s *PromSink) RecordBreakGeneration(ev coremetrics.BreakGenerationEvent) error {
	s.trips.WithLabelValues("chained").Add(float64(ev.Trips - ev.Skipped))
	s.trips.WithLabelValues("skipped").Add(float64(ev.Skipped))
	s.trips.WithLabelValues("reclassified").Add(float64(ev.Reclassified))
	s.breaks.WithLabelValues("short").Add(float64(ev.Short))
	s.breaks.WithLabelValues("long").Add(float64(ev.Long))
	s.duration.WithLabelValues("generate").Set(ev.Duration.Seconds())
	return nil
}

// RecordAssignment adds one assignment pass.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assigned.WithLabelValues(ev.Category, "single").Add(float64(ev.Single))
	s.assigned.WithLabelValues(ev.Category, "balanced").Add(float64(ev.Balanced))
	s.assigned.WithLabelValues(ev.Category, "nearest").Add(float64(ev.Nearest))
	s.discarded.WithLabelValues(ev.Category).Add(float64(ev.Discarded))
	s.duration.WithLabelValues("assign_" + ev.Category).Set(ev.Duration.Seconds())
	return nil
}

// RecordSiteLoads sets the per-site gauges.
func (s *PromSink) RecordSiteLoads(evs []coremetrics.SiteLoadEvent) error {
	for _, ev := range evs {
		s.siteBreaks.WithLabelValues(ev.SiteID, "short").Set(float64(ev.Short))
		s.siteBreaks.WithLabelValues(ev.SiteID, "long").Set(float64(ev.Long))
		s.siteFlow.WithLabelValues(ev.SiteID, "short").Set(ev.ShortWeighted)
		s.siteFlow.WithLabelValues(ev.SiteID, "long").Set(ev.LongWeighted)
	}
	return nil
}

// RecordDataQuality counts skipped trips.
func (s *PromSink) RecordDataQuality(evs []coremetrics.DataQualityEvent) error {
	s.quality.Add(float64(len(evs)))
	return nil
}

// Flush writes the textfile, if configured.
func (s *PromSink) Flush() error {
	if s.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(s.textfile, s.gatherer); err != nil {
		return fmt.Errorf("write prometheus textfile: %w", err)
	}
	return nil
}
