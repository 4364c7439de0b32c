package metrics

import "time"

// BreakGenerationEvent summarises one run of the break generator.
type BreakGenerationEvent struct {
	RunID        string
	Trips        int
	Skipped      int
	Reclassified int
	Short        int
	Long         int
	Duration     time.Duration
	Time         time.Time
}

// MetricsSink records pipeline results for observability purposes.
type MetricsSink interface {
	RecordBreakGeneration(ev BreakGenerationEvent) error
}

// AssignmentEvent summarises one assignment pass.
type AssignmentEvent struct {
	RunID     string
	Category  string // break type, or "all" when loads are shared
	Assigned  int
	Discarded int
	Single    int
	Balanced  int
	Nearest   int
	Duration  time.Duration
	Time      time.Time
}

// AssignmentRecorder records assignment passes.
type AssignmentRecorder interface {
	RecordAssignment(ev AssignmentEvent) error
}

// SiteLoadEvent is the final load of one site.
type SiteLoadEvent struct {
	RunID         string
	SiteID        string
	Short         int
	Long          int
	ShortWeighted float64
	LongWeighted  float64
	Time          time.Time
}

// SiteLoadRecorder records final site loads.
type SiteLoadRecorder interface {
	RecordSiteLoads(evs []SiteLoadEvent) error
}

// DataQualityEvent reports a trip that produced no break chain.
type DataQualityEvent struct {
	RunID  string
	TripID int64
	Reason string
	Time   time.Time
}

// DataQualityRecorder records skipped trips.
type DataQualityRecorder interface {
	RecordDataQuality(evs []DataQualityEvent) error
}

// Flusher is implemented by sinks that buffer output until the run ends.
type Flusher interface {
	Flush() error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordBreakGeneration(BreakGenerationEvent) error { return nil }
func (NopSink) RecordAssignment(AssignmentEvent) error           { return nil }
func (NopSink) RecordSiteLoads([]SiteLoadEvent) error            { return nil }
func (NopSink) RecordDataQuality([]DataQualityEvent) error       { return nil }
func (NopSink) Flush() error                                     { return nil }
