package metrics

import "errors"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordBreakGeneration forwards the summary to all sinks, returning the
// first error encountered.
func (m *MultiSink) RecordBreakGeneration(ev BreakGenerationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordBreakGeneration(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAssignment forwards assignment passes when supported by the sink.
func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AssignmentRecorder); ok {
			if err := rec.RecordAssignment(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSiteLoads forwards site loads when supported by the sink.
func (m *MultiSink) RecordSiteLoads(evs []SiteLoadEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SiteLoadRecorder); ok {
			if err := rec.RecordSiteLoads(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDataQuality forwards skipped trips when supported by the sink.
func (m *MultiSink) RecordDataQuality(evs []DataQualityEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DataQualityRecorder); ok {
			if err := rec.RecordDataQuality(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes every sink and joins their errors.
func (m *MultiSink) Flush() error {
	var errs []error
	for _, s := range m.Sinks {
		if f, ok := s.(Flusher); ok {
			errs = append(errs, f.Flush())
		}
	}
	return errors.Join(errs...)
}
