package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	count int
}

func (r *recordSink) RecordBreakGeneration(BreakGenerationEvent) error {
	r.count++
	return nil
}

func (r *recordSink) RecordAssignment(AssignmentEvent) error {
	r.count++
	return nil
}

type failingSink struct{}

func (failingSink) RecordBreakGeneration(BreakGenerationEvent) error { return errors.New("boom") }
func (failingSink) Flush() error                                     { return errors.New("flush") }

// TestMultiSink ensures events are forwarded to all sinks.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordBreakGeneration(BreakGenerationEvent{}); err != nil {
		t.Fatalf("record generation: %v", err)
	}
	if err := m.RecordAssignment(AssignmentEvent{}); err != nil {
		t.Fatalf("record assignment: %v", err)
	}
	// recordSink does not implement SiteLoadRecorder
	if err := m.RecordSiteLoads(nil); err != nil {
		t.Fatalf("record loads: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("events not forwarded")
	}
}

func TestMultiSinkErrors(t *testing.T) {
	m := NewMultiSink(&recordSink{}, failingSink{})
	if err := m.RecordBreakGeneration(BreakGenerationEvent{}); err == nil {
		t.Fatal("expected error from failing sink")
	}
	if err := m.Flush(); err == nil {
		t.Fatal("expected flush error")
	}
	if err := NewMultiSink(NopSink{}).Flush(); err != nil {
		t.Fatalf("nop flush: %v", err)
	}
}
