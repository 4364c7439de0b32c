package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/hpcdemand/core/assign"
	"github.com/kilianp07/hpcdemand/core/model"
)

// ErrNoCheckpoint is returned when a run has no stored checkpoint.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Record captures where one break event was assigned.
type Record struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	TripID    int64     `json:"trip_id"`
	Seq       int       `json:"seq"`
	Type      string    `json:"type"`
	SiteIndex int       `json:"site_index"`
	SiteID    string    `json:"site_id"`
	Rule      string    `json:"rule"`
}

// FromAssignments converts assigner output into audit records.
func FromAssignments(runID string, ts time.Time, as []assign.Assignment) []Record {
	out := make([]Record, len(as))
	for i, a := range as {
		out[i] = Record{
			RunID:     runID,
			Timestamp: ts,
			TripID:    a.TripID,
			Seq:       a.Seq,
			Type:      a.Type.String(),
			SiteIndex: a.SiteIndex,
			SiteID:    a.SiteID,
			Rule:      a.Rule.String(),
		}
	}
	return out
}

// Checkpoint is the persisted load state of one assignment pass.
type Checkpoint struct {
	RunID       string                         `json:"run_id"`
	Category    string                         `json:"category"`
	Fingerprint string                         `json:"fingerprint"`
	Timestamp   time.Time                      `json:"timestamp"`
	Cursor      int                            `json:"cursor"`
	Discarded   int                            `json:"discarded"`
	Counts      [][model.NumBreakTypes]int     `json:"counts"`
	Weighted    [][model.NumBreakTypes]float64 `json:"weighted"`
}

// NewCheckpoint snapshots a load table.
func NewCheckpoint(runID, category, fingerprint string, t *assign.LoadTable) Checkpoint {
	c := t.Clone()
	return Checkpoint{
		RunID:       runID,
		Category:    category,
		Fingerprint: fingerprint,
		Timestamp:   time.Now().UTC(),
		Cursor:      c.Cursor,
		Discarded:   c.Discarded,
		Counts:      c.Counts,
		Weighted:    c.Weighted,
	}
}

// Table restores the load table, checking it against the site count.
func (c Checkpoint) Table(sites int) (*assign.LoadTable, error) {
	if len(c.Counts) != sites || len(c.Weighted) != sites {
		return nil, fmt.Errorf("checkpoint %s/%s: %w", c.RunID, c.Category, assign.ErrTableMismatch)
	}
	t := &assign.LoadTable{
		Counts:    c.Counts,
		Weighted:  c.Weighted,
		Cursor:    c.Cursor,
		Discarded: c.Discarded,
	}
	return t.Clone(), nil
}

// Query defines filters for retrieving records. Zero fields match all.
type Query struct {
	RunID  string
	SiteID string
	TripID int64
	Type   string
}

func (q Query) match(r Record) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.SiteID != "" && r.SiteID != q.SiteID {
		return false
	}
	if q.TripID != 0 && r.TripID != q.TripID {
		return false
	}
	if q.Type != "" && r.Type != q.Type {
		return false
	}
	return true
}

// Store persists the event to site mapping and resume checkpoints.
// Records are keyed by (run, trip, seq); appending a key again replaces it.
type Store interface {
	Append(ctx context.Context, recs ...Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	LoadCheckpoint(ctx context.Context, runID, category string) (*Checkpoint, error)
	Close() error
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) Append(context.Context, ...Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error)   { return nil, nil }
func (NopStore) SaveCheckpoint(context.Context, Checkpoint) error { return nil }
func (NopStore) Close() error                                     { return nil }
func (NopStore) LoadCheckpoint(context.Context, string, string) (*Checkpoint, error) {
	return nil, ErrNoCheckpoint
}

// Rotation bounds the size of JSONL audit files. Zero MaxSizeMB disables it.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open creates the store for a backend: "jsonl", "sqlite" or "none".
func Open(backend, path string, rot Rotation) (Store, error) {
	switch backend {
	case "jsonl":
		return NewJSONLStore(path, rot)
	case "sqlite":
		return NewSQLiteStore(path)
	case "none", "":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown audit backend %q", backend)
	}
}
