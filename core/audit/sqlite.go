package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records and checkpoints to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS assignments (
        run_id TEXT NOT NULL,
        trip_id INTEGER NOT NULL,
        seq INTEGER NOT NULL,
        ts INTEGER,
        type TEXT,
        site_index INTEGER,
        site_id TEXT,
        rule TEXT,
        PRIMARY KEY (run_id, trip_id, seq)
    );
    CREATE INDEX IF NOT EXISTS assignments_site ON assignments (run_id, site_id);
    CREATE TABLE IF NOT EXISTS checkpoints (
        run_id TEXT NOT NULL,
        category TEXT NOT NULL,
        ts INTEGER,
        state TEXT,
        PRIMARY KEY (run_id, category)
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes all records in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, recs ...Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO assignments
        (run_id, trip_id, seq, ts, type, site_index, site_id, rule) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.TripID, r.Seq, r.Timestamp.UnixNano(),
			r.Type, r.SiteIndex, r.SiteID, r.Rule); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by trip and sequence.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	var args []any
	query := `SELECT run_id, trip_id, seq, ts, type, site_index, site_id, rule FROM assignments WHERE 1=1`
	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.SiteID != "" {
		query += ` AND site_id = ?`
		args = append(args, q.SiteID)
	}
	if q.TripID != 0 {
		query += ` AND trip_id = ?`
		args = append(args, q.TripID)
	}
	if q.Type != "" {
		query += ` AND type = ?`
		args = append(args, q.Type)
	}
	query += ` ORDER BY run_id, trip_id, seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var (
			r  Record
			ts int64
		)
		if err := rows.Scan(&r.RunID, &r.TripID, &r.Seq, &ts, &r.Type, &r.SiteIndex, &r.SiteID, &r.Rule); err != nil {
			return nil, err
		}
		r.Timestamp = unixNano(ts)
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// SaveCheckpoint replaces the checkpoint of the run and category.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO checkpoints (run_id, category, ts, state) VALUES (?, ?, ?, ?)`,
		cp.RunID, cp.Category, cp.Timestamp.UnixNano(), string(b))
	return err
}

// LoadCheckpoint returns the stored checkpoint for the run and category.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, runID, category string) (*Checkpoint, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE run_id = ? AND category = ?`, runID, category).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCheckpoint
	}
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
