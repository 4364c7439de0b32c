package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// JSONLStore stores records in a JSONL file, optionally rotated, and
// checkpoints in a sibling file with the .ckpt extension.
type JSONLStore struct {
	path     string
	ckptPath string
	w        io.WriteCloser
	mu       sync.Mutex
}

// NewJSONLStore opens or creates the store at path.
func NewJSONLStore(path string, rot Rotation) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	var w io.WriteCloser
	if rot.MaxSizeMB > 0 {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAge:     rot.MaxAgeDays,
		}
	} else {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return &JSONLStore{path: path, ckptPath: base + ".ckpt", w: w}, nil
}

func (s *JSONLStore) Append(ctx context.Context, recs ...Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	for _, r := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// backupTimeFormat is the timestamp lumberjack puts between the base name
// and the extension of rotated files.
const backupTimeFormat = "2006-01-02T15-04-05.000"

// files returns rotated backups oldest first, then the live file.
func (s *JSONLStore) files() ([]string, error) {
	ext := filepath.Ext(s.path)
	prefix := strings.TrimSuffix(s.path, ext) + "-"
	matches, err := filepath.Glob(prefix + "*" + ext)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, m := range matches {
		stamp := strings.TrimSuffix(strings.TrimPrefix(m, prefix), ext)
		if _, err := time.Parse(backupTimeFormat, stamp); err == nil {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	if _, err := os.Stat(s.path); err == nil {
		files = append(files, s.path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return files, nil
}

// Query scans every file. Later records replace earlier ones with the same
// key. Results are ordered by run, trip and sequence.
func (s *JSONLStore) Query(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	type key struct {
		run  string
		trip int64
		seq  int
	}
	pos := make(map[key]int)
	var res []Record
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := scanLines(name, func(line []byte) {
			var r Record
			if err := json.Unmarshal(line, &r); err != nil || !q.match(r) {
				return
			}
			k := key{r.RunID, r.TripID, r.Seq}
			if i, ok := pos[k]; ok {
				res[i] = r
				return
			}
			pos[k] = len(res)
			res = append(res, r)
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if a.RunID != b.RunID {
			return a.RunID < b.RunID
		}
		if a.TripID != b.TripID {
			return a.TripID < b.TripID
		}
		return a.Seq < b.Seq
	})
	return res, nil
}

// SaveCheckpoint replaces the stored checkpoint of the same run and
// category. The sidecar is rewritten through a temporary file and a rename,
// so it holds one line per run and category.
func (s *JSONLStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []Checkpoint
	err := scanLines(s.ckptPath, func(line []byte) {
		var old Checkpoint
		if err := json.Unmarshal(line, &old); err != nil {
			return
		}
		if old.RunID != cp.RunID || old.Category != cp.Category {
			kept = append(kept, old)
		}
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	kept = append(kept, cp)

	tmp, err := os.CreateTemp(filepath.Dir(s.ckptPath), filepath.Base(s.ckptPath)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	enc := json.NewEncoder(tmp)
	for _, c := range kept {
		if err := enc.Encode(c); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.ckptPath)
}

// LoadCheckpoint returns the checkpoint stored for the run and category.
func (s *JSONLStore) LoadCheckpoint(ctx context.Context, runID, category string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *Checkpoint
	err := scanLines(s.ckptPath, func(line []byte) {
		var cp Checkpoint
		if err := json.Unmarshal(line, &cp); err != nil {
			return
		}
		if cp.RunID == runID && cp.Category == category {
			last = &cp
		}
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCheckpoint
	}
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrNoCheckpoint
	}
	return last, nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Close()
}

func scanLines(name string, fn func([]byte)) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		fn(scanner.Bytes())
	}
	return scanner.Err()
}
