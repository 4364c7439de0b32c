package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("missing column")
	// ErrEmptyValue is returned for a blank cell in a required column.
	ErrEmptyValue = errors.New("empty value")
	// ErrNotFinite is returned for NaN or infinite numbers.
	ErrNotFinite = errors.New("not a finite number")
)

// table reads a headered CSV file and resolves columns by name, so column
// order in the source does not matter. Semicolon separated files are
// detected from the header line.
type table struct {
	r    *csv.Reader
	cols map[string]int
	row  []string
	line int
}

func newTable(src io.Reader, required ...string) (*table, error) {
	br := bufio.NewReader(src)
	head, _ := br.Peek(4096)
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	r := csv.NewReader(br)
	if bytes.Count(head, []byte{';'}) > bytes.Count(head, []byte{','}) {
		r.Comma = ';'
	}
	r.TrimLeadingSpace = true
	r.ReuseRecord = true
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &table{r: r, cols: make(map[string]int, len(header)), line: 1}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		t.cols[h] = i
	}
	for _, c := range required {
		if _, ok := t.cols[c]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, c)
		}
	}
	r.FieldsPerRecord = len(header)
	return t, nil
}

// next advances to the next row, returning false at EOF.
func (t *table) next() (bool, error) {
	row, err := t.r.Read()
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.row = row
	t.line++
	return true, nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *table) str(col string) string {
	i, ok := t.cols[col]
	if !ok {
		return ""
	}
	return strings.TrimSpace(t.row[i])
}

// float parses an optional number; an empty cell reads as 0. NaN and
// infinities are rejected.
func (t *table) float(col string) (float64, error) {
	s := t.str(col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, t.errorf("column %s: %w", col, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, t.errorf("column %s: %w %q", col, ErrNotFinite, s)
	}
	return v, nil
}

// requiredFloat is float for cells that must not be empty.
func (t *table) requiredFloat(col string) (float64, error) {
	if t.str(col) == "" {
		return 0, t.errorf("column %s: %w", col, ErrEmptyValue)
	}
	return t.float(col)
}

func (t *table) integer(col string) (int64, error) {
	s := t.str(col)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// ids exported from spreadsheets may carry a ".0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return 0, t.errorf("column %s: %w", col, err)
		}
		v = int64(f)
	}
	return v, nil
}

func (t *table) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: "+format, append([]any{t.line}, args...)...)
}
