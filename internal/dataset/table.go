package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Record is one row keyed by column name.
type Record map[string]string

// Number parses a numeric field. ok is false when the field is missing or
// does not hold a number.
func (r Record) Number(field string) (float64, bool) {
	raw, ok := r[field]
	if !ok {
		return 0, false
	}
	v, err := ParseNumber(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Table is a parsed delimited-text dataset.
type Table struct {
	Name    string
	Columns []string
	Rows    []Record
}

// Read parses delimited text with a header row.
func Read(r io.Reader, name string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("dataset %s: missing header row", name)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := &Table{Name: name, Columns: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// ReadFile parses the dataset at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, path)
}

// HasColumn reports whether the header declares field.
func (t *Table) HasColumn(field string) bool {
	for _, c := range t.Columns {
		if c == field {
			return true
		}
	}
	return false
}

// Filter keeps rows whose field equals value.
func (t *Table) Filter(field, value string) *Table {
	out := &Table{Name: t.Name, Columns: t.Columns}
	for _, r := range t.Rows {
		if r[field] == value {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// WithNumbers keeps rows where every field parses as a number.
func (t *Table) WithNumbers(fields ...string) *Table {
	out := &Table{Name: t.Name, Columns: t.Columns}
	for _, r := range t.Rows {
		keep := true
		for _, f := range fields {
			if _, ok := r.Number(f); !ok {
				keep = false
				break
			}
		}
		if keep {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// SortBy orders rows by a numeric field; rows without a number go last.
// The sort is stable so equal values keep file order.
func (t *Table) SortBy(field string, desc bool) *Table {
	out := &Table{Name: t.Name, Columns: t.Columns, Rows: append([]Record(nil), t.Rows...)}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, okA := out.Rows[i].Number(field)
		b, okB := out.Rows[j].Number(field)
		switch {
		case okA && !okB:
			return true
		case !okA:
			return false
		case desc:
			return a > b
		default:
			return a < b
		}
	})
	return out
}

// Head keeps the first n rows; n <= 0 keeps everything.
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Name: t.Name, Columns: t.Columns, Rows: t.Rows[:n]}
}

// Numbers collects the parseable values of field.
func (t *Table) Numbers(field string) []float64 {
	out := make([]float64, 0, len(t.Rows))
	for _, r := range t.Rows {
		if v, ok := r.Number(field); ok {
			out = append(out, v)
		}
	}
	return out
}

// ParseNumber reads figures as they appear in published tables:
// "12.5%", "$104,000", " 3 ".
func ParseNumber(s string) (float64, error) {
	clean := strings.NewReplacer("%", "", "$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, fmt.Errorf("empty number")
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}
