// Package crosstab reshapes grouped counts into cross-tabulations: rows keyed by the index
// dimensions, one column per distinct value of the column dimension.
package crosstab

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
)

// MeasureColumn names the single value column of a table without a column dimension.
const MeasureColumn = "events"

// Row is one index key and its cells. A column missing from Cells is an absent cell.
type Row struct {
	Key   []string         `json:"key"`
	Cells map[string]int64 `json:"cells"`
}

// Table is a cross-tabulation of event counts.
type Table struct {
	Index   []models.Dimension `json:"index"`
	Column  models.Dimension   `json:"column,omitempty"`
	Columns []string           `json:"columns"`
	Rows    []Row              `json:"rows"`
}

// Pivot lays out counts grouped by dims. Counts sharing an index key and column value
// are summed.
func Pivot(dims []models.Dimension, counts []models.GroupCount, index []models.Dimension, column models.Dimension) (*Table, error) {
	layout := append([]models.Dimension{}, index...)
	if column != "" {
		layout = append(layout, column)
	}
	regrouped, err := models.Regroup(dims, counts, layout)
	if err != nil {
		return nil, fmt.Errorf("pivot: %w", err)
	}

	t := &Table{Index: append([]models.Dimension{}, index...), Column: column}
	rows := make(map[string]*Row)
	var order []*Row
	columns := make(map[string]bool)
	for _, gc := range regrouped {
		key := gc.Key[:len(index)]
		col := MeasureColumn
		if column != "" {
			col = gc.Key[len(index)]
		}
		k := strings.Join(key, "\x00")
		row, ok := rows[k]
		if !ok {
			row = &Row{Key: append([]string{}, key...), Cells: make(map[string]int64)}
			rows[k] = row
			order = append(order, row)
		}
		row.Cells[col] += gc.Count
		columns[col] = true
	}

	for _, r := range order {
		t.Rows = append(t.Rows, *r)
	}
	t.Columns = sortedValues(columns)
	if column == "" {
		t.Columns = []string{MeasureColumn}
	}
	t.sortRows()
	return t, nil
}

// FillZero makes the table dense: one row for every combination of observed index
// values and a cell for every column, zero where nothing was counted.
func (t *Table) FillZero() {
	if len(t.Rows) == 0 {
		return
	}
	values := make([][]string, len(t.Index))
	for i := range t.Index {
		seen := make(map[string]bool)
		for _, r := range t.Rows {
			seen[r.Key[i]] = true
		}
		values[i] = sortedValues(seen)
	}

	existing := make(map[string]Row, len(t.Rows))
	for _, r := range t.Rows {
		existing[strings.Join(r.Key, "\x00")] = r
	}

	var dense []Row
	for _, key := range product(values) {
		cells := make(map[string]int64, len(t.Columns))
		if r, ok := existing[strings.Join(key, "\x00")]; ok {
			for c, n := range r.Cells {
				cells[c] = n
			}
		}
		for _, c := range t.Columns {
			if _, ok := cells[c]; !ok {
				cells[c] = 0
			}
		}
		dense = append(dense, Row{Key: key, Cells: cells})
	}
	t.Rows = dense
}

// Cell returns the count at row i and column col, and whether the cell is present.
func (t *Table) Cell(i int, col string) (int64, bool) {
	n, ok := t.Rows[i].Cells[col]
	return n, ok
}

// Totals returns the sum of each row's cells.
func (t *Table) Totals() []int64 {
	out := make([]int64, len(t.Rows))
	for i, r := range t.Rows {
		for _, n := range r.Cells {
			out[i] += n
		}
	}
	return out
}

// Dimensions returns the key layout of Unpivot: index dimensions then the column
// dimension, if any.
func (t *Table) Dimensions() []models.Dimension {
	dims := append([]models.Dimension{}, t.Index...)
	if t.Column != "" {
		dims = append(dims, t.Column)
	}
	return dims
}

// Unpivot flattens the table back into group counts keyed by Dimensions. Absent and
// zero cells are skipped, so a zero-filled table unpivots to the same groups as the
// sparse one.
func (t *Table) Unpivot() []models.GroupCount {
	var out []models.GroupCount
	for _, r := range t.Rows {
		for _, c := range t.Columns {
			n, ok := r.Cells[c]
			if !ok || n == 0 {
				continue
			}
			key := append([]string{}, r.Key...)
			if t.Column != "" {
				key = append(key, c)
			}
			out = append(out, models.GroupCount{Key: key, Count: n})
		}
	}
	return out
}

func (t *Table) sortRows() {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return models.CompareKeys(t.Rows[i].Key, t.Rows[j].Key) < 0
	})
}

func sortedValues(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return models.CompareValues(out[i], out[j]) < 0
	})
	return out
}

// product returns the cartesian product of the value lists, first list varying slowest.
func product(values [][]string) [][]string {
	out := [][]string{{}}
	for _, vs := range values {
		next := make([][]string, 0, len(out)*len(vs))
		for _, prefix := range out {
			for _, v := range vs {
				key := make([]string, len(prefix), len(prefix)+1)
				copy(key, prefix)
				next = append(next, append(key, v))
			}
		}
		out = next
	}
	return out
}
