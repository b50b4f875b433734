package database

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
)

// GroupCounts reads a count result: one column per dimension followed by the count.
// Cells are converted to canonical key strings, whatever type the driver scanned.
func (r *Result) GroupCounts(dims []models.Dimension) ([]models.GroupCount, error) {
	if len(r.Columns) != len(dims)+1 {
		return nil, fmt.Errorf("result has %d columns, want %d", len(r.Columns), len(dims)+1)
	}
	out := make([]models.GroupCount, 0, len(r.Rows))
	for i, row := range r.Rows {
		key := make([]string, len(dims))
		for j, d := range dims {
			key[j] = keyValue(d, row[j])
		}
		n, err := countValue(row[len(dims)])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, models.GroupCount{Key: key, Count: n})
	}
	// Engines collate text differently; report in natural key order regardless.
	sort.SliceStable(out, func(i, j int) bool {
		return models.CompareKeys(out[i].Key, out[j].Key) < 0
	})
	return out, nil
}

func keyValue(d models.Dimension, v any) string {
	if d == models.DimAnonymous {
		// SQLite has no boolean type and stores 0/1.
		switch x := v.(type) {
		case int64:
			return strconv.FormatBool(x != 0)
		case []byte:
			if b, err := strconv.ParseBool(string(x)); err == nil {
				return strconv.FormatBool(b)
			}
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return strconv.FormatBool(b)
			}
		}
	}

	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(models.DateLayout)
	}
	return fmt.Sprint(v)
}

func countValue(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("count %d overflows int64", x)
		}
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("unexpected count value %v (%T)", v, v)
}
