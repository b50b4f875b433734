package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Filter selects the records a step counts.
type Filter struct {
	Window     Window
	NamePrefix string
	Name       string
	Wikis      []string
}

// Match reports whether r passes every configured criterion.
func (f Filter) Match(r EventRecord) bool {
	if !f.Window.IsZero() && !f.Window.Contains(r.Timestamp) {
		return false
	}
	if f.NamePrefix != "" && !strings.HasPrefix(r.Name, f.NamePrefix) {
		return false
	}
	if f.Name != "" && r.Name != f.Name {
		return false
	}
	if len(f.Wikis) > 0 {
		found := false
		for _, w := range f.Wikis {
			if r.Wiki == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Aggregate counts the records matching f, grouped by dims. The result holds one entry
// per distinct key present in the input, in natural key order.
func Aggregate(records []EventRecord, f Filter, dims []Dimension) []GroupCount {
	counts := make(map[string]*GroupCount)
	for _, r := range records {
		if !f.Match(r) {
			continue
		}
		key := make([]string, len(dims))
		for i, d := range dims {
			key[i] = d.Value(r)
		}
		add(counts, key, 1)
	}
	return sorted(counts)
}

// Regroup re-aggregates counts keyed by dims into the target dimension order by summation.
// Every target dimension must appear in dims.
func Regroup(dims []Dimension, counts []GroupCount, target []Dimension) ([]GroupCount, error) {
	pos := make([]int, len(target))
	for i, t := range target {
		pos[i] = -1
		for j, d := range dims {
			if d == t {
				pos[i] = j
				break
			}
		}
		if pos[i] < 0 {
			return nil, fmt.Errorf("%w: %q not in %v", ErrUnknownDimension, t, dims)
		}
	}
	out := make(map[string]*GroupCount)
	for _, gc := range counts {
		if len(gc.Key) != len(dims) {
			return nil, fmt.Errorf("key %v has %d values, want %d", gc.Key, len(gc.Key), len(dims))
		}
		key := make([]string, len(target))
		for i, p := range pos {
			key[i] = gc.Key[p]
		}
		add(out, key, gc.Count)
	}
	return sorted(out), nil
}

func add(m map[string]*GroupCount, key []string, n int64) {
	k := strings.Join(key, "\x00")
	if gc, ok := m[k]; ok {
		gc.Count += n
		return
	}
	m[k] = &GroupCount{Key: key, Count: n}
}

func sorted(m map[string]*GroupCount) []GroupCount {
	out := make([]GroupCount, 0, len(m))
	for _, gc := range m {
		out = append(out, *gc)
	}
	sort.Slice(out, func(i, j int) bool {
		return CompareKeys(out[i].Key, out[j].Key) < 0
	})
	return out
}

// CompareValues orders two key values: numerically when both are integers, otherwise
// lexicographically.
func CompareValues(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

// CompareKeys orders keys component by component.
func CompareKeys(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}
