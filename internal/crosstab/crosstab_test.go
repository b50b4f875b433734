package crosstab

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
)

var (
	wiki   = models.DimWiki
	skin   = models.DimSkinVersion
	action = models.DimAction
	date   = models.DimDate
)

func TestPivotByWikiAndSkin(t *testing.T) {
	dims := []models.Dimension{action, skin, wiki}
	counts := []models.GroupCount{
		{Key: []string{"click", "2", "frwiki"}, Count: 5},
		{Key: []string{"init", "2", "frwiki"}, Count: 9},
		{Key: []string{"init", "1", "hewiki"}, Count: 3},
	}

	table, err := Pivot(dims, counts, []models.Dimension{wiki, skin}, action)
	require.NoError(t, err)

	assert.Equal(t, []string{"click", "init"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"frwiki", "2"}, table.Rows[0].Key)
	assert.Equal(t, []string{"hewiki", "1"}, table.Rows[1].Key)

	n, ok := table.Cell(0, "click")
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)

	_, ok = table.Cell(1, "click")
	assert.False(t, ok, "hewiki/1 has no clicks and is not zero-filled")
}

func TestFillZeroReportsMissingPairs(t *testing.T) {
	dims := []models.Dimension{action, skin, wiki}
	counts := []models.GroupCount{
		{Key: []string{"click", "2", "frwiki"}, Count: 5},
		{Key: []string{"init", "1", "hewiki"}, Count: 3},
	}
	table, err := Pivot(dims, counts, []models.Dimension{wiki, skin}, action)
	require.NoError(t, err)

	table.FillZero()

	require.Len(t, table.Rows, 4)
	var keys [][]string
	for _, r := range table.Rows {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, [][]string{
		{"frwiki", "1"}, {"frwiki", "2"}, {"hewiki", "1"}, {"hewiki", "2"},
	}, keys)

	for i := range table.Rows {
		for _, c := range table.Columns {
			_, ok := table.Cell(i, c)
			assert.True(t, ok, "row %v column %s is absent", table.Rows[i].Key, c)
		}
	}
	n, ok := table.Cell(0, "click")
	assert.True(t, ok)
	assert.Zero(t, n, "frwiki has no skin version 1 records")
	n, _ = table.Cell(1, "click")
	assert.Equal(t, int64(5), n)
}

func TestPivotWithoutColumnDimension(t *testing.T) {
	dims := []models.Dimension{date, wiki}
	counts := []models.GroupCount{
		{Key: []string{"2020-07-16", "frwiki"}, Count: 2},
		{Key: []string{"2020-07-16", "hewiki"}, Count: 1},
		{Key: []string{"2020-07-17", "frwiki"}, Count: 4},
	}

	table, err := Pivot(dims, counts, []models.Dimension{wiki}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{MeasureColumn}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, map[string]int64{MeasureColumn: 6}, table.Rows[0].Cells)
	assert.Equal(t, []int64{6, 1}, table.Totals())
}

func TestPivotRejectsUnknownLayout(t *testing.T) {
	_, err := Pivot([]models.Dimension{wiki}, nil, []models.Dimension{wiki}, action)
	assert.ErrorIs(t, err, models.ErrUnknownDimension)
}

func TestPivotEmpty(t *testing.T) {
	table, err := Pivot([]models.Dimension{wiki, action}, nil, []models.Dimension{wiki}, action)
	require.NoError(t, err)
	table.FillZero()
	assert.Empty(t, table.Rows)
	assert.Empty(t, table.Unpivot())
}

// Unpivoting and re-aggregating must reproduce the grouped counts, whether or not
// the table was zero-filled.
func TestUnpivotRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	wikis := []string{"euwiki", "fawiki", "frwiki", "hewiki"}
	actions := []string{"click", "init"}
	names := []string{"ui.toggle", "ui.sidebar", "n-sitesupport"}
	base := time.Date(2020, 7, 16, 0, 0, 0, 0, time.UTC)

	for round := 0; round < 20; round++ {
		var records []models.EventRecord
		for i := 0; i < 50+rng.Intn(50); i++ {
			records = append(records, models.EventRecord{
				Timestamp:   base.Add(time.Duration(rng.Intn(15*24)) * time.Hour),
				Action:      actions[rng.Intn(len(actions))],
				Wiki:        wikis[rng.Intn(len(wikis))],
				Name:        names[rng.Intn(len(names))],
				SkinVersion: 1 + rng.Intn(2),
				IsAnon:      rng.Intn(2) == 0,
			})
		}
		dims := []models.Dimension{date, models.DimName, wiki, skin, models.DimAnonymous}
		counts := models.Aggregate(records, models.Filter{}, dims)

		for _, fill := range []bool{false, true} {
			t.Run(fmt.Sprintf("round%d/fill=%v", round, fill), func(t *testing.T) {
				table, err := Pivot(dims, counts, []models.Dimension{models.DimName, wiki, date, skin}, models.DimAnonymous)
				require.NoError(t, err)
				if fill {
					table.FillZero()
				}

				got, err := models.Regroup(table.Dimensions(), table.Unpivot(), dims)
				require.NoError(t, err)
				if diff := cmp.Diff(counts, got); diff != "" {
					t.Errorf("round trip mismatch (-want +got):\n%s", diff)
				}

				var total int64
				for _, n := range table.Totals() {
					total += n
				}
				assert.Equal(t, int64(len(records)), total)
			})
		}
	}
}
