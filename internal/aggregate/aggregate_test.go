package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/store"
)

func newTable(withValue bool) *store.Table {
	header := []string{"Where did it happened", "What happened", "Category"}
	rows := [][]any{
		{"Kazlu Ruda Board Factory", "Worker slipped on wet floor", "Incident "},
		{"Kazlu Ruda Board Factory", "Forklift collision", "accident"},
		{" Riga Plant ", "Cut on hand", "ACCIDENT"},
		{"Riga Plant", nil, "incident"},
		{"Vilnius Office", "Tripped over cable", nil},
	}
	if withValue {
		header = append(header, "Value")
		values := []any{float64(1), float64(3), float64(2), "n/a", float64(7)}
		for i := range rows {
			rows[i] = append(rows[i], values[i])
		}
	}
	return store.NewTable("test", header, rows)
}

func TestAggregate_CountsWithoutValueColumn(t *testing.T) {
	table := newTable(false)
	agg := New(table, model.DefaultConfig().Columns)

	res := agg.Aggregate(table.All())

	assert.Equal(t, 5, res.Aggregates.TotalRows)
	assert.Equal(t, 2.0, res.Aggregates.Accidents)
	assert.Equal(t, 2.0, res.Aggregates.Incidents)
	assert.Equal(t, map[string]int{
		"Kazlu Ruda Board Factory": 2,
		"Riga Plant":               2,
		"Vilnius Office":           1,
	}, res.LocationCounts)
}

func TestAggregate_WeightedByValue(t *testing.T) {
	table := newTable(true)
	agg := New(table, model.DefaultConfig().Columns)

	res := agg.Aggregate(table.All())

	assert.Equal(t, 5.0, res.Aggregates.Accidents) // 3 + 2
	assert.Equal(t, 1.0, res.Aggregates.Incidents) // 1 + non-numeric 0
}

func TestAggregate_NoCategoryColumn(t *testing.T) {
	table := store.NewTable("test", []string{"Location", "Description"}, [][]any{
		{"A", "x"},
		{"B", "y"},
	})
	agg := New(table, model.DefaultConfig().Columns)

	res := agg.Aggregate(table.All())

	assert.Equal(t, 2, res.Aggregates.TotalRows)
	assert.Zero(t, res.Aggregates.Accidents)
	assert.Zero(t, res.Aggregates.Incidents)
	assert.Len(t, res.Descriptions, 2)
}

func TestAggregate_RowCountEqualsLocationSum(t *testing.T) {
	table := newTable(false)
	agg := New(table, model.DefaultConfig().Columns)

	res := agg.Aggregate(table.All())

	sum := 0
	for _, n := range res.LocationCounts {
		sum += n
	}
	assert.Equal(t, res.Aggregates.TotalRows, sum)
}

func TestAggregate_DescriptionsAndReports(t *testing.T) {
	table := newTable(false)
	agg := New(table, model.DefaultConfig().Columns)

	res := agg.Aggregate(table.All())

	require.Len(t, res.Descriptions, 4) // Riga row without description is skipped
	assert.Equal(t, "Location: Kazlu Ruda Board Factory — Incident: Worker slipped on wet floor", res.Descriptions[0])

	require.Len(t, res.Reports, 4)
	require.NotNil(t, res.Reports[0].Category)
	assert.Equal(t, "incident", *res.Reports[0].Category)
	assert.Equal(t, "Riga Plant", res.Reports[2].Where)
	assert.Nil(t, res.Reports[3].Category)
}

func TestAggregate_EmptyView(t *testing.T) {
	table := newTable(false)
	agg := New(table, model.DefaultConfig().Columns)

	empty := table.All().Where(func(int) bool { return false })
	res := agg.Aggregate(empty)

	assert.Equal(t, 0, res.Aggregates.TotalRows)
	assert.Empty(t, res.LocationCounts)
	assert.NotNil(t, res.Descriptions)
	assert.NotNil(t, res.Reports)
}

func TestResolveColumns_MissingRoles(t *testing.T) {
	table := store.NewTable("test", []string{"Factory", "Other"}, nil)
	cols := ResolveColumns(table, model.DefaultConfig().Columns)

	assert.Equal(t, 0, cols.Location)
	assert.Equal(t, -1, cols.Description)
	assert.Equal(t, -1, cols.Category)
	assert.Equal(t, -1, cols.Value)
}

func TestHeatmap(t *testing.T) {
	reports := []model.RankedReport{
		{Report: model.Report{Where: "Riga Plant", What: "a"}, Severity: 4},
		{Report: model.Report{Where: "Kazlu", What: "b"}, Severity: 9},
		{Report: model.Report{Where: "Riga Plant", What: "c"}, Severity: 7},
		{Report: model.Report{Where: "", What: "d"}, Severity: 1},
	}

	got := Heatmap(reports)

	assert.Equal(t, []model.HeatmapEntry{
		{Location: "Kazlu", Count: 1, AvgSeverity: 9},
		{Location: "Riga Plant", Count: 2, AvgSeverity: 5.5},
	}, got)
}
