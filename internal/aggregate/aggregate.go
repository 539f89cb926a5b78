// Package aggregate derives counts, descriptions and report tuples from a
// filtered view of the incident table.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/store"
)

const (
	categoryAccident = "accident"
	categoryIncident = "incident"
)

// Columns are the resolved column roles of a table; -1 marks a missing role
type Columns struct {
	Location    int
	Description int
	Category    int
	Value       int
}

// ResolveColumns picks the first candidate header present for each role
func ResolveColumns(table *store.Table, cfg model.ColumnsConfig) Columns {
	find := func(candidates []string) int {
		idx, ok := table.FindColumn(candidates)
		if !ok {
			return -1
		}
		return idx
	}
	return Columns{
		Location:    find(cfg.Location),
		Description: find(cfg.Description),
		Category:    find(cfg.Category),
		Value:       find(cfg.Value),
	}
}

// Aggregator computes an AggregateResult for views of one table
type Aggregator struct {
	cols Columns
}

// New creates an aggregator for table using the configured candidate headers
func New(table *store.Table, cfg model.ColumnsConfig) *Aggregator {
	return &Aggregator{cols: ResolveColumns(table, cfg)}
}

// Columns returns the resolved column roles
func (a *Aggregator) Columns() Columns {
	return a.cols
}

// Aggregate summarizes view.
//
// Accidents and incidents count rows by their category, each weighted by
// the value column when the table has one. A missing or non-numeric value
// weighs 0 in that case. Without a category column both counts are 0.
func (a *Aggregator) Aggregate(view store.View) model.AggregateResult {
	result := model.AggregateResult{
		Aggregates:     model.Aggregates{TotalRows: view.Len()},
		LocationCounts: make(map[string]int),
		Descriptions:   make([]string, 0),
		Reports:        make([]model.Report, 0),
	}

	for i := 0; i < view.Len(); i++ {
		category := a.category(view, i)
		if category != nil {
			switch *category {
			case categoryAccident:
				result.Aggregates.Accidents += a.weight(view, i)
			case categoryIncident:
				result.Aggregates.Incidents += a.weight(view, i)
			}
		}

		location := a.text(view, i, a.cols.Location)
		if location == "" {
			continue
		}
		result.LocationCounts[location]++

		what := a.text(view, i, a.cols.Description)
		if what == "" {
			continue
		}
		result.Descriptions = append(result.Descriptions, Describe(location, what))
		result.Reports = append(result.Reports, model.Report{Where: location, What: what, Category: category})
	}

	return result
}

// Describe renders the description line sent to free-text analysis
func Describe(location, what string) string {
	return fmt.Sprintf("Location: %s — Incident: %s", location, what)
}

// text returns the trimmed cell text of a role column, "" when missing
func (a *Aggregator) text(view store.View, i, col int) string {
	if col < 0 {
		return ""
	}
	return strings.TrimSpace(model.ValueString(view.Value(i, col)))
}

func (a *Aggregator) category(view store.View, i int) *string {
	c := strings.ToLower(a.text(view, i, a.cols.Category))
	if c == "" {
		return nil
	}
	return &c
}

func (a *Aggregator) weight(view store.View, i int) float64 {
	if a.cols.Value < 0 {
		return 1
	}
	if f, ok := view.Value(i, a.cols.Value).(float64); ok {
		return f
	}
	return 0
}

// Heatmap groups ranked reports by location with their average severity,
// sorted by location
func Heatmap(reports []model.RankedReport) []model.HeatmapEntry {
	type acc struct {
		count int
		total int
	}
	byLocation := make(map[string]*acc)
	for _, r := range reports {
		loc := strings.TrimSpace(r.Where)
		if loc == "" {
			continue
		}
		e, ok := byLocation[loc]
		if !ok {
			e = &acc{}
			byLocation[loc] = e
		}
		e.count++
		e.total += r.Severity
	}

	entries := make([]model.HeatmapEntry, 0, len(byLocation))
	for loc, e := range byLocation {
		entries = append(entries, model.HeatmapEntry{
			Location:    loc,
			Count:       e.count,
			AvgSeverity: float64(e.total) / float64(e.count),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Location < entries[j].Location })
	return entries
}
