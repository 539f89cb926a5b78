package filter

import (
	"fmt"
	"time"

	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/store"
)

// Engine narrows table views by fuzzy text and date range criteria
type Engine struct {
	normalizer *Normalizer
}

// NewEngine creates a filter engine. A nil normalizer applies no synonyms.
func NewEngine(normalizer *Normalizer) *Engine {
	if normalizer == nil {
		normalizer = NewNormalizer(nil)
	}
	return &Engine{normalizer: normalizer}
}

// Apply narrows view to the rows whose column satisfies criterion
func (e *Engine) Apply(view store.View, column string, criterion model.Criterion, threshold float64) (store.View, error) {
	m, err := e.compile(view.Table(), model.FilterClause{Column: column, Criterion: criterion}, threshold)
	if err != nil {
		return store.View{}, err
	}
	return view.Where(func(i int) bool { return m.match(view.Value(i, m.col)) }), nil
}

// ApplyAll applies every clause in order (logical AND). All clauses are
// validated before any narrowing so an error never yields partial results.
func (e *Engine) ApplyAll(view store.View, filters model.FilterSet, threshold float64) (store.View, error) {
	for _, clause := range filters {
		if err := e.Validate(view.Table(), clause); err != nil {
			return store.View{}, err
		}
	}

	for _, clause := range filters {
		var err error
		view, err = e.Apply(view, clause.Column, clause.Criterion, threshold)
		if err != nil {
			return store.View{}, err
		}
	}
	return view, nil
}

// Validate checks that clause can be applied to table without running it
func (e *Engine) Validate(table *store.Table, clause model.FilterClause) error {
	_, err := e.compile(table, clause, 0)
	return err
}

// matcher is a compiled clause bound to a column index
type matcher struct {
	col   int
	match func(v any) bool
}

func (e *Engine) compile(table *store.Table, clause model.FilterClause, threshold float64) (matcher, error) {
	col, err := table.ColumnIndex(clause.Column)
	if err != nil {
		return matcher{}, err
	}

	c := clause.Criterion
	switch c.Kind {
	case model.CriterionText:
		want := e.normalizer.Text(c.Text)
		return matcher{col: col, match: func(v any) bool {
			return Ratio(e.normalizer.Value(v), want) >= threshold
		}}, nil

	case model.CriterionDateRange:
		from, err := parseBound(clause.Column, "from", c.From)
		if err != nil {
			return matcher{}, err
		}
		to, err := parseBound(clause.Column, "to", c.To)
		if err != nil {
			return matcher{}, err
		}
		return matcher{col: col, match: func(v any) bool {
			t, ok := ParseDate(v)
			if !ok {
				return false
			}
			d := day(t)
			if from != nil && d.Before(*from) {
				return false
			}
			if to != nil && d.After(*to) {
				return false
			}
			return true
		}}, nil
	}

	return matcher{}, &model.InvalidCriterionError{Column: clause.Column, Reason: fmt.Sprintf("unknown criterion kind %d", c.Kind)}
}

// parseBound parses an optional range bound; "" means unbounded
func parseBound(column, name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, ok := parseDateString(value)
	if !ok {
		return nil, &model.InvalidCriterionError{Column: column, Reason: fmt.Sprintf("cannot parse %q date %q", name, value)}
	}
	d := day(t)
	return &d, nil
}

// day truncates t to its calendar date so bounds are inclusive per day
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BestMatch returns the candidate most similar to value after
// normalization, and its score. Ties keep the earlier candidate.
func (e *Engine) BestMatch(candidates []string, value string) (string, float64) {
	want := e.normalizer.Text(value)
	best, bestScore := "", -1.0
	for _, c := range candidates {
		score := Ratio(e.normalizer.Text(c), want)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < 0 {
		return "", 0
	}
	return best, bestScore
}
