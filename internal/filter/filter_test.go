package filter

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/store"
)

func incidentTable() *store.Table {
	header := []string{"Factory", "Category", "What happened", "Date"}
	rows := [][]any{
		{"Kazlu Ruda Board Factory", "incident", "Worker slipped on wet floor", "2020-01-15"},
		{"Alytus Sawmill", "accident", "Cut on hand", "2020-03-02"},
		{"Vilnius Office", "Incident", "Fell from chair", float64(43901)}, // 2020-03-11
		{"Riga Plant", nil, "Washroom floor wet", "not a date"},
		{nil, "accident", "Unknown site", nil},
	}
	return store.NewTable("test", header, rows)
}

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 100},
		{"abc", "abc", 100},
		{"abc", "", 0},
		{"abc", "xyz", 0},
		{"kazlu ruda board", "kazlu ruda board factory", 80},
		{"ab", "ba", 50},
		{"žalia", "žalia", 100},
	}

	for _, tt := range tests {
		got := Ratio(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Ratio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if rev := Ratio(tt.b, tt.a); math.Abs(rev-got) > 1e-9 {
			t.Errorf("Ratio not symmetric for %q/%q: %v vs %v", tt.a, tt.b, got, rev)
		}
	}
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(map[string][]string{"Lavatory": {"WC", "washroom"}})

	tests := []struct {
		in   any
		want string
	}{
		{"  Washroom ", "lavatory"},
		{"wc", "lavatory"},
		{"LAVATORY", "lavatory"},
		{"Ｆａｃｔｏｒｙ", "factory"}, // full-width folds under NFKC
		{float64(12), "12"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := n.Value(tt.in); got != tt.want {
			t.Errorf("Value(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2020, 3, 11, 0, 0, 0, 0, time.UTC)
	for _, in := range []any{"2020-03-11", "03/11/2020", "3/11/2020", "11.03.2020", "2020/03/11", float64(43901)} {
		got, ok := ParseDate(in)
		if !ok {
			t.Errorf("ParseDate(%v) failed", in)
			continue
		}
		if !day(got).Equal(want) {
			t.Errorf("ParseDate(%v) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []any{"", "soon", nil, true, float64(-3)} {
		if _, ok := ParseDate(in); ok {
			t.Errorf("ParseDate(%v) should fail", in)
		}
	}
}

func TestApply_ExactMatchAlwaysPasses(t *testing.T) {
	table := incidentTable()
	engine := NewEngine(nil)

	for _, threshold := range []float64{0, 50, 99, 100} {
		got, err := engine.Apply(table.All(), "Factory", model.TextCriterion("Riga Plant"), threshold)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got.Len() < 1 {
			t.Errorf("threshold %v: exact value filtered out", threshold)
		}
	}
}

func TestApply_ThresholdMonotonic(t *testing.T) {
	table := incidentTable()
	engine := NewEngine(nil)

	prev := table.Len() + 1
	for threshold := 0.0; threshold <= 100; threshold += 5 {
		got, err := engine.Apply(table.All(), "Factory", model.TextCriterion("Kazlu Ruda"), threshold)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if got.Len() > prev {
			t.Errorf("threshold %v kept %d rows, more than %d at a lower threshold", threshold, got.Len(), prev)
		}
		prev = got.Len()
	}
}

func TestApply_Synonyms(t *testing.T) {
	table := incidentTable()
	engine := NewEngine(NewNormalizer(map[string][]string{"lavatory": {"washroom floor wet", "toilet"}}))

	got, err := engine.Apply(table.All(), "what happened", model.TextCriterion("Lavatory"), 100)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("expected 1 row via synonym, got %d", got.Len())
	}
}

func TestApplyAll_UnknownColumn(t *testing.T) {
	table := incidentTable()
	engine := NewEngine(nil)

	filters := model.FilterSet{
		{Column: "Factory", Criterion: model.TextCriterion("Riga")},
		{Column: "DoesNotExist", Criterion: model.TextCriterion("x")},
	}
	_, err := engine.ApplyAll(table.All(), filters, 60)

	var notFound *model.ColumnNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ColumnNotFoundError, got %v", err)
	}
	if notFound.Column != "DoesNotExist" {
		t.Errorf("expected column DoesNotExist, got %q", notFound.Column)
	}
	if len(notFound.Available) != 4 {
		t.Errorf("expected 4 available columns, got %v", notFound.Available)
	}
}

func TestApply_DateRange(t *testing.T) {
	table := incidentTable()
	engine := NewEngine(nil)

	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"from only", "2020-03-01", "", 2},
		{"to only", "", "2020-03-02", 2},
		{"both inclusive", "2020-03-02", "2020-03-11", 2},
		{"single day", "03/11/2020", "03/11/2020", 1},
		{"unbounded", "", "", 3},
		{"empty window", "2021-01-01", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Apply(table.All(), "Date", model.DateRangeCriterion(tt.from, tt.to), 60)
			if err != nil {
				t.Fatalf("Apply failed: %v", err)
			}
			if got.Len() != tt.want {
				t.Errorf("expected %d rows, got %d", tt.want, got.Len())
			}
		})
	}
}

func TestApply_InvalidDateBound(t *testing.T) {
	table := incidentTable()
	engine := NewEngine(nil)

	_, err := engine.Apply(table.All(), "Date", model.DateRangeCriterion("yesterday", ""), 60)
	var invalid *model.InvalidCriterionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidCriterionError, got %v", err)
	}
}

func TestApplyAll_KazluRuda(t *testing.T) {
	table := incidentTable()
	engine := NewEngine(nil)

	filters := model.FilterSet{
		{Column: "Factory", Criterion: model.TextCriterion("Kazlu Ruda Board")},
		{Column: "Category", Criterion: model.TextCriterion("Incident")},
	}
	got, err := engine.ApplyAll(table.All(), filters, 70)
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", got.Len())
	}
	if v := got.Value(0, 0); v != "Kazlu Ruda Board Factory" {
		t.Errorf("unexpected row %v", v)
	}
}

func TestBestMatch(t *testing.T) {
	engine := NewEngine(nil)
	candidates := []string{"Riga Plant", "Kazlu Ruda Board Factory", "Vilnius Office"}

	got, score := engine.BestMatch(candidates, "kazlu ruda board")
	if got != "Kazlu Ruda Board Factory" {
		t.Errorf("expected Kazlu Ruda Board Factory, got %q", got)
	}
	if score != 80 {
		t.Errorf("expected score 80, got %v", score)
	}

	if got, score := engine.BestMatch(nil, "x"); got != "" || score != 0 {
		t.Errorf("expected no match for empty candidates, got %q/%v", got, score)
	}
}

