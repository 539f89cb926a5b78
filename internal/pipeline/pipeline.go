package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/ppiankov/incidentlens/internal/aggregate"
	"github.com/ppiankov/incidentlens/internal/filter"
	"github.com/ppiankov/incidentlens/internal/llm"
	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/store"
)

// Pipeline runs filter → aggregate → optional AI analysis over the loaded
// table. The table is shared read-only; a Pipeline is safe for concurrent use.
type Pipeline struct {
	table      *store.Table
	loadErr    error
	engine     *filter.Engine
	aggregator *aggregate.Aggregator
	analyzer   *llm.Analyzer
	config     *model.Config
}

// NewPipeline creates a pipeline over table. When the dataset failed to
// load, pass the error as loadErr; every data operation then returns it.
// A nil provider disables AI analysis.
func NewPipeline(cfg *model.Config, table *store.Table, loadErr error, provider llm.Provider) *Pipeline {
	if table == nil && loadErr == nil {
		loadErr = &model.LoadError{Path: cfg.Dataset.Path, Err: fmt.Errorf("dataset not loaded")}
	}

	p := &Pipeline{
		table:    table,
		loadErr:  loadErr,
		engine:   filter.NewEngine(filter.NewNormalizer(cfg.Filter.Synonyms)),
		analyzer: llm.NewAnalyzer(provider, cfg.Analysis),
		config:   cfg,
	}
	if table != nil {
		p.aggregator = aggregate.New(table, cfg.Columns)
	}
	return p
}

// NewProvider builds the configured LLM provider. A misconfigured provider
// is logged and disabled rather than failing startup.
func NewProvider(cfg *model.Config) llm.Provider {
	if cfg.LLM.Provider == "" {
		return nil
	}
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		log.Printf("pipeline: AI analysis disabled: %v", err)
		return nil
	}
	return provider
}

// Ready returns the load error, or nil when the dataset is available
func (p *Pipeline) Ready() error {
	return p.loadErr
}

// Columns lists the dataset headers in file order
func (p *Pipeline) Columns() ([]string, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}
	return p.table.Columns(), nil
}

// UniqueValues lists the distinct present values of column
func (p *Pipeline) UniqueValues(column string) ([]any, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(column) == "" {
		return nil, &model.RequestError{Message: "query parameter 'column' is required"}
	}
	return p.table.UniqueValues(column)
}

// FilterResponse is the payload of a filter request
type FilterResponse struct {
	Aggregates      model.Aggregates                          `json:"aggregates"`
	LocationCounts  map[string]int                            `json:"location_counts"`
	Descriptions    []string                                  `json:"descriptions"`
	Results         []model.Record                            `json:"results"`
	AccidentReports []model.Report                            `json:"accident_reports"`
	AIAnswer        *string                                   `json:"ai_answer,omitempty"`
	LocationSummary *llm.Result[map[string]llm.LocationIssue] `json:"location_summary,omitempty"`
	SeverityRanking *llm.Result[[]model.RankedReport]         `json:"severity_ranking,omitempty"`
	HeatmapData     []model.HeatmapEntry                      `json:"heatmap_data,omitempty"`
}

// Filter applies the request's filters, aggregates the matching rows and
// runs the requested AI analyses. AI failures are reported inside the
// response; only load and request errors are returned.
func (p *Pipeline) Filter(ctx context.Context, req model.FilterRequest) (*FilterResponse, error) {
	if err := p.Ready(); err != nil {
		return nil, err
	}

	threshold, limit, analyses, err := p.resolve(req)
	if err != nil {
		return nil, err
	}

	view, err := p.engine.ApplyAll(p.table.All(), req.Filters, threshold)
	if err != nil {
		return nil, err
	}

	agg := p.aggregator.Aggregate(view)
	resp := &FilterResponse{
		Aggregates:      agg.Aggregates,
		LocationCounts:  agg.LocationCounts,
		Descriptions:    agg.Descriptions,
		Results:         view.Records(limit),
		AccidentReports: agg.Reports,
	}

	for _, a := range analyses {
		switch a {
		case model.AnalysisSummary:
			answer := p.analyzer.SummarizeFreeText(ctx, agg.Descriptions)
			resp.AIAnswer = &answer

		case model.AnalysisByLocation:
			res := p.analyzer.SummarizeByLocation(ctx, agg.Descriptions)
			resp.LocationSummary = &res

		case model.AnalysisSeverity:
			res := p.analyzer.RankSeverity(ctx, agg.Reports)
			resp.SeverityRanking = &res
			if res.OK() {
				resp.HeatmapData = aggregate.Heatmap(res.Value)
			}
		}
	}

	return resp, nil
}

// RequestsAnalysis reports whether req would run any AI analysis,
// counting configured defaults when req omits the list
func (p *Pipeline) RequestsAnalysis(req model.FilterRequest) bool {
	if req.Analysis == nil {
		return len(p.config.Analysis.Default) > 0
	}
	return len(req.Analysis) > 0
}

// resolve applies configured defaults and validates request parameters
func (p *Pipeline) resolve(req model.FilterRequest) (float64, int, []model.Analysis, error) {
	threshold := p.config.Filter.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 100 {
		return 0, 0, nil, &model.RequestError{Message: fmt.Sprintf("threshold must be between 0 and 100, got %v", threshold)}
	}

	limit := p.config.Filter.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 0 {
		return 0, 0, nil, &model.RequestError{Message: fmt.Sprintf("limit must not be negative, got %d", limit)}
	}

	analyses := req.Analysis
	if analyses == nil {
		analyses = p.config.Analysis.Default
	}
	seen := make(map[model.Analysis]bool, len(analyses))
	out := make([]model.Analysis, 0, len(analyses))
	for _, a := range analyses {
		if !a.Valid() {
			return 0, 0, nil, &model.RequestError{Message: fmt.Sprintf("unknown analysis %q (supported: summary, by_location, severity)", a)}
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}

	return threshold, limit, out, nil
}

// Interpret turns a free-text question into filters. Returned locations
// are checked against the dataset: near misses are replaced by the closest
// known location and anything else is dropped, each with a warning.
func (p *Pipeline) Interpret(ctx context.Context, text string) (llm.Result[llm.Interpretation], error) {
	if err := p.Ready(); err != nil {
		return llm.Result[llm.Interpretation]{}, err
	}
	if strings.TrimSpace(text) == "" {
		return llm.Result[llm.Interpretation]{}, &model.RequestError{Message: "prompt is required"}
	}

	locationColumn := ""
	if col := p.aggregator.Columns().Location; col >= 0 {
		locationColumn = p.table.ColumnName(col)
	}
	known := p.knownLocations()

	res := p.analyzer.InterpretFilters(ctx, llm.InterpretRequest{
		Text:           text,
		Columns:        p.table.Columns(),
		LocationColumn: locationColumn,
		KnownLocations: known,
	})
	if !res.OK() {
		return res, nil
	}

	res.Value = p.validateInterpretation(res.Value, locationColumn, known)
	return res, nil
}

func (p *Pipeline) validateInterpretation(in llm.Interpretation, locationColumn string, known []string) llm.Interpretation {
	out := llm.Interpretation{
		Filters:  make(model.FilterSet, 0, len(in.Filters)),
		Warnings: in.Warnings,
	}
	warn := func(format string, args ...any) {
		out.Warnings = append(out.Warnings, fmt.Sprintf(format, args...))
	}

	for _, clause := range in.Filters {
		if err := p.engine.Validate(p.table, clause); err != nil {
			warn("dropped filter on %q: %v", clause.Column, err)
			continue
		}

		isLocation := locationColumn != "" && model.ColumnKey(clause.Column) == model.ColumnKey(locationColumn)
		if !isLocation || clause.Criterion.Kind != model.CriterionText {
			out.Filters = append(out.Filters, clause)
			continue
		}

		best, score := p.engine.BestMatch(known, clause.Criterion.Text)
		switch {
		case best == "":
			warn("dropped location %q: no known locations", clause.Criterion.Text)
		case score >= 100:
			clause.Criterion = model.TextCriterion(best)
			out.Filters = append(out.Filters, clause)
		case score >= p.config.Filter.DefaultThreshold:
			warn("location %q is not in the dataset; using closest match %q", clause.Criterion.Text, best)
			clause.Criterion = model.TextCriterion(best)
			out.Filters = append(out.Filters, clause)
		default:
			warn("dropped location %q: not in the dataset", clause.Criterion.Text)
		}
	}
	return out
}

// knownLocations returns the distinct location values as text
func (p *Pipeline) knownLocations() []string {
	col := p.aggregator.Columns().Location
	if col < 0 {
		return nil
	}
	values, err := p.table.UniqueValues(p.table.ColumnName(col))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		s := strings.TrimSpace(model.ValueString(v))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Health describes the service state
type Health struct {
	OK            bool   `json:"ok"`
	DatasetLoaded bool   `json:"dataset_loaded"`
	Rows          int    `json:"rows"`
	Source        string `json:"source,omitempty"`
	LLMProvider   string `json:"llm_provider"`
	Error         string `json:"error,omitempty"`

	// RateLimitedClients is filled in by the HTTP layer
	RateLimitedClients int `json:"rate_limited_clients,omitempty"`
}

// Health reports dataset and provider status without calling out
func (p *Pipeline) Health() Health {
	h := Health{LLMProvider: p.analyzer.ProviderName()}
	if p.loadErr != nil {
		h.Error = p.loadErr.Error()
		return h
	}
	h.OK = true
	h.DatasetLoaded = true
	h.Rows = p.table.Len()
	h.Source = p.table.Source()
	return h
}

// AnalysisAvailable reports whether an LLM provider is configured
func (p *Pipeline) AnalysisAvailable() bool {
	return p.analyzer.Available()
}
