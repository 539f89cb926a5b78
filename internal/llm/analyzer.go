package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/incidentlens/internal/model"
)

// NoDescriptionsMessage is returned instead of calling out on empty input
const NoDescriptionsMessage = "No descriptions available for analysis."

// Analyzer runs the AI operations over aggregated incident data.
// Its methods never return errors: failures are reported in the result.
type Analyzer struct {
	provider Provider
	limits   model.AnalysisConfig
}

// NewAnalyzer creates an analyzer. A nil provider disables AI; every
// operation then reports model.ErrNoProvider.
func NewAnalyzer(provider Provider, limits model.AnalysisConfig) *Analyzer {
	return &Analyzer{provider: provider, limits: limits}
}

// Available reports whether a provider is configured
func (a *Analyzer) Available() bool {
	return a != nil && a.provider != nil
}

// ProviderName returns the configured provider, "" when disabled
func (a *Analyzer) ProviderName() string {
	if !a.Available() {
		return ""
	}
	return a.provider.Name()
}

// LocationIssue is the per-location AI assessment
type LocationIssue struct {
	Problem string   `json:"problem"`
	Actions []string `json:"actions"`
}

// UnmarshalJSON accepts "actions" as either a list or a single string
func (l *LocationIssue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Problem string          `json:"problem"`
		Actions json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Problem = raw.Problem
	l.Actions = nil

	actions := bytes.TrimSpace(raw.Actions)
	if len(actions) == 0 || bytes.Equal(actions, []byte("null")) {
		return nil
	}
	if actions[0] == '"' {
		var one string
		if err := json.Unmarshal(actions, &one); err != nil {
			return err
		}
		if one != "" {
			l.Actions = []string{one}
		}
		return nil
	}
	return json.Unmarshal(actions, &l.Actions)
}

// Interpretation is a filter request derived from free text
type Interpretation struct {
	Filters  model.FilterSet `json:"filters"`
	Warnings []string        `json:"warnings,omitempty"`
}

// InterpretRequest is the input to InterpretFilters
type InterpretRequest struct {
	Text           string
	Columns        []string
	LocationColumn string
	KnownLocations []string
}

// SummarizeFreeText returns a one-paragraph summary of common causes and
// improvements. Failures are returned as "AI analysis failed: <err>".
func (a *Analyzer) SummarizeFreeText(ctx context.Context, descriptions []string) string {
	if len(descriptions) == 0 {
		return NoDescriptionsMessage
	}

	prompt := BuildSummaryPrompt(truncate(descriptions, a.limits.MaxDescriptions))
	text, err := a.complete(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("AI analysis failed: %v", err)
	}
	return text
}

// SummarizeByLocation asks for a problem and actions per location
func (a *Analyzer) SummarizeByLocation(ctx context.Context, descriptions []string) Result[map[string]LocationIssue] {
	if len(descriptions) == 0 {
		return Skipped[map[string]LocationIssue](NoDescriptionsMessage)
	}

	prompt := BuildByLocationPrompt(truncate(descriptions, a.limits.MaxDescriptions))
	text, err := a.complete(ctx, prompt)
	if err != nil {
		return Failed[map[string]LocationIssue](err)
	}

	res := ParseJSON[map[string]LocationIssue](text)
	if res.Err != nil {
		log.Printf("llm: by-location reply is not valid JSON: %v", res.Err)
	}
	return res
}

// severityValue accepts integers, floats and numeric strings
type severityValue struct {
	n   int
	set bool
}

func (s *severityValue) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "null" || text == "" {
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) {
		return fmt.Errorf("severity %s is not a number", data)
	}
	// clamp before converting so huge values cannot overflow int
	f = math.Max(1, math.Min(10, f))
	s.n, s.set = int(math.Round(f)), true
	return nil
}

// RankSeverity asks the model to score each report from 1 to 10.
// Scores outside that range are clamped.
func (a *Analyzer) RankSeverity(ctx context.Context, reports []model.Report) Result[[]model.RankedReport] {
	if len(reports) == 0 {
		return Skipped[[]model.RankedReport](NoDescriptionsMessage)
	}

	prompt, err := BuildSeverityPrompt(truncate(reports, a.limits.MaxReports))
	if err != nil {
		return Failed[[]model.RankedReport](err)
	}
	text, err := a.complete(ctx, prompt)
	if err != nil {
		return Failed[[]model.RankedReport](err)
	}

	type scored struct {
		model.Report
		Severity severityValue `json:"severity"`
	}
	res := ParseJSON[[]scored](text)
	if res.Err != nil {
		log.Printf("llm: severity reply is not valid JSON: %v", res.Err)
		return Result[[]model.RankedReport]{Raw: res.Raw, Err: res.Err}
	}

	ranked := make([]model.RankedReport, 0, len(res.Value))
	for i, r := range res.Value {
		if !r.Severity.set {
			return ParseFailed[[]model.RankedReport](text, fmt.Errorf("report %d has no severity", i))
		}
		ranked = append(ranked, model.RankedReport{Report: r.Report, Severity: clampSeverity(r.Severity.n)})
	}
	return Parsed(ranked, text)
}

func clampSeverity(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// InterpretFilters converts a free-text question into filters. Location
// values are constrained to the known set in the prompt only; callers must
// still validate them.
func (a *Analyzer) InterpretFilters(ctx context.Context, req InterpretRequest) Result[Interpretation] {
	if strings.TrimSpace(req.Text) == "" {
		return Failed[Interpretation](&model.RequestError{Message: "prompt is empty"})
	}

	prompt := BuildInterpretPrompt(req.Text, req.Columns, req.LocationColumn, truncate(req.KnownLocations, a.limits.MaxLocations))
	text, err := a.complete(ctx, prompt)
	if err != nil {
		return Failed[Interpretation](err)
	}

	res := ParseJSON[Interpretation](text)
	if res.Err != nil {
		log.Printf("llm: interpret reply is not valid JSON: %v", res.Err)
	}
	return res
}

func (a *Analyzer) complete(ctx context.Context, prompt string) (string, error) {
	if !a.Available() {
		return "", &model.ExternalServiceError{Err: model.ErrNoProvider}
	}

	resp, err := a.provider.Complete(ctx, CompletionRequest{Prompt: prompt})
	if err != nil {
		log.Printf("llm: %s call failed: %v", a.provider.Name(), err)
		return "", &model.ExternalServiceError{Provider: a.provider.Name(), Err: err}
	}
	return resp.Text, nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
