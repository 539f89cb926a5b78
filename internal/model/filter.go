package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CriterionKind distinguishes text criteria from date ranges
type CriterionKind int

const (
	CriterionText      CriterionKind = iota // Fuzzy text match
	CriterionDateRange                      // Inclusive date range
)

// Criterion is a single column constraint.
//
// In JSON a criterion is either a scalar (matched as text) or an object
// with optional "from" and "to" bounds.
type Criterion struct {
	Kind CriterionKind
	Text string // CriterionText only
	From string // CriterionDateRange only, "" = unbounded
	To   string // CriterionDateRange only, "" = unbounded
}

// TextCriterion builds a fuzzy text criterion
func TextCriterion(text string) Criterion {
	return Criterion{Kind: CriterionText, Text: text}
}

// DateRangeCriterion builds a date range criterion. Empty bounds are open.
func DateRangeCriterion(from, to string) Criterion {
	return Criterion{Kind: CriterionDateRange, From: from, To: to}
}

// MarshalJSON encodes text criteria as strings and ranges as objects
func (c Criterion) MarshalJSON() ([]byte, error) {
	if c.Kind == CriterionDateRange {
		out := make(map[string]string, 2)
		if c.From != "" {
			out["from"] = c.From
		}
		if c.To != "" {
			out["to"] = c.To
		}
		return json.Marshal(out)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a string, number, bool, null or {from, to} object
func (c *Criterion) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	return c.fromValue(raw)
}

// UnmarshalYAML mirrors UnmarshalJSON for batch request files
func (c *Criterion) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return c.fromValue(raw)
}

func (c *Criterion) fromValue(raw any) error {
	switch v := raw.(type) {
	case nil:
		*c = TextCriterion("")
	case string:
		*c = TextCriterion(v)
	case json.Number:
		*c = TextCriterion(v.String())
	case float64:
		*c = TextCriterion(ValueString(v))
	case int:
		*c = TextCriterion(strconv.Itoa(v))
	case bool:
		*c = TextCriterion(strconv.FormatBool(v))
	case time.Time:
		*c = TextCriterion(ValueString(v))
	case map[string]any:
		from, err := boundString(v, "from")
		if err != nil {
			return err
		}
		to, err := boundString(v, "to")
		if err != nil {
			return err
		}
		for key := range v {
			if key != "from" && key != "to" {
				return fmt.Errorf("unexpected key %q in date range (allowed: from, to)", key)
			}
		}
		*c = DateRangeCriterion(from, to)
	default:
		return fmt.Errorf("unsupported criterion type %T", raw)
	}
	return nil
}

func boundString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case time.Time:
		return ValueString(x), nil
	case json.Number:
		return x.String(), nil
	default:
		return "", fmt.Errorf("date range %q must be a string, got %T", key, v)
	}
}

// FilterClause binds a criterion to a column name
type FilterClause struct {
	Column    string
	Criterion Criterion
}

// FilterSet is an ordered list of clauses. Clauses are AND-combined in order.
// It decodes from a JSON/YAML object and keeps the caller's key order.
type FilterSet []FilterClause

// UnmarshalJSON decodes an object while preserving key order
func (s *FilterSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("filters must be an object")
	}

	var out FilterSet
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("filters: unexpected token %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("filter %q: %w", key, err)
		}
		var crit Criterion
		if err := crit.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("filter %q: %w", key, err)
		}
		out = append(out, FilterClause{Column: key, Criterion: crit})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalJSON encodes the set as an object in clause order
func (s FilterSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, clause := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(clause.Column)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(clause.Criterion)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a mapping node while preserving key order
func (s *FilterSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*s = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: filters must be a mapping", node.Line)
	}

	out := make(FilterSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var crit Criterion
		if err := crit.UnmarshalYAML(node.Content[i+1]); err != nil {
			return fmt.Errorf("filter %q: %w", key, err)
		}
		out = append(out, FilterClause{Column: key, Criterion: crit})
	}
	*s = out
	return nil
}

// Analysis names an optional AI operation to run on the filtered rows
type Analysis string

const (
	AnalysisSummary    Analysis = "summary"     // Free-text causes + improvements
	AnalysisByLocation Analysis = "by_location" // Per-location problem/actions JSON
	AnalysisSeverity   Analysis = "severity"    // Severity ranking + heat map
)

// Valid reports whether a is a known analysis name
func (a Analysis) Valid() bool {
	switch a {
	case AnalysisSummary, AnalysisByLocation, AnalysisSeverity:
		return true
	}
	return false
}

// FilterRequest is the body of a filter call.
// Nil Limit/Threshold fall back to configured defaults.
type FilterRequest struct {
	Filters   FilterSet  `json:"filters" yaml:"filters"`
	Limit     *int       `json:"limit,omitempty" yaml:"limit,omitempty"`
	Threshold *float64   `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Analysis  []Analysis `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// Wants reports whether the request asks for analysis a
func (r FilterRequest) Wants(a Analysis) bool {
	for _, x := range r.Analysis {
		if x == a {
			return true
		}
	}
	return false
}
