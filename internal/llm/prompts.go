package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/incidentlens/internal/model"
)

const safetyExpert = "You are a workplace safety expert."

// BuildSummaryPrompt asks for common causes and improvements as one paragraph
func BuildSummaryPrompt(descriptions []string) string {
	return fmt.Sprintf(`%s Below are several descriptions of accidents and incidents from an IKEA factory. Summarize the most common causes and propose actionable improvements to make the workplace safer.

%s

Provide your answer as a short paragraph.`, safetyExpert, strings.Join(descriptions, "\n"))
}

// BuildByLocationPrompt asks for a per-location problem/actions JSON object
func BuildByLocationPrompt(descriptions []string) string {
	return fmt.Sprintf(`%s Below are accident and incident descriptions, each prefixed with the location where it happened.

%s

For every location, identify the main safety problem and propose concrete corrective actions.
Respond ONLY with a JSON object. Each key is a location name exactly as written above; each value is an object:
{"problem": "<one sentence>", "actions": ["<action>", "..."]}
Do not add any text outside the JSON.`, safetyExpert, strings.Join(descriptions, "\n"))
}

// BuildSeverityPrompt asks the model to score each report from 1 to 10
func BuildSeverityPrompt(reports []model.Report) (string, error) {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal reports: %w", err)
	}
	return fmt.Sprintf(`%s Rate the severity of each incident report below on an integer scale from 1 (negligible) to 10 (life-threatening).

Reports:
%s

Respond ONLY with a JSON array containing the same objects in the same order, each with an added integer field "severity".
Do not add any text outside the JSON.`, safetyExpert, data), nil
}

// BuildInterpretPrompt turns a free-text question into a filter request.
// Location values must come from knownLocations.
func BuildInterpretPrompt(text string, columns []string, locationColumn string, knownLocations []string) string {
	var b strings.Builder
	b.WriteString("You convert questions about a workplace incident spreadsheet into column filters.\n\n")
	fmt.Fprintf(&b, "Available columns: %s\n", strings.Join(columns, ", "))
	if locationColumn != "" && len(knownLocations) > 0 {
		fmt.Fprintf(&b, "Valid values for %q:\n", locationColumn)
		for _, loc := range knownLocations {
			fmt.Fprintf(&b, "- %s\n", loc)
		}
		fmt.Fprintf(&b, "When the question names a place, use the closest valid value for %q by meaning. Never invent a location.\n", locationColumn)
	}
	b.WriteString(`
Text filters are plain strings. Date filters are objects {"from": "YYYY-MM-DD", "to": "YYYY-MM-DD"}; either bound may be omitted.
Use only the available columns.

Respond ONLY with JSON of the form {"filters": {"<column>": <value>, ...}}.

Question: `)
	b.WriteString(text)
	return b.String()
}
