package llm

import (
	"encoding/json"
	"strings"

	"github.com/ppiankov/incidentlens/internal/model"
)

// Result is the outcome of an AI operation that expects structured output.
// Exactly one of three states holds: a parsed Value, a Message explaining
// why no call was made, or an Err (with the raw reply when there was one).
type Result[T any] struct {
	Value   T
	Raw     string
	Err     error
	Message string
	ok      bool
}

// Parsed wraps a successfully decoded reply
func Parsed[T any](value T, raw string) Result[T] {
	return Result[T]{Value: value, Raw: raw, ok: true}
}

// ParseFailed records a reply that did not have the expected shape
func ParseFailed[T any](raw string, err error) Result[T] {
	return Result[T]{Raw: raw, Err: &model.ResponseParseError{Raw: raw, Err: err}}
}

// Failed records an operation that produced no reply
func Failed[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Skipped records an operation that was not attempted, e.g. on empty input
func Skipped[T any](message string) Result[T] {
	return Result[T]{Message: message}
}

// OK reports whether Value holds a parsed reply
func (r Result[T]) OK() bool {
	return r.ok
}

// MarshalJSON encodes the value on success, {"message"} when skipped and
// {"error", "raw"} on failure
func (r Result[T]) MarshalJSON() ([]byte, error) {
	switch {
	case r.ok:
		return json.Marshal(r.Value)
	case r.Err != nil:
		out := struct {
			Error string `json:"error"`
			Raw   string `json:"raw,omitempty"`
		}{Error: r.Err.Error(), Raw: r.Raw}
		return json.Marshal(out)
	default:
		return json.Marshal(map[string]string{"message": r.Message})
	}
}

// ParseJSON decodes a model reply into T. Markdown code fences are
// stripped; if the reply has prose around the JSON, the outermost object
// or array is extracted and decoded instead.
func ParseJSON[T any](raw string) Result[T] {
	text := stripFences(raw)

	var value T
	err := json.Unmarshal([]byte(text), &value)
	if err == nil {
		return Parsed(value, raw)
	}

	inner, ok := extractJSON(text)
	if !ok {
		return ParseFailed[T](raw, err)
	}
	var retry T
	if err := json.Unmarshal([]byte(inner), &retry); err != nil {
		return ParseFailed[T](raw, err)
	}
	return Parsed(retry, raw)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag line (```json)
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractJSON returns the span from the first '{' or '[' to its matching
// last closing bracket
func extractJSON(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}
