package filter

import (
	"strings"

	"github.com/ppiankov/incidentlens/internal/model"
	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes filter criteria and cell values before
// comparison: NFKC, trim, lower-case, then the synonym table.
type Normalizer struct {
	synonyms map[string]string // normalized variant → canonical term
}

// NewNormalizer builds a normalizer from canonical → variants pairs.
// Canonical terms map to themselves.
func NewNormalizer(synonyms map[string][]string) *Normalizer {
	table := make(map[string]string)
	for canonical, variants := range synonyms {
		c := basic(canonical)
		if c == "" {
			continue
		}
		table[c] = c
		for _, v := range variants {
			if key := basic(v); key != "" {
				table[key] = c
			}
		}
	}
	return &Normalizer{synonyms: table}
}

// Text normalizes a string
func (n *Normalizer) Text(s string) string {
	key := basic(s)
	if n != nil {
		if canonical, ok := n.synonyms[key]; ok {
			return canonical
		}
	}
	return key
}

// Value normalizes a cell value; absent values become ""
func (n *Normalizer) Value(v any) string {
	return n.Text(model.ValueString(v))
}

func basic(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}
