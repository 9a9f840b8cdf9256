package vocab

import (
	"github.com/langbuddy/langbuddy/pkg/korean"
)

// Index maps a normalized base form to its dictionary word.
type Index map[string]Word

// NewIndex keys words by their normalized base form. When two words share a
// base form the later one wins.
func NewIndex(words []Word) Index {
	idx := make(Index, len(words))
	for _, w := range words {
		idx[korean.Normalize(w.BaseForm)] = w
	}
	return idx
}

// Analyzer holds prebuilt lookups for one dictionary snapshot. It is
// immutable after construction and safe for concurrent use.
type Analyzer struct {
	primary   Index
	secondary Index
}

// NewAnalyzer builds an Analyzer over a primary and a secondary dictionary.
func NewAnalyzer(primary, secondary []Word) *Analyzer {
	return &Analyzer{
		primary:   NewIndex(primary),
		secondary: NewIndex(secondary),
	}
}

// Analyze is a one-shot form of NewAnalyzer(primary, secondary).Analyze(text).
func Analyze(text string, primary, secondary []Word) []Match {
	return NewAnalyzer(primary, secondary).Analyze(text)
}

type matchKey struct {
	source Source
	id     int64
}

// Analyze returns the dictionary words found in text, in reading order.
// Each (source, word) pair is reported once, at its first occurrence. A
// token found in both dictionaries is attributed to the primary one.
// Tokens found in neither are skipped.
func (a *Analyzer) Analyze(text string) []Match {
	var out []Match
	seen := make(map[matchKey]bool)

	for _, token := range korean.Tokens(text) {
		normalized := korean.Normalize(token)
		candidates := korean.DeriveCandidates(normalized)

		m, ok := resolve(candidates, a.primary, Primary, token, normalized)
		if !ok {
			m, ok = resolve(candidates, a.secondary, Secondary, token, normalized)
		}
		if !ok {
			continue
		}
		k := matchKey{m.Source, m.WordID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}

func resolve(candidates []string, idx Index, src Source, surface, normalized string) (Match, bool) {
	for _, c := range candidates {
		w, ok := idx[c]
		if !ok {
			continue
		}
		conf := Derived
		if c == normalized {
			conf = Exact
		}
		return Match{
			Source:         src,
			WordID:         w.ID,
			SurfaceForm:    surface,
			NormalizedForm: normalized,
			BaseForm:       c,
			Confidence:     conf,
		}, true
	}
	return Match{}, false
}
