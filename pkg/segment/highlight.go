package segment

import (
	"github.com/langbuddy/langbuddy/pkg/korean"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

// Entry is what a base form resolves to when tagging.
type Entry struct {
	WordID int64
	Tier   vocab.Tier
}

// Lookup maps a normalized base form to its dictionary entry.
type Lookup map[string]Entry

// NewLookup keys words by normalized base form. Later duplicates win.
func NewLookup(words []vocab.Word) Lookup {
	l := make(Lookup, len(words))
	for _, w := range words {
		l[korean.Normalize(w.BaseForm)] = Entry{WordID: w.ID, Tier: w.Tier}
	}
	return l
}

// ApplyHighlights returns a new document in which Hangul runs of Text
// segments that resolve in lookup become Word segments. The word keeps the
// surface text as written. Break and existing Word segments are copied
// unchanged, so running it again on its own output only touches text that
// is still untagged. Adjacent Text segments in the result are merged.
func ApplyHighlights(segs []Segment, lookup Lookup) []Segment {
	expanded := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if s.Kind != Text {
			expanded = append(expanded, s)
			continue
		}
		expanded = append(expanded, tagText(s.Text, lookup)...)
	}
	return Merge(expanded)
}

func tagText(text string, lookup Lookup) []Segment {
	if len(lookup) == 0 || text == "" {
		return []Segment{NewText(text)}
	}
	var out []Segment
	for _, c := range korean.Split(text) {
		if c.Hangul {
			if e, ok := resolve(c.Text, lookup); ok {
				out = append(out, NewWord(c.Text, e.WordID, e.Tier))
				continue
			}
		}
		out = append(out, NewText(c.Text))
	}
	return out
}

func resolve(token string, lookup Lookup) (Entry, bool) {
	for _, c := range korean.DeriveCandidates(korean.Normalize(token)) {
		if e, ok := lookup[c]; ok {
			return e, true
		}
	}
	return Entry{}, false
}

// Merge concatenates runs of adjacent Text segments, keeping reading order.
// The input slice is not modified.
func Merge(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if n := len(out); n > 0 && s.Kind == Text && out[n-1].Kind == Text {
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	return out
}
