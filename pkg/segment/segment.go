// Package segment models an adapted document as an ordered stream of text,
// word and paragraph-break segments, and tags recognized words in it.
package segment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/langbuddy/langbuddy/pkg/vocab"
)

// Kind discriminates the Segment union.
type Kind int

const (
	Text Kind = iota
	Word
	Break
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Word:
		return "word"
	case Break:
		return "break"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Segment is one unit of a document. WordID and Tier are only meaningful
// for Word segments; Text is empty for Break.
type Segment struct {
	Kind   Kind
	Text   string
	WordID int64
	Tier   vocab.Tier
}

// NewText returns a plain text segment.
func NewText(s string) Segment { return Segment{Kind: Text, Text: s} }

// NewWord returns a tagged word segment.
func NewWord(s string, id int64, tier vocab.Tier) Segment {
	return Segment{Kind: Word, Text: s, WordID: id, Tier: tier}
}

// NewBreak returns a paragraph break.
func NewBreak() Segment { return Segment{Kind: Break} }

type wireSegment struct {
	Type   string      `json:"type"`
	Text   *string     `json:"text,omitempty"`
	WordID *int64      `json:"wordId,omitempty"`
	Tier   *vocab.Tier `json:"tier,omitempty"`
}

// MarshalJSON encodes the segment in its stored form, e.g.
// {"type":"word","text":"경제를","wordId":12,"tier":3}.
func (s Segment) MarshalJSON() ([]byte, error) {
	w := wireSegment{Type: s.Kind.String()}
	switch s.Kind {
	case Text:
		w.Text = &s.Text
	case Word:
		w.Text = &s.Text
		w.WordID = &s.WordID
		w.Tier = &s.Tier
	case Break:
	default:
		return nil, fmt.Errorf("segment: unknown kind %d", int(s.Kind))
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the stored form. Word segments must carry a word id
// and a valid tier.
func (s *Segment) UnmarshalJSON(b []byte) error {
	var w wireSegment
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	text := ""
	if w.Text != nil {
		text = *w.Text
	}
	switch w.Type {
	case "text":
		*s = NewText(text)
	case "break":
		*s = NewBreak()
	case "word":
		if w.WordID == nil {
			return fmt.Errorf("segment: word %q without wordId", text)
		}
		if w.Tier == nil || !w.Tier.Valid() {
			return fmt.Errorf("segment: word %q: %w", text, vocab.ErrInvalidTier)
		}
		*s = NewWord(text, *w.WordID, *w.Tier)
	default:
		return fmt.Errorf("segment: unknown type %q", w.Type)
	}
	return nil
}

// Flatten renders segments as plain text for vocabulary analysis: breaks
// become newlines and all pieces are joined by a single space.
func Flatten(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		if s.Kind == Break {
			parts[i] = "\n"
			continue
		}
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// WordIDs returns the distinct word ids referenced by Word segments, in
// order of first appearance.
func WordIDs(segs []Segment) []int64 {
	var out []int64
	seen := make(map[int64]bool)
	for _, s := range segs {
		if s.Kind != Word || seen[s.WordID] {
			continue
		}
		seen[s.WordID] = true
		out = append(out, s.WordID)
	}
	return out
}

// FromParagraphs builds a text-only document, one Text segment per
// non-blank paragraph with a Break between paragraphs.
func FromParagraphs(paragraphs []string) []Segment {
	var out []Segment
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, NewBreak())
		}
		out = append(out, NewText(p))
	}
	return out
}
