// Package korean provides the small amount of Korean text handling the
// vocabulary engine needs: Hangul syllable classification, NFC
// normalization, tokenization into syllable runs and suffix stemming.
//
// It is not a morphological analyzer. There is no part-of-speech tagging
// and no lemmatization beyond a fixed suffix list.
//
// All functions are safe for concurrent use.
package korean

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	firstSyllable = '\uAC00' // 가
	lastSyllable  = '\uD7A3' // 힣
)

// IsSyllable reports whether r is a precomposed Hangul syllable (가–힣).
// Jamo, compatibility jamo and Hanja are not syllables.
func IsSyllable(r rune) bool {
	return r >= firstSyllable && r <= lastSyllable
}

// IsHangul reports whether s is non-empty and made only of Hangul syllables.
func IsHangul(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !IsSyllable(r) {
			return false
		}
	}
	return true
}

// Normalize trims surrounding whitespace and returns the NFC form of s.
// Dictionary keys and tokens are compared in this form.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Tokens returns the maximal runs of Hangul syllables in text, in reading
// order. Everything else acts as a boundary and is discarded.
func Tokens(text string) []string {
	var out []string
	start := -1
	for i, r := range text {
		if IsSyllable(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, text[start:])
	}
	return out
}

// Chunk is a piece of text that is either entirely Hangul syllables or
// contains none.
type Chunk struct {
	Text   string
	Hangul bool
}

// Split cuts text into alternating Hangul and non-Hangul chunks using the
// same boundary rule as Tokens. Concatenating the chunk texts gives back
// text unchanged.
func Split(text string) []Chunk {
	var out []Chunk
	start := 0
	inHangul := false
	for i, r := range text {
		h := IsSyllable(r)
		if i == 0 {
			inHangul = h
			continue
		}
		if h != inHangul {
			out = append(out, Chunk{Text: text[start:i], Hangul: inHangul})
			start = i
			inHangul = h
		}
	}
	if start < len(text) {
		out = append(out, Chunk{Text: text[start:], Hangul: inHangul})
	}
	return out
}
