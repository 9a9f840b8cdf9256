// Package mastery tracks how well a user knows a word and decides how a
// word is rendered for that user.
package mastery

import (
	"fmt"

	"github.com/langbuddy/langbuddy/pkg/vocab"
)

const (
	MinScore = 0
	MaxScore = 100
)

// UpdateScore moves score one step up on a correct answer and one step down
// otherwise, saturating at MinScore and MaxScore.
func UpdateScore(current int, correct bool) int {
	next := current - 1
	if correct {
		next = current + 1
	}
	return clamp(next, MinScore, MaxScore)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Category is the render hint for a word segment.
type Category int

const (
	Unseen Category = iota
	Encountered
	Mastered
	Challenge
)

func (c Category) String() string {
	switch c {
	case Unseen:
		return "unseen"
	case Encountered:
		return "encountered"
	case Mastered:
		return "mastered"
	case Challenge:
		return "challenge"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// RenderCategory classifies a word for a user. A fully mastered word is
// Mastered regardless of tiers; otherwise a word above the user's tier is a
// Challenge.
func RenderCategory(wordTier, userTier vocab.Tier, score int) Category {
	switch {
	case score == MaxScore:
		return Mastered
	case wordTier > userTier:
		return Challenge
	case score > MinScore:
		return Encountered
	default:
		return Unseen
	}
}

// Record is the per-user, per-word mastery row. The zero value (with ids
// set) is the state before the first quiz answer.
type Record struct {
	UserID       string `json:"userId"`
	WordID       int64  `json:"wordId"`
	Score        int    `json:"mastery"`
	TimesSeen    int    `json:"timesSeen"`
	TimesCorrect int    `json:"timesCorrect"`
}

// Answer returns the record after one quiz answer.
func (r Record) Answer(correct bool) Record {
	r.Score = UpdateScore(r.Score, correct)
	r.TimesSeen++
	if correct {
		r.TimesCorrect++
	}
	return r
}

// QuizDelta is the change to an article's word quiz score for one answer.
func QuizDelta(correct bool) int {
	if correct {
		return 1
	}
	return -1
}

// TotalScore combines the word quiz and comprehension scores of an article.
func TotalScore(wordQuiz, comprehension int) int {
	return wordQuiz + comprehension
}
