package db

import (
	"time"

	"github.com/langbuddy/langbuddy/pkg/segment"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

// DictionaryEntry is a row of the shared reference dictionary.
type DictionaryEntry struct {
	ID           int64      `json:"id"`
	BaseForm     string     `json:"baseForm"`
	Tier         vocab.Tier `json:"tier"`
	Meaning      string     `json:"meaning"`
	Romanization string     `json:"romanization"`
}

// Word returns the matching-relevant part of the entry.
func (e DictionaryEntry) Word() vocab.Word {
	return vocab.Word{ID: e.ID, BaseForm: e.BaseForm, Tier: e.Tier}
}

// CustomWord is a row of a user's own dictionary.
type CustomWord struct {
	ID       int64      `json:"id"`
	UserID   string     `json:"userId"`
	BaseForm string     `json:"baseForm"`
	Tier     vocab.Tier `json:"tier"`
	Meaning  string     `json:"meaning"`
}

// ArticleStatus tracks reading progress of an article.
type ArticleStatus string

const (
	StatusUnread    ArticleStatus = "unread"
	StatusReading   ArticleStatus = "reading"
	StatusCompleted ArticleStatus = "completed"
)

// Question is a multiple-choice comprehension question.
type Question struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Options    [4]string `json:"options"`
	Correct    int       `json:"correct"`
	UserAnswer *int      `json:"userAnswer,omitempty"`
}

// Article is an adapted document owned by one user.
type Article struct {
	ID                 int64             `json:"id"`
	UserID             string            `json:"userId"`
	SourceURL          string            `json:"sourceUrl"`
	Title              string            `json:"title"`
	Segments           []segment.Segment `json:"segments"`
	OriginalText       string            `json:"originalText"`
	TierAtTime         vocab.Tier        `json:"tierAtTime"`
	Status             ArticleStatus     `json:"status"`
	WordQuizScore      int               `json:"wordQuizScore"`
	ComprehensionScore int               `json:"comprehensionScore"`
	TotalScore         int               `json:"totalScore"`
	Questions          []Question        `json:"questions"`
	CreatedAt          time.Time         `json:"createdAt"`
	CompletedAt        *time.Time        `json:"completedAt,omitempty"`
	LastAnalyzedAt     *time.Time        `json:"lastAnalyzedAt,omitempty"`
}
