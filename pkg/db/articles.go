package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/langbuddy/langbuddy/pkg/segment"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

const articleColumns = `id, user_id, source_url, title, segments, original_text, tier_at_time, status,
	word_quiz_score, comprehension_score, total_score, questions, created_at, completed_at, last_analyzed_at`

func encodeJSON[T any](v []T) (string, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateArticle inserts a new article and returns its id. Status defaults
// to unread.
func CreateArticle(ctx context.Context, db DBExecutor, a Article) (int64, error) {
	if a.UserID == "" {
		return 0, fmt.Errorf("userID must be non-empty")
	}
	if a.Status == "" {
		a.Status = StatusUnread
	}
	segs, err := encodeJSON(a.Segments)
	if err != nil {
		return 0, fmt.Errorf("encode segments: %w", err)
	}
	qs, err := encodeJSON(a.Questions)
	if err != nil {
		return 0, fmt.Errorf("encode questions: %w", err)
	}
	res, err := db.ExecContext(ctx, `INSERT INTO articles
	(user_id, source_url, title, segments, original_text, tier_at_time, status, questions)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.SourceURL, a.Title, segs, a.OriginalText, int(a.TierAtTime), string(a.Status), qs)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (Article, error) {
	var (
		a                         Article
		segs, qs, status          string
		completedAt, lastAnalyzed sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &a.SourceURL, &a.Title, &segs, &a.OriginalText, &a.TierAtTime, &status,
		&a.WordQuizScore, &a.ComprehensionScore, &a.TotalScore, &qs, &a.CreatedAt, &completedAt, &lastAnalyzed)
	if err != nil {
		return Article{}, err
	}
	a.Status = ArticleStatus(status)
	if err := json.Unmarshal([]byte(segs), &a.Segments); err != nil {
		return Article{}, fmt.Errorf("article %d segments: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(qs), &a.Questions); err != nil {
		return Article{}, fmt.Errorf("article %d questions: %w", a.ID, err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if lastAnalyzed.Valid {
		t := lastAnalyzed.Time
		a.LastAnalyzedAt = &t
	}
	return a, nil
}

// GetArticle returns the article with the given id or ErrNotFound.
func GetArticle(ctx context.Context, db DBExecutor, id int64) (Article, error) {
	row := db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return a, err
}

// ListArticles returns the user's articles, newest first.
func ListArticles(ctx context.Context, db DBExecutor, userID string) ([]Article, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ArticleIDs returns the ids of all articles, or only the user's when
// userID is non-empty.
func ArticleIDs(ctx context.Context, db DBExecutor, userID string) ([]int64, error) {
	query := `SELECT id FROM articles ORDER BY id`
	var args []any
	if userID != "" {
		query = `SELECT id FROM articles WHERE user_id = ? ORDER BY id`
		args = append(args, userID)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UpdateArticleContent replaces the adapted content of an article.
func UpdateArticleContent(ctx context.Context, db DBExecutor, id int64, title string, segs []segment.Segment, original string, questions []Question) error {
	encSegs, err := encodeJSON(segs)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	encQs, err := encodeJSON(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	return expectOne(db.ExecContext(ctx,
		`UPDATE articles SET title = ?, segments = ?, original_text = ?, questions = ? WHERE id = ?`,
		title, encSegs, original, encQs, id))
}

// UpdateArticleSegments replaces the segments of an article.
func UpdateArticleSegments(ctx context.Context, db DBExecutor, id int64, segs []segment.Segment) error {
	enc, err := encodeJSON(segs)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	return expectOne(db.ExecContext(ctx, `UPDATE articles SET segments = ? WHERE id = ?`, enc, id))
}

// SetArticleStatus moves an article to status.
func SetArticleStatus(ctx context.Context, db DBExecutor, id int64, status ArticleStatus) error {
	return expectOne(db.ExecContext(ctx, `UPDATE articles SET status = ? WHERE id = ?`, string(status), id))
}

// AddWordQuizScore adds delta to the article's word quiz score.
func AddWordQuizScore(ctx context.Context, db DBExecutor, id int64, delta int) error {
	return expectOne(db.ExecContext(ctx,
		`UPDATE articles SET word_quiz_score = word_quiz_score + ? WHERE id = ?`, delta, id))
}

// CompleteArticle records the comprehension result and marks the article
// completed.
func CompleteArticle(ctx context.Context, db DBExecutor, id int64, comprehension, total int, questions []Question, at time.Time) error {
	enc, err := encodeJSON(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	return expectOne(db.ExecContext(ctx, `UPDATE articles SET
	  status = ?, comprehension_score = ?, total_score = ?, questions = ?, completed_at = ?
	WHERE id = ?`,
		string(StatusCompleted), comprehension, total, enc, at.UTC(), id))
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceArticleMatches stores the article's matches, replacing any from a
// previous analysis, and stamps last_analyzed_at. Run it inside a
// transaction so readers never observe a partial set.
func ReplaceArticleMatches(ctx context.Context, db DBExecutor, articleID int64, userID string, matches []vocab.Match, at time.Time) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM article_word_matches WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}
	for _, m := range matches {
		var dictID, customID sql.NullInt64
		if m.Source == vocab.Primary {
			dictID = sql.NullInt64{Int64: m.WordID, Valid: true}
		} else {
			customID = sql.NullInt64{Int64: m.WordID, Valid: true}
		}
		_, err := db.ExecContext(ctx, `INSERT INTO article_word_matches
		(article_id, user_id, source, dictionary_word_id, custom_word_id, surface_form, normalized_form, base_form, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			articleID, userID, m.Source.String(), dictID, customID, m.SurfaceForm, m.NormalizedForm, m.BaseForm, m.Confidence.String())
		if err != nil {
			return fmt.Errorf("insert match %s: %w", m.BaseForm, err)
		}
	}
	return expectOne(db.ExecContext(ctx, `UPDATE articles SET last_analyzed_at = ? WHERE id = ?`, at.UTC(), articleID))
}

// ListArticleMatches returns the stored matches in insertion order.
func ListArticleMatches(ctx context.Context, db DBExecutor, articleID int64) ([]vocab.Match, error) {
	rows, err := db.QueryContext(ctx, `SELECT source, COALESCE(dictionary_word_id, custom_word_id),
	surface_form, normalized_form, base_form, confidence
	FROM article_word_matches WHERE article_id = ? ORDER BY id`, articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []vocab.Match
	for rows.Next() {
		var (
			m            vocab.Match
			source, conf string
		)
		if err := rows.Scan(&source, &m.WordID, &m.SurfaceForm, &m.NormalizedForm, &m.BaseForm, &conf); err != nil {
			return nil, err
		}
		if err := m.Source.UnmarshalText([]byte(source)); err != nil {
			return nil, err
		}
		if err := m.Confidence.UnmarshalText([]byte(conf)); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
