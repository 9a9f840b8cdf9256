package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/langbuddy/langbuddy/pkg/keyset"
	"github.com/langbuddy/langbuddy/pkg/korean"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert violates a unique key.
	ErrDuplicate = errors.New("duplicate")
)

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func WithTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertDictionaryWords inserts reference dictionary rows, keyed by
// (base_form, tier). Existing rows keep their id; a non-empty meaning or
// romanization replaces the stored one.
func UpsertDictionaryWords(ctx context.Context, db DBExecutor, entries []DictionaryEntry) (int, error) {
	query := `INSERT INTO dictionary_words (base_form, tier, meaning, romanization)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(base_form, tier)
			  DO UPDATE SET
			    meaning = COALESCE(NULLIF(excluded.meaning, ''), dictionary_words.meaning),
			    romanization = COALESCE(NULLIF(excluded.romanization, ''), dictionary_words.romanization)`
	n := 0
	for _, e := range entries {
		base := korean.Normalize(e.BaseForm)
		if base == "" {
			return n, fmt.Errorf("dictionary word must be non-empty")
		}
		if !e.Tier.Valid() {
			return n, fmt.Errorf("dictionary word %s: %w", base, vocab.ErrInvalidTier)
		}
		if _, err := db.ExecContext(ctx, query, base, int(e.Tier), e.Meaning, e.Romanization); err != nil {
			return n, fmt.Errorf("upsert dictionary word %s: %w", base, err)
		}
		n++
	}
	return n, nil
}

// LoadDictionary returns every reference dictionary word.
func LoadDictionary(ctx context.Context, db DBExecutor) ([]vocab.Word, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, base_form, tier FROM dictionary_words ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []vocab.Word
	for rows.Next() {
		var w vocab.Word
		if err := rows.Scan(&w.ID, &w.BaseForm, &w.Tier); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// WordQuery selects one keyset page of the reference dictionary.
type WordQuery struct {
	Tier  *vocab.Tier
	After *keyset.Cursor
	Limit int
}

// ListDictionary returns the page described by q in keyset order.
func ListDictionary(ctx context.Context, db DBExecutor, q WordQuery) ([]DictionaryEntry, error) {
	var (
		where []string
		args  []any
	)
	if q.Tier != nil {
		where = append(where, "tier = ?")
		args = append(args, int(*q.Tier))
	}
	if q.After != nil {
		cond, cargs := keyset.Predicate(*q.After)
		where = append(where, cond)
		args = append(args, cargs...)
	}
	query := `SELECT id, base_form, tier, meaning, romanization FROM dictionary_words`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " " + keyset.OrderBy + " LIMIT ?"
	args = append(args, keyset.ClampLimit(q.Limit))

	return queryEntries(ctx, db, query, args...)
}

// DictionaryWordsByIDs returns the reference rows with the given ids.
func DictionaryWordsByIDs(ctx context.Context, db DBExecutor, ids []int64) ([]DictionaryEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, base_form, tier, meaning, romanization FROM dictionary_words
			  WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	return queryEntries(ctx, db, query, args...)
}

// DictionaryMeanings returns meanings of one tier ordered by id, starting
// at offset. It sources quiz distractors.
func DictionaryMeanings(ctx context.Context, db DBExecutor, tier vocab.Tier, offset, limit int) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT meaning FROM dictionary_words WHERE tier = ? ORDER BY id LIMIT ? OFFSET ?`,
		int(tier), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func queryEntries(ctx context.Context, db DBExecutor, query string, args ...any) ([]DictionaryEntry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DictionaryEntry
	for rows.Next() {
		var e DictionaryEntry
		if err := rows.Scan(&e.ID, &e.BaseForm, &e.Tier, &e.Meaning, &e.Romanization); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// AddCustomWord adds a word to a user's own dictionary.
func AddCustomWord(ctx context.Context, db DBExecutor, w CustomWord) (int64, error) {
	userID := strings.TrimSpace(w.UserID)
	if userID == "" {
		return 0, fmt.Errorf("userID must be non-empty")
	}
	base := korean.Normalize(w.BaseForm)
	if base == "" {
		return 0, fmt.Errorf("custom word must be non-empty")
	}
	if !w.Tier.Valid() {
		return 0, fmt.Errorf("custom word %s: %w", base, vocab.ErrInvalidTier)
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO custom_words (user_id, base_form, tier, meaning) VALUES (?, ?, ?, ?)`,
		userID, base, int(w.Tier), w.Meaning)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return 0, fmt.Errorf("custom word %s: %w", base, ErrDuplicate)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// LoadCustomWords returns a user's own dictionary.
func LoadCustomWords(ctx context.Context, db DBExecutor, userID string) ([]vocab.Word, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, base_form, tier FROM custom_words WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []vocab.Word
	for rows.Next() {
		var w vocab.Word
		if err := rows.Scan(&w.ID, &w.BaseForm, &w.Tier); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetUserTier returns the user's tier, or vocab.DefaultTier when unset.
func GetUserTier(ctx context.Context, db DBExecutor, userID string) (vocab.Tier, error) {
	var tier vocab.Tier
	err := db.QueryRowContext(ctx, `SELECT tier FROM user_settings WHERE user_id = ?`, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return vocab.DefaultTier, nil
	}
	if err != nil {
		return 0, err
	}
	if !tier.Valid() {
		return vocab.DefaultTier, nil
	}
	return tier, nil
}

// SetUserTier stores the user's tier.
func SetUserTier(ctx context.Context, db DBExecutor, userID string, tier vocab.Tier) error {
	if !tier.Valid() {
		return fmt.Errorf("set tier %d: %w", tier, vocab.ErrInvalidTier)
	}
	_, err := db.ExecContext(ctx, `INSERT INTO user_settings (user_id, tier, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(user_id) DO UPDATE SET tier = excluded.tier, updated_at = excluded.updated_at`,
		userID, int(tier))
	return err
}
