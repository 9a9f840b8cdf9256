package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/langbuddy/langbuddy/pkg/mastery"
)

// GetMastery returns the user's record for wordID. A word the user has
// never answered yields a zero record.
func GetMastery(ctx context.Context, db DBExecutor, userID string, wordID int64) (mastery.Record, error) {
	rec := mastery.Record{UserID: userID, WordID: wordID}
	err := db.QueryRowContext(ctx,
		`SELECT score, times_seen, times_correct FROM user_word_mastery WHERE user_id = ? AND word_id = ?`,
		userID, wordID).Scan(&rec.Score, &rec.TimesSeen, &rec.TimesCorrect)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return mastery.Record{}, err
	}
	return rec, nil
}

// MasteryScores returns score by word id for the given words. Missing words
// are absent from the map.
func MasteryScores(ctx context.Context, db DBExecutor, userID string, wordIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(wordIDs))
	if len(wordIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(wordIDs)+1)
	args = append(args, userID)
	for _, id := range wordIDs {
		args = append(args, id)
	}
	rows, err := db.QueryContext(ctx,
		`SELECT word_id, score FROM user_word_mastery WHERE user_id = ? AND word_id IN (`+placeholders(len(wordIDs))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    int64
			score int
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, err
		}
		out[id] = score
	}
	return out, rows.Err()
}

// SaveMastery upserts a mastery record.
func SaveMastery(ctx context.Context, db DBExecutor, rec mastery.Record) error {
	_, err := db.ExecContext(ctx, `INSERT INTO user_word_mastery (user_id, word_id, score, times_seen, times_correct)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id, word_id) DO UPDATE SET
	  score = excluded.score,
	  times_seen = excluded.times_seen,
	  times_correct = excluded.times_correct`,
		rec.UserID, rec.WordID, rec.Score, rec.TimesSeen, rec.TimesCorrect)
	return err
}
