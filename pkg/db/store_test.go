package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/langbuddy/langbuddy/pkg/keyset"
	"github.com/langbuddy/langbuddy/pkg/mastery"
	"github.com/langbuddy/langbuddy/pkg/segment"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedDictionary(t *testing.T, db *sql.DB) {
	t.Helper()
	entries := []DictionaryEntry{
		{BaseForm: "학교", Tier: 1, Meaning: "school", Romanization: "hakgyo"},
		{BaseForm: "사람", Tier: 1, Meaning: "person"},
		{BaseForm: "가족", Tier: 1, Meaning: "family"},
		{BaseForm: "경제", Tier: 3, Meaning: "economy"},
		{BaseForm: "가격", Tier: 3, Meaning: "price"},
	}
	if _, err := UpsertDictionaryWords(context.Background(), db, entries); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestUpsertDictionaryWordsKeepsID(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	seedDictionary(t, db)

	words, err := LoadDictionary(ctx, db)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(words) != 5 {
		t.Fatalf("expected 5 words, got %d", len(words))
	}
	first := words[0]

	// Re-import with an empty meaning must not clear the stored one.
	n, err := UpsertDictionaryWords(ctx, db, []DictionaryEntry{{BaseForm: "학교", Tier: 1}})
	if err != nil || n != 1 {
		t.Fatalf("upsert: n=%d err=%v", n, err)
	}
	entries, err := DictionaryWordsByIDs(ctx, db, []int64{first.ID})
	if err != nil {
		t.Fatalf("by ids: %v", err)
	}
	if len(entries) != 1 || entries[0].Meaning != "school" || entries[0].Romanization != "hakgyo" {
		t.Fatalf("unexpected entry after re-import: %+v", entries)
	}
}

func TestUpsertDictionaryWordsRejectsInvalid(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	if _, err := UpsertDictionaryWords(ctx, db, []DictionaryEntry{{BaseForm: "  ", Tier: 1}}); err == nil {
		t.Fatalf("expected error for empty base form")
	}
	_, err := UpsertDictionaryWords(ctx, db, []DictionaryEntry{{BaseForm: "학교", Tier: 9}})
	if !errors.Is(err, vocab.ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
}

func TestListDictionaryKeyset(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	seedDictionary(t, db)

	var got []string
	var after *keyset.Cursor
	for i := 0; i < 10; i++ {
		page, err := ListDictionary(ctx, db, WordQuery{After: after, Limit: 2})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		words := make([]vocab.Word, len(page))
		for j, e := range page {
			got = append(got, e.BaseForm)
			words[j] = e.Word()
		}
		next := keyset.Next(words, 2)
		if next == "" {
			break
		}
		after = keyset.DecodePtr(next)
	}
	want := []string{"가족", "사람", "학교", "가격", "경제"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	tier := vocab.Tier(3)
	page, err := ListDictionary(ctx, db, WordQuery{Tier: &tier})
	if err != nil {
		t.Fatalf("list tier: %v", err)
	}
	if len(page) != 2 || page[0].BaseForm != "가격" {
		t.Fatalf("unexpected tier page: %+v", page)
	}
}

func TestDictionaryMeanings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	seedDictionary(t, db)
	got, err := DictionaryMeanings(context.Background(), db, 1, 1, 50)
	if err != nil {
		t.Fatalf("meanings: %v", err)
	}
	if len(got) != 2 || got[0] != "person" || got[1] != "family" {
		t.Fatalf("unexpected meanings: %v", got)
	}
}

func TestCustomWords(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	id, err := AddCustomWord(ctx, db, CustomWord{UserID: "u1", BaseForm: "떡볶이", Tier: 2, Meaning: "spicy rice cake"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err = AddCustomWord(ctx, db, CustomWord{UserID: "u1", BaseForm: "떡볶이", Tier: 2})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := AddCustomWord(ctx, db, CustomWord{UserID: "u2", BaseForm: "떡볶이", Tier: 2}); err != nil {
		t.Fatalf("other user add: %v", err)
	}
	words, err := LoadCustomWords(ctx, db, "u1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(words) != 1 || words[0].ID != id || words[0].BaseForm != "떡볶이" {
		t.Fatalf("unexpected custom words: %+v", words)
	}
}

func TestUserTier(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	tier, err := GetUserTier(ctx, db, "u1")
	if err != nil || tier != vocab.DefaultTier {
		t.Fatalf("expected default tier, got %d (%v)", tier, err)
	}
	if err := SetUserTier(ctx, db, "u1", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetUserTier(ctx, db, "u1", 4); err != nil {
		t.Fatalf("set again: %v", err)
	}
	tier, _ = GetUserTier(ctx, db, "u1")
	if tier != 4 {
		t.Fatalf("expected tier 4, got %d", tier)
	}
	if err := SetUserTier(ctx, db, "u1", 0); !errors.Is(err, vocab.ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
}

func TestMasteryRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	rec, err := GetMastery(ctx, db, "u1", 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Score != 0 || rec.TimesSeen != 0 {
		t.Fatalf("expected zero record, got %+v", rec)
	}
	for i, correct := range []bool{true, true, false} {
		rec = rec.Answer(correct)
		if err := SaveMastery(ctx, db, rec); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	got, _ := GetMastery(ctx, db, "u1", 7)
	want := mastery.Record{UserID: "u1", WordID: 7, Score: 1, TimesSeen: 3, TimesCorrect: 2}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	scores, err := MasteryScores(ctx, db, "u1", []int64{7, 8})
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(scores) != 1 || scores[7] != 1 {
		t.Fatalf("unexpected scores: %v", scores)
	}
}

func TestArticleLifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	segs := []segment.Segment{segment.NewText("학교에서 공부해요"), segment.NewBreak(), segment.NewText("좋아요")}
	id, err := CreateArticle(ctx, db, Article{UserID: "u1", SourceURL: "https://example.com/a", Title: "t", Segments: segs, TierAtTime: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a, err := GetArticle(ctx, db, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Status != StatusUnread || len(a.Segments) != 3 || a.Segments[1].Kind != segment.Break {
		t.Fatalf("unexpected article: %+v", a)
	}
	if a.LastAnalyzedAt != nil || a.CompletedAt != nil {
		t.Fatalf("expected no timestamps yet: %+v", a)
	}

	if err := AddWordQuizScore(ctx, db, id, 1); err != nil {
		t.Fatalf("quiz +1: %v", err)
	}
	if err := AddWordQuizScore(ctx, db, id, -1); err != nil {
		t.Fatalf("quiz -1: %v", err)
	}
	if err := AddWordQuizScore(ctx, db, id, 1); err != nil {
		t.Fatalf("quiz +1: %v", err)
	}
	answer := 2
	qs := []Question{{ID: "q1", Question: "?", Options: [4]string{"a", "b", "c", "d"}, Correct: 2, UserAnswer: &answer}}
	if err := CompleteArticle(ctx, db, id, 1, 2, qs, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	a, _ = GetArticle(ctx, db, id)
	if a.Status != StatusCompleted || a.WordQuizScore != 1 || a.ComprehensionScore != 1 || a.TotalScore != 2 {
		t.Fatalf("unexpected scores: %+v", a)
	}
	if a.CompletedAt == nil || len(a.Questions) != 1 || a.Questions[0].UserAnswer == nil || *a.Questions[0].UserAnswer != 2 {
		t.Fatalf("unexpected completion: %+v", a)
	}

	if _, err := GetArticle(ctx, db, id+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := SetArticleStatus(ctx, db, id+100, StatusReading); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, err := ListArticles(ctx, db, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %d %v", len(list), err)
	}
	ids, err := ArticleIDs(ctx, db, "")
	if err != nil || len(ids) != 1 || ids[0] != id {
		t.Fatalf("ids: %v %v", ids, err)
	}
}

func TestReplaceArticleMatches(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	id, err := CreateArticle(ctx, db, Article{UserID: "u1", SourceURL: "https://example.com/a", TierAtTime: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first := []vocab.Match{
		{Source: vocab.Primary, WordID: 1, SurfaceForm: "학교에서", NormalizedForm: "학교에서", BaseForm: "학교", Confidence: vocab.Derived},
		{Source: vocab.Secondary, WordID: 3, SurfaceForm: "떡볶이", NormalizedForm: "떡볶이", BaseForm: "떡볶이", Confidence: vocab.Exact},
	}
	for round := 0; round < 2; round++ {
		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			return ReplaceArticleMatches(ctx, tx, id, "u1", first, time.Now())
		})
		if err != nil {
			t.Fatalf("replace %d: %v", round, err)
		}
	}
	got, err := ListArticleMatches(ctx, db, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0] != first[0] || got[1] != first[1] {
		t.Fatalf("unexpected matches: %+v", got)
	}
	a, _ := GetArticle(ctx, db, id)
	if a.LastAnalyzedAt == nil {
		t.Fatalf("expected last_analyzed_at to be set")
	}

	// A failed replace leaves the previous set intact.
	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := ReplaceArticleMatches(ctx, tx, id, "u1", nil, time.Now()); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	got, _ = ListArticleMatches(ctx, db, id)
	if len(got) != 2 {
		t.Fatalf("expected rollback to keep 2 matches, got %d", len(got))
	}
}

func TestDeletingArticleCascadesMatches(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	id, _ := CreateArticle(ctx, db, Article{UserID: "u1", SourceURL: "x", TierAtTime: 2})
	m := []vocab.Match{{Source: vocab.Primary, WordID: 1, SurfaceForm: "학교", NormalizedForm: "학교", BaseForm: "학교"}}
	if err := ReplaceArticleMatches(ctx, db, id, "u1", m, time.Now()); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM articles WHERE id = ?`, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM article_word_matches`).Scan(&cnt); err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected cascade delete, got %d rows", cnt)
	}
}
