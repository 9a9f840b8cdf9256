// Package reader ties storage, the dictionary cache and the extraction and
// adaptation collaborators together into the operations a learner performs:
// adding an article, reading it, answering word quizzes, completing it and
// browsing the word bank.
package reader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/langbuddy/langbuddy/pkg/adapt"
	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/dictionary"
	"github.com/langbuddy/langbuddy/pkg/extract"
	"github.com/langbuddy/langbuddy/pkg/keyset"
	"github.com/langbuddy/langbuddy/pkg/mastery"
	"github.com/langbuddy/langbuddy/pkg/segment"
	"github.com/langbuddy/langbuddy/pkg/selector"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

const (
	PlaceholderTitle   = "Adapting article..."
	placeholderContent = "Your article is being prepared. This card will update automatically soon."
	FailedTitle        = "Adaptation failed"
)

// ErrForbidden is returned when a user touches another user's article.
var ErrForbidden = errors.New("article belongs to another user")

// ContentFetcher downloads and extracts an article. *extract.Fetcher
// implements it.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (extract.Content, error)
}

// Service runs learner operations against one database.
type Service struct {
	DB         *sql.DB
	Dictionary *dictionary.Cache
	Fetcher    ContentFetcher
	Adapter    adapt.Adapter
	// Logger receives background adaptation failures. nil means no logging.
	Logger *log.Logger

	// DistractorWindows and DistractorPageSize shape the meaning pages quiz
	// distractors are drawn from. Zero means the selector defaults.
	DistractorWindows  int
	DistractorPageSize int

	Now func() time.Time

	wg sync.WaitGroup
}

// NewService creates a Service. A nil adapter keeps articles as extracted.
func NewService(conn *sql.DB, cache *dictionary.Cache, fetcher ContentFetcher, adapter adapt.Adapter) *Service {
	if adapter == nil {
		adapter = adapt.Passthrough{}
	}
	return &Service{
		DB:         conn,
		Dictionary: cache,
		Fetcher:    fetcher,
		Adapter:    adapter,
		Now:        time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

// Wait blocks until every background adaptation has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Tier returns the user's tier, vocab.DefaultTier if unset.
func (s *Service) Tier(ctx context.Context, userID string) (vocab.Tier, error) {
	return db.GetUserTier(ctx, s.DB, userID)
}

// SetTier stores the user's tier.
func (s *Service) SetTier(ctx context.Context, userID string, tier vocab.Tier) error {
	return db.SetUserTier(ctx, s.DB, userID, tier)
}

// AddCustomWord adds a word to the user's own dictionary. The user's cached
// snapshot is dropped so the next analysis sees it.
func (s *Service) AddCustomWord(ctx context.Context, w db.CustomWord) (int64, error) {
	id, err := db.AddCustomWord(ctx, s.DB, w)
	if err != nil {
		return 0, err
	}
	s.Dictionary.Invalidate(w.UserID)
	return id, nil
}

// ListArticles returns the user's articles, newest first.
func (s *Service) ListArticles(ctx context.Context, userID string) ([]db.Article, error) {
	return db.ListArticles(ctx, s.DB, userID)
}

// owned loads an article and checks that userID owns it.
func (s *Service) owned(ctx context.Context, exec db.DBExecutor, userID string, id int64) (db.Article, error) {
	a, err := db.GetArticle(ctx, exec, id)
	if err != nil {
		return db.Article{}, err
	}
	if a.UserID != userID {
		return db.Article{}, fmt.Errorf("article %d: %w", id, ErrForbidden)
	}
	return a, nil
}

// AddArticle stores a placeholder article for rawURL and adapts it in the
// background. The returned id is valid immediately; the content appears
// once adaptation finishes, or the article is marked failed.
func (s *Service) AddArticle(ctx context.Context, userID, rawURL string) (int64, error) {
	pageURL, err := extract.NormalizeURL(rawURL)
	if err != nil {
		return 0, err
	}
	tier, err := db.GetUserTier(ctx, s.DB, userID)
	if err != nil {
		return 0, fmt.Errorf("load tier: %w", err)
	}
	id, err := db.CreateArticle(ctx, s.DB, db.Article{
		UserID:       userID,
		SourceURL:    pageURL,
		Title:        PlaceholderTitle,
		OriginalText: placeholderContent,
		TierAtTime:   tier,
	})
	if err != nil {
		return 0, fmt.Errorf("create article: %w", err)
	}

	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Process(bg, id, pageURL, tier); err != nil {
			s.logf("adapt article %d: %v", id, err)
			msg := "Unable to adapt this article right now. " + err.Error()
			if err := db.UpdateArticleContent(bg, s.DB, id, FailedTitle, nil, msg, nil); err != nil {
				s.logf("mark article %d failed: %v", id, err)
			}
		}
	}()
	return id, nil
}

// Process fetches, adapts, highlights and analyzes one article and stores
// the result.
func (s *Service) Process(ctx context.Context, id int64, pageURL string, tier vocab.Tier) error {
	content, err := s.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return err
	}
	adaptation, err := s.Adapter.Adapt(ctx, adapt.NewRequest(content.Title, content.Text, tier))
	if err != nil {
		return err
	}
	a, err := db.GetArticle(ctx, s.DB, id)
	if err != nil {
		return err
	}
	snap, err := s.Dictionary.Get(ctx, a.UserID)
	if err != nil {
		return err
	}
	segs := segment.ApplyHighlights(adaptation.Segments, snap.Lookup)
	matches := snap.Analyzer.Analyze(segment.Flatten(segs))

	return db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := db.UpdateArticleContent(ctx, tx, id, content.Title, segs, content.Text, adaptation.Questions); err != nil {
			return err
		}
		return db.ReplaceArticleMatches(ctx, tx, id, a.UserID, matches, s.now())
	})
}

// AnalyzeArticle re-tags the article against the current dictionary and
// replaces its stored matches.
func (s *Service) AnalyzeArticle(ctx context.Context, userID string, id int64) ([]vocab.Match, error) {
	a, err := s.owned(ctx, s.DB, userID, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.Dictionary.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	segs := segment.ApplyHighlights(a.Segments, snap.Lookup)
	matches := snap.Analyzer.Analyze(segment.Flatten(segs))

	err = db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := db.UpdateArticleSegments(ctx, tx, id, segs); err != nil {
			return err
		}
		return db.ReplaceArticleMatches(ctx, tx, id, userID, matches, s.now())
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// WordDetail is a highlighted word as shown in the reading view.
type WordDetail struct {
	db.DictionaryEntry
	Mastery  int              `json:"mastery"`
	Category mastery.Category `json:"category"`
	// Choices holds the correct meaning and its distractors in display order.
	Choices []string `json:"choices"`
}

// View is an article prepared for reading.
type View struct {
	Article  db.Article   `json:"article"`
	UserTier vocab.Tier   `json:"userTier"`
	Words    []WordDetail `json:"words"`
}

// ArticleView loads an article for reading. The first view moves it from
// unread to reading.
func (s *Service) ArticleView(ctx context.Context, userID string, id int64) (View, error) {
	a, err := s.owned(ctx, s.DB, userID, id)
	if err != nil {
		return View{}, err
	}
	if a.Status == db.StatusUnread {
		if err := db.SetArticleStatus(ctx, s.DB, id, db.StatusReading); err != nil {
			return View{}, err
		}
		a.Status = db.StatusReading
	}

	ids := segment.WordIDs(a.Segments)
	var (
		scores   map[int64]int
		entries  []db.DictionaryEntry
		userTier vocab.Tier
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scores, err = db.MasteryScores(gctx, s.DB, userID, ids)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = db.DictionaryWordsByIDs(gctx, s.DB, ids)
		return err
	})
	g.Go(func() error {
		var err error
		userTier, err = db.GetUserTier(gctx, s.DB, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	pools, err := s.distractorPools(ctx, id, entries)
	if err != nil {
		return View{}, err
	}

	byID := make(map[int64]db.DictionaryEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	words := make([]WordDetail, 0, len(ids))
	for _, wid := range ids {
		e, ok := byID[wid]
		if !ok {
			continue
		}
		score := scores[wid]
		seed := selector.WordSeed(id, wid)
		pad := fmt.Sprintf("(TIER %d word)", e.Tier)
		distractors := selector.Distractors(pools[e.Tier], e.Meaning, seed, selector.DistractorCount, pad)
		words = append(words, WordDetail{
			DictionaryEntry: e,
			Mastery:         score,
			Category:        mastery.RenderCategory(e.Tier, userTier, score),
			Choices:         selector.Choices(e.Meaning, distractors, seed),
		})
	}
	return View{Article: a, UserTier: userTier, Words: words}, nil
}

// distractorPools fetches one page of meanings for every tier present in
// entries. The page depends only on the article and the tier.
func (s *Service) distractorPools(ctx context.Context, articleID int64, entries []db.DictionaryEntry) (map[vocab.Tier][]string, error) {
	pageSize := s.DistractorPageSize
	if pageSize <= 0 {
		pageSize = selector.PageSize
	}
	var tiers []vocab.Tier
	seen := make(map[vocab.Tier]bool)
	for _, e := range entries {
		if !seen[e.Tier] {
			seen[e.Tier] = true
			tiers = append(tiers, e.Tier)
		}
	}

	results := make([][]string, len(tiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, tier := range tiers {
		g.Go(func() error {
			offset := selector.PageOffset(selector.PartitionSeed(articleID, int(tier)), s.DistractorWindows, pageSize)
			meanings, err := db.DictionaryMeanings(gctx, s.DB, tier, offset, pageSize)
			if err != nil {
				return fmt.Errorf("distractors for tier %d: %w", tier, err)
			}
			results[i] = meanings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	pools := make(map[vocab.Tier][]string, len(tiers))
	for i, tier := range tiers {
		pools[tier] = results[i]
	}
	return pools, nil
}

// QuizResult is the outcome of one word quiz answer.
type QuizResult struct {
	Mastery int  `json:"mastery"`
	Correct bool `json:"correct"`
}

// AnswerQuiz records a word quiz answer. When articleID is non-zero the
// article's word quiz score moves by one in the same transaction.
func (s *Service) AnswerQuiz(ctx context.Context, userID string, articleID, wordID int64, correct bool) (QuizResult, error) {
	var res QuizResult
	err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if articleID != 0 {
			if _, err := s.owned(ctx, tx, userID, articleID); err != nil {
				return err
			}
		}
		rec, err := db.GetMastery(ctx, tx, userID, wordID)
		if err != nil {
			return err
		}
		rec = rec.Answer(correct)
		if err := db.SaveMastery(ctx, tx, rec); err != nil {
			return err
		}
		if articleID != 0 {
			if err := db.AddWordQuizScore(ctx, tx, articleID, mastery.QuizDelta(correct)); err != nil {
				return err
			}
		}
		res = QuizResult{Mastery: rec.Score, Correct: correct}
		return nil
	})
	return res, err
}

// Completion is the final score of an article.
type Completion struct {
	TotalScore         int `json:"totalScore"`
	WordQuizScore      int `json:"wordQuizScore"`
	ComprehensionScore int `json:"comprehensionScore"`
}

// CompleteArticle records the comprehension result and marks the article
// completed.
func (s *Service) CompleteArticle(ctx context.Context, userID string, id int64, comprehension int, answered []db.Question) (Completion, error) {
	var c Completion
	err := db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		a, err := s.owned(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		c = Completion{
			TotalScore:         mastery.TotalScore(a.WordQuizScore, comprehension),
			WordQuizScore:      a.WordQuizScore,
			ComprehensionScore: comprehension,
		}
		return db.CompleteArticle(ctx, tx, id, comprehension, c.TotalScore, answered, s.now())
	})
	return c, err
}

// WordBankItem is a dictionary word with the user's mastery.
type WordBankItem struct {
	db.DictionaryEntry
	Mastery int `json:"mastery"`
}

// WordBankPage is one keyset page of the word bank.
type WordBankPage struct {
	Items      []WordBankItem `json:"items"`
	NextCursor *string        `json:"nextCursor"`
}

// WordBank lists dictionary words in keyset order with the user's mastery
// merged in; words never quizzed have mastery 0.
func (s *Service) WordBank(ctx context.Context, userID string, q db.WordQuery) (WordBankPage, error) {
	limit := keyset.ClampLimit(q.Limit)
	q.Limit = limit
	entries, err := db.ListDictionary(ctx, s.DB, q)
	if err != nil {
		return WordBankPage{}, err
	}
	ids := make([]int64, len(entries))
	words := make([]vocab.Word, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		words[i] = e.Word()
	}
	scores, err := db.MasteryScores(ctx, s.DB, userID, ids)
	if err != nil {
		return WordBankPage{}, err
	}

	page := WordBankPage{Items: make([]WordBankItem, len(entries))}
	for i, e := range entries {
		page.Items[i] = WordBankItem{DictionaryEntry: e, Mastery: scores[e.ID]}
	}
	if next := keyset.Next(words, limit); next != "" {
		page.NextCursor = &next
	}
	return page, nil
}
