// Package ingest re-analyzes stored articles in bulk: it re-tags their
// segments against the current dictionary and replaces their recorded
// vocabulary matches.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/langbuddy/langbuddy/pkg/db"
	"github.com/langbuddy/langbuddy/pkg/dictionary"
	"github.com/langbuddy/langbuddy/pkg/segment"
	"github.com/langbuddy/langbuddy/pkg/vocab"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// SnapshotSource provides the per-user dictionary snapshot.
// *dictionary.Cache implements it.
type SnapshotSource interface {
	Get(ctx context.Context, userID string) (*dictionary.Snapshot, error)
}

// Ingester re-analyzes articles using concurrent workers and batched writes.
type Ingester struct {
	DB        *sql.DB
	Snapshots SnapshotSource
	BatchSize int
	// Logger is used for informational messages (e.g. skipped articles). nil means no logging.
	Logger *log.Logger
	// OnProgress is called periodically with the number of processed articles and the total.
	OnProgress func(current, total int)
	// SkipAnalyzedSince skips articles analyzed at or after this time, so
	// an interrupted run can be resumed. Zero disables skipping.
	SkipAnalyzedSince time.Time
	// Now stamps last_analyzed_at; defaults to time.Now.
	Now func() time.Time

	// Concurrency settings
	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates a new Ingester.
func NewIngester(conn *sql.DB, snapshots SnapshotSource) *Ingester {
	return &Ingester{
		DB:        conn,
		Snapshots: snapshots,
		BatchSize: 50,
		Workers:   4,
	}
}

// Result summarizes one Ingest run.
type Result struct {
	Articles int
	Skipped  int
	Matches  int
}

// analyzedArticle holds the result of re-analyzing one article before it is written.
type analyzedArticle struct {
	Index     int
	ArticleID int64
	UserID    string
	Segments  []segment.Segment
	Matches   []vocab.Match
	Skipped   bool
	Error     error
}

// Ingest re-analyzes the given articles. Results are written in input
// order; each article's segments and matches are replaced together in the
// same transaction.
func (ig *Ingester) Ingest(ctx context.Context, articleIDs []int64) (Result, error) {
	var res Result
	total := len(articleIDs)
	if total == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	now := ig.Now
	if now == nil {
		now = time.Now
	}
	batchSize := ig.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(ig.Workers, ig.Workers*2)
	} else {
		wp = NewWorkerPool(ig.Workers, ig.Workers*2)
	}
	resultCh := make(chan analyzedArticle, ig.Workers*2)
	resultChClosed := false
	doneCh := make(chan error, 1)

	var written, skipped, matched int64

	bw := NewBatchWriter(ig.DB, batchSize, 100*time.Millisecond)
	var batchErr error
	var batchErrMu sync.Mutex
	bw.OnError = func(e error) {
		batchErrMu.Lock()
		if batchErr == nil {
			batchErr = e
		}
		batchErrMu.Unlock()
	}

	// Clean up on any return path: stop workers, close resultCh, flush batches.
	defer func() {
		wp.Close()
		if !resultChClosed {
			close(resultCh)
		}
		_ = bw.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	write := func(item analyzedArticle) error {
		if item.Skipped {
			atomic.AddInt64(&skipped, 1)
			return nil
		}
		// gone is set and read on the committer goroutine only.
		gone := false
		save := func(ctx context.Context, tx *sql.Tx) error {
			err := db.UpdateArticleSegments(ctx, tx, item.ArticleID, item.Segments)
			if errors.Is(err, db.ErrNotFound) {
				// Deleted since it was loaded; its siblings still commit.
				ig.logf("article %d was deleted during re-analysis, skipping", item.ArticleID)
				gone = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to save segments of article %d: %w", item.ArticleID, err)
			}
			if err := db.ReplaceArticleMatches(ctx, tx, item.ArticleID, item.UserID, item.Matches, now()); err != nil {
				return fmt.Errorf("failed to save matches of article %d: %w", item.ArticleID, err)
			}
			return nil
		}
		return bw.SubmitWithCommit(save, func() {
			if gone {
				atomic.AddInt64(&skipped, 1)
				return
			}
			atomic.AddInt64(&written, 1)
			atomic.AddInt64(&matched, int64(len(item.Matches)))
		})
	}

	// Consumer: write results in input order.
	go func() {
		defer close(doneCh)
		pending := make(map[int]analyzedArticle)
		next := 0

		drain := func() error {
			for {
				item, ok := pending[next]
				if !ok {
					return nil
				}
				delete(pending, next)
				if err := write(item); err != nil {
					return err
				}
				next++
				if ig.OnProgress != nil && next%batchSize == 0 {
					ig.OnProgress(next, total)
				}
			}
		}

		for r := range resultCh {
			if r.Error != nil {
				cancel()
				doneCh <- r.Error
				return
			}
			pending[r.Index] = r
			if err := drain(); err != nil {
				cancel()
				doneCh <- err
				return
			}
		}
		if ctx.Err() != nil {
			doneCh <- ctx.Err()
			return
		}
		if ig.OnProgress != nil {
			ig.OnProgress(next, total)
		}
		doneCh <- nil
	}()

	// Producer: load each article and submit its analysis.
	var producerErr error
Loop:
	for i, id := range articleIDs {
		select {
		case <-ctx.Done():
			break Loop
		default:
		}

		article, err := db.GetArticle(ctx, ig.DB, id)
		if err != nil {
			switch {
			case errors.Is(err, db.ErrNotFound):
				ig.logf("article %d no longer exists, skipping", id)
				article = db.Article{ID: id}
			case ctx.Err() != nil:
				break Loop
			default:
				producerErr = fmt.Errorf("load article %d: %w", id, err)
				cancel()
				break Loop
			}
		}

		idx := i
		job := func(ctx context.Context) error {
			r := ig.analyze(ctx, idx, article)
			select {
			case resultCh <- r:
			case <-ctx.Done():
			}
			return nil
		}

		if err := wp.SubmitCtx(ctx, job); err != nil {
			if errors.Is(err, ctx.Err()) || errors.Is(err, ErrPoolClosed) {
				break Loop
			}
			producerErr = err
			cancel()
			break Loop
		}
	}

	// No more jobs: wait for workers, then let the consumer finish.
	wp.Close()
	close(resultCh)
	resultChClosed = true

	consumerErr := <-doneCh
	if producerErr != nil {
		consumerErr = producerErr
	}

	if err := bw.Close(); err != nil && consumerErr == nil {
		consumerErr = err
	}
	batchErrMu.Lock()
	if batchErr != nil && consumerErr == nil {
		consumerErr = batchErr
	}
	batchErrMu.Unlock()

	res.Articles = int(atomic.LoadInt64(&written))
	res.Skipped = int(atomic.LoadInt64(&skipped))
	res.Matches = int(atomic.LoadInt64(&matched))
	return res, consumerErr
}

// analyze performs the CPU-bound part: segment re-tagging and vocabulary
// matching against the owner's snapshot.
func (ig *Ingester) analyze(ctx context.Context, index int, a db.Article) analyzedArticle {
	out := analyzedArticle{Index: index, ArticleID: a.ID, UserID: a.UserID}
	if a.UserID == "" {
		out.Skipped = true
		return out
	}
	if !ig.SkipAnalyzedSince.IsZero() && a.LastAnalyzedAt != nil && !a.LastAnalyzedAt.Before(ig.SkipAnalyzedSince) {
		out.Skipped = true
		return out
	}
	snap, err := ig.Snapshots.Get(ctx, a.UserID)
	if err != nil {
		out.Error = fmt.Errorf("snapshot for %s: %w", a.UserID, err)
		return out
	}
	out.Segments = segment.ApplyHighlights(a.Segments, snap.Lookup)
	out.Matches = snap.Analyzer.Analyze(segment.Flatten(out.Segments))
	return out
}

func (ig *Ingester) logf(format string, args ...any) {
	if ig.Logger != nil {
		ig.Logger.Printf(format, args...)
	}
}
