package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// pendingWrite is a buffered write and the hook to run once its batch has
// committed.
type pendingWrite struct {
	fn       WriteFunc
	onCommit func()
}

// BatchWriter buffers write operations and flushes them in batches inside a
// transaction. A batch either commits as a whole or not at all.
type BatchWriter struct {
	mu     sync.Mutex
	buf    []pendingWrite
	size   int
	ticker *time.Ticker
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	commitCh chan []pendingWrite
	db       *sql.DB
	OnError  func(error)

	committed atomic.Int64

	// firstErr is the first asynchronous error seen by the writer. Protected by errMu.
	errMu    sync.Mutex
	firstErr error
}

// NewBatchWriter creates a new BatchWriter.
// db: the database connection to use for transactions.
// bufferSize: flush when buffer reaches this size.
// flushInterval: flush after this duration (0 to disable).
func NewBatchWriter(db *sql.DB, bufferSize int, flushInterval time.Duration) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	bw := &BatchWriter{
		buf:      make([]pendingWrite, 0, bufferSize),
		size:     bufferSize,
		ctx:      ctx,
		cancel:   cancel,
		commitCh: make(chan []pendingWrite, 2), // a couple of batches in flight
		db:       db,
	}

	bw.wg.Add(1)
	go bw.committer()

	if flushInterval > 0 {
		bw.ticker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.loop()
	}
	return bw
}

// Submit enqueues a write function.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	return bw.SubmitWithCommit(w, nil)
}

// SubmitWithCommit enqueues w and calls onCommit after the batch holding w
// commits. onCommit is never called for a batch that rolls back. Hooks run
// on the committer goroutine in submission order.
func (bw *BatchWriter) SubmitWithCommit(w WriteFunc, onCommit func()) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, pendingWrite{fn: w, onCommit: onCommit})
	if len(bw.buf) >= bw.size {
		bw.flushLocked()
	}
	return nil
}

// Committed reports how many write functions have been committed so far.
func (bw *BatchWriter) Committed() int64 {
	return bw.committed.Load()
}

// flushLocked assumes bw.mu is held. Blocking on a busy committer while
// holding the lock is what gives Submit its backpressure.
func (bw *BatchWriter) flushLocked() {
	if len(bw.buf) == 0 {
		return
	}
	batch := bw.buf
	bw.buf = make([]pendingWrite, 0, bw.size)

	select {
	case bw.commitCh <- batch:
	case <-bw.ctx.Done():
		bw.fail(fmt.Errorf("batch writer: dropping batch of %d items due to context cancellation", len(batch)))
	}
}

// fail records err as the writer's error if it is the first one and
// reports it through OnError.
func (bw *BatchWriter) fail(err error) {
	bw.errMu.Lock()
	if bw.firstErr == nil {
		bw.firstErr = err
	}
	bw.errMu.Unlock()
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

func (bw *BatchWriter) committer() {
	defer bw.wg.Done()
	for batch := range bw.commitCh {
		if err := bw.executeBatch(batch); err != nil {
			bw.fail(err)
			continue
		}
		bw.committed.Add(int64(len(batch)))
		for _, w := range batch {
			if w.onCommit != nil {
				w.onCommit()
			}
		}
	}
}

func (bw *BatchWriter) executeBatch(batch []pendingWrite) error {
	// Without a DB (tests), run the callbacks with a nil tx.
	if bw.db == nil {
		for _, w := range batch {
			if err := w.fn(bw.ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	// Flushes use a background context so a closing writer still commits.
	ctx := context.Background()

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, w := range batch {
		if err := w.fn(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(batch), err)
	}
	return nil
}

func (bw *BatchWriter) loop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.ctx.Done():
			return
		case <-bw.ticker.C:
			bw.mu.Lock()
			bw.flushLocked()
			bw.mu.Unlock()
		}
	}
}

// Close stops accepting submissions and waits for pending writes to
// complete. It returns the first asynchronous error, if any.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.ticker != nil {
		bw.ticker.Stop()
	}
	bw.flushLocked()
	bw.mu.Unlock()

	bw.cancel()        // stop the ticker loop
	close(bw.commitCh) // stop the committer once drained
	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.firstErr
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
