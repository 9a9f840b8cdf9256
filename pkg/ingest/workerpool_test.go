package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/langbuddy/langbuddy/pkg/vocab"
)

func TestWorkerPoolAnalyzesInParallel(t *testing.T) {
	analyzer := vocab.NewAnalyzer([]vocab.Word{{ID: 1, BaseForm: "학교", Tier: 1}}, nil)
	texts := []string{"학교에 갔다.", "학교는 멀다.", "집에 있었다."}

	p := NewWorkerPool(3, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var (
		mu      sync.Mutex
		matched = map[int]int{}
	)
	for i := 0; i < 30; i++ {
		i := i
		if err := p.Submit(func(ctx context.Context) error {
			n := len(analyzer.Analyze(texts[i%len(texts)]))
			mu.Lock()
			matched[i] = n
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	p.Close()

	if len(matched) != 30 {
		t.Fatalf("expected 30 analyses, got %d", len(matched))
	}
	for i, n := range matched {
		want := 1
		if i%len(texts) == 2 {
			want = 0
		}
		if n != want {
			t.Fatalf("text %d: expected %d matches, got %d", i%len(texts), want, n)
		}
	}
}

func TestSubmitAfterCloseFails(t *testing.T) {
	p := NewWorkerPool(1, 2)
	p.Start(context.Background())
	p.Close()
	if err := p.Submit(func(ctx context.Context) error { return nil }); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
	// A second Close is a no-op.
	p.Close()
}

func TestCloseReleasesBlockedSubmit(t *testing.T) {
	p := NewWorkerPool(1, 1)
	// No workers are started, so the queue stays full after one job.
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("setup submit failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Submit(func(ctx context.Context) error { return nil })
	}()
	time.Sleep(10 * time.Millisecond)
	p.Close()

	select {
	case err := <-done:
		if err != ErrPoolClosed {
			t.Fatalf("expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Submit was not released by Close")
	}
}

func TestSubmitCtxGivesUpOnFullQueue(t *testing.T) {
	p := NewWorkerPool(1, 1)
	defer p.Close()
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("setup submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.SubmitCtx(ctx, func(ctx context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCancelledContextStopsWorkers(t *testing.T) {
	p := NewWorkerPool(2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	cancel()
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked after context cancellation")
	}
}
