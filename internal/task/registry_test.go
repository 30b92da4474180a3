package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func waitStatus(t *testing.T, r *Registry, id string, want Status) Task {
	t.Helper()
	var got Task
	waitFor(t, func() bool {
		tk, err := r.Get(id)
		if err != nil {
			return false
		}
		got = tk
		return tk.Status == want
	})
	return got
}

func TestLifecycleCompleted(t *testing.T) {
	r := New(2)
	defer r.Close()

	id, err := r.Submit(context.Background(), "greet", map[string]string{"kind": "demo"}, func(ctx context.Context, p *Progress) (any, error) {
		p.Set(0.5)
		return map[string]string{"greeting": "hello"}, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitStatus(t, r, id, StatusCompleted)
	if done.Progress != 1 {
		t.Fatalf("completed task should report progress 1, got %v", done.Progress)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Fatalf("timestamps missing: %+v", done)
	}
	res, ok := done.Result.(map[string]string)
	if !ok || res["greeting"] != "hello" {
		t.Fatalf("unexpected result: %v", done.Result)
	}
	if done.Metadata["kind"] != "demo" {
		t.Fatalf("metadata lost: %v", done.Metadata)
	}
}

func TestFailureIsIsolated(t *testing.T) {
	r := New(1)
	defer r.Close()

	bad, err := r.Submit(context.Background(), "bad", nil, func(ctx context.Context, p *Progress) (any, error) {
		return nil, errors.New("boom")
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	good, err := r.Submit(context.Background(), "good", nil, func(ctx context.Context, p *Progress) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitStatus(t, r, bad, StatusFailed)
	if failed.Error != "boom" {
		t.Fatalf("unexpected error message: %q", failed.Error)
	}
	if done := waitStatus(t, r, good, StatusCompleted); done.Result != "ok" {
		t.Fatalf("later task should still run: %+v", done)
	}
}

func TestPanicBecomesFailure(t *testing.T) {
	r := New(1)
	defer r.Close()

	id, err := r.Submit(context.Background(), "panicky", nil, func(ctx context.Context, p *Progress) (any, error) {
		panic("kaboom")
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	failed := waitStatus(t, r, id, StatusFailed)
	if failed.Error != "panic: kaboom" {
		t.Fatalf("unexpected error message: %q", failed.Error)
	}

	// The worker survived the panic.
	next, err := r.Submit(context.Background(), "after", nil, func(ctx context.Context, p *Progress) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit after panic: %v", err)
	}
	waitStatus(t, r, next, StatusCompleted)
}

func TestProgressClamped(t *testing.T) {
	r := New(1)
	defer r.Close()

	set := make(chan struct{})
	release := make(chan struct{})
	id, err := r.Submit(context.Background(), "clamp", nil, func(ctx context.Context, p *Progress) (any, error) {
		p.Set(1.7)
		close(set)
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	<-set
	tk, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tk.Progress != 1 {
		t.Fatalf("progress not clamped: %v", tk.Progress)
	}
	close(release)
	waitStatus(t, r, id, StatusCompleted)
}

func TestDeleteRunningConflicts(t *testing.T) {
	r := New(1)
	defer r.Close()

	release := make(chan struct{})
	id, err := r.Submit(context.Background(), "slow", nil, func(ctx context.Context, p *Progress) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitStatus(t, r, id, StatusRunning)
	if err := r.Delete(id); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict while running, got %v", err)
	}

	close(release)
	waitStatus(t, r, id, StatusCompleted)
	if err := r.Delete(id); err != nil {
		t.Fatalf("Delete after completion: %v", err)
	}
	if _, err := r.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := r.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestDeletedPendingTaskIsSkipped(t *testing.T) {
	r := New(1)

	release := make(chan struct{})
	blocker, err := r.Submit(context.Background(), "blocker", nil, func(ctx context.Context, p *Progress) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitStatus(t, r, blocker, StatusRunning)

	var ran bool
	var mu sync.Mutex
	pending, err := r.Submit(context.Background(), "doomed", nil, func(ctx context.Context, p *Progress) (any, error) {
		mu.Lock()
		ran = true
		mu.Unlock()
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := r.Delete(pending); err != nil {
		t.Fatalf("Delete pending: %v", err)
	}

	close(release)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if ran {
		t.Fatal("deleted pending task must not run")
	}
}

func TestListFilterAndOrder(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := New(1, WithClock(clk.Now))

	release := make(chan struct{})
	blocker, err := r.Submit(context.Background(), "blocker", nil, func(ctx context.Context, p *Progress) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitStatus(t, r, blocker, StatusRunning)

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		clk.Advance(time.Second)
		id, err := r.Submit(context.Background(), name, nil, func(ctx context.Context, p *Progress) (any, error) {
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Submit %s: %v", name, err)
		}
		ids = append(ids, id)
	}

	pending := r.List(StatusPending)
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending tasks, got %d", len(pending))
	}
	for i, want := range ids {
		if pending[i].ID != want {
			t.Fatalf("list not ordered oldest first: position %d has %s", i, pending[i].ID)
		}
	}

	if running := r.List(StatusRunning); len(running) != 1 || running[0].ID != blocker {
		t.Fatalf("unexpected running filter result: %+v", running)
	}
	if all := r.List(""); len(all) != 4 {
		t.Fatalf("expected 4 tasks in total, got %d", len(all))
	}

	close(release)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRetentionEvictsTerminalTasks(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := New(1, WithClock(clk.Now), WithRetention(time.Minute))
	defer r.Close()

	id, err := r.Submit(context.Background(), "short-lived", nil, func(ctx context.Context, p *Progress) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitStatus(t, r, id, StatusCompleted)

	clk.Advance(2 * time.Minute)
	if got := r.List(""); len(got) != 0 {
		t.Fatalf("expected eviction after retention window, have %d", len(got))
	}
	if _, err := r.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after eviction, got %v", err)
	}
}

func TestCloseDrainsAndRejectsNewWork(t *testing.T) {
	r := New(2)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := r.Submit(context.Background(), "work", nil, func(ctx context.Context, p *Progress) (any, error) {
			return "done", nil
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids = append(ids, id)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, id := range ids {
		tk, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get after Close: %v", err)
		}
		if tk.Status != StatusCompleted {
			t.Fatalf("task %s not drained: %s", id, tk.Status)
		}
	}

	if _, err := r.Submit(context.Background(), "late", nil, func(ctx context.Context, p *Progress) (any, error) {
		return nil, nil
	}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSubmitRequiresWork(t *testing.T) {
	r := New(1)
	defer r.Close()
	if _, err := r.Submit(context.Background(), "empty", nil, nil); err == nil {
		t.Fatal("expected error for nil work function")
	}
}
