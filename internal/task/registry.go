package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sentra.org/internal/ids"
)

// Status is the lifecycle state of a background task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrNotFound  = errors.New("task: not found")
	ErrConflict  = errors.New("task: still running")
	ErrClosed    = errors.New("task: registry closed")
	ErrQueueFull = errors.New("task: queue full")
)

// Task is the observable record of one background job. Workers are the only
// writers; everyone else sees copies.
type Task struct {
	ID          string
	Name        string
	Status      Status
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Progress    float64
	Result      any
	Error       string
	Metadata    map[string]string
}

// Func is the unit of background work. It receives the registry's context,
// not the submitting request's: request cancellation never cancels a task.
type Func func(ctx context.Context, p *Progress) (any, error)

// Progress lets running work report completion in [0,1].
type Progress struct {
	r  *Registry
	id string
}

// Set updates the task's progress, clamped to [0,1].
func (p *Progress) Set(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.r.setProgress(p.id, v)
}

const queueCapacity = 1024

type queued struct {
	id string
	fn Func
}

// Registry tracks background tasks and runs them on a bounded worker pool.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task

	queue chan queued
	group *errgroup.Group
	ctx   context.Context

	closeOnce sync.Once
	closed    chan struct{}

	now       func() time.Time
	retention time.Duration
}

// Option configures Registry behavior.
type Option func(*Registry)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// WithRetention enables lazy eviction of terminal tasks older than d.
// Zero keeps them until explicitly deleted.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// New starts a registry with the given number of workers.
func New(workers int, opts ...Option) *Registry {
	if workers <= 0 {
		workers = 1
	}
	r := &Registry{
		tasks:  make(map[string]*Task),
		queue:  make(chan queued, queueCapacity),
		closed: make(chan struct{}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	group, ctx := errgroup.WithContext(context.Background())
	r.group = group
	r.ctx = ctx
	for i := 0; i < workers; i++ {
		group.Go(r.worker)
	}
	return r
}

// Submit registers fn for asynchronous execution and returns immediately
// with the new task's id. Callers never wait here.
func (r *Registry) Submit(ctx context.Context, name string, meta map[string]string, fn Func) (string, error) {
	if fn == nil {
		return "", errors.New("task: work function is required")
	}
	select {
	case <-r.closed:
		return "", ErrClosed
	default:
	}

	now := r.now().UTC()
	t := &Task{
		ID:        ids.NewTask(),
		Name:      name,
		Status:    StatusPending,
		CreatedAt: now,
		Metadata:  copyMeta(meta),
	}

	r.mu.Lock()
	r.evictLocked(now)
	r.tasks[t.ID] = t
	r.mu.Unlock()

	select {
	case r.queue <- queued{id: t.ID, fn: fn}:
		return t.ID, nil
	default:
		r.mu.Lock()
		delete(r.tasks, t.ID)
		r.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return snapshot(t), nil
}

// List returns snapshots of all tasks, oldest first, optionally filtered by
// status ("" means all).
func (r *Registry) List(status Status) []Task {
	now := r.now().UTC()
	r.mu.Lock()
	r.evictLocked(now)
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, snapshot(t))
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes a task record. Running tasks cannot be deleted; pending
// ones can, and are skipped by the worker when dequeued.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status == StatusRunning {
		return ErrConflict
	}
	delete(r.tasks, id)
	return nil
}

// Close stops intake and waits for in-flight tasks to finish.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
		close(r.queue)
	})
	return r.group.Wait()
}

func (r *Registry) worker() error {
	for q := range r.queue {
		r.run(q)
	}
	return nil
}

func (r *Registry) run(q queued) {
	if !r.markRunning(q.id) {
		// Deleted while still queued.
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.markFailed(q.id, fmt.Sprintf("panic: %v", rec))
		}
	}()

	result, err := q.fn(r.ctx, &Progress{r: r, id: q.id})
	if err != nil {
		r.markFailed(q.id, err.Error())
		return
	}
	r.markCompleted(q.id, result)
}

func (r *Registry) markRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status != StatusPending {
		return false
	}
	now := r.now().UTC()
	t.Status = StatusRunning
	t.StartedAt = &now
	return true
}

func (r *Registry) setProgress(id string, v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	t.Progress = v
}

func (r *Registry) markCompleted(id string, result any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	now := r.now().UTC()
	t.Status = StatusCompleted
	t.Progress = 1
	t.Result = result
	t.CompletedAt = &now
}

func (r *Registry) markFailed(id string, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.Status.Terminal() {
		return
	}
	now := r.now().UTC()
	t.Status = StatusFailed
	t.Error = msg
	t.CompletedAt = &now
}

// evictLocked prunes terminal tasks past the retention window. Caller holds
// the write lock. No-op when retention is disabled.
func (r *Registry) evictLocked(now time.Time) {
	if r.retention <= 0 {
		return
	}
	for id, t := range r.tasks {
		if t.Status.Terminal() && t.CompletedAt != nil && now.Sub(*t.CompletedAt) > r.retention {
			delete(r.tasks, id)
		}
	}
}

func snapshot(t *Task) Task {
	cp := *t
	cp.Metadata = copyMeta(t.Metadata)
	if t.StartedAt != nil {
		ts := *t.StartedAt
		cp.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	return cp
}

func copyMeta(meta map[string]string) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	cp := make(map[string]string, len(meta))
	for k, v := range meta {
		cp[k] = v
	}
	return cp
}
