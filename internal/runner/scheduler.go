// Package runner schedules cancellable periodic actions against the page.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDuplicateTask   = errors.New("task already scheduled")
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrStopped         = errors.New("scheduler stopped")
)

// Task describes a periodic action.
type Task struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single tick. Zero leaves it to the engine.
	Timeout time.Duration
	// FailureLevel is the severity failed ticks are logged at.
	FailureLevel log.Level
	Action       Action
}

// Stats is a point-in-time view of a task's activity.
type Stats struct {
	Name      string
	Interval  time.Duration
	Ticks     uint64
	Performed uint64
	Skipped   uint64
	Failed    uint64
	LastError string
	LastTick  time.Time
	Cancelled bool
}

// Handle is the cancellation token returned for every scheduled task.
type Handle struct {
	task   Task
	cancel context.CancelFunc
	done   chan struct{}
	logger *log.Entry

	mu    sync.Mutex
	stats Stats
}

// Cancel stops future ticks. A tick in flight sees its context cancelled.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.stats.Cancelled = true
	h.mu.Unlock()
	h.cancel()
}

// Done is closed once the task's goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handle) run(ctx context.Context) error {
	defer close(h.done)

	ticker := time.NewTicker(h.task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Task stopped")
			return nil
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *Handle) tick(ctx context.Context) {
	tickCtx := ctx
	if h.task.Timeout > 0 {
		var cancel context.CancelFunc
		tickCtx, cancel = context.WithTimeout(ctx, h.task.Timeout)
		defer cancel()
	}

	res := h.call(tickCtx)
	if ctx.Err() != nil && res.Outcome == Failed {
		// The scheduler is shutting down; the error is ours, not the page's.
		return
	}

	h.mu.Lock()
	h.stats.Ticks++
	h.stats.LastTick = time.Now()
	switch res.Outcome {
	case Performed:
		h.stats.Performed++
	case Skipped:
		h.stats.Skipped++
	case Failed:
		h.stats.Failed++
		if res.Err != nil {
			h.stats.LastError = res.Err.Error()
		}
	}
	h.mu.Unlock()

	if res.Outcome == Failed && !res.cancelled() {
		h.logger.WithError(res.Err).Log(h.task.FailureLevel, "Tick failed")
	}
}

func (h *Handle) call(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Errorf("panic in %s: %v", h.task.Name, r))
		}
	}()
	return h.task.Action(ctx)
}

type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.Mutex
	handles map[string]*Handle
	stopped bool
}

func NewScheduler(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		group:   &errgroup.Group{},
		handles: make(map[string]*Handle),
	}
}

// Schedule starts ticking task immediately; the first tick fires after one
// interval.
func (s *Scheduler) Schedule(task Task) (*Handle, error) {
	if task.Interval <= 0 {
		return nil, fmt.Errorf("%s: %w", task.Name, ErrInvalidInterval)
	}
	if task.Action == nil {
		return nil, fmt.Errorf("%s: action is nil", task.Name)
	}
	if task.FailureLevel == 0 {
		task.FailureLevel = log.ErrorLevel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	if _, exists := s.handles[task.Name]; exists {
		return nil, fmt.Errorf("%s: %w", task.Name, ErrDuplicateTask)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	h := &Handle{
		task:   task,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: log.WithField("component", "runner").WithField("task", task.Name),
		stats: Stats{
			Name:     task.Name,
			Interval: task.Interval,
		},
	}
	s.handles[task.Name] = h
	s.group.Go(func() error {
		return h.run(ctx)
	})

	h.logger.Debugf("Scheduled every %s", task.Interval)
	return h, nil
}

// Cancel stops the named task. It reports whether the task exists.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	h, ok := s.handles[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	h.Cancel()
	return true
}

// Stats returns a snapshot of every task, sorted by name.
func (s *Scheduler) Stats() []Stats {
	s.mu.Lock()
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	stats := make([]Stats, 0, len(handles))
	for _, h := range handles {
		stats = append(stats, h.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Len is the number of tasks ever scheduled, cancelled ones included.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Stop cancels every task and waits for in-flight ticks to return.
func (s *Scheduler) Stop() {
	_ = s.StopContext(context.Background())
}

// StopContext is Stop bounded by ctx. When ctx ends before the in-flight ticks
// return, it gives up waiting and returns ctx.Err(); the tasks stay cancelled.
func (s *Scheduler) StopContext(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	for _, h := range s.handles {
		h.mu.Lock()
		h.stats.Cancelled = true
		h.mu.Unlock()
	}
	s.mu.Unlock()

	s.cancel()

	waited := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
