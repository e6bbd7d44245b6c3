// Package frontier holds the shared crawl queue: URL normalization, the
// visited set and a depth-tagged FIFO of pending tasks.
package frontier

import (
	"context"
	"errors"
	"sync"
	"time"
)

const DefaultIdleTimeout = time.Second

// ErrDrained is returned by Dequeue once the queue is empty and no dequeued
// task is still being processed.
var ErrDrained = errors.New("frontier drained")

type Task struct {
	Depth int
	URL   string
}

type Options struct {
	MaxDepth int
	// MaxChildren caps enqueues per EnqueueChildren call; 0 means no cap.
	MaxChildren int
	IdleTimeout time.Duration
}

// Frontier is safe for concurrent producers and consumers. Every task
// returned by Dequeue must be followed by exactly one call to Done.
type Frontier struct {
	visited VisitedSet
	filter  func(string) bool
	opts    Options

	mu       sync.Mutex
	tasks    []Task
	inflight int
	wake     chan struct{}
}

// New builds a Frontier. filter may be nil to accept every URL.
func New(visited VisitedSet, filter func(string) bool, opts Options) *Frontier {
	if visited == nil {
		visited = NewMemoryVisited()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Frontier{
		visited: visited,
		filter:  filter,
		opts:    opts,
		wake:    make(chan struct{}),
	}
}

// Seed enqueues url at depth 0 without consulting the filter.
func (f *Frontier) Seed(ctx context.Context, url string) error {
	added, err := f.visited.Add(ctx, url)
	if err != nil {
		return err
	}
	if added {
		f.push(Task{Depth: 0, URL: url})
	}
	return nil
}

// Enqueue reports whether url was newly queued. It is a no-op beyond the
// depth bound, for filtered URLs and for URLs already in the visited set.
func (f *Frontier) Enqueue(ctx context.Context, depth int, url string) (bool, error) {
	if depth > f.opts.MaxDepth {
		return false, nil
	}
	if f.filter != nil && !f.filter(url) {
		return false, nil
	}
	added, err := f.visited.Add(ctx, url)
	if err != nil || !added {
		return false, err
	}
	f.push(Task{Depth: depth, URL: url})
	return true, nil
}

// EnqueueChildren enqueues urls in order and stops after MaxChildren
// successful enqueues.
func (f *Frontier) EnqueueChildren(ctx context.Context, depth int, urls []string) (int, error) {
	var (
		n    int
		errs []error
	)
	for _, u := range urls {
		if f.opts.MaxChildren > 0 && n >= f.opts.MaxChildren {
			break
		}
		ok, err := f.Enqueue(ctx, depth, u)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			n++
		}
	}
	return n, errors.Join(errs...)
}

func (f *Frontier) push(t Task) {
	f.mu.Lock()
	f.tasks = append(f.tasks, t)
	f.broadcastLocked()
	f.mu.Unlock()
}

func (f *Frontier) broadcastLocked() {
	close(f.wake)
	f.wake = make(chan struct{})
}

// Dequeue blocks until a task is available. An empty queue with nothing in
// flight is given one IdleTimeout to change before ErrDrained is returned.
func (f *Frontier) Dequeue(ctx context.Context) (Task, error) {
	idleChecks := 0
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
		f.mu.Lock()
		if len(f.tasks) > 0 {
			t := f.tasks[0]
			f.tasks[0] = Task{}
			f.tasks = f.tasks[1:]
			f.inflight++
			f.mu.Unlock()
			return t, nil
		}
		if f.inflight == 0 {
			if idleChecks > 0 {
				f.mu.Unlock()
				return Task{}, ErrDrained
			}
		} else {
			idleChecks = 0
		}
		wake := f.wake
		f.mu.Unlock()

		timer := time.NewTimer(f.opts.IdleTimeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Task{}, ctx.Err()
		case <-wake:
			timer.Stop()
		case <-timer.C:
			idleChecks++
		}
	}
}

func (f *Frontier) Done() {
	f.mu.Lock()
	if f.inflight > 0 {
		f.inflight--
	}
	f.broadcastLocked()
	f.mu.Unlock()
}

// Len is the number of queued tasks.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func (f *Frontier) Visited() int {
	return f.visited.Len()
}
