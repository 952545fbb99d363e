package schedule

import (
	"container/heap"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock abstracts wall time so reversal schedules can be driven by a fake
// clock in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type task struct {
	at   time.Time
	name string
	fn   func()
}

type taskHeap []task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler runs deferred tasks ordered by deadline from a single goroutine.
// Once scheduled, a task fires unconditionally at its deadline; schedules do
// not survive a process restart.
type Scheduler struct {
	mu     sync.Mutex
	tasks  taskHeap
	clock  Clock
	logger *zap.Logger
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

func New(clock Clock, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		clock:  clock,
		logger: logger,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Schedule enqueues fn to run at its deadline. Safe for concurrent use.
func (s *Scheduler) Schedule(at time.Time, name string, fn func()) {
	s.mu.Lock()
	heap.Push(&s.tasks, task{at: at, name: name, fn: fn})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		// Copy the head deadline under the lock: a concurrent Schedule
		// sifting a new task to the front mutates s.tasks[0] in place.
		s.mu.Lock()
		empty := len(s.tasks) == 0
		var at time.Time
		if !empty {
			at = s.tasks[0].at
		}
		s.mu.Unlock()

		if empty {
			select {
			case <-s.stop:
				return
			case <-s.wake:
			}
			continue
		}

		delay := at.Sub(s.clock.Now())
		if delay <= 0 {
			s.runDue()
			continue
		}

		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-s.clock.After(delay):
		}
	}
}

func (s *Scheduler) runDue() {
	now := s.clock.Now()
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 || s.tasks[0].at.After(now) {
			s.mu.Unlock()
			return
		}
		due := heap.Pop(&s.tasks).(task)
		s.mu.Unlock()

		s.logger.Debug("running scheduled task", zap.String("task", due.name))
		due.fn()
	}
}

// Pending reports how many tasks are queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
