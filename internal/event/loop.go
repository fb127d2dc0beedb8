package event

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/dshills/collabedit/internal/logging"
)

// DefaultLoopQueueSize is the default capacity of a Loop's task queue.
const DefaultLoopQueueSize = 256

// Loop runs posted tasks one at a time on the goroutine that calls Run.
// Post is safe for concurrent use; everything else about the document it
// serves is touched only from inside tasks.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	logger *logging.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used for task panics.
func WithLoopLogger(l *logging.Logger) LoopOption {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// WithQueueSize sets the task queue capacity.
func WithQueueSize(n int) LoopOption {
	return func(lp *Loop) {
		if n > 0 {
			lp.tasks = make(chan func(), n)
		}
	}
}

// NewLoop creates a stopped-until-Run loop.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		tasks:  make(chan func(), DefaultLoopQueueSize),
		done:   make(chan struct{}),
		logger: logging.Null(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues fn. It blocks while the queue is full and fails once the loop
// has been stopped.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Run executes tasks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
		case <-l.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Drain runs every task currently queued and returns how many ran.
// It is meant for callers that own the loop goroutine, such as tests.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
			n++
		default:
			return n
		}
	}
}

// Stop ends Run. Queued tasks are discarded.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed when the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}
