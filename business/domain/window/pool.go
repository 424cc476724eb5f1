package window

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrQueueFull = errors.New("task queue full")

type Task func(ctx context.Context) error

type namedTask struct {
	name string
	run  Task
}

// Pool runs submitted tasks on a fixed number of workers. Tasks are not
// cancellable once started.
type Pool struct {
	tasks   chan namedTask
	workers int
	logger  *zap.SugaredLogger
}

func NewPool(workers, queueSize int, logger *zap.SugaredLogger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		tasks:   make(chan namedTask, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Submit queues a task without blocking.
func (p *Pool) Submit(name string, task Task) error {
	select {
	case p.tasks <- namedTask{name: name, run: task}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the workers until ctx is done.
func (p *Pool) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			if err := p.execute(ctx, task); err != nil {
				p.logger.Errorw("task failed", "task", task.name, "error", err)
			}
		}
	}
}

func (p *Pool) execute(ctx context.Context, task namedTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.run(ctx)
}
