package bind

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// BackgroundTasks collects work to run after the response has been written.
type BackgroundTasks struct {
	mu    sync.Mutex
	tasks []func(ctx context.Context) error
}

// Add schedules fn.
func (b *BackgroundTasks) Add(fn func(ctx context.Context) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = append(b.tasks, fn)
}

// Len returns the number of scheduled tasks.
func (b *BackgroundTasks) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tasks)
}

// run executes the tasks in order. Failures are logged and do not stop the
// remaining tasks.
func (b *BackgroundTasks) run(ctx context.Context, logger *zap.Logger) {
	b.mu.Lock()
	tasks := b.tasks
	b.tasks = nil
	b.mu.Unlock()

	for i, task := range tasks {
		if err := task(ctx); err != nil {
			logger.Warn("background task failed", zap.Int("task", i), zap.Error(err))
		}
	}
}
