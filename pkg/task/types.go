// Package task runs groups of concurrent tasks, the goroutine counterpart
// of kernel tasks sharing queues.
package task

import "context"

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a task body. It runs until done or ctx is canceled.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedTask struct {
	Runnable
	name string
}

func (t *namedTask) Name() string {
	return t.name
}

// WithName attaches a name to a Runnable for logging.
func WithName(name string, r Runnable) Runnable {
	return &namedTask{Runnable: r, name: name}
}
