package task

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

// Group spawns tasks sharing one context and collects their errors.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	lock    sync.Mutex
	started int
	errCh   chan error
	exitCh  chan struct{}
}

// NewGroup creates a Group with a background context.
func NewGroup() *Group {
	return NewGroupWith(context.Background())
}

// NewGroupWith creates a Group derived from ctx.
func NewGroupWith(ctx context.Context) *Group {
	g := &Group{
		errCh:  make(chan error, 1),
		exitCh: make(chan struct{}),
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	return g
}

// Context returns the context passed to tasks.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Stop cancels the context of all tasks.
func (g *Group) Stop() {
	g.cancel()
}

// HandleSignals stops the group on SIGINT/SIGTERM. A second signal makes
// Wait return ErrForcedExit without waiting for tasks.
func (g *Group) HandleSignals() *Group {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		g.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(g.exitCh)
	}()
	return g
}

// Go starts tasks.
func (g *Group) Go(tasks ...Runnable) *Group {
	for _, t := range tasks {
		g.lock.Lock()
		name := strconv.Itoa(g.started)
		g.started++
		g.lock.Unlock()
		if named, ok := t.(Named); ok {
			name = named.Name()
		}
		glog.V(4).Infof("start task[%s]", name)
		go func(t Runnable, name string) {
			err := t.Run(g.ctx)
			glog.V(4).Infof("task[%s] stopped: %v", name, err)
			g.errCh <- err
		}(t, name)
	}
	return g
}

// Wait waits until all started tasks stop and aggregates their errors.
// context.Canceled is not reported.
func (g *Group) Wait() error {
	g.lock.Lock()
	n := g.started
	g.lock.Unlock()
	var errs AggregatedError
	for i := 0; i < n; i++ {
		select {
		case <-g.exitCh:
			return ErrForcedExit
		case err := <-g.errCh:
			if err != context.Canceled {
				errs.Add(err)
			}
		}
	}
	return errs.Aggregate()
}

// RunWithContextCancel runs fn which doesn't accept a context.
// onCancel is invoked only when ctx is canceled before fn returns, and is
// expected to unblock fn.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		if onCancel != nil {
			onCancel()
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunWithContextCloser runs fn and ensures closer is closed either on
// cancellation or after fn returns.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	var once sync.Once
	closeFn := func() { once.Do(func() { closer.Close() }) }
	defer closeFn()
	return RunWithContextCancel(ctx, closeFn, fn)
}
