package bridge

import (
	"context"

	"github.com/robotalks/rtos.go/pkg/task"
)

// Bridge connects a pair of queues to one PacketReadWriter.
// Either queue may be nil to bridge a single direction.
type Bridge struct {
	Outbound *Outbound
	Inbound  *Inbound
}

// New creates a Bridge sending from out and receiving into in.
func New(rw PacketReadWriter, out, in *Queue) *Bridge {
	b := &Bridge{}
	if out != nil {
		b.Outbound = NewOutbound(out, rw)
	}
	if in != nil {
		b.Inbound = NewInbound(in, rw)
	}
	return b
}

// Run implements task.Runnable. It stops when either direction stops.
func (b *Bridge) Run(ctx context.Context) error {
	g := task.NewGroupWith(ctx)
	if b.Outbound != nil {
		g.Go(stopGroupOnExit(g, b.Outbound))
	}
	if b.Inbound != nil {
		g.Go(stopGroupOnExit(g, b.Inbound))
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return err
}

func stopGroupOnExit(g *task.Group, r task.Runnable) task.Runnable {
	name := "bridge"
	if named, ok := r.(task.Named); ok {
		name = named.Name()
	}
	return task.WithName(name, task.RunFunc(func(ctx context.Context) error {
		defer g.Stop()
		return r.Run(ctx)
	}))
}
