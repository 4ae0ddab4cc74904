package bridge

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtos.go/pkg/kernel"
	"github.com/robotalks/rtos.go/pkg/task"
)

// DefaultPutTimeout bounds how long Inbound waits for space in the queue.
const DefaultPutTimeout = time.Second

// Inbound reads packets from Reader and puts them into Queue.
// Packets arriving while the queue stays full are dropped.
type Inbound struct {
	Queue      *Queue
	Reader     PacketReader
	PutTimeout time.Duration

	received atomic.Uint64
	dropped  atomic.Uint64
}

// NewInbound creates an Inbound.
func NewInbound(q *Queue, r PacketReader) *Inbound {
	return &Inbound{Queue: q, Reader: r, PutTimeout: DefaultPutTimeout}
}

// Name implements task.Named.
func (in *Inbound) Name() string {
	return "inbound"
}

// Received returns the number of envelopes queued.
func (in *Inbound) Received() uint64 {
	return in.received.Load()
}

// Dropped returns the number of envelopes dropped.
func (in *Inbound) Dropped() uint64 {
	return in.dropped.Load()
}

// Run implements task.Runnable. A Reader implementing io.Closer is closed
// on cancellation to unblock ReadPacket, otherwise cancellation is only
// observed between packets.
func (in *Inbound) Run(ctx context.Context) error {
	if closer, ok := in.Reader.(io.Closer); ok {
		return task.RunWithContextCloser(ctx, closer, func() error {
			return in.pump(ctx)
		})
	}
	return in.pump(ctx)
}

func (in *Inbound) pump(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := in.Reader.ReadPacket()
		if err != nil {
			return err
		}
		msg, err := DecodeEnvelope(pkt)
		if err != nil {
			glog.Warningf("inbound drop invalid packet: %v", err)
			in.dropped.Add(1)
			continue
		}
		err = in.Queue.Put(msg, in.PutTimeout)
		if kernel.IsTimeout(err) {
			glog.Warningf("inbound drop seq=%d: queue full", msg.Seq)
			in.dropped.Add(1)
			continue
		}
		if err != nil {
			return err
		}
		in.received.Add(1)
		glog.V(4).Infof("inbound seq=%d topic=%q %d bytes", msg.Seq, msg.Topic, len(msg.Payload))
	}
}
