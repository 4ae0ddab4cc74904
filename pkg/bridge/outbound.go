package bridge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtos.go/pkg/kernel"
)

// DefaultPollInterval bounds how long Outbound waits on an empty queue
// before checking for cancellation.
const DefaultPollInterval = 100 * time.Millisecond

// Outbound takes envelopes from Queue and writes them to Writer.
type Outbound struct {
	Queue        *Queue
	Writer       PacketWriter
	PollInterval time.Duration

	seq  uint32
	sent atomic.Uint64
}

// NewOutbound creates an Outbound.
func NewOutbound(q *Queue, w PacketWriter) *Outbound {
	return &Outbound{Queue: q, Writer: w, PollInterval: DefaultPollInterval}
}

// Name implements task.Named.
func (o *Outbound) Name() string {
	return "outbound"
}

// Sent returns the number of packets written.
func (o *Outbound) Sent() uint64 {
	return o.sent.Load()
}

// Run implements task.Runnable. Envelopes without a sequence number get
// the next one.
func (o *Outbound) Run(ctx context.Context) error {
	interval := o.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := o.Queue.Get(interval)
		if kernel.IsTimeout(err) {
			continue
		}
		if err != nil {
			return err
		}
		o.seq++
		if msg.Seq == 0 {
			msg.Seq = o.seq
		}
		pkt, err := msg.Encode()
		if err != nil {
			glog.Errorf("outbound encode seq=%d: %v", msg.Seq, err)
			continue
		}
		if err = o.Writer.WritePacket(pkt); err != nil {
			return err
		}
		o.sent.Add(1)
		glog.V(4).Infof("outbound seq=%d topic=%q %d bytes", msg.Seq, msg.Topic, len(msg.Payload))
	}
}
