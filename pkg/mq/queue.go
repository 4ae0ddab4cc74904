package mq

import (
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtos.go/pkg/kernel"
)

// Timeout sentinels accepted by Put and Get.
const (
	// NoWait polls and returns immediately.
	NoWait time.Duration = 0
	// Forever blocks until the transfer happens.
	Forever = kernel.Forever
)

// Releaser is implemented by element types owning resources. Close
// releases every value it drains.
type Releaser interface {
	Release()
}

// MessageQueue is a fixed-capacity FIFO of M values shared by any number
// of producer and consumer goroutines.
//
// The queue owns the values it holds: Put transfers a value in, Get
// transfers it out, and Close releases whatever is left.
type MessageQueue[M any] struct {
	// OnDrop releases a value drained by Close. When nil, values
	// implementing Releaser are released instead.
	OnDrop func(M)

	api       kernel.MessageQueueAPI
	handle    kernel.QueueID
	codec     Codec[M]
	closeOnce sync.Once
}

// New allocates a queue of capacity slots using DefaultCodec.
// It panics if the kernel can't allocate the storage.
func New[M any](api kernel.MessageQueueAPI, capacity int) *MessageQueue[M] {
	return NewWithCodec[M](api, capacity, DefaultCodec[M]())
}

// NewWithCodec allocates a queue of capacity slots laid out by codec.
// It panics if the kernel can't allocate the storage or either dimension
// doesn't fit the kernel's 32-bit sizes.
func NewWithCodec[M any](api kernel.MessageQueueAPI, capacity int, codec Codec[M]) *MessageQueue[M] {
	capacity32, capacityOK := toUint32(capacity)
	size32, sizeOK := toUint32(codec.Size())
	if !capacityOK || !sizeOK {
		panic(&kernel.AllocError{Status: kernel.StatusErrorParameter, Capacity: capacity32, MsgSize: size32})
	}
	return &MessageQueue[M]{
		api:    api,
		handle: api.MessageQueueAlloc(capacity32, size32),
		codec:  codec,
	}
}

// toUint32 reports false when n is negative or above math.MaxUint32.
func toUint32(n int) (uint32, bool) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// Handle returns the kernel queue handle.
func (q *MessageQueue[M]) Handle() kernel.QueueID {
	return q.handle
}

// Put appends msg to the queue, waiting up to timeout for a free slot.
// On error nothing was enqueued and the queue keeps no reference to msg,
// the caller still owns it.
func (q *MessageQueue[M]) Put(msg M, timeout time.Duration) error {
	slot := make([]byte, q.codec.Size())
	if err := q.codec.Encode(slot, msg); err != nil {
		return err
	}
	status := q.api.MessageQueuePut(q.handle, slot, q.ticks(timeout))
	if !status.IsOK() {
		q.codec.Abort(slot)
		return status
	}
	return nil
}

// Get removes the message at the head of the queue, waiting up to timeout
// for one to arrive.
func (q *MessageQueue[M]) Get(timeout time.Duration) (M, error) {
	slot := make([]byte, q.codec.Size())
	if status := q.api.MessageQueueGet(q.handle, slot, q.ticks(timeout)); !status.IsOK() {
		var zero M
		return zero, status
	}
	return q.codec.Decode(slot)
}

// Capacity returns the number of slots.
func (q *MessageQueue[M]) Capacity() int {
	return int(q.api.MessageQueueCapacity(q.handle))
}

// Len returns the number of queued messages. Concurrent tasks may change
// it right after.
func (q *MessageQueue[M]) Len() int {
	return int(q.api.MessageQueueCount(q.handle))
}

// Space returns the number of free slots. Concurrent tasks may change it
// right after.
func (q *MessageQueue[M]) Space() int {
	return int(q.api.MessageQueueSpace(q.handle))
}

// Close releases every queued message and frees the kernel storage.
// No other task may use the queue concurrently or afterwards.
// It is safe to call more than once and always returns nil.
func (q *MessageQueue[M]) Close() error {
	q.closeOnce.Do(q.destroy)
	return nil
}

func (q *MessageQueue[M]) destroy() {
	var drained int
	for q.Len() > 0 {
		msg, err := q.Get(Forever)
		if err != nil {
			glog.Warningf("queue[%d] drain stopped after %d messages: %v", q.handle, drained, err)
			break
		}
		q.release(msg)
		drained++
	}
	if drained > 0 {
		glog.V(2).Infof("queue[%d] drained %d messages", q.handle, drained)
	}
	q.api.MessageQueueFree(q.handle)
}

func (q *MessageQueue[M]) release(msg M) {
	if q.OnDrop != nil {
		q.OnDrop(msg)
		return
	}
	if r, ok := any(msg).(Releaser); ok {
		r.Release()
	}
}

func (q *MessageQueue[M]) ticks(timeout time.Duration) kernel.Ticks {
	return kernel.DurationToTicks(timeout, q.api.TickFrequency())
}
