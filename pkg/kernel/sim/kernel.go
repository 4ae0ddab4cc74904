// Package sim provides an in-process kernel implementing the kernel
// primitives with goroutines standing in for tasks.
package sim

import (
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtos.go/pkg/kernel"
)

// Kernel simulates the kernel message queue primitive.
type Kernel struct {
	// Frequency is the tick rate in Hz.
	Frequency uint32
	// HeapLimit caps the total bytes of queue storage, 0 for unlimited.
	HeapLimit int

	lock     sync.Mutex
	queues   map[kernel.QueueID]*queue
	lastID   kernel.QueueID
	heapUsed int
}

var _ kernel.MessageQueueAPI = (*Kernel)(nil)

// New creates a Kernel ticking at the default frequency.
func New() *Kernel {
	return &Kernel{Frequency: kernel.DefaultTickFrequency}
}

// TickFrequency implements TickSource.
func (k *Kernel) TickFrequency() uint32 {
	if k.Frequency == 0 {
		return kernel.DefaultTickFrequency
	}
	return k.Frequency
}

// HeapUsed returns the bytes currently allocated for queue storage.
func (k *Kernel) HeapUsed() int {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.heapUsed
}

// QueueCount returns the number of live queues.
func (k *Kernel) QueueCount() int {
	k.lock.Lock()
	defer k.lock.Unlock()
	return len(k.queues)
}

// MessageQueueAlloc implements MessageQueueAPI.
func (k *Kernel) MessageQueueAlloc(capacity, msgSize uint32) kernel.QueueID {
	if capacity == 0 || msgSize == 0 {
		panic(&kernel.AllocError{Status: kernel.StatusErrorParameter, Capacity: capacity, MsgSize: msgSize})
	}
	size := uint64(capacity) * uint64(msgSize)
	if size > math.MaxInt32 {
		panic(&kernel.AllocError{Status: kernel.StatusErrorNoMemory, Capacity: capacity, MsgSize: msgSize})
	}

	k.lock.Lock()
	defer k.lock.Unlock()
	if k.HeapLimit > 0 && k.heapUsed+int(size) > k.HeapLimit {
		panic(&kernel.AllocError{Status: kernel.StatusErrorNoMemory, Capacity: capacity, MsgSize: msgSize})
	}
	if k.queues == nil {
		k.queues = make(map[kernel.QueueID]*queue)
	}
	for {
		k.lastID++
		if _, exists := k.queues[k.lastID]; k.lastID != 0 && !exists {
			break
		}
	}
	q := newQueue(int(capacity), int(msgSize))
	k.queues[k.lastID] = q
	k.heapUsed += int(size)
	glog.V(4).Infof("queue[%d] alloc capacity=%d size=%d", k.lastID, capacity, msgSize)
	return k.lastID
}

// MessageQueueFree implements MessageQueueAPI.
func (k *Kernel) MessageQueueFree(id kernel.QueueID) {
	k.lock.Lock()
	q := k.queues[id]
	if q != nil {
		delete(k.queues, id)
		k.heapUsed -= len(q.buf)
	}
	k.lock.Unlock()
	if q == nil {
		glog.Errorf("queue[%d] free: invalid handle", id)
		return
	}
	if n := q.free(); n > 0 {
		glog.V(2).Infof("queue[%d] freed with %d messages", id, n)
	} else {
		glog.V(4).Infof("queue[%d] freed", id)
	}
}

// MessageQueuePut implements MessageQueueAPI.
func (k *Kernel) MessageQueuePut(id kernel.QueueID, msg []byte, timeout kernel.Ticks) kernel.Status {
	q := k.lookup(id)
	if q == nil || len(msg) != q.msgSize {
		return kernel.StatusErrorParameter
	}
	return q.wait(timeout, k.TickFrequency(), func() (bool, chan struct{}) {
		return q.put(msg)
	})
}

// MessageQueueGet implements MessageQueueAPI.
func (k *Kernel) MessageQueueGet(id kernel.QueueID, out []byte, timeout kernel.Ticks) kernel.Status {
	q := k.lookup(id)
	if q == nil || len(out) != q.msgSize {
		return kernel.StatusErrorParameter
	}
	return q.wait(timeout, k.TickFrequency(), func() (bool, chan struct{}) {
		return q.get(out)
	})
}

// MessageQueueCapacity implements MessageQueueAPI.
func (k *Kernel) MessageQueueCapacity(id kernel.QueueID) uint32 {
	if q := k.lookup(id); q != nil {
		return uint32(q.capacity)
	}
	return 0
}

// MessageQueueMessageSize implements MessageQueueAPI.
func (k *Kernel) MessageQueueMessageSize(id kernel.QueueID) uint32 {
	if q := k.lookup(id); q != nil {
		return uint32(q.msgSize)
	}
	return 0
}

// MessageQueueCount implements MessageQueueAPI.
func (k *Kernel) MessageQueueCount(id kernel.QueueID) uint32 {
	if q := k.lookup(id); q != nil {
		count, _ := q.occupancy()
		return uint32(count)
	}
	return 0
}

// MessageQueueSpace implements MessageQueueAPI.
func (k *Kernel) MessageQueueSpace(id kernel.QueueID) uint32 {
	if q := k.lookup(id); q != nil {
		_, space := q.occupancy()
		return uint32(space)
	}
	return 0
}

func (k *Kernel) lookup(id kernel.QueueID) *queue {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.queues[id]
}

// queue is a ring of fixed-size slots.
// dataCh is closed when a message arrives and spaceCh when a slot frees,
// each is replaced right after being closed.
type queue struct {
	capacity int
	msgSize  int

	lock    sync.Mutex
	buf     []byte
	head    int
	count   int
	freed   bool
	dataCh  chan struct{}
	spaceCh chan struct{}
}

func newQueue(capacity, msgSize int) *queue {
	return &queue{
		capacity: capacity,
		msgSize:  msgSize,
		buf:      make([]byte, capacity*msgSize),
		dataCh:   make(chan struct{}),
		spaceCh:  make(chan struct{}),
	}
}

func (q *queue) occupancy() (count, space int) {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.count, q.capacity - q.count
}

// put must be called with lock held.
func (q *queue) put(msg []byte) (bool, chan struct{}) {
	if q.count >= q.capacity {
		return false, q.spaceCh
	}
	tail := (q.head + q.count) % q.capacity
	copy(q.buf[tail*q.msgSize:(tail+1)*q.msgSize], msg)
	q.count++
	close(q.dataCh)
	q.dataCh = make(chan struct{})
	return true, nil
}

// get must be called with lock held.
func (q *queue) get(out []byte) (bool, chan struct{}) {
	if q.count == 0 {
		return false, q.dataCh
	}
	slot := q.buf[q.head*q.msgSize : (q.head+1)*q.msgSize]
	copy(out, slot)
	for i := range slot {
		slot[i] = 0
	}
	q.head = (q.head + 1) % q.capacity
	q.count--
	close(q.spaceCh)
	q.spaceCh = make(chan struct{})
	return true, nil
}

func (q *queue) free() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.freed = true
	close(q.dataCh)
	close(q.spaceCh)
	return q.count
}

// wait retries op until it succeeds, the timeout expires or the queue is
// freed. The calling goroutine sleeps on the channel returned by op.
func (q *queue) wait(timeout kernel.Ticks, freq uint32, op func() (bool, chan struct{})) kernel.Status {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	var expired <-chan time.Time
	for {
		q.lock.Lock()
		if q.freed {
			q.lock.Unlock()
			return kernel.StatusErrorResource
		}
		ok, waitCh := op()
		q.lock.Unlock()
		if ok {
			return kernel.StatusOK
		}
		if timeout == kernel.NoWait {
			return kernel.StatusErrorTimeout
		}
		if timer == nil && timeout != kernel.WaitForever {
			timer = time.NewTimer(timeout.Duration(freq))
			expired = timer.C
		}
		select {
		case <-waitCh:
		case <-expired:
			return kernel.StatusErrorTimeout
		}
	}
}
