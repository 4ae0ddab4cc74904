package kernel

// QueueID is an opaque handle to kernel-owned queue storage.
// The zero value is never a valid handle.
type QueueID uint32

// MessageQueueAPI is the kernel message queue primitive.
//
// Queues hold up to capacity slots of exactly msgSize bytes each and are
// first-in-first-out. The implementation serializes concurrent callers and
// wakes blocked tasks; callers must not add their own locking.
type MessageQueueAPI interface {
	// MessageQueueAlloc allocates a queue. Allocation failure is fatal and
	// panics, there is no recoverable error path.
	MessageQueueAlloc(capacity, msgSize uint32) QueueID
	// MessageQueueFree releases the queue storage. Any bytes still in the
	// queue are discarded without interpretation.
	MessageQueueFree(QueueID)
	// MessageQueuePut copies len(msg) == msgSize bytes into the tail slot,
	// waiting up to timeout for a free slot.
	MessageQueuePut(q QueueID, msg []byte, timeout Ticks) Status
	// MessageQueueGet copies the head slot into out, waiting up to timeout
	// for a message.
	MessageQueueGet(q QueueID, out []byte, timeout Ticks) Status
	// MessageQueueCapacity returns the number of slots.
	MessageQueueCapacity(QueueID) uint32
	// MessageQueueMessageSize returns the slot size in bytes.
	MessageQueueMessageSize(QueueID) uint32
	// MessageQueueCount returns the number of occupied slots.
	MessageQueueCount(QueueID) uint32
	// MessageQueueSpace returns the number of free slots.
	MessageQueueSpace(QueueID) uint32

	TickSource
}

// TickSource exposes the kernel tick rate.
type TickSource interface {
	// TickFrequency returns ticks per second.
	TickFrequency() uint32
}

// AllocError is the panic value raised by MessageQueueAlloc on failure.
type AllocError struct {
	Status   Status
	Capacity uint32
	MsgSize  uint32
}

// Error implements error.
func (e *AllocError) Error() string {
	return "message queue alloc failed: " + e.Status.Error()
}
