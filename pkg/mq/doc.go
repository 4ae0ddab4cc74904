// Package mq provides a typed, bounded, blocking message queue on top of
// the kernel message queue primitive.
package mq

// The kernel stores type-erased, fixed-size slots. MessageQueue binds one
// element type to a queue for its whole lifetime through a Codec, which
// transfers ownership of a value into slot bytes on Put and back out on Get.
//
// Close drains every message still queued through the release logic of the
// element type before the kernel storage is freed, so values owning
// resources are never leaked with the queue.
