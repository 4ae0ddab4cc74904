// Package kernel defines the real-time kernel primitives consumed by the
// safe wrappers in this module.
package kernel

// The kernel owns queue storage and schedules tasks. Everything exposed here
// is type-erased: queues carry fixed-size byte slots and every blocking call
// takes a timeout in kernel ticks.
//
// Producer: kernel implementation (firmware or pkg/kernel/sim)
// Consumer: pkg/mq
