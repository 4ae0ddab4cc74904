package mq

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// Codec transfers ownership of M values in and out of fixed-size slots.
type Codec[M any] interface {
	// Size returns the slot size in bytes.
	Size() int
	// Encode moves msg into dst, len(dst) == Size().
	Encode(dst []byte, msg M) error
	// Decode moves the value out of src and returns an independently owned
	// M. The same bytes must never be decoded twice.
	Decode(src []byte) (M, error)
	// Abort reverts a successful Encode whose bytes never reached the queue,
	// leaving ownership with the sender.
	Abort(src []byte)
}

var (
	// ErrInvalidHandle indicates slot bytes refer to no pending value.
	ErrInvalidHandle = errors.New("invalid message handle")
	// ErrCorruptSlot indicates slot bytes can't be decoded.
	ErrCorruptSlot = errors.New("corrupt message slot")
)

// LayoutError indicates a type is not safe to copy as raw bytes.
type LayoutError struct {
	Type reflect.Type
}

// Error implements error.
func (e *LayoutError) Error() string {
	return fmt.Sprintf("type %v contains references and can't be copied as raw bytes", e.Type)
}

// RawCodec copies values byte for byte. It only accepts plain data types:
// booleans, numbers and arrays or structs of them.
type RawCodec[M any] struct {
	typeSize int
}

// NewRawCodec creates a RawCodec, failing if M holds any reference.
func NewRawCodec[M any]() (*RawCodec[M], error) {
	typ := reflect.TypeOf((*M)(nil)).Elem()
	if !IsPlainData(typ) {
		return nil, &LayoutError{Type: typ}
	}
	return &RawCodec[M]{typeSize: int(typ.Size())}, nil
}

// Size implements Codec. Zero-sized types occupy a 1-byte slot.
func (c *RawCodec[M]) Size() int {
	if c.typeSize == 0 {
		return 1
	}
	return c.typeSize
}

// Encode implements Codec.
func (c *RawCodec[M]) Encode(dst []byte, msg M) error {
	if len(dst) != c.Size() {
		return ErrCorruptSlot
	}
	if c.typeSize > 0 {
		copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&msg)), c.typeSize))
	}
	return nil
}

// Decode implements Codec.
func (c *RawCodec[M]) Decode(src []byte) (msg M, err error) {
	if len(src) != c.Size() {
		return msg, ErrCorruptSlot
	}
	if c.typeSize > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&msg)), c.typeSize), src)
	}
	return msg, nil
}

// Abort implements Codec.
func (c *RawCodec[M]) Abort([]byte) {}

// IsPlainData reports whether values of typ can be relocated by copying
// their bytes, i.e. they hold no pointer the garbage collector tracks.
func IsPlainData(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return IsPlainData(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			if !IsPlainData(typ.Field(i).Type) {
				return false
			}
		}
		return true
	}
	return false
}

// HandleCodec keeps values in a table and puts a 4-byte handle into the
// slot. It serves any M, including values holding references.
type HandleCodec[M any] struct {
	lock   sync.Mutex
	values map[uint32]M
	last   uint32
}

// NewHandleCodec creates a HandleCodec.
func NewHandleCodec[M any]() *HandleCodec[M] {
	return &HandleCodec[M]{values: make(map[uint32]M)}
}

// Size implements Codec.
func (c *HandleCodec[M]) Size() int {
	return 4
}

// Encode implements Codec.
func (c *HandleCodec[M]) Encode(dst []byte, msg M) error {
	if len(dst) != c.Size() {
		return ErrCorruptSlot
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for {
		c.last++
		if _, exists := c.values[c.last]; c.last != 0 && !exists {
			break
		}
	}
	c.values[c.last] = msg
	binary.LittleEndian.PutUint32(dst, c.last)
	return nil
}

// Decode implements Codec.
func (c *HandleCodec[M]) Decode(src []byte) (msg M, err error) {
	if len(src) != c.Size() {
		return msg, ErrCorruptSlot
	}
	h := binary.LittleEndian.Uint32(src)
	c.lock.Lock()
	defer c.lock.Unlock()
	msg, ok := c.values[h]
	if !ok {
		return msg, ErrInvalidHandle
	}
	delete(c.values, h)
	return msg, nil
}

// Abort implements Codec.
func (c *HandleCodec[M]) Abort(src []byte) {
	if len(src) != c.Size() {
		return
	}
	c.lock.Lock()
	delete(c.values, binary.LittleEndian.Uint32(src))
	c.lock.Unlock()
}

// Pending returns the number of values held for queued handles.
func (c *HandleCodec[M]) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.values)
}

// DefaultCodec picks RawCodec for plain data types and HandleCodec
// otherwise.
func DefaultCodec[M any]() Codec[M] {
	if c, err := NewRawCodec[M](); err == nil {
		return c
	}
	return NewHandleCodec[M]()
}
