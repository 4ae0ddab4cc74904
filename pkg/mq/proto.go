package mq

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/protobuf/proto"
)

// MaxProtoSize is the largest encoded message a ProtoCodec slot can hold.
const MaxProtoSize = 0xffff

// SizeError indicates an encoded message doesn't fit in a slot.
type SizeError struct {
	Size int
	Max  int
}

// Error implements error.
func (e *SizeError) Error() string {
	return fmt.Sprintf("message size %d exceeds slot limit %d", e.Size, e.Max)
}

// ProtoCodec serializes protobuf messages into slots prefixed with a
// 2-byte little-endian length.
type ProtoCodec[M proto.Message] struct {
	maxSize int
	newMsg  func() M
}

// NewProtoCodec creates a ProtoCodec accepting encodings up to maxSize
// bytes. newMsg creates the empty message Decode fills.
func NewProtoCodec[M proto.Message](maxSize int, newMsg func() M) *ProtoCodec[M] {
	if maxSize <= 0 || maxSize > MaxProtoSize {
		maxSize = MaxProtoSize
	}
	return &ProtoCodec[M]{maxSize: maxSize, newMsg: newMsg}
}

// Size implements Codec.
func (c *ProtoCodec[M]) Size() int {
	return c.maxSize + 2
}

// Encode implements Codec.
func (c *ProtoCodec[M]) Encode(dst []byte, msg M) error {
	if len(dst) != c.Size() {
		return ErrCorruptSlot
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	if len(data) > c.maxSize {
		return &SizeError{Size: len(data), Max: c.maxSize}
	}
	binary.LittleEndian.PutUint16(dst, uint16(len(data)))
	copy(dst[2:], data)
	return nil
}

// Decode implements Codec.
func (c *ProtoCodec[M]) Decode(src []byte) (msg M, err error) {
	if len(src) != c.Size() {
		return msg, ErrCorruptSlot
	}
	n := int(binary.LittleEndian.Uint16(src))
	if n > c.maxSize {
		return msg, ErrCorruptSlot
	}
	msg = c.newMsg()
	if err = proto.Unmarshal(src[2:2+n], msg); err != nil {
		var zero M
		return zero, err
	}
	return msg, nil
}

// Abort implements Codec.
func (c *ProtoCodec[M]) Abort([]byte) {}
