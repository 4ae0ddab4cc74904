// Package stream carries packets over byte streams such as serial links,
// pipes and TCP connections.
package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// DefaultMaxPacketSize is the default limit of a received packet.
const DefaultMaxPacketSize = 1 << 20

// ReadWriter implements bridge.PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
	MaxPacketSize uint32

	writeLock sync.Mutex
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s, MaxPacketSize: DefaultMaxPacketSize}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if p.MaxPacketSize > 0 && size > p.MaxPacketSize {
		return nil, fmt.Errorf("packet size %d exceeds limit %d", size, p.MaxPacketSize)
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p.ReadWriter, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	_, err := p.Write(buf)
	return err
}

// Close closes the underlying stream if it is an io.Closer.
func (p *ReadWriter) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
