package mqtt

import (
	"io"
	"sync"
)

// ReadWriter implements bridge.PacketReadWriter over a pair of topics.
// Packets are received once Subscribe is called.
type ReadWriter struct {
	PubSub   *PubSub
	SubTopic string
	PubTopic string

	packetCh  chan []byte
	doneCh    chan struct{}
	sub       *Subscription
	closeOnce sync.Once
}

// NewPacketReadWriter creates the ReadWriter.
func NewPacketReadWriter(ps *PubSub) *ReadWriter {
	return &ReadWriter{
		PubSub:   ps,
		packetCh: make(chan []byte, 16),
		doneCh:   make(chan struct{}),
	}
}

// WithTopics specifies the topics.
func (p *ReadWriter) WithTopics(sub, pub string) *ReadWriter {
	p.SubTopic, p.PubTopic = sub, pub
	return p
}

// ForDevice sets topics using default convention for the device side
// of queue name:
// SubTopic = name/down
// PubTopic = name/up
func (p *ReadWriter) ForDevice(name string) *ReadWriter {
	return p.WithTopics(name+"/down", name+"/up")
}

// ForHost sets topics using default convention for the host side
// of queue name:
// SubTopic = name/up
// PubTopic = name/down
func (p *ReadWriter) ForHost(name string) *ReadWriter {
	return p.WithTopics(name+"/up", name+"/down")
}

// Subscribe starts receiving packets on SubTopic.
func (p *ReadWriter) Subscribe() *ReadWriter {
	p.sub = p.PubSub.Sub(p.SubTopic, Handler(p.handleMsg))
	return p
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packetCh:
		return pkt, nil
	case <-p.doneCh:
		return nil, io.EOF
	}
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	token := p.PubSub.Pub(p.PubTopic, pkt)
	token.Wait()
	return token.Error()
}

// Close unsubscribes and unblocks ReadPacket.
func (p *ReadWriter) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.doneCh)
		if p.sub != nil {
			err = p.sub.Close()
		}
	})
	return
}

func (p *ReadWriter) handleMsg(_ string, payload []byte) {
	select {
	case p.packetCh <- payload:
	case <-p.doneCh:
	}
}
