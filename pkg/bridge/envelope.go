package bridge

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/rtos.go/pkg/mq"
)

// Envelope is the message carried by bridged queues.
type Envelope struct {
	Seq     uint32 `protobuf:"varint,1,opt,name=seq,proto3" json:"seq,omitempty"`
	Topic   string `protobuf:"bytes,2,opt,name=topic,proto3" json:"topic,omitempty"`
	Payload []byte `protobuf:"bytes,3,opt,name=payload,proto3" json:"payload,omitempty"`
}

// NewEnvelope creates an empty Envelope.
func NewEnvelope() *Envelope { return &Envelope{} }

// ProtoMessage implements proto.Message.
func (m *Envelope) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Envelope) Reset() { *m = Envelope{} }

// String implements proto.Message.
func (m *Envelope) String() string { return proto.CompactTextString(m) }

// Encode serializes the envelope into a packet.
func (m *Envelope) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeEnvelope parses a packet.
func DecodeEnvelope(pkt []byte) (*Envelope, error) {
	m := NewEnvelope()
	if err := proto.Unmarshal(pkt, m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewEnvelopeCodec creates the slot codec for envelope queues, accepting
// encodings up to maxSize bytes.
func NewEnvelopeCodec(maxSize int) *mq.ProtoCodec[*Envelope] {
	return mq.NewProtoCodec(maxSize, NewEnvelope)
}

// Queue is a message queue of envelopes.
type Queue = mq.MessageQueue[*Envelope]
