package stream

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := New(&buf)
	require.NoError(t, rw.WritePacket([]byte("abc")))
	require.NoError(t, rw.WritePacket(nil))
	require.Equal(t, []byte{3, 0, 0, 0, 'a', 'b', 'c', 0, 0, 0, 0}, buf.Bytes())

	pkt, err := rw.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), pkt)
	pkt, err = rw.ReadPacket()
	require.NoError(t, err)
	require.Empty(t, pkt)
	_, err = rw.ReadPacket()
	require.Equal(t, io.EOF, err)
	require.NoError(t, rw.Close())
}

func TestReadWriterLimits(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xff, 0xff, 0, 0})
	rw := New(buf)
	rw.MaxPacketSize = 16
	_, err := rw.ReadPacket()
	require.Error(t, err)

	rw = New(bytes.NewBuffer([]byte{4, 0, 0, 0, 'a'}))
	_, err = rw.ReadPacket()
	require.Equal(t, io.ErrUnexpectedEOF, err)
}
