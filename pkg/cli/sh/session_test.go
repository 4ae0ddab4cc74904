package sh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtos.go/pkg/env"
	"github.com/robotalks/rtos.go/pkg/kernel"
	"github.com/robotalks/rtos.go/pkg/mq"
)

func newTestSession(t *testing.T) *Session {
	conf := env.NewConfig()
	conf.StorageRoot = t.TempDir()
	conf.QueueCapacity = 2
	conf.SlotSize = 32
	s := NewSession(conf)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionQueues(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.NewQueue("a", 0))
	require.NoError(t, s.NewQueue("b", 3))
	require.Error(t, s.NewQueue("a", 1))

	require.NoError(t, s.Put("a", "hello", mq.NoWait))
	require.NoError(t, s.Put("a", "world", mq.NoWait))
	require.True(t, kernel.IsTimeout(s.Put("a", "full", mq.NoWait)))

	stat, err := s.Stat("a")
	require.NoError(t, err)
	require.Equal(t, QueueStat{Name: "a", Capacity: 2, Len: 2, Space: 0}, stat)

	msg, err := s.Get("a", mq.NoWait)
	require.NoError(t, err)
	require.Equal(t, "hello", string(msg.Payload))
	require.Equal(t, "a", msg.Topic)

	stats := s.List()
	require.Len(t, stats, 2)
	require.Equal(t, "a", stats[0].Name)
	require.Equal(t, "b", stats[1].Name)
	require.Equal(t, 3, stats[1].Capacity)

	dropped, err := s.CloseQueue("a")
	require.NoError(t, err)
	require.Equal(t, 1, dropped)
	_, err = s.Stat("a")
	require.Error(t, err)
	_, err = s.CloseQueue("a")
	require.Error(t, err)

	require.Error(t, s.Put("x", "y", mq.NoWait))
	_, err = s.Get("x", mq.NoWait)
	require.Error(t, err)

	// encodings beyond the slot size are rejected
	err = s.Put("b", string(make([]byte, 64)), mq.NoWait)
	_, ok := err.(*mq.SizeError)
	require.True(t, ok)
}

func TestSessionAllocFailure(t *testing.T) {
	s := newTestSession(t)
	s.Kernel.HeapLimit = 64
	err := s.NewQueue("big", 100)
	require.Error(t, err)
	_, ok := err.(*kernel.AllocError)
	require.True(t, ok)
	require.Empty(t, s.List())
}

func TestSessionFiles(t *testing.T) {
	s := newTestSession(t)
	_, err := s.ReadFile("notes.txt")
	require.Error(t, err)

	require.NoError(t, s.WriteFile("notes.txt", []byte("one"), false))
	require.NoError(t, s.WriteFile("notes.txt", []byte(",two"), true))
	data, err := s.ReadFile("notes.txt")
	require.NoError(t, err)
	require.Equal(t, "one,two", string(data))

	require.NoError(t, s.WriteFile("notes.txt", []byte("three"), false))
	data, err = s.ReadFile("notes.txt")
	require.NoError(t, err)
	require.Equal(t, "three", string(data))
}

func TestParseTimeout(t *testing.T) {
	testCases := []struct {
		in  string
		out time.Duration
		err bool
	}{
		{"", mq.NoWait, false},
		{"0", mq.NoWait, false},
		{"forever", mq.Forever, false},
		{"250", 250 * time.Millisecond, false},
		{"1.5s", 1500 * time.Millisecond, false},
		{"soon", 0, true},
	}
	for _, tc := range testCases {
		d, err := ParseTimeout(tc.in)
		if tc.err {
			require.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.out, d, tc.in)
	}
}
