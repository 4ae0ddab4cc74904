package kernel

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurationToTicks(t *testing.T) {
	testCases := []struct {
		name   string
		d      time.Duration
		freq   uint32
		expect Ticks
	}{
		{"forever", Forever, 1000, WaitForever},
		{"zero", 0, 1000, NoWait},
		{"negative", -time.Second, 1000, NoWait},
		{"one ms", time.Millisecond, 1000, 1},
		{"round up", 1500 * time.Microsecond, 1000, 2},
		{"sub tick", time.Nanosecond, 1000, 1},
		{"seconds", 3 * time.Second, 1000, 3000},
		{"low freq", 10 * time.Millisecond, 100, 1},
		{"default freq", 5 * time.Millisecond, 0, 5},
		{"saturate", time.Duration(1) << 62, 1000, WaitForever - 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, DurationToTicks(tc.d, tc.freq))
		})
	}
}

func TestTicksDuration(t *testing.T) {
	require.Equal(t, Forever, WaitForever.Duration(1000))
	require.Equal(t, time.Duration(0), NoWait.Duration(1000))
	require.Equal(t, 250*time.Millisecond, Ticks(250).Duration(1000))
	require.Equal(t, 20*time.Millisecond, Ticks(2).Duration(100))
}

func TestStatus(t *testing.T) {
	require.NoError(t, StatusOK.Err())
	require.True(t, StatusOK.IsOK())
	require.Equal(t, error(StatusErrorTimeout), StatusErrorTimeout.Err())

	var err error = StatusErrorTimeout
	require.True(t, IsTimeout(err))
	require.True(t, errors.Is(err, StatusErrorTimeout))
	require.False(t, IsTimeout(StatusErrorParameter))
	require.False(t, IsTimeout(errors.New("timeout")))
	require.True(t, IsResourceExhausted(StatusErrorResource))
	require.True(t, IsResourceExhausted(StatusErrorNoMemory))
	require.False(t, IsResourceExhausted(StatusError))
	require.Equal(t, "kernel status -42", Status(-42).Error())
}
