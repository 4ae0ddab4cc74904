package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtos.go/pkg/kernel"
)

func TestAllocFree(t *testing.T) {
	k := New()
	id := k.MessageQueueAlloc(4, 8)
	require.NotZero(t, id)
	require.Equal(t, uint32(4), k.MessageQueueCapacity(id))
	require.Equal(t, uint32(8), k.MessageQueueMessageSize(id))
	require.Equal(t, uint32(0), k.MessageQueueCount(id))
	require.Equal(t, uint32(4), k.MessageQueueSpace(id))
	require.Equal(t, 32, k.HeapUsed())
	require.Equal(t, 1, k.QueueCount())

	id2 := k.MessageQueueAlloc(1, 1)
	require.NotEqual(t, id, id2)

	k.MessageQueueFree(id)
	require.Equal(t, 1, k.HeapUsed())
	require.Equal(t, uint32(0), k.MessageQueueCapacity(id))
	require.Equal(t, kernel.StatusErrorParameter, k.MessageQueuePut(id, make([]byte, 8), kernel.NoWait))
	k.MessageQueueFree(id2)
	require.Zero(t, k.QueueCount())
	require.Zero(t, k.HeapUsed())
}

func TestAllocFailure(t *testing.T) {
	testCases := []struct {
		name     string
		capacity uint32
		size     uint32
		limit    int
		status   kernel.Status
	}{
		{"zero capacity", 0, 4, 0, kernel.StatusErrorParameter},
		{"zero size", 4, 0, 0, kernel.StatusErrorParameter},
		{"heap limit", 16, 16, 100, kernel.StatusErrorNoMemory},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			k := New()
			k.HeapLimit = tc.limit
			defer func() {
				r := recover()
				require.NotNil(t, r)
				allocErr, ok := r.(*kernel.AllocError)
				require.True(t, ok)
				require.Equal(t, tc.status, allocErr.Status)
				require.Zero(t, k.QueueCount())
			}()
			k.MessageQueueAlloc(tc.capacity, tc.size)
		})
	}
}

func TestPutGet(t *testing.T) {
	k := New()
	id := k.MessageQueueAlloc(2, 2)
	defer k.MessageQueueFree(id)

	require.Equal(t, kernel.StatusOK, k.MessageQueuePut(id, []byte{1, 2}, kernel.NoWait))
	require.Equal(t, kernel.StatusOK, k.MessageQueuePut(id, []byte{3, 4}, kernel.NoWait))
	require.Equal(t, kernel.StatusErrorTimeout, k.MessageQueuePut(id, []byte{5, 6}, kernel.NoWait))
	require.Equal(t, uint32(2), k.MessageQueueCount(id))
	require.Equal(t, uint32(0), k.MessageQueueSpace(id))

	out := make([]byte, 2)
	require.Equal(t, kernel.StatusOK, k.MessageQueueGet(id, out, kernel.NoWait))
	require.Equal(t, []byte{1, 2}, out)
	require.Equal(t, kernel.StatusOK, k.MessageQueuePut(id, []byte{5, 6}, kernel.NoWait))
	require.Equal(t, kernel.StatusOK, k.MessageQueueGet(id, out, kernel.NoWait))
	require.Equal(t, []byte{3, 4}, out)
	require.Equal(t, kernel.StatusOK, k.MessageQueueGet(id, out, kernel.NoWait))
	require.Equal(t, []byte{5, 6}, out)
	require.Equal(t, kernel.StatusErrorTimeout, k.MessageQueueGet(id, out, kernel.NoWait))

	require.Equal(t, kernel.StatusErrorParameter, k.MessageQueuePut(id, []byte{1}, kernel.NoWait))
	require.Equal(t, kernel.StatusErrorParameter, k.MessageQueueGet(id, make([]byte, 3), kernel.NoWait))
}

func TestGetTimeout(t *testing.T) {
	k := New()
	id := k.MessageQueueAlloc(1, 1)
	defer k.MessageQueueFree(id)

	start := time.Now()
	status := k.MessageQueueGet(id, make([]byte, 1), kernel.DurationToTicks(20*time.Millisecond, k.TickFrequency()))
	require.Equal(t, kernel.StatusErrorTimeout, status)
	require.True(t, time.Since(start) >= 20*time.Millisecond)
}

func TestBlockingGetWakesOnPut(t *testing.T) {
	k := New()
	id := k.MessageQueueAlloc(1, 1)
	defer k.MessageQueueFree(id)

	resultCh := make(chan []byte, 1)
	go func() {
		out := make([]byte, 1)
		if k.MessageQueueGet(id, out, kernel.WaitForever) == kernel.StatusOK {
			resultCh <- out
		}
		close(resultCh)
	}()
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, kernel.StatusOK, k.MessageQueuePut(id, []byte{7}, kernel.NoWait))
	select {
	case out := <-resultCh:
		require.Equal(t, []byte{7}, out)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("blocked get not woken")
	}
}

func TestFreeWakesWaiters(t *testing.T) {
	k := New()
	id := k.MessageQueueAlloc(1, 1)

	statusCh := make(chan kernel.Status, 1)
	go func() {
		statusCh <- k.MessageQueueGet(id, make([]byte, 1), kernel.WaitForever)
	}()
	time.Sleep(10 * time.Millisecond)
	k.MessageQueueFree(id)
	select {
	case status := <-statusCh:
		// StatusErrorParameter if the waiter arrived after the handle was gone.
		require.Contains(t, []kernel.Status{kernel.StatusErrorResource, kernel.StatusErrorParameter}, status)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("waiter not woken by free")
	}
}
