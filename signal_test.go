package voicegate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalQueueOverflowDropsNewest(t *testing.T) {
	q := NewSignalQueue(3)
	require.True(t, q.Post(SignalCancel))
	require.True(t, q.Post(SignalStart))
	require.True(t, q.Post(SignalStop))

	begin := time.Now()
	assert.False(t, q.Post(SignalStart), "post to a full queue must report a drop")
	assert.Less(t, time.Since(begin), 50*time.Millisecond)
	assert.Equal(t, 3, q.Len())

	for _, want := range []ControlSignal{SignalCancel, SignalStart, SignalStop} {
		got, ok := q.TryReceive()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := q.TryReceive()
	assert.False(t, ok)
}

func TestSignalQueueCapacity(t *testing.T) {
	assert.Equal(t, DefaultQueueCapacity, NewSignalQueue(0).Cap())
	assert.Equal(t, DefaultQueueCapacity, NewSignalQueue(-2).Cap())
	assert.Equal(t, 8, NewSignalQueue(8).Cap())
}

func TestSignalQueueReceive(t *testing.T) {
	q := NewSignalQueue(3)

	got := make(chan ControlSignal, 1)
	go func() {
		sig, err := q.Receive(context.Background())
		if err == nil {
			got <- sig
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.True(t, q.Post(SignalStart))
	select {
	case sig := <-got:
		assert.Equal(t, SignalStart, sig)
	case <-time.After(testTimeout):
		t.Fatal("Receive did not return")
	}
}

func TestSignalQueueReceiveHonorsShutdown(t *testing.T) {
	q := NewSignalQueue(3)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignalQueueConcurrentProducers(t *testing.T) {
	q := NewSignalQueue(3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Post(SignalStart) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, accepted)
	assert.Equal(t, 3, q.Len())
}
