package command

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueAndDispatchFIFO(t *testing.T) {
	q := NewQueue()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		require.True(t, q.Enqueue(New(id, 0, 0, nil)))
	}

	for _, want := range ids {
		cmd := q.TryDispatch()
		require.NotNil(t, cmd)
		assert.Equal(t, want, cmd.ID)
		q.Release(cmd.ID)
	}

	assert.Nil(t, q.TryDispatch())
}

func TestQueueFIFOOrderRandomPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		q := NewQueue()

		n := 2 + rng.Intn(20)
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("cmd-%d-%d", round, rng.Int())
			require.True(t, q.Enqueue(New(ids[i], 0, 0, nil)))
		}

		var dispatched []string
		for {
			cmd := q.TryDispatch()
			if cmd == nil {
				break
			}
			dispatched = append(dispatched, cmd.ID)
			q.Release(cmd.ID)
		}

		assert.Equal(t, ids, dispatched)
	}
}

func TestQueueDuplicateEnqueueIgnored(t *testing.T) {
	q := NewQueue()

	require.True(t, q.Enqueue(New("a", 0, 0, nil)))
	assert.False(t, q.Enqueue(New("a", 0, 0, nil)))
	assert.Equal(t, 1, q.Len())

	// The active command cannot be re-registered either.
	cmd := q.TryDispatch()
	require.Equal(t, "a", cmd.ID)
	assert.False(t, q.Enqueue(New("a", 0, 0, nil)))
	assert.Equal(t, 0, q.Len())
}

func TestQueueUnregister(t *testing.T) {
	q := NewQueue()
	q.Enqueue(New("a", 0, 0, nil))
	q.Enqueue(New("b", 0, 0, nil))
	q.Enqueue(New("c", 0, 0, nil))

	assert.True(t, q.Unregister("b"))
	assert.False(t, q.Unregister("b"))
	assert.False(t, q.Unregister("missing"))
	assert.Equal(t, []string{"a", "c"}, q.Pending())
}

func TestQueueUnregisterActiveRejected(t *testing.T) {
	q := NewQueue()
	q.Enqueue(New("a", 0, 0, nil))

	cmd := q.TryDispatch()
	require.Equal(t, "a", cmd.ID)

	// Removal of the active command is a rejected no-op.
	assert.False(t, q.Unregister("a"))
	assert.Equal(t, "a", q.Active())

	q.Release("a")
	assert.Empty(t, q.Active())
}

func TestQueueSingleActiveInvariant(t *testing.T) {
	q := NewQueue()
	q.Enqueue(New("a", 0, 0, nil))
	q.Enqueue(New("b", 0, 0, nil))

	first := q.TryDispatch()
	require.NotNil(t, first)

	// Nothing else dispatches while a command is active.
	assert.Nil(t, q.TryDispatch())

	q.Release(first.ID)
	second := q.TryDispatch()
	require.NotNil(t, second)
	assert.Equal(t, "b", second.ID)
}

func TestQueueActiveNeverInPending(t *testing.T) {
	q := NewQueue()
	q.Enqueue(New("a", 0, 0, nil))
	q.Enqueue(New("b", 0, 0, nil))

	cmd := q.TryDispatch()
	require.NotNil(t, cmd)
	assert.NotContains(t, q.Pending(), cmd.ID)
}

func TestQueueConcurrentEnqueueDispatch(t *testing.T) {
	q := NewQueue()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				q.Enqueue(New(fmt.Sprintf("w%d-%d", w, i), 0, 0, nil))
			}
		}(w)
	}

	// Dispatchers race with the enqueuers; at most one dispatch wins at a
	// time because each one releases before the next attempt.
	dispatched := make(chan string, workers*perWorker)
	var dwg sync.WaitGroup
	for d := 0; d < 4; d++ {
		dwg.Add(1)
		go func() {
			defer dwg.Done()
			for {
				cmd := q.TryDispatch()
				if cmd == nil {
					if q.Len() == 0 {
						return
					}
					continue
				}
				dispatched <- cmd.ID
				q.Release(cmd.ID)
			}
		}()
	}

	wg.Wait()
	// Drain what is left after all enqueuers finished.
	for {
		cmd := q.TryDispatch()
		if cmd == nil {
			break
		}
		dispatched <- cmd.ID
		q.Release(cmd.ID)
	}
	dwg.Wait()
	close(dispatched)

	seen := make(map[string]bool)
	for id := range dispatched {
		assert.False(t, seen[id], "command %s dispatched twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}
