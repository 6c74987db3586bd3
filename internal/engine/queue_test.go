package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brix/internal/ir"
)

func keyedEvent(key string) Event {
	return Event{Source: ir.Artifact{Key: ir.ArtifactKey(key)}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for _, k := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(keyedEvent(k)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		ev, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, ir.ArtifactKey(want), ev.Source.Key)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_Signal(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(keyedEvent("a"))
	q.Enqueue(keyedEvent("b"))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(keyedEvent("a"))
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(keyedEvent("b")))
	_, open := <-q.Wait()
	assert.False(t, open)

	ev, ok := q.TryDequeue()
	require.True(t, ok, "queued events survive close")
	assert.Equal(t, ir.ArtifactKey("a"), ev.Source.Key)
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	const producers = 20
	const perProducer = 50

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				q.Enqueue(keyedEvent("x"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
