package hub

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/paperflow/internal/errs"
)

func drain(ch <-chan int) []int {
	var out []int
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestHub_BroadcastToAllSubscribers(t *testing.T) {
	h := New[int]()
	defer h.Shutdown()

	a, err := h.Subscribe("a")
	require.NoError(t, err)
	b, err := h.Subscribe("b")
	require.NoError(t, err)

	h.Publish(1)
	h.Publish(2)

	assert.Equal(t, []int{1, 2}, drain(a))
	assert.Equal(t, []int{1, 2}, drain(b))
}

func TestHub_DropOldestKeepsMostRecent(t *testing.T) {
	const capacity = 100
	h := New[int](WithCapacity(capacity))
	defer h.Shutdown()

	ch, err := h.Subscribe("slow")
	require.NoError(t, err)

	// 250 publishes into an unread buffer of 100: the survivors must be
	// exactly the most recent 100, in publish order.
	for i := 0; i < 250; i++ {
		h.Publish(i)
	}

	got := drain(ch)
	require.Len(t, got, capacity)
	for i, v := range got {
		assert.Equal(t, 150+i, v)
	}
}

func TestHub_SlowSubscriberDoesNotStarveOthers(t *testing.T) {
	h := New[int](WithCapacity(2))
	defer h.Shutdown()

	slow, err := h.Subscribe("slow")
	require.NoError(t, err)
	fast, err := h.Subscribe("fast")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		h.Publish(i)
		// The fast reader keeps up.
		assert.Equal(t, i, <-fast)
	}

	assert.Equal(t, []int{3, 4}, drain(slow))
}

func TestHub_SubscribeAfterShutdown(t *testing.T) {
	h := New[int]()
	h.Shutdown()

	_, err := h.Subscribe("late")
	assert.ErrorIs(t, err, errs.ErrHubClosed)
}

func TestHub_PublishAfterShutdownIsNoop(t *testing.T) {
	h := New[int]()
	ch, err := h.Subscribe("a")
	require.NoError(t, err)

	h.Shutdown()
	h.Publish(1)

	_, ok := <-ch
	assert.False(t, ok, "subscriber channel must be closed after shutdown")
}

func TestHub_ShutdownIdempotent(t *testing.T) {
	h := New[int]()
	_, err := h.Subscribe("a")
	require.NoError(t, err)

	h.Shutdown()
	h.Shutdown()
	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_UnsubscribeClosesAndForgets(t *testing.T) {
	h := New[int]()
	defer h.Shutdown()

	ch, err := h.Subscribe("a")
	require.NoError(t, err)

	h.Unsubscribe("a")
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.ClientCount())

	// Unknown ids are ignored.
	h.Unsubscribe("a")
	h.Unsubscribe("never-existed")
}

func TestHub_ResubscribeReplacesPrevious(t *testing.T) {
	h := New[int]()
	defer h.Shutdown()

	first, err := h.Subscribe("a")
	require.NoError(t, err)
	second, err := h.Subscribe("a")
	require.NoError(t, err)

	_, ok := <-first
	assert.False(t, ok, "replaced registration must observe end-of-stream")

	h.Publish(42)
	assert.Equal(t, []int{42}, drain(second))
	assert.Equal(t, 1, h.ClientCount())
}

func TestHub_ConcurrentPublishAndSubscribe(t *testing.T) {
	h := New[int](WithCapacity(8))
	defer h.Shutdown()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Publish(i)
			}
		}()
	}
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("sub-%d-%d", s, i)
				_, err := h.Subscribe(id)
				assert.NoError(t, err)
				h.Unsubscribe(id)
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 0, h.ClientCount())
}

func TestHub_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New[int](WithName("test_stream"), WithCapacity(1), WithRegisterer(reg))
	defer h.Shutdown()

	_, err := h.Subscribe("a")
	require.NoError(t, err)

	h.Publish(1)
	h.Publish(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.subscribers))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.published))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.dropped))
}
