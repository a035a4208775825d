package feed

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *recorder) add(v int) {
	r.mu.Lock()
	r.seen = append(r.seen, v)
	r.mu.Unlock()
}

func (r *recorder) last() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return 0, false
	}
	return r.seen[len(r.seen)-1], true
}

func (r *recorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func TestSubscribeDeliversInitialThenUpdates(t *testing.T) {
	h := NewHub[int]()
	defer h.Close()

	var rec recorder
	unsub := h.Subscribe("room", 1, rec.add)
	defer unsub()

	require.Eventually(t, func() bool {
		v, ok := rec.last()
		return ok && v == 1
	}, time.Second, 5*time.Millisecond)

	h.Publish("room", 2)
	require.Eventually(t, func() bool {
		v, _ := rec.last()
		return v == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPublishIsScopedByKey(t *testing.T) {
	h := NewHub[int]()
	defer h.Close()

	var a, b recorder
	defer h.Subscribe("a", 0, a.add)()
	defer h.Subscribe("b", 0, b.add)()

	h.Publish("a", 7)

	require.Eventually(t, func() bool {
		v, _ := a.last()
		return v == 7
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.NotContains(t, b.snapshot(), 7)
}

func TestSlowSubscriberSeesNewestValue(t *testing.T) {
	h := NewHub[int]()
	defer h.Close()

	release := make(chan struct{})
	var rec recorder
	unsub := h.Subscribe("room", 0, func(v int) {
		if v == 0 {
			<-release
		}
		rec.add(v)
	})
	defer unsub()

	for i := 1; i <= 50; i++ {
		h.Publish("room", i)
	}
	close(release)

	require.Eventually(t, func() bool {
		v, _ := rec.last()
		return v == 50
	}, time.Second, 5*time.Millisecond)

	seen := rec.snapshot()
	assert.LessOrEqual(t, len(seen), 3, "intermediate values are coalesced: %v", seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub[int]()
	defer h.Close()

	var rec recorder
	unsub := h.Subscribe("room", 1, rec.add)
	require.Eventually(t, func() bool { _, ok := rec.last(); return ok }, time.Second, 5*time.Millisecond)

	unsub()
	unsub()
	assert.False(t, h.HasSubscribers("room"))

	h.Publish("room", 2)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{1}, rec.snapshot())
}

func TestSubscribeAfterCloseIsNoop(t *testing.T) {
	h := NewHub[int]()
	h.Close()

	called := make(chan struct{}, 1)
	unsub := h.Subscribe("room", 1, func(int) { called <- struct{}{} })
	unsub()

	select {
	case <-called:
		t.Fatal("callback ran after close")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Empty(t, h.Keys())
}
