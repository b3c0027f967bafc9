package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/snaphub/internal/store"
)

func TestPublishFansOut(t *testing.T) {
	h := New()
	a, b := NewChanSubscriber(4), NewChanSubscriber(4)
	h.Register(a)
	h.Register(b)
	require.Equal(t, 2, h.Subscribers())

	h.ImageSaved(store.Record{ID: "abc", Path: "/tmp/abc.png", CreatedAt: 42})

	want := Event{ID: "abc", Path: "/tmp/abc.png", CreatedAt: 42}
	assert.Equal(t, want, <-a.C())
	assert.Equal(t, want, <-b.C())
	assert.Equal(t, uint64(1), h.Published())

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, want, latest)
}

func TestRegisterDoesNotReplay(t *testing.T) {
	h := New()
	h.Publish(Event{ID: "old"})

	s := NewChanSubscriber(1)
	h.Register(s)
	assert.Empty(t, s.C())
}

func TestUnregister(t *testing.T) {
	h := New()
	s := NewChanSubscriber(1)
	h.Register(s)
	h.Unregister(s)
	h.Publish(Event{ID: "x"})

	assert.Zero(t, h.Subscribers())
	assert.Empty(t, s.C())
}

func TestFullSubscriberDrops(t *testing.T) {
	h := New()
	slow := NewChanSubscriber(1)
	fast := NewChanSubscriber(8)
	h.Register(slow)
	h.Register(fast)

	for _, id := range []string{"1", "2", "3"} {
		h.Publish(Event{ID: id})
	}

	assert.Equal(t, uint64(2), slow.Dropped())
	assert.Equal(t, "1", (<-slow.C()).ID)
	assert.Len(t, fast.C(), 3)
	assert.Zero(t, fast.Dropped())
}

func TestLatestEmpty(t *testing.T) {
	_, ok := New().Latest()
	assert.False(t, ok)
}

func TestSubscriberIDs(t *testing.T) {
	a, b := NewChanSubscriber(0), NewChanSubscriber(0)
	assert.NotEqual(t, a.ID(), b.ID())
	_, err := uuid.Parse(a.ID())
	assert.NoError(t, err)
}
