package session

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/fzlink/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(id string) *Session {
	return newSession(device.NewPeripheralWithID(id, "fzone"), nil, Profile{}, logrus.New(), hooks{})
}

func TestRegistry_RegisterOnce(t *testing.T) {
	r := NewRegistry()

	first := newTestSession("AA:01")
	got, added := r.Register(first)
	require.True(t, added)
	assert.Same(t, first, got)

	dup := newTestSession("AA:01")
	got, added = r.Register(dup)
	assert.False(t, added, "duplicates MUST be dropped")
	assert.Same(t, first, got, "duplicates MUST NOT overwrite")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_OrderAndRemoval(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"AA:03", "AA:01", "AA:02"} {
		r.Register(newTestSession(id))
	}

	assert.Equal(t, []string{"AA:03", "AA:01", "AA:02"}, r.IDs(), "ids MUST keep registration order")

	released, _ := r.Get("AA:01")
	assert.True(t, r.release(released))
	assert.False(t, r.release(released), "a released session MUST NOT be released twice")
	assert.Equal(t, []string{"AA:03", "AA:02"}, r.IDs())

	_, ok := r.Get("AA:01")
	assert.False(t, ok)
}

func TestRegistry_ReleaseOnlyCurrent(t *testing.T) {
	r := NewRegistry()
	old := newTestSession("AA:01")
	r.Register(old)
	r.release(old)

	current := newTestSession("AA:01")
	r.Register(current)

	assert.False(t, r.release(old), "a stale session MUST NOT evict its successor")
	assert.True(t, r.release(current))
	assert.Zero(t, r.Len())
}

func TestRegistry_Range(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"AA:01", "AA:02", "AA:03"} {
		r.Register(newTestSession(id))
	}

	var visited []string
	r.Range(func(s *Session) bool {
		visited = append(visited, s.ID())
		r.release(s)
		return len(visited) < 2
	})

	assert.Equal(t, []string{"AA:01", "AA:02"}, visited)
	assert.Equal(t, []string{"AA:03"}, r.IDs())
}
