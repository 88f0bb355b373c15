package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRejectsBeyondCapacity(t *testing.T) {
	registry := NewRegistry(DefaultCapacity)

	for i := 0; i < DefaultCapacity; i++ {
		_, err := registry.Add(newRecordingConn())
		require.NoError(t, err)
	}

	_, err := registry.Add(newRecordingConn())
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, DefaultCapacity, registry.Len())
}

func TestRegistryDefaultsCapacity(t *testing.T) {
	require.Equal(t, DefaultCapacity, NewRegistry(0).Cap())
	require.Equal(t, 3, NewRegistry(3).Cap())
}

func TestRegistryAddStartsUnauthenticated(t *testing.T) {
	registry := NewRegistry(2)
	conn := newRecordingConn()

	id, err := registry.Add(conn)
	require.NoError(t, err)

	client, ok := registry.Get(id)
	require.True(t, ok)
	require.Same(t, conn, client.Conn)
	require.False(t, client.Authenticated)
	require.Empty(t, client.Username)
	require.NotEmpty(t, client.SessionID.String())
	require.Equal(t, "127.0.0.1:4000", client.RemoteAddr)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	registry := NewRegistry(2)
	id, err := registry.Add(newRecordingConn())
	require.NoError(t, err)

	registry.Remove(id)
	registry.Remove(id)

	_, ok := registry.Get(id)
	require.False(t, ok)
	require.Equal(t, 0, registry.Len())
}

func TestRegistryRemoveDoesNotCloseConn(t *testing.T) {
	registry := NewRegistry(1)
	conn := newRecordingConn()
	id, err := registry.Add(conn)
	require.NoError(t, err)

	registry.Remove(id)
	require.False(t, conn.Closed())
}

func TestRegistryStaleIDAfterSlotReuse(t *testing.T) {
	registry := NewRegistry(1)

	old, err := registry.Add(newRecordingConn())
	require.NoError(t, err)
	registry.Remove(old)

	fresh, err := registry.Add(newRecordingConn())
	require.NoError(t, err)
	require.NotEqual(t, old, fresh)

	_, ok := registry.Get(old)
	require.False(t, ok, "stale id must not resolve to the new occupant")

	registry.Remove(old)
	_, ok = registry.Get(fresh)
	require.True(t, ok, "removing a stale id must not touch the new occupant")
	require.Equal(t, 1, registry.Len())
}

func TestRegistryForEachSkipsRecordsRemovedMidIteration(t *testing.T) {
	registry := NewRegistry(3)
	var ids []RecordID
	for i := 0; i < 3; i++ {
		id, err := registry.Add(newRecordingConn())
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var visited []RecordID
	registry.ForEach(nil, func(id RecordID, _ *ClientRecord) {
		visited = append(visited, id)
		if id == ids[0] {
			registry.Remove(ids[1])
		}
	})

	require.Equal(t, []RecordID{ids[0], ids[2]}, visited)
	require.Equal(t, 2, registry.Len())
}

func TestRegistryForEachAppliesPredicate(t *testing.T) {
	registry := NewRegistry(3)
	first, err := registry.Add(newRecordingConn())
	require.NoError(t, err)
	second, err := registry.Add(newRecordingConn())
	require.NoError(t, err)

	client, _ := registry.Get(second)
	client.Authenticated = true

	var visited []RecordID
	registry.ForEach(
		func(_ RecordID, c *ClientRecord) bool { return c.Authenticated },
		func(id RecordID, _ *ClientRecord) { visited = append(visited, id) },
	)

	require.Equal(t, []RecordID{second}, visited)
	require.NotContains(t, visited, first)
}
