package reconnect_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/duskcourt/onuw/internal/reconnect"
)

type fakeGames struct {
	mu        sync.Mutex
	takenOver []string
	result    bool
}

func (f *fakeGames) TakeOverWithAI(roomCode, playerID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.takenOver = append(f.takenOver, roomCode+"/"+playerID)
	return f.result
}

func (f *fakeGames) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.takenOver)
}

func TestNotifyReconnectCancelsGraceTimer(t *testing.T) {
	games := &fakeGames{result: true}
	m := reconnect.New(games, 30*time.Millisecond, 10)

	m.NotifyDisconnect("ROOM1", "p1")
	status, ok := m.StatusOf("ROOM1", "p1")
	require.True(t, ok)
	require.Equal(t, reconnect.StatusGrace, status)

	require.True(t, m.NotifyReconnect("ROOM1", "p1"))

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 0, games.count())
	_, ok = m.StatusOf("ROOM1", "p1")
	require.False(t, ok)
}

func TestGraceExpiryTriggersAITakeover(t *testing.T) {
	games := &fakeGames{result: true}
	m := reconnect.New(games, 10*time.Millisecond, 10)

	m.NotifyDisconnect("ROOM1", "p1")

	require.Eventually(t, func() bool {
		status, ok := m.StatusOf("ROOM1", "p1")
		return ok && status == reconnect.StatusAITakenOver
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, games.count())
}

func TestPerRoomGraceCapTriggersImmediateTakeover(t *testing.T) {
	games := &fakeGames{result: true}
	m := reconnect.New(games, time.Hour, 1)

	m.NotifyDisconnect("ROOM1", "p1")
	status, ok := m.StatusOf("ROOM1", "p1")
	require.True(t, ok)
	require.Equal(t, reconnect.StatusGrace, status)

	m.NotifyDisconnect("ROOM1", "p2")
	status, ok = m.StatusOf("ROOM1", "p2")
	require.True(t, ok)
	require.Equal(t, reconnect.StatusAITakenOver, status)
	require.Equal(t, 1, games.count())
}

func TestNotifyReconnectWithNoEntryReturnsFalse(t *testing.T) {
	games := &fakeGames{result: true}
	m := reconnect.New(games, time.Hour, 10)

	require.False(t, m.NotifyReconnect("ROOM1", "ghost"))
}
