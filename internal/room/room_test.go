package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/duskcourt/onuw/internal/roles"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingOutbox struct {
	mu   sync.Mutex
	sent []string
}

func (o *recordingOutbox) Unicast(roomPlayerID, envelopeType string, payload interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, envelopeType)
}

func (o *recordingOutbox) Broadcast(envelopeType string, payload interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, envelopeType)
}

type recordingNotifier struct{}

func (recordingNotifier) NotifyDisconnect(string, string) {}

// allVillagerConfig builds a room config where no seat has a night
// action, so a running game drives straight from NIGHT into DAY without
// any provider ever blocking on Ask, keeping the concurrency exercise
// below fast and deterministic.
func allVillagerConfig() Config {
	return Config{
		MinPlayers:     3,
		MaxPlayers:     3,
		Roles:          []roles.Role{roles.Villager, roles.Villager, roles.Villager, roles.Villager, roles.Villager, roles.Villager},
		TimeoutProfile: "tournament",
	}
}

// TestRoomAccessorsAreSafeDuringRunningGame drives a full game to
// completion while hammering the room's dispatch-backed accessors from
// other goroutines, verifying that runGame's goroutine (talking to the
// engine directly) and the actor-serialized accessor calls never race:
// the engine itself guards phase/vote state with its own mutex, per
// Game's documented concurrency contract, so neither side needs to wait
// on the other.
func TestRoomAccessorsAreSafeDuringRunningGame(t *testing.T) {
	r := New("ROOM1", allVillagerConfig(), &recordingOutbox{}, recordingNotifier{})
	defer r.Close()

	require.NoError(t, r.AddPlayer("p1", "Alice", true))
	require.NoError(t, r.AddPlayer("p2", "Bob", true))
	require.NoError(t, r.AddPlayer("p3", "Carol", true))

	// No human ever joined this room, so there is no host; bypass that
	// for this concurrency exercise by naming an AI seat as requester.
	r.hostID = "p1"

	require.NoError(t, r.Start("p1"))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				r.PublicSummary()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = r.GameForView()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = r.SeatForView("p1")
				r.MembersForView()
				time.Sleep(time.Millisecond)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = r.SubmitStatement("p2", "nothing unusual", time.Now())
				_ = r.ReadyToVote("p3")
				time.Sleep(time.Millisecond)
			}
		}
	}()

	require.Eventually(t, func() bool {
		return r.Status() == StatusEnded
	}, 5*time.Second, 10*time.Millisecond)

	close(stop)
	wg.Wait()
}

func TestSubmitStatementRejectedOutsideDayPhase(t *testing.T) {
	r := New("ROOM2", allVillagerConfig(), &recordingOutbox{}, recordingNotifier{})
	defer r.Close()

	err := r.SubmitStatement("p1", "hello", time.Now())
	require.Error(t, err)
}
