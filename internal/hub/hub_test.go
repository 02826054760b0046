package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/red-tetris-backend/internal/leaderboard"
	"github.com/DoyleJ11/red-tetris-backend/internal/match"
	"github.com/DoyleJ11/red-tetris-backend/internal/protocol"
)

const within = 200 * time.Millisecond

// helper: receive one message with a timeout so tests never hang
func recvMsg(t *testing.T, ch <-chan protocol.ServerMessage) protocol.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return msg
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return protocol.ServerMessage{} // unreachable
	}
}

func recvType(t *testing.T, ch <-chan protocol.ServerMessage, typ string) protocol.ServerMessage {
	t.Helper()
	msg := recvMsg(t, ch)
	require.Equal(t, typ, msg.Type, "unexpected message: %+v", msg)
	return msg
}

func recvNone(t *testing.T, ch <-chan protocol.ServerMessage) {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no message, got: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestHub(t *testing.T, grace time.Duration) (*Hub, *leaderboard.MemoryStore) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := leaderboard.NewMemoryStore()
	h := New(ctx, Options{
		Rules:      match.DefaultRules(),
		GraceDelay: grace,
		Store:      store,
	})
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h, store
}

// connect registers a client and consumes the initial room-list.
func connect(t *testing.T, h *Hub, id string) chan protocol.ServerMessage {
	t.Helper()
	out := make(chan protocol.ServerMessage, 16)
	h.Inbox() <- Connect{Conn: match.ConnID(id), Outbox: out}
	recvType(t, out, protocol.TypeRoomList)
	return out
}

func send(h *Hub, id string, in protocol.Intent) {
	h.Inbox() <- FromClient{Conn: match.ConnID(id), Intent: in}
}

func view(t *testing.T, h *Hub, name string) View {
	t.Helper()
	reply := make(chan View, 1)
	h.Inbox() <- GetState{Room: name, Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

// seat joins alice (host) and bob to room alpha and drains the roster updates.
func seat(t *testing.T, h *Hub) (alice, bob chan protocol.ServerMessage) {
	t.Helper()
	alice = connect(t, h, "a")
	bob = connect(t, h, "b")

	send(h, "a", protocol.JoinRoom{Room: "alpha", Player: "alice"})
	recvType(t, alice, protocol.TypeRoomPlayers)

	send(h, "b", protocol.JoinRoom{Room: "alpha", Player: "bob"})
	roster := recvType(t, alice, protocol.TypeRoomPlayers)
	require.Len(t, roster.Players, 2)
	recvType(t, bob, protocol.TypeRoomPlayers)
	return alice, bob
}

func TestHub_ConnectSendsRoomList(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	a := connect(t, h, "a")
	send(h, "a", protocol.JoinRoom{Room: "alpha", Player: "alice", MaxPlayers: 2})
	recvType(t, a, protocol.TypeRoomPlayers)

	out := make(chan protocol.ServerMessage, 4)
	h.Inbox() <- Connect{Conn: "b", Outbox: out}
	list := recvType(t, out, protocol.TypeRoomList)
	assert.Equal(t, []protocol.RoomInfo{{Name: "alpha", Players: 1, Capacity: 2}}, list.Rooms)
}

func TestHub_JoinBroadcastsRoster(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	a := connect(t, h, "a")
	b := connect(t, h, "b")

	send(h, "a", protocol.JoinRoom{Room: "alpha", Player: "alice"})
	first := recvType(t, a, protocol.TypeRoomPlayers)
	assert.Equal(t, []protocol.PlayerInfo{{ID: "a", Username: "alice", IsHost: true}}, first.Players)
	recvNone(t, b)

	send(h, "b", protocol.JoinRoom{Room: "alpha", Player: "bob"})
	want := []protocol.PlayerInfo{
		{ID: "a", Username: "alice", IsHost: true},
		{ID: "b", Username: "bob"},
	}
	assert.Equal(t, want, recvType(t, a, protocol.TypeRoomPlayers).Players)
	assert.Equal(t, want, recvType(t, b, protocol.TypeRoomPlayers).Players)
}

func TestHub_JoinDenied(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	alice, _ := seat(t, h)
	c := connect(t, h, "c")

	send(h, "c", protocol.JoinRoom{Room: "alpha", Player: "bob"})
	denied := recvType(t, c, protocol.TypeJoinDenied)
	assert.Equal(t, "name-taken", denied.Reason)
	recvNone(t, alice)
}

func TestHub_StartGameSameSequenceForAll(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	alice, bob := seat(t, h)

	// non-host start is a silent no-op
	send(h, "b", protocol.StartGame{Room: "alpha"})
	recvNone(t, alice)

	send(h, "a", protocol.StartGame{Room: "alpha"})
	sa := recvType(t, alice, protocol.TypeStartGame)
	sb := recvType(t, bob, protocol.TypeStartGame)
	assert.Len(t, sa.Sequence, match.DefaultSequenceLength)
	assert.Equal(t, sa.Sequence, sb.Sequence)
	require.NotNil(t, sa.Spawn)
	assert.Equal(t, *sa.Spawn, *sb.Spawn)

	assert.Equal(t, match.PhaseRunning, view(t, h, "alpha").State.Phase)
}

func TestHub_LinesClearedSendsGarbageToOthers(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	alice, bob := seat(t, h)
	send(h, "a", protocol.StartGame{})
	recvType(t, alice, protocol.TypeStartGame)
	recvType(t, bob, protocol.TypeStartGame)

	send(h, "a", protocol.LinesCleared{Room: "alpha", Player: "alice", Count: 3})
	g := recvType(t, bob, protocol.TypeGarbage)
	assert.Equal(t, "alice", g.From)
	assert.Equal(t, 2, g.Count)
	recvNone(t, alice)

	send(h, "a", protocol.LinesCleared{Room: "alpha", Player: "alice", Count: 1})
	recvNone(t, bob)
}

func TestHub_SpectrumRelayed(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	alice, bob := seat(t, h)

	send(h, "b", protocol.SpectrumUpdate{Room: "alpha", Player: "bob", Spectrum: []int{1, 2, 3}})
	s := recvType(t, alice, protocol.TypeSpectrum)
	assert.Equal(t, "bob", s.From)
	assert.Equal(t, []int{1, 2, 3}, s.Spectrum)
	recvNone(t, bob)
}

func TestHub_GameOverEndsMatchAndRecordsWin(t *testing.T) {
	h, store := newTestHub(t, time.Second)
	alice, bob := seat(t, h)
	send(h, "a", protocol.StartGame{Room: "alpha"})
	recvType(t, alice, protocol.TypeStartGame)
	recvType(t, bob, protocol.TypeStartGame)

	send(h, "a", protocol.PlayerGameOver{Room: "alpha", Player: "alice"})
	assert.Equal(t, "bob", recvType(t, alice, protocol.TypeGameEnded).Winner)
	assert.Equal(t, "bob", recvType(t, bob, protocol.TypeGameEnded).Winner)

	v := view(t, h, "alpha")
	assert.Equal(t, match.PhaseLobby, v.State.Phase)
	assert.Len(t, v.State.Players, 2)

	require.NoError(t, h.Wait())
	top, err := store.Top(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []leaderboard.Entry{{Name: "bob", Score: 1}}, top)
}

func TestHub_DisconnectReassignsHostAndEndsMatch(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	alice, bob := seat(t, h)
	send(h, "a", protocol.StartGame{Room: "alpha"})
	recvType(t, alice, protocol.TypeStartGame)
	recvType(t, bob, protocol.TypeStartGame)

	h.Inbox() <- Disconnect{Conn: "a"}
	roster := recvType(t, bob, protocol.TypeRoomPlayers)
	assert.Equal(t, []protocol.PlayerInfo{{ID: "b", Username: "bob", IsHost: true}}, roster.Players)
	assert.Equal(t, "bob", recvType(t, bob, protocol.TypeGameEnded).Winner)

	// alice's outbox is closed by the hub
	_, ok := <-alice
	assert.False(t, ok)
}

func TestHub_EmptyRoomDeletedAfterGrace(t *testing.T) {
	h, _ := newTestHub(t, 100*time.Millisecond)
	connect(t, h, "a")
	send(h, "a", protocol.JoinRoom{Room: "alpha", Player: "alice"})
	send(h, "a", protocol.LeaveRoom{Room: "alpha"})

	v := view(t, h, "alpha")
	assert.True(t, v.Exists)
	assert.True(t, v.Pending)

	require.Eventually(t, func() bool { return !view(t, h, "alpha").Exists }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejoinCancelsDeletion(t *testing.T) {
	h, _ := newTestHub(t, 80*time.Millisecond)
	a := connect(t, h, "a")
	send(h, "a", protocol.JoinRoom{Room: "alpha", Player: "alice"})
	recvType(t, a, protocol.TypeRoomPlayers)
	send(h, "a", protocol.LeaveRoom{})
	send(h, "a", protocol.JoinRoom{Room: "alpha", Player: "alice"})
	recvType(t, a, protocol.TypeRoomPlayers)

	time.Sleep(160 * time.Millisecond)
	v := view(t, h, "alpha")
	assert.True(t, v.Exists)
	assert.False(t, v.Pending)
}

func TestHub_LateMessageForUnknownRoomDoesNotLeak(t *testing.T) {
	h, _ := newTestHub(t, 100*time.Millisecond)
	a := connect(t, h, "a")

	send(h, "a", protocol.LinesCleared{Room: "ghost", Player: "alice", Count: 4})
	recvNone(t, a)
	assert.True(t, view(t, h, "ghost").Exists)

	require.Eventually(t, func() bool { return !view(t, h, "ghost").Exists }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_JoinAnotherRoomLeavesFirst(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	alice, bob := seat(t, h)

	send(h, "b", protocol.JoinRoom{Room: "beta", Player: "bob"})
	assert.Equal(t, []protocol.PlayerInfo{{ID: "a", Username: "alice", IsHost: true}},
		recvType(t, alice, protocol.TypeRoomPlayers).Players)
	assert.Equal(t, []protocol.PlayerInfo{{ID: "b", Username: "bob", IsHost: true}},
		recvType(t, bob, protocol.TypeRoomPlayers).Players)
}

func TestHub_DeniedJoinKeepsCurrentSeat(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	alice, bob := seat(t, h)

	send(h, "a", protocol.StartGame{Room: "alpha"})
	recvType(t, alice, protocol.TypeStartGame)
	recvType(t, bob, protocol.TypeStartGame)

	tests := []struct {
		name   string
		join   protocol.JoinRoom
		reason string
	}{
		{"invalid name", protocol.JoinRoom{Room: "beta", Player: ""}, "invalid-name"},
		{"name taken", protocol.JoinRoom{Room: "gamma", Player: "carol"}, "name-taken"},
	}

	carol := connect(t, h, "c")
	send(h, "c", protocol.JoinRoom{Room: "gamma", Player: "carol"})
	recvType(t, carol, protocol.TypeRoomPlayers)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			send(h, "b", tc.join)
			assert.Equal(t, tc.reason, recvType(t, bob, protocol.TypeJoinDenied).Reason)
			recvNone(t, alice)

			v := view(t, h, "alpha")
			assert.Len(t, v.State.Players, 2)
			assert.Equal(t, match.PhaseRunning, v.State.Phase)
			assert.True(t, v.State.Alive["b"])
		})
	}

	// the room created only for the refused join does not linger
	assert.True(t, view(t, h, "beta").Pending)
	assert.Len(t, view(t, h, "gamma").State.Players, 1)
}

func TestHub_SlowClientDropped(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	fast := connect(t, h, "a")

	slow := make(chan protocol.ServerMessage, 1)
	h.Inbox() <- Connect{Conn: "b", Outbox: slow} // room-list fills the buffer

	send(h, "a", protocol.JoinRoom{Room: "alpha", Player: "alice"})
	recvType(t, fast, protocol.TypeRoomPlayers)
	send(h, "b", protocol.JoinRoom{Room: "alpha", Player: "bob"})
	recvType(t, fast, protocol.TypeRoomPlayers)

	// bob could not take the roster update, so he is gone again
	roster := recvType(t, fast, protocol.TypeRoomPlayers)
	assert.Len(t, roster.Players, 1)

	recvType(t, slow, protocol.TypeRoomList)
	_, ok := <-slow
	assert.False(t, ok, "slow outbox should be closed")
}

func TestHub_RequestLeaderboard(t *testing.T) {
	h, store := newTestHub(t, time.Second)
	require.NoError(t, store.RecordWin(context.Background(), "alice"))
	a := connect(t, h, "a")

	send(h, "a", protocol.RequestLeaderboard{})
	msg := recvType(t, a, protocol.TypeLeaderboardData)
	assert.Equal(t, []protocol.Entry{{Name: "alice", Score: 1}}, msg.Entries)
}

func TestHub_RequestRooms(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	seat(t, h)
	c := connect(t, h, "c")

	send(h, "c", protocol.RequestRooms{})
	msg := recvType(t, c, protocol.TypeRoomList)
	assert.Equal(t, []protocol.RoomInfo{{Name: "alpha", Players: 2, Capacity: 4}}, msg.Rooms)

	rooms, err := h.Rooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "alpha", rooms[0].Name)
}

func TestHub_ShutdownClosesOutboxes(t *testing.T) {
	h, _ := newTestHub(t, time.Second)
	a := connect(t, h, "a")

	h.Inbox() <- Shutdown{}
	<-h.Done()
	_, ok := <-a
	assert.False(t, ok)
}
