package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stickduel/backend/internal/game"
	"github.com/stickduel/backend/internal/room"
	"github.com/stickduel/backend/pkg/protocol"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(context.Background(), zap.NewNop().Sugar())
	t.Cleanup(func() { h.Inbox() <- Shutdown{} })
	return h
}

// connect registers a session and consumes the yourId/roomList greeting.
func connect(t *testing.T, h *Hub, id string) chan protocol.Outbound {
	t.Helper()
	out := make(chan protocol.Outbound, 64)
	h.Inbox() <- Register{ConnID: id, Outbox: out}
	greet := recvOutbound(t, out)
	require.Equal(t, protocol.TypeYourID, greet.Type)
	require.Equal(t, id, greet.Data)
	list := recvOutbound(t, out)
	require.Equal(t, protocol.TypeRoomList, list.Type)
	return out
}

func recvOutbound(t *testing.T, out chan protocol.Outbound) protocol.Outbound {
	t.Helper()
	select {
	case msg, ok := <-out:
		require.True(t, ok, "outbox closed while waiting for a message")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return protocol.Outbound{}
	}
}

// recvType discards messages until one of the wanted type arrives. Broadcasts
// like roomList interleave freely, so most assertions anchor on a type.
func recvType(t *testing.T, out chan protocol.Outbound, msgType string) protocol.Outbound {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-out:
			require.True(t, ok, "outbox closed while waiting for %s", msgType)
			if msg.Type == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func queryRoom(t *testing.T, h *Hub, roomID string) *room.View {
	t.Helper()
	reply := make(chan *room.View, 1)
	h.Inbox() <- RoomQuery{RoomID: roomID, Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room query reply")
		return nil
	}
}

func TestRegisterGreetsWithIdentityAndRoomList(t *testing.T) {
	h := newTestHub(t)
	out := make(chan protocol.Outbound, 64)
	h.Inbox() <- Register{ConnID: "p1", Outbox: out}

	greet := recvOutbound(t, out)
	require.Equal(t, protocol.TypeYourID, greet.Type)
	require.Equal(t, "p1", greet.Data)

	list := recvOutbound(t, out)
	require.Equal(t, protocol.TypeRoomList, list.Type)
	require.Empty(t, list.Data.(protocol.RoomListData).Rooms)
}

func TestJoinCreatesRoomAndBroadcastsList(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")
	bOut := connect(t, h, "b")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "arena"}

	joined := recvType(t, aOut, protocol.TypeRoomJoined)
	require.Equal(t, "arena", joined.Data.(protocol.RoomJoinedData).RoomID)

	list := recvType(t, bOut, protocol.TypeRoomList).Data.(protocol.RoomListData)
	require.Len(t, list.Rooms, 1)
	require.Equal(t, "arena", list.Rooms[0].ID)
	require.Equal(t, 1, list.Rooms[0].PlayerCount)
}

func TestJoinInvalidRoomIDRejected(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "   "}

	errMsg := recvType(t, aOut, protocol.TypeRoomJoinError)
	require.Equal(t, msgInvalidRoomID, errMsg.Data.(protocol.RoomJoinErrorData).Message)
	require.Nil(t, queryRoom(t, h, "   "))
}

func TestThirdJoinRejectedRoomUntouched(t *testing.T) {
	h := newTestHub(t)
	connect(t, h, "a")
	connect(t, h, "b")
	cOut := connect(t, h, "c")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "arena"}
	h.Inbox() <- JoinRoom{ConnID: "b", RoomID: "arena"}
	h.Inbox() <- JoinRoom{ConnID: "c", RoomID: "arena"}

	errMsg := recvType(t, cOut, protocol.TypeRoomJoinError)
	require.Equal(t, msgRoomFull, errMsg.Data.(protocol.RoomJoinErrorData).Message)

	v := queryRoom(t, h, "arena")
	require.NotNil(t, v)
	require.Len(t, v.Players, 2)
	require.Equal(t, game.PhaseWarmup, v.Phase)
}

func TestRejoinSameRoomResyncsWithoutError(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "arena"}
	recvType(t, aOut, protocol.TypeRoomJoined)

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "arena"}
	resync := recvType(t, aOut, protocol.TypeRoomJoined)
	require.Equal(t, "arena", resync.Data.(protocol.RoomJoinedData).RoomID)

	v := queryRoom(t, h, "arena")
	require.Len(t, v.Players, 1)
}

func TestSwitchingRoomsLeavesAndDestroysEmptyRoom(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "one"}
	recvType(t, aOut, protocol.TypeRoomJoined)

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "two"}
	recvType(t, aOut, protocol.TypeRoomJoined)

	require.Nil(t, queryRoom(t, h, "one"))
	v := queryRoom(t, h, "two")
	require.NotNil(t, v)
	require.Len(t, v.Players, 1)
}

func TestDisconnectDuringCountdownCancelsForRemainingPlayer(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")
	connect(t, h, "b")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "arena"}
	h.Inbox() <- JoinRoom{ConnID: "b", RoomID: "arena"}
	h.Inbox() <- SetReady{ConnID: "a", Ready: true}
	h.Inbox() <- SetReady{ConnID: "b", Ready: true}

	phase := recvType(t, aOut, protocol.TypeRoundPhase)
	require.Equal(t, string(game.PhaseCountdown), phase.Data.(protocol.RoundPhaseData).Phase)

	h.Inbox() <- Unregister{ConnID: "b"}

	recvType(t, aOut, protocol.TypeRoundCountdownCancelled)
	phase = recvType(t, aOut, protocol.TypeRoundPhase)
	require.Equal(t, string(game.PhaseWarmup), phase.Data.(protocol.RoundPhaseData).Phase)

	v := queryRoom(t, h, "arena")
	require.NotNil(t, v)
	require.Len(t, v.Players, 1)
	require.Zero(t, v.ReadyCount)
}

func TestUnregisterClosesOutboxAndDestroysEmptyRoom(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "arena"}
	recvType(t, aOut, protocol.TypeRoomJoined)

	h.Inbox() <- Unregister{ConnID: "a"}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-aOut:
			if !ok {
				require.Nil(t, queryRoom(t, h, "arena"))
				return
			}
		case <-deadline:
			t.Fatal("outbox was not closed on unregister")
		}
	}
}

func TestUpdateRelayedToRoomOthersOnly(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")
	bOut := connect(t, h, "b")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "arena"}
	h.Inbox() <- JoinRoom{ConnID: "b", RoomID: "arena"}
	recvType(t, bOut, protocol.TypeRoomJoined)

	x, y := 320.0, 480.0
	h.Inbox() <- UpdateState{ConnID: "a", Update: game.StateUpdate{X: &x, Y: &y}}

	upd := recvType(t, bOut, protocol.TypePlayerUpdate).Data.(protocol.PlayerUpdateData)
	for upd.ID != "a" || upd.X != x {
		upd = recvType(t, bOut, protocol.TypePlayerUpdate).Data.(protocol.PlayerUpdateData)
	}
	require.Equal(t, y, upd.Y)

	// The mover hears nothing about its own update; the next message on its
	// outbox is the reply to a request we make afterwards.
	h.Inbox() <- RequestRoomList{ConnID: "a"}
	next := recvOutbound(t, aOut)
	require.Equal(t, protocol.TypeRoomList, next.Type)
}

func TestLatencyTestEchoesClientTime(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")

	h.Inbox() <- LatencyTest{ConnID: "a", ClientTime: 123456.5}

	pong := recvType(t, aOut, protocol.TypeLatencyPong)
	require.Equal(t, 123456.5, pong.Data.(protocol.LatencyPongData).ClientTime)
}

func TestRoomListQueryAnswersSortedSummaries(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")
	bOut := connect(t, h, "b")

	h.Inbox() <- JoinRoom{ConnID: "a", RoomID: "zeta"}
	recvType(t, aOut, protocol.TypeRoomJoined)
	h.Inbox() <- JoinRoom{ConnID: "b", RoomID: "alpha"}
	recvType(t, bOut, protocol.TypeRoomJoined)

	reply := make(chan []protocol.RoomSummary, 1)
	h.Inbox() <- RoomListQuery{Reply: reply}

	select {
	case rooms := <-reply:
		require.Len(t, rooms, 2)
		require.Equal(t, "alpha", rooms[0].ID)
		require.Equal(t, "zeta", rooms[1].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room list reply")
	}
}

func TestGameMessagesIgnoredOutsideRoom(t *testing.T) {
	h := newTestHub(t)
	aOut := connect(t, h, "a")

	h.Inbox() <- SetReady{ConnID: "a", Ready: true}
	h.Inbox() <- Attack{ConnID: "a"}
	h.Inbox() <- Projectile{ConnID: "a", Direction: game.DirRight}

	h.Inbox() <- RequestRoomList{ConnID: "a"}
	next := recvOutbound(t, aOut)
	require.Equal(t, protocol.TypeRoomList, next.Type)
}
