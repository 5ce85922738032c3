package hub

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/stickduel/backend/internal/game"
	"github.com/stickduel/backend/internal/room"
	"github.com/stickduel/backend/pkg/protocol"
)

const (
	msgInvalidRoomID = "invalid room id"
	msgRoomFull      = "room full"
)

type Msg interface{ isHubMsg() }

// Register adds a session. The hub replies on the outbox with the assigned
// identity and the current room list.
type Register struct {
	ConnID string
	Outbox chan protocol.Outbound
}

// Unregister runs leave semantics for a dropped connection: the player is
// removed synchronously, dependent timers are invalidated, and affected
// state is re-broadcast. There is no grace period.
type Unregister struct{ ConnID string }

type RequestRoomList struct{ ConnID string }

type JoinRoom struct {
	ConnID string
	RoomID string
}

type SetReady struct {
	ConnID string
	Ready  bool
}

type UpdateState struct {
	ConnID string
	Update game.StateUpdate
}

type Attack struct {
	ConnID string
	X, Y   *float64
}

type Projectile struct {
	ConnID    string
	Direction game.Direction
}

// LatencyTest round-trips a client timestamp. Stateless: the hub is involved
// only so that every write to a session outbox stays on the loop.
type LatencyTest struct {
	ConnID     string
	ClientTime float64
}

// RoomListQuery answers the REST mirror of the room list.
type RoomListQuery struct {
	Reply chan []protocol.RoomSummary
}

// RoomQuery reflects a room's internal state without data races; test and
// diagnostics use only.
type RoomQuery struct {
	RoomID string
	Reply  chan *room.View
}

// runTask re-enters the loop for a scheduled room callback, keeping delayed
// effects serialized with ordinary message handling.
type runTask struct{ fn func() }

type Shutdown struct{}

func (Register) isHubMsg()        {}
func (Unregister) isHubMsg()      {}
func (RequestRoomList) isHubMsg() {}
func (JoinRoom) isHubMsg()        {}
func (SetReady) isHubMsg()        {}
func (UpdateState) isHubMsg()     {}
func (Attack) isHubMsg()          {}
func (Projectile) isHubMsg()      {}
func (LatencyTest) isHubMsg()     {}
func (RoomListQuery) isHubMsg()   {}
func (RoomQuery) isHubMsg()       {}
func (runTask) isHubMsg()         {}
func (Shutdown) isHubMsg()        {}

// Hub is the room registry and the single goroutine that owns all room
// state. Every mutation funnels through its inbox, including the countdown
// and projectile timers, so no two operations ever race on a room.
type Hub struct {
	inbox      chan Msg
	sessions   map[string]chan protocol.Outbound
	rooms      map[string]*room.Room
	membership map[string]string // connID -> roomID
	ctx        context.Context
	cancel     context.CancelFunc
	log        *zap.SugaredLogger
}

func NewHub(parent context.Context, log *zap.SugaredLogger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:      make(chan Msg, 64),
		sessions:   make(map[string]chan protocol.Outbound),
		rooms:      make(map[string]*room.Room),
		membership: make(map[string]string),
		ctx:        ctx,
		cancel:     cancel,
		log:        log,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				h.sessions[msg.ConnID] = msg.Outbox
				h.send(msg.ConnID, protocol.Outbound{Type: protocol.TypeYourID, Data: msg.ConnID})
				h.send(msg.ConnID, protocol.Outbound{Type: protocol.TypeRoomList, Data: h.roomList()})
				h.log.Infow("session registered", "conn", msg.ConnID)

			case Unregister:
				h.leaveCurrentRoom(msg.ConnID)
				if out, ok := h.sessions[msg.ConnID]; ok {
					delete(h.sessions, msg.ConnID)
					close(out)
				}
				h.log.Infow("session unregistered", "conn", msg.ConnID)

			case RequestRoomList:
				h.send(msg.ConnID, protocol.Outbound{Type: protocol.TypeRoomList, Data: h.roomList()})

			case JoinRoom:
				h.join(msg.ConnID, msg.RoomID)

			case SetReady:
				if r := h.memberRoom(msg.ConnID); r != nil {
					r.SetReady(msg.ConnID, msg.Ready)
					h.broadcastRoomList()
				}

			case UpdateState:
				if r := h.memberRoom(msg.ConnID); r != nil {
					r.Update(msg.ConnID, msg.Update)
				}

			case Attack:
				if r := h.memberRoom(msg.ConnID); r != nil {
					r.Attack(msg.ConnID, msg.X, msg.Y)
				}

			case Projectile:
				if r := h.memberRoom(msg.ConnID); r != nil {
					r.FireProjectile(msg.ConnID, msg.Direction)
				}

			case LatencyTest:
				h.send(msg.ConnID, protocol.Outbound{Type: protocol.TypeLatencyPong, Data: protocol.LatencyPongData{ClientTime: msg.ClientTime}})

			case RoomListQuery:
				msg.Reply <- h.roomList().Rooms

			case RoomQuery:
				if r, ok := h.rooms[msg.RoomID]; ok {
					v := r.View()
					msg.Reply <- &v
				} else {
					msg.Reply <- nil
				}

			case runTask:
				msg.fn()

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for id, out := range h.sessions {
		close(out)
		delete(h.sessions, id)
	}
	clear(h.rooms)
	clear(h.membership)
	h.cancel()
}

// join sanitizes the requested id and moves the connection into the room,
// leaving its current room first if it is in a different one. Joining the
// room it is already in re-emits state and is not an error.
func (h *Hub) join(connID, rawRoomID string) {
	roomID, ok := game.SanitizeRoomID(rawRoomID)
	if !ok {
		h.send(connID, protocol.Outbound{Type: protocol.TypeRoomJoinError, Data: protocol.RoomJoinErrorData{Message: msgInvalidRoomID}})
		return
	}

	if h.membership[connID] == roomID {
		h.rooms[roomID].Join(connID) // idempotent rejoin: resync only
		return
	}

	h.leaveCurrentRoom(connID)

	r, existed := h.rooms[roomID]
	if !existed {
		r = room.New(roomID, h, h.schedule, h.log)
		h.rooms[roomID] = r
		h.log.Infow("room created", "room", roomID)
	}

	if err := r.Join(connID); err != nil {
		if !existed && r.Empty() {
			delete(h.rooms, roomID)
		}
		h.send(connID, protocol.Outbound{Type: protocol.TypeRoomJoinError, Data: protocol.RoomJoinErrorData{Message: msgRoomFull}})
		return
	}

	h.membership[connID] = roomID
	h.broadcastRoomList()
}

// leaveCurrentRoom removes the connection from whichever room it is in,
// destroying the room if it empties, and pushes the fresh room list to
// everyone.
func (h *Hub) leaveCurrentRoom(connID string) {
	roomID, ok := h.membership[connID]
	if !ok {
		return
	}
	delete(h.membership, connID)

	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	r.Leave(connID)
	if r.Empty() {
		delete(h.rooms, roomID)
		h.log.Infow("room destroyed", "room", roomID)
	}
	h.broadcastRoomList()
}

func (h *Hub) memberRoom(connID string) *room.Room {
	roomID, ok := h.membership[connID]
	if !ok {
		return nil
	}
	return h.rooms[roomID]
}

func (h *Hub) roomList() protocol.RoomListData {
	rooms := make([]protocol.RoomSummary, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r.Summary())
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return protocol.RoomListData{Rooms: rooms}
}

func (h *Hub) broadcastRoomList() {
	h.Publish(room.ScopeGlobal, nil, "", protocol.Outbound{Type: protocol.TypeRoomList, Data: h.roomList()})
}

// Publish implements room.Publisher on top of the session table.
func (h *Hub) Publish(scope room.Scope, r *room.Room, connID string, msg protocol.Outbound) {
	switch scope {
	case room.ScopeSelf:
		h.send(connID, msg)
	case room.ScopeRoomOthers:
		for _, id := range r.MemberIDs() {
			if id != connID {
				h.send(id, msg)
			}
		}
	case room.ScopeRoomAll:
		for _, id := range r.MemberIDs() {
			h.send(id, msg)
		}
	case room.ScopeGlobal:
		for id := range h.sessions {
			h.send(id, msg)
		}
	}
}

// send is non-blocking: a full outbox drops the message rather than stalling
// the loop. The websocket layer sizes outboxes so this only happens to
// clients that stopped reading.
func (h *Hub) send(connID string, msg protocol.Outbound) {
	out, ok := h.sessions[connID]
	if !ok {
		return
	}
	select {
	case out <- msg:
	default:
		h.log.Warnw("outbox full, dropping message", "conn", connID, "type", msg.Type)
	}
}

// schedule runs fn on the hub loop after d. Cancellation stops the timer if
// it has not fired; fires that slip through are dropped by the generation
// checks inside the room callbacks.
func (h *Hub) schedule(d time.Duration, fn func()) room.CancelFunc {
	t := time.AfterFunc(d, func() {
		select {
		case h.inbox <- runTask{fn: fn}:
		case <-h.ctx.Done():
		}
	})
	return func() { t.Stop() }
}
