package ws

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/stickduel/backend/internal/game"
	"github.com/stickduel/backend/internal/hub"
	"github.com/stickduel/backend/pkg/protocol"
)

const (
	writeTimeout = 3 * time.Second
	// Generous: an idle lobby client only sends the periodic latency probe.
	readTimeout = 2 * time.Minute
	outboxSize  = 64
)

// Handler upgrades the connection, registers a session with the hub, and
// shuttles messages both ways. The writer goroutine drains the session
// outbox; the reader decodes envelopes into typed hub messages. Connection
// drop runs leave semantics via the deferred Unregister.
func Handler(h *hub.Hub, log *zap.SugaredLogger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Warnw("websocket accept failed", "err", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := randID(8)
		out := make(chan protocol.Outbound, outboxSize)

		h.Inbox() <- hub.Register{ConnID: connID, Outbox: out}
		defer func() { h.Inbox() <- hub.Unregister{ConnID: connID} }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Warnw("marshal failed", "conn", connID, "type", msg.Type, "err", err)
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Anything else still means the connection is gone; Unregister
				// in the defer handles the leave.
				return
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				log.Debugw("bad frame ignored", "conn", connID, "err", err)
				continue
			}

			msg, ok := toHubMsg(connID, env)
			if !ok {
				log.Debugw("unknown message ignored", "conn", connID, "type", env.Type)
				continue
			}
			h.Inbox() <- msg
		}
	}
}

// toHubMsg decodes an envelope into the hub message it drives. Unknown types
// and unusable payloads report false and are dropped; update/attack payloads
// decode leniently and never fail.
func toHubMsg(connID string, env protocol.Envelope) (hub.Msg, bool) {
	switch env.Type {
	case protocol.TypeRequestRoomList:
		return hub.RequestRoomList{ConnID: connID}, true

	case protocol.TypeJoinRoom:
		var d protocol.JoinRoomData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, false
		}
		return hub.JoinRoom{ConnID: connID, RoomID: d.RoomID}, true

	case protocol.TypeSetReadyState:
		var d protocol.SetReadyStateData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, false
		}
		return hub.SetReady{ConnID: connID, Ready: d.Ready}, true

	case protocol.TypeUpdate:
		var d protocol.UpdateData
		_ = json.Unmarshal(env.Data, &d) // lenient decoder, cannot fail
		return hub.UpdateState{ConnID: connID, Update: game.StateUpdate(d)}, true

	case protocol.TypeAttack:
		var d protocol.AttackData
		_ = json.Unmarshal(env.Data, &d)
		return hub.Attack{ConnID: connID, X: d.X, Y: d.Y}, true

	case protocol.TypeProjectile:
		var d protocol.ProjectileData
		if len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, &d)
		}
		return hub.Projectile{ConnID: connID, Direction: game.ParseDirection(d.NormalizedDirection())}, true

	case protocol.TypeLatencyTest:
		var d protocol.LatencyTestData
		if err := json.Unmarshal(env.Data, &d); err != nil || d.ClientTime == nil {
			return nil, false
		}
		return hub.LatencyTest{ConnID: connID, ClientTime: *d.ClientTime}, true

	default:
		return nil, false
	}
}

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randID(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = idCharset[rand.Intn(len(idCharset))]
	}
	return string(b)
}
