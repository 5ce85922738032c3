package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/stickduel/backend/internal/hub"
	"github.com/stickduel/backend/pkg/protocol"
)

// ListRooms is the REST mirror of the websocket room list: the same lazily
// computed summaries, pulled through a reply channel so the hub loop stays
// the only reader of room state.
func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []protocol.RoomSummary, 1)
		h.Inbox() <- hub.RoomListQuery{Reply: reply}
		rooms := <-reply

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(protocol.RoomListData{Rooms: rooms})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
