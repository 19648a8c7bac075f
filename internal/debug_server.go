package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"salachat/domain"
)

type RoomsProvider func() []domain.RoomView
type StatsProvider func() map[string]any

// InspectPayload is the JSON shape served on the debug endpoint and
// consumed by the rooms_inspect tool.
type InspectPayload struct {
	At    time.Time         `json:"at"`
	Stats map[string]any    `json:"stats"`
	Rooms []domain.RoomView `json:"rooms"`
}

// StartDebugServer exposes a live snapshot of the room table on
// /inspect. Read-only; it shares nothing but the providers with the
// broker.
func StartDebugServer(port int, endpoint string, rooms RoomsProvider, stats StatsProvider) {
	mux := http.NewServeMux()

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		payload := InspectPayload{At: time.Now().UTC()}
		if stats != nil {
			payload.Stats = stats()
		}
		if rooms != nil {
			payload.Rooms = rooms()
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(payload)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}
