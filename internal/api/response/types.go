package response

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcoot/noughts/internal/model"
)

// Player represents a player in API responses. ID is the userId a client
// sends when connecting.
type Player struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		CreatedAt:   p.CreatedAt,
	}
}

// Health is the body of the health endpoint
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// JSON writes data as the response body with the given status
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}
