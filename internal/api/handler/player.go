package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/noughts/internal/api/request"
	"github.com/mcoot/noughts/internal/api/response"
	"github.com/mcoot/noughts/internal/model"
	"github.com/mcoot/noughts/internal/services/identity"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	identities identity.ServiceInterface
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(identities identity.ServiceInterface) *PlayerHandler {
	return &PlayerHandler{
		identities: identities,
	}
}

// CreateGuest handles POST /api/v1/players/guest
func (h *PlayerHandler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	player, err := h.identities.CreateGuest(r.Context(), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.PlayerFromModel(player))
}

// Get handles GET /api/v1/players/{id}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.PlayerID(mux.Vars(r)["id"])

	player, err := h.identities.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(player))
}
