package api

import (
	"context"
	"net/http"

	service "github.com/okian/scorekeeper/internal/app"
	"github.com/okian/scorekeeper/internal/domain/model"
)

// InstantiateDependencies defines the interface for contract creation.
type InstantiateDependencies interface {
	Instantiate(ctx context.Context, caller service.Caller, msg model.InstantiateMsg) (model.Response, error)
}

// InstantiateHandler handles instantiate requests.
type InstantiateHandler struct {
	deps InstantiateDependencies
}

// NewInstantiateHandler creates a new instantiate handler.
func NewInstantiateHandler(deps InstantiateDependencies) *InstantiateHandler {
	return &InstantiateHandler{deps: deps}
}

// HandleInstantiate handles POST /instantiate requests.
func (h *InstantiateHandler) HandleInstantiate(w http.ResponseWriter, r *http.Request) {
	const op = "api.instantiate"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var msg model.InstantiateMsg
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Instantiate(r.Context(), callerFrom(r), msg)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "instantiated", Attributes: res.Attributes})
}
