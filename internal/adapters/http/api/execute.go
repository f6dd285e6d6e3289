package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/scorekeeper/internal/app"
	"github.com/okian/scorekeeper/internal/domain/model"
)

// ExecuteDependencies defines the interface for mutations.
type ExecuteDependencies interface {
	Execute(ctx context.Context, caller service.Caller, msg model.ExecuteMsg) (model.Response, error)
}

// ExecuteHandler handles execute requests.
type ExecuteHandler struct {
	deps ExecuteDependencies
}

// NewExecuteHandler creates a new execute handler.
func NewExecuteHandler(deps ExecuteDependencies) *ExecuteHandler {
	return &ExecuteHandler{deps: deps}
}

// HandleExecute handles POST /execute requests. The sender comes from the
// X-Sender header; X-Tx-ID, when present, makes the request idempotent.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	const op = "api.execute"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	caller := callerFrom(r)
	if caller.Sender == "" {
		writeServiceError(w, NewKind(op, ErrMissingSender))
		return
	}
	var msg model.ExecuteMsg
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Execute(r.Context(), caller, msg)
	switch {
	case errors.Is(err, service.ErrDuplicateTx):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
	case err != nil:
		writeServiceError(w, err)
	default:
		writeJSON(w, http.StatusOK, ackResponse{Status: "ok", Attributes: res.Attributes})
	}
}
