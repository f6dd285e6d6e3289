package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/scorekeeper/internal/domain/model"
)

// QueryDependencies defines the interface for reads.
type QueryDependencies interface {
	Query(ctx context.Context, msg model.QueryMsg) (any, error)
	Owner(ctx context.Context) (model.OwnerResponse, error)
	Score(ctx context.Context, address, token string) (model.ScoreResponse, error)
	Scores(ctx context.Context, address string) (model.ScoresResponse, error)
}

// QueryHandler handles read requests.
type QueryHandler struct {
	deps QueryDependencies
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(deps QueryDependencies) *QueryHandler {
	return &QueryHandler{deps: deps}
}

// HandleQuery handles POST /query requests carrying a tagged query message.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "api.query"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var msg model.QueryMsg
	if err := decodeJSON(w, r, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Query(r.Context(), msg)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetOwner handles GET /owner requests.
func (h *QueryHandler) HandleGetOwner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	res, err := h.deps.Owner(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetScores handles GET /scores/{address}. With a token query
// parameter (possibly empty, for the unnamed entry) it returns that one
// score; without it, every token score of the address.
func (h *QueryHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scores"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	addr := strings.TrimPrefix(r.URL.Path, "/scores/")
	if addr == "" || strings.Contains(addr, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	query := r.URL.Query()
	if query.Has("token") {
		res, err := h.deps.Score(r.Context(), addr, query.Get("token"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	res, err := h.deps.Scores(r.Context(), addr)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
