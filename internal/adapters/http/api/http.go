// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/scorekeeper/internal/app"
	"github.com/okian/scorekeeper/internal/domain/address"
	"github.com/okian/scorekeeper/internal/domain/model"
	"github.com/okian/scorekeeper/internal/domain/ownership"
	"github.com/okian/scorekeeper/internal/domain/scores"
)

// Request headers understood by the API.
const (
	HeaderSender    = "X-Sender"
	HeaderTxID      = "X-Tx-ID"
	HeaderRequestID = "X-Request-ID"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	InstantiateDependencies
	ExecuteDependencies
	QueryDependencies
	StatsProvider
}

// Server wires HTTP routes for the contract API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	instantiateHandler *InstantiateHandler
	executeHandler     *ExecuteHandler
	queryHandler       *QueryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		instantiateHandler: NewInstantiateHandler(deps),
		executeHandler:     NewExecuteHandler(deps),
		queryHandler:       NewQueryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, RequestIDMiddleware(MetricsMiddleware(h, endpoint)))
	}
	route("/healthz", "healthz", s.healthHandler.HandleHealth)
	route("/stats", "stats", s.statsHandler.HandleStats)
	route("/instantiate", "instantiate", s.instantiateHandler.HandleInstantiate)
	route("/execute", "execute", s.executeHandler.HandleExecute)
	route("/query", "query", s.queryHandler.HandleQuery)
	route("/owner", "owner", s.queryHandler.HandleGetOwner)
	route("/scores/", "scores", s.queryHandler.HandleGetScores)
}

type ackResponse struct {
	Status     string            `json:"status"`
	Duplicate  bool              `json:"duplicate"`
	Attributes []model.Attribute `json:"attributes,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates an entry point error into a status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, address.ErrInvalidAddress):
		return http.StatusBadRequest, "invalid_address"
	case errors.Is(err, scores.ErrInvalidToken):
		return http.StatusBadRequest, "invalid_token"
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ownership.ErrUnauthorized), errors.Is(err, ErrMissingSender):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, scores.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, scores.ErrInvalidKey):
		return http.StatusNotFound, "invalid_key"
	case errors.Is(err, service.ErrUninitialized):
		return http.StatusConflict, "uninitialized"
	case errors.Is(err, service.ErrAlreadyInitialized):
		return http.StatusConflict, "already_initialized"
	case errors.Is(err, service.ErrBusy):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a single JSON document into v, refusing unknown fields so
// an unrecognized message tag is a bad request rather than a silent no-op.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func callerFrom(r *http.Request) service.Caller {
	return service.Caller{
		Sender: r.Header.Get(HeaderSender),
		TxID:   r.Header.Get(HeaderTxID),
	}
}
