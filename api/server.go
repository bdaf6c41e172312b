// Package api exposes the counter engine to a kiosk front-end over HTTP and
// a websocket state stream.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xtsservices/BasavatarakamCanteen2/models"
	"github.com/Xtsservices/BasavatarakamCanteen2/services"
)

// Engine is what the handlers drive. *services.Engine implements it.
type Engine interface {
	Dispatch(ctx context.Context, ev services.Event) (services.Snapshot, error)
	Snapshot() services.Snapshot
	Subscribe() *services.Subscription
}

// tabletWidth is the narrowest viewport that gets the four-column grid.
const tabletWidth = 763

// ColumnsForWidth picks the grid column count for a viewport width in CSS
// pixels.
func ColumnsForWidth(width int) int {
	if width >= tabletWidth {
		return 4
	}
	return 2
}

type Server struct {
	engine Engine
	logger *zap.SugaredLogger
}

func NewServer(engine Engine, logger *zap.SugaredLogger) *Server {
	return &Server{engine: engine, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthHandler)
	r.Get("/ws", s.wsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.stateHandler)
		r.Post("/sync", s.syncHandler)
		r.Post("/category", s.categoryHandler)
		r.Post("/search", s.searchHandler)
		r.Post("/items/{item_id}/increase", s.increaseHandler)
		r.Post("/items/{item_id}/decrease", s.decreaseHandler)
		r.Post("/cart/open", s.simple(services.CartOpened{}))
		r.Post("/cart/close", s.simple(services.CartDismissed{}))
		r.Post("/print", s.simple(services.PrintRequested{}))
		r.Post("/payment", s.paymentHandler)
		r.Post("/payment/cancel", s.simple(services.PaymentCancelled{}))
		r.Post("/failure/ack", s.ackHandler)
	})
	return r
}

// StateResponse is the snapshot together with the grid for the caller's
// viewport.
type StateResponse struct {
	services.Snapshot
	Columns    int                 `json:"columns"`
	View       services.View       `json:"view"`
	Advisories []services.Advisory `json:"advisories,omitempty"`
}

func newStateResponse(snap services.Snapshot, columns int, advisories []services.Advisory) StateResponse {
	return StateResponse{Snapshot: snap, Columns: columns, View: snap.View(columns), Advisories: advisories}
}

func columnsFromRequest(r *http.Request) int {
	q := r.URL.Query()
	if c, err := strconv.Atoi(q.Get("columns")); err == nil && c > 0 {
		return c
	}
	if w, err := strconv.Atoi(q.Get("width")); err == nil {
		return ColumnsForWidth(w)
	}
	return ColumnsForWidth(0)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	resp := map[string]any{
		"status":    "ok",
		"connected": snap.Connected,
		"loading":   snap.Loading,
		"phase":     snap.Phase,
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.internalServerError(w, r, err)
	}
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	resp := newStateResponse(s.engine.Snapshot(), columnsFromRequest(r), nil)
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.internalServerError(w, r, err)
	}
}

// dispatch applies ev and writes the new state. A failing advisory is still a
// valid answer: the state is returned with the advisory and a 4xx/5xx code.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, ev services.Event) {
	snap, err := s.engine.Dispatch(r.Context(), ev)
	if err != nil {
		var adv services.Advisory
		if !errors.As(err, &adv) {
			if errors.Is(err, services.ErrEngineStopped) {
				s.errorJSON(w, r, http.StatusServiceUnavailable, errorEnvelope{Error: err.Error(), Code: "engine_stopped"})
				return
			}
			s.internalServerError(w, r, err)
			return
		}
		resp := newStateResponse(snap, columnsFromRequest(r), []services.Advisory{adv})
		if err := writeJSON(w, statusFor(adv), resp); err != nil {
			s.internalServerError(w, r, err)
		}
		return
	}
	if err := writeJSON(w, http.StatusOK, newStateResponse(snap, columnsFromRequest(r), nil)); err != nil {
		s.internalServerError(w, r, err)
	}
}

func statusFor(adv services.Advisory) int {
	switch {
	case errors.Is(adv, services.ErrConnectivityUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(adv, services.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(adv, services.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func (s *Server) simple(ev services.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, ev)
	}
}

func (s *Server) syncHandler(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, services.SyncRequested{})
}

type categoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) categoryHandler(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	s.dispatch(w, r, services.CategorySelected{Category: req.Category})
}

type searchRequest struct {
	Text string `json:"text"`
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	s.dispatch(w, r, services.SearchChanged{Text: req.Text})
}

var errInvalidItemID = errors.New("invalid item id")

func itemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil {
		return 0, errInvalidItemID
	}
	return id, nil
}

func (s *Server) increaseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	s.dispatch(w, r, services.ItemIncreased{ID: id})
}

func (s *Server) decreaseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	s.dispatch(w, r, services.ItemDecreased{ID: id})
}

type paymentRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) paymentHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := readJSON(w, r, &req); err != nil {
		s.badRequestResponse(w, r, err)
		return
	}
	mode, ok := models.ParsePaymentMode(req.Mode)
	if !ok {
		s.badRequestResponse(w, r, errors.Errorf("unknown payment mode %q", req.Mode))
		return
	}
	s.dispatch(w, r, services.PaymentChosen{Mode: mode})
}

type ackRequest struct {
	Retry bool `json:"retry"`
}

func (s *Server) ackHandler(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			s.badRequestResponse(w, r, err)
			return
		}
	}
	s.dispatch(w, r, services.FailureAcknowledged{Retry: req.Retry})
}
