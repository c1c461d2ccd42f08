// Package server exposes the HTTP surface: the WhatsApp webhook, health,
// and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"propline/pkg/logx"
	"propline/pkg/orchestrator"
)

// routeTimeout bounds one webhook turn end to end, including every worker
// hop and backend round-trip.
const routeTimeout = 90 * time.Second

// Router processes one inbound message and returns the reply.
type Router interface {
	Route(ctx context.Context, incoming orchestrator.InboundMessage) *orchestrator.Response
}

// New returns the HTTP handler.
func New(router Router) http.Handler {
	s := &server{
		router: router,
		logger: logx.NewLogger("http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook/whatsapp", s.handleWebhook)
	return r
}

type server struct {
	router Router
	logger *logx.Logger
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook accepts the transport's form-encoded message payload,
// routes it, and answers with the reply JSON. The webhook always answers
// 200 once the sender field parses; conversational failures surface as the
// routed message, not as HTTP errors, so the transport does not retry.
func (s *server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed form payload"})
		return
	}

	incoming := orchestrator.InboundMessage{
		From:     r.PostFormValue("from"),
		Type:     r.PostFormValue("type"),
		Content:  r.PostFormValue("content"),
		MediaURL: r.PostFormValue("media_url"),
	}
	if incoming.From == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from is required"})
		return
	}
	if incoming.Type == "" {
		incoming.Type = "text"
	}

	ctx, cancel := context.WithTimeout(r.Context(), routeTimeout)
	defer cancel()

	resp := s.router.Route(ctx, incoming)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
