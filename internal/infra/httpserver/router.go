package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/asentrix510/codelens/internal/application/analysis"
	"github.com/asentrix510/codelens/internal/application/events"
	domain "github.com/asentrix510/codelens/internal/domain/analysis"
	"github.com/asentrix510/codelens/internal/middleware"
)

type Router struct {
	repo  domain.Repository // may be nil when history is disabled
	hub   *events.Hub
	queue *appanalysis.Queue
	log   *slog.Logger
}

// NewRouter builds the HTTP surface consumed by the overlay front end.
func NewRouter(repo domain.Repository, hub *events.Hub, queue *appanalysis.Queue, checks map[string]middleware.HealthChecker, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{repo: repo, hub: hub, queue: queue, log: log}
	mux := chi.NewRouter()

	mux.Use(middleware.Logging(log))
	// The overlay page is served from a different origin than this API.
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	mux.Get("/health", middleware.HealthHandler(checks))
	mux.Get("/livez", middleware.LivenessHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/analyses/latest", r.wrap(r.handleLatest))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Get("/events", r.handleEvents)
		rt.Post("/cancel", r.wrap(r.handleCancel))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, domain.ErrQuotaExceeded) {
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

var errHistoryDisabled = fmt.Errorf("analysis history is disabled")

// GET /v1/analyses/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	if r.repo == nil {
		http.Error(w, errHistoryDisabled.Error(), http.StatusServiceUnavailable)
		return nil
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.repo.Latest(req.Context(), limit)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/analyses?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	if r.repo == nil {
		http.Error(w, errHistoryDisabled.Error(), http.StatusServiceUnavailable)
		return nil
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.repo.Paginate(req.Context(), page, size)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// POST /v1/cancel — discard queued work and abort the in-flight provider call
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	r.queue.CancelAll()
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

// GET /v1/events — server-sent event stream of core notifications
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, cancel := r.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-req.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				r.log.Warn("event marshal failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
