// Package httpapi is the control surface: trigger a refresh, clear the cache
// and poll status.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/unkn0wn-root/catalogcache"
	"github.com/unkn0wn-root/catalogcache/logging"
)

// Engine is the part of *catalogcache.Engine the routes use.
type Engine interface {
	TryStartRefresh(trigger string) bool
	Invalidate(ctx context.Context) error
	Populate(trigger string) bool
	Status() catalogcache.Status
	LastSummary() (catalogcache.Summary, bool)
	CacheStats() catalogcache.CacheStats
	Healthy(ctx context.Context) error
}

type Server struct {
	Router *chi.Mux
	engine Engine
	log    logging.Logger
}

func New(engine Engine, log logging.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	s := &Server{Router: r, engine: engine, log: logging.OrNop(log)}

	r.Get("/healthz", s.handleHealth)
	r.Post("/RefreshCache", s.handleRefresh)
	r.Post("/ClearCache", s.handleClear)
	r.Get("/CacheStatus", s.handleStatus)
	r.Get("/CacheSummary", s.handleSummary)
	r.Get("/CacheStats", s.handleStats)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.Router.ServeHTTP(w, r) }

type refreshResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// handleRefresh starts a refresh. When one is already running the request
// still succeeds; the populator is only nudged when nothing new started,
// since a started run notifies it on completion.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	started := s.engine.TryStartRefresh("manual")
	resp := refreshResponse{Started: started, Message: "refresh started"}
	if !started {
		resp.Message = "refresh already running or caching disabled"
		s.engine.Populate("manual")
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Invalidate(r.Context()); err != nil {
		s.log.Error("clear cache failed", logging.Fields{"err": err, "request_id": chimw.GetReqID(r.Context())})
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "clear cache failed"})
		return
	}
	s.engine.Populate("clear")
	s.writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.engine.LastSummary()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.CacheStats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Healthy(r.Context()); err != nil {
		s.log.Warn("cache backend unhealthy", logging.Fields{"err": err})
		http.Error(w, "cache backend unreachable", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response failed", logging.Fields{"err": err})
	}
}
