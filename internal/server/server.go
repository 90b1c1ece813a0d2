// Package server exposes the chat, feed, dashboard and live-update
// surfaces over HTTP.
package server

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/intelverse/intelverse-go/internal/chat"
	"github.com/intelverse/intelverse-go/internal/config"
	"github.com/intelverse/intelverse-go/internal/feed"
	"github.com/intelverse/intelverse-go/internal/hub"
	"github.com/intelverse/intelverse-go/internal/logger"
	"github.com/intelverse/intelverse-go/internal/store"
)

// Server wires the HTTP surface to the core services.
type Server struct {
	coordinator *chat.Coordinator
	feeds       *feed.Service
	hub         *hub.Hub
	store       store.SummaryStore
	limiters    *limiterPool
}

// New creates a server over the given services.
func New(c *chat.Coordinator, f *feed.Service, h *hub.Hub, s store.SummaryStore, rl config.Rate) *Server {
	return &Server{
		coordinator: c,
		feeds:       f,
		hub:         h,
		store:       s,
		limiters:    newLimiterPool(rl),
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimit)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/chat/stream", s.handleChatStream).Methods(http.MethodPost)
	api.HandleFunc("/chat/history", s.handleChatHistory).Methods(http.MethodGet)
	api.HandleFunc("/feeds", s.handleFeeds).Methods(http.MethodGet)
	api.HandleFunc("/feeds/{source}", s.handleFeedBySource).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/trends", s.handleTrends).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/stats", s.handleStats).Methods(http.MethodGet)
	return r
}

// limiterPool keeps one token bucket per client address.
type limiterPool struct {
	mu  sync.Mutex
	m   map[string]*rate.Limiter
	cfg config.Rate
}

func newLimiterPool(cfg config.Rate) *limiterPool {
	return &limiterPool{m: make(map[string]*rate.Limiter), cfg: cfg}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	l, ok := p.m[key]
	if !ok {
		rps := p.cfg.RPS
		if rps <= 0 {
			rps = 10
		}
		burst := p.cfg.Burst
		if burst <= 0 {
			burst = 20
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
		p.m[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiters.allow(host) {
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
