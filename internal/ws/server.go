package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/analysis"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/config"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/notify"
	"github.com/PakinWasu/WebAppNMLLM-sub004/internal/poll"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Server exposes the poll registry to the dashboard frontend: HTTP
// endpoints to start/stop/resume polling per job key, a WebSocket feed for
// notifications and title updates, and a host health endpoint.
type Server struct {
	cfg         *config.Config
	registry    *poll.Registry
	broadcaster *Broadcaster
	dispatcher  *notify.Dispatcher
	fetcher     poll.Fetcher

	allowedOrigins map[string]bool
}

func NewServer(cfg *config.Config, registry *poll.Registry, broadcaster *Broadcaster, dispatcher *notify.Dispatcher, fetcher poll.Fetcher) *Server {
	s := &Server{
		cfg:            cfg,
		registry:       registry,
		broadcaster:    broadcaster,
		dispatcher:     dispatcher,
		fetcher:        fetcher,
		allowedOrigins: make(map[string]bool),
	}
	for _, origin := range cfg.Server.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			s.allowedOrigins[trimmed] = true
		}
	}
	return s
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Get("/ws", s.handleWS)
		r.Route("/api", func(r chi.Router) {
			r.Get("/health", s.handleHealth)
			r.Route("/jobs/{key}/poll", func(r chi.Router) {
				r.Post("/", s.handleStart)
				r.Delete("/", s.handleStop)
				r.Get("/", s.handlePollStatus)
				r.Post("/resume", s.handleResume)
				r.Post("/wake", s.handleWake)
			})
		})
	})

	return r
}

// callbacks builds the onUpdate/onError pair used for both Start and
// Resume: deliveries fan out over the WebSocket feed and trigger the
// notification dispatcher; timeouts are reported as poll errors.
func (s *Server) callbacks(key string) (func(*analysis.Snapshot), func(error)) {
	onUpdate := func(snap *analysis.Snapshot) {
		s.broadcaster.Broadcast(WSMessage{
			Type:    MsgPollDone,
			Payload: PollDonePayload{Key: key, Snapshot: snap},
		})
		s.dispatcher.Deliver("Analysis complete", fmt.Sprintf("Results for %s are ready", key))
	}
	onError := func(err error) {
		s.broadcaster.Broadcast(WSMessage{
			Type:    MsgPollError,
			Payload: PollErrorPayload{Key: key, Message: err.Error()},
		})
	}
	return onUpdate, onError
}

type startRequest struct {
	Subject string `json:"subject"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req startRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	subject := req.Subject
	if subject == "" {
		subject = key
	}

	onUpdate, onError := s.callbacks(key)
	s.registry.Start(key, subject, s.fetcher, onUpdate, onError)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.registry.Stop(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePollStatus(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"active": s.registry.IsActive(key)})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !s.registry.IsActive(key) {
		http.Error(w, "no active poll for key", http.StatusNotFound)
		return
	}
	onUpdate, onError := s.callbacks(key)
	s.registry.Resume(key, onUpdate, onError)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWake(w http.ResponseWriter, r *http.Request) {
	s.registry.Wake(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status            string  `json:"status"`
	ActivePolls       int     `json:"activePolls"`
	Clients           int     `json:"clients"`
	CPUPercent        float64 `json:"cpuPercent"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		ActivePolls: s.registry.ActiveCount(),
		Clients:     s.broadcaster.ClientCount(),
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryUsedPercent = vm.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	log.Printf("[ws] client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("[ws] client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("[ws] bad client message: %v", err)
				continue
			}
			s.broadcaster.HandleClientMessage(c, msg)
		}
	}()
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(r *http.Request) bool {
	token := s.cfg.Server.AuthToken
	if token == "" {
		return true
	}
	if r.URL.Query().Get("token") == token {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == token
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		return s.allowedOrigins[origin]
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := parsed.Host
	if host == r.Host {
		return true
	}
	return host == "localhost" || strings.HasPrefix(host, "localhost:") ||
		host == "127.0.0.1" || strings.HasPrefix(host, "127.0.0.1:")
}

func ListenAndServe(host string, port int, handler http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("[ws] server listening on %s", addr)
	return http.ListenAndServe(addr, handler)
}
