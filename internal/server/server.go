package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pixelpick/internal/logging"
	"pixelpick/internal/report"
	"pixelpick/internal/sample"
)

const shutdownTimeout = 5 * time.Second

// Writer accepts decoded samples; *sample.Store satisfies it.
type Writer interface {
	Write(ts sample.TileSample)
}

// StatusFunc returns engine state for /status.
type StatusFunc func() any

// Options configures a Server.
type Options struct {
	Addr   string
	Store  Writer
	Events *report.Broadcaster
	Status StatusFunc
	Logger *slog.Logger
}

// Server is the HTTP ingress plus the live event endpoints.
type Server struct {
	addr     string
	store    Writer
	events   *report.Broadcaster
	status   StatusFunc
	log      *slog.Logger
	hub      *Hub
	upgrader websocket.Upgrader
	router   *mux.Router
	server   *http.Server
	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// New builds the router. Start serves it.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		addr:   opts.Addr,
		store:  opts.Store,
		events: opts.Events,
		status: opts.Status,
		log:    log,
		hub:    newHub(log),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local tool; the userscript runs on the map's origin
			},
		},
	}
	r := mux.NewRouter()
	s.setupRoutes(r)
	s.router = r
	return s
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/coords", s.handleCoords).Methods("POST")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.HandleFunc("/stream", s.handleStream).Methods("GET")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.startBackground(ctx)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		s.log.Info("Shutting down server...")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("Server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// startBackground runs the websocket hub and feeds it from the broadcaster.
func (s *Server) startBackground(ctx context.Context) {
	go s.hub.run(ctx)
	if s.events == nil {
		return
	}
	ch, unsubscribe := s.events.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					s.log.Warn("encode event failed", "seq", ev.Seq, "error", err)
					continue
				}
				s.hub.publish(payload)
			}
		}
	}()
}

// IngressStats counts accepted and rejected payloads.
type IngressStats struct {
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
}

// Ingress returns the ingress counters.
func (s *Server) Ingress() IngressStats {
	return IngressStats{Accepted: s.accepted.Load(), Dropped: s.dropped.Load()}
}

func (s *Server) handleCoords(w http.ResponseWriter, r *http.Request) {
	ts, err := sample.Decode(r.Body)
	if err != nil {
		s.dropped.Add(1)
		logging.LogIngressDrop(s.log, "http", r.RemoteAddr, err)
		http.Error(w, "malformed sample", http.StatusBadRequest)
		return
	}
	s.store.Write(ts)
	s.accepted.Add(1)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	Ingress          IngressStats `json:"ingress"`
	Subscribers      int          `json:"subscribers"`
	WebsocketClients int          `json:"websocket_clients"`
	BroadcastDropped uint64       `json:"broadcast_dropped"`
	Engine           any          `json:"engine,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Ingress:          s.Ingress(),
		WebsocketClients: s.hub.Clients(),
	}
	if s.events != nil {
		resp.Subscribers = s.events.Subscribers()
		resp.BroadcastDropped = s.events.Dropped()
	}
	if s.status != nil {
		resp.Engine = s.status()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	evCh, unsubscribe := s.events.Subscribe()
	defer unsubscribe()

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-evCh:
			if !ok {
				return
			}
			payload, _ := json.Marshal(ev)
			_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	if !s.hub.add(conn) {
		conn.Close()
		return
	}

	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
