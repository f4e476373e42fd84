package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guidoenr/metronome/internal/control"
	"github.com/guidoenr/metronome/internal/meter"
)

// Status is the snapshot served on /api/status and pushed over /ws.
type Status struct {
	Display control.Display `json:"display"`
	Level   meter.Reading   `json:"level"`
	State   string          `json:"state"`
}

// StatusSource provides the current status.
type StatusSource interface {
	Status() Status
}

// UpdateRequest is a partial control change. Each present field becomes one
// event, applied in field order.
type UpdateRequest struct {
	TempoStep  *int     `json:"tempoStep,omitempty"`
	VolumeStep *int     `json:"volumeStep,omitempty"`
	Tempo      *float64 `json:"tempo,omitempty"`
	Preset     *int     `json:"preset,omitempty"`
	Accent     *int     `json:"accent,omitempty"`
	SubAccent  *int     `json:"subAccent,omitempty"`
	Paused     *bool    `json:"paused,omitempty"`
}

// Events converts the request into control events.
func (r UpdateRequest) Events() []control.Event {
	var out []control.Event
	if r.TempoStep != nil {
		out = append(out, control.Event{Kind: control.EventTempoStep, Step: *r.TempoStep})
	}
	if r.VolumeStep != nil {
		out = append(out, control.Event{Kind: control.EventVolumeStep, Step: *r.VolumeStep})
	}
	if r.Tempo != nil {
		out = append(out, control.Event{Kind: control.EventTempoValue, Value: *r.Tempo})
	}
	if r.Preset != nil {
		out = append(out, control.Event{Kind: control.EventTempoPreset, Preset: *r.Preset})
	}
	if r.Accent != nil {
		out = append(out, control.Event{Kind: control.EventAccent, Count: *r.Accent})
	}
	if r.SubAccent != nil {
		out = append(out, control.Event{Kind: control.EventSubAccent, Count: *r.SubAccent})
	}
	if r.Paused != nil {
		out = append(out, control.Event{Kind: control.EventPause, Paused: *r.Paused})
	}
	return out
}

// Server is a remote control surface. It never touches the panel directly:
// updates are queued on the application's event channel.
type Server struct {
	source   StatusSource
	events   chan<- control.Event
	log      *log.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocketClient]bool
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// NewServer creates a server reading status from source and forwarding
// updates to events.
func NewServer(source StatusSource, events chan<- control.Event, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	}
	return &Server{
		source:  source,
		events:  events,
		log:     logger,
		clients: make(map[*websocketClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/update", s.handleUpdate)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	s.log.Printf("[web] control panel on http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source.Status())
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	events := req.Events()
	if len(events) == 0 {
		http.Error(w, "no changes requested", http.StatusBadRequest)
		return
	}

	for _, ev := range events {
		select {
		case s.events <- ev:
		case <-r.Context().Done():
			http.Error(w, "request cancelled", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"status": "queued", "events": len(events)})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("[web] websocket upgrade error: %v", err)
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 16),
		server: s,
	}

	if data, err := json.Marshal(s.source.Status()); err == nil {
		client.send <- data
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// Broadcast pushes status to every websocket client. Slow clients are dropped.
func (s *Server) Broadcast(status Status) {
	data, err := json.Marshal(status)
	if err != nil {
		s.log.Printf("[web] encode status: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(s.clients, client)
		}
	}
}

// Clients reports connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		close(client.send)
		delete(s.clients, client)
	}
}

func (s *Server) removeClient(c *websocketClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[c] {
		close(c.send)
		delete(s.clients, c)
	}
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
