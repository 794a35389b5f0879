package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"djBot/internal/app/events"
	"djBot/internal/domain"
	"djBot/internal/usecase/commands"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	clientBuffer    = 64
)

// Feed is the slice of the event bus the overlay feed reads from.
type Feed interface {
	Subscribe(topic string) (<-chan any, func())
}

type CommandLister interface {
	List() []commands.CommandDTO
}

type HealthReporter interface {
	Platforms() []domain.Platform
}

type Config struct {
	Addr     string
	Feed     Feed
	Commands CommandLister
	Health   HealthReporter
	Logger   *zap.Logger
}

// Server sirve el feed /ws/events para el overlay, el listado de comandos,
// /metrics y /healthz.
type Server struct {
	addr     string
	feed     Feed
	commands CommandLister
	health   HealthReporter
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan envelope
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var feedTopics = map[string]string{
	events.TopicChatMessage:  "chat",
	events.TopicNotification: "notification",
	events.TopicStreamStatus: "status",
	events.TopicAppError:     "error",
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &Server{
		addr:     addr,
		feed:     cfg.Feed,
		commands: cfg.Commands,
		health:   cfg.Health,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/events", s.handleWS)
	mux.HandleFunc("/api/commands", withCORS(s.handleCommands))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start levanta el HTTP server y se bloquea hasta que el contexto se cancela.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pump(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("ws: shutdown error", zap.Error(err))
		}
		s.closeClients()
	}()

	s.logger.Info("ws: listening", zap.String("addr", s.addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// pump fans bus events out to every connected overlay.
func (s *Server) pump(ctx context.Context) {
	if s.feed == nil {
		return
	}
	merged := make(chan envelope, clientBuffer)
	var wg sync.WaitGroup
	for topic, kind := range feedTopics {
		ch, unsub := s.feed.Subscribe(topic)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					select {
					case merged <- envelope{Type: kind, Data: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for env := range merged {
		s.broadcast(env)
	}
}

func (s *Server) broadcast(env envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- env:
		default:
			s.logger.Warn("ws: slow client, dropping connection", zap.String("remote", c.conn.RemoteAddr().String()))
			delete(s.clients, c)
			close(c.send)
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws: upgrade error", zap.Error(err))
		return
	}
	client := &wsClient{conn: conn, send: make(chan envelope, clientBuffer)}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("ws: nueva conexión", zap.String("remote", r.RemoteAddr), zap.Int("clients", count))

	go s.writeLoop(client)
	go s.readLoop(client)
}

func (s *Server) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for env := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(env); err != nil {
			s.logger.Debug("ws: write error", zap.Error(err))
			s.remove(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// readLoop only watches for the overlay going away; the feed is one-way.
func (s *Server) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.remove(c)
			return
		}
	}
}

func (s *Server) remove(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	s.logger.Info("ws: conexión cerrada", zap.Int("clients", len(s.clients)))
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.commands == nil {
		writeJSON(w, http.StatusOK, []commands.CommandDTO{})
		return
	}
	writeJSON(w, http.StatusOK, s.commands.List())
}

type healthResponse struct {
	Status    string   `json:"status"`
	Platforms []string `json:"platforms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Platforms: []string{}}
	if s.health != nil {
		for _, p := range s.health.Platforms() {
			resp.Platforms = append(resp.Platforms, string(p))
		}
	}
	if len(resp.Platforms) == 0 {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
