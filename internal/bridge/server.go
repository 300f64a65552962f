// Package bridge hosts the WebSocket endpoint the on-device accessibility
// shim connects to. The shim streams notification events in; the daemon
// issues UI automation calls out over the same connection and pushes log
// lines for the shim's on-screen viewer.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/otpower88/grabbot/internal/bus"
	"github.com/otpower88/grabbot/internal/config"
	"github.com/otpower88/grabbot/pkg/protocol"
)

// ErrNotConnected is returned for UI calls while no shim is connected.
var ErrNotConnected = errors.New("bridge: no device connected")

// callTimeout bounds one UI automation round-trip.
const callTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	// The shim is a native app, not a browser; origin checks don't apply.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server accepts one shim connection at a time. A new connection replaces
// the previous one (the device re-dials after network churn).
type Server struct {
	cfg    config.BridgeConfig
	bus    *bus.MessageBus
	httpSv *http.Server

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex // serializes writes on the active connection

	pendingMu sync.Mutex
	pending   map[string]chan protocol.Message
}

// New creates a bridge server.
func New(cfg config.BridgeConfig, msgBus *bus.MessageBus) *Server {
	return &Server{
		cfg:     cfg,
		bus:     msgBus,
		pending: make(map[string]chan protocol.Message),
	}
}

// Start listens and serves until the context is cancelled. Blocking.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSv = &http.Server{Addr: addr, Handler: mux}

	// Forward log events to the shim's on-screen viewer.
	s.bus.Subscribe("bridge", func(ev bus.Event) {
		if ev.Name != bus.EventLog {
			return
		}
		line, _ := ev.Payload.(string)
		s.push(protocol.Message{Type: protocol.TypeLog, Line: line})
	})
	defer s.bus.Unsubscribe("bridge")

	errCh := make(chan error, 1)
	go func() {
		slog.Info("bridge listening", "addr", addr)
		errCh <- s.httpSv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		s.httpSv.Shutdown(shutdownCtx)
		s.dropConn(nil)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("bridge: %w", err)
	}
}

// Handler exposes the WS handler for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Token != "" && r.URL.Query().Get("token") != s.cfg.Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("bridge: upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.conn != nil {
		slog.Info("bridge: replacing existing device connection")
		s.conn.Close()
	}
	s.conn = conn
	s.mu.Unlock()

	slog.Info("bridge: device connected", "remote", r.RemoteAddr)
	s.readLoop(conn)
}

func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.dropConn(conn)

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("bridge: device connection lost", "error", err)
			}
			return
		}

		switch msg.Type {
		case protocol.TypeNotification:
			if msg.Notification == nil {
				continue
			}
			s.bus.PublishNotification(bus.NotificationEvent{
				SourceApp:  msg.Notification.SourceApp,
				Title:      msg.Notification.Title,
				Text:       msg.Notification.Text,
				ReceivedAt: time.Now(),
			})
		case protocol.TypeResult:
			s.resolve(msg)
		default:
			slog.Debug("bridge: unknown message type", "type", msg.Type)
		}
	}
}

// call performs one request/reply round-trip with the shim.
func (s *Server) call(ctx context.Context, method string, params interface{}) (protocol.Message, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return protocol.Message{}, ErrNotConnected
	}

	id := uuid.NewString()
	ch := make(chan protocol.Message, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	req := protocol.Message{Type: protocol.TypeRequest, ID: id, Method: method}
	if params != nil {
		raw, err := jsonMarshal(params)
		if err != nil {
			return protocol.Message{}, err
		}
		req.Params = raw
	}
	if err := s.write(conn, req); err != nil {
		return protocol.Message{}, fmt.Errorf("bridge: write %s: %w", method, err)
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res, nil
	case <-timer.C:
		return protocol.Message{}, fmt.Errorf("bridge: %s timed out", method)
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

func (s *Server) resolve(msg protocol.Message) {
	s.pendingMu.Lock()
	ch, ok := s.pending[msg.ID]
	s.pendingMu.Unlock()
	if !ok {
		slog.Debug("bridge: result for unknown request", "id", msg.ID)
		return
	}
	ch <- msg
}

// push sends a fire-and-forget frame to the current connection, if any.
func (s *Server) push(msg protocol.Message) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := s.write(conn, msg); err != nil {
		slog.Debug("bridge: push failed", "error", err)
	}
}

func (s *Server) write(conn *websocket.Conn, msg protocol.Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(msg)
}

// dropConn clears the active connection if it is still conn (nil clears
// unconditionally).
func (s *Server) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return
	}
	if conn == nil || s.conn == conn {
		s.conn.Close()
		s.conn = nil
		slog.Info("bridge: device disconnected")
	}
}
