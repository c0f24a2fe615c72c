// Package server exposes the pin operations to unprivileged callers over a
// WebSocket endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fkcurrie/bcmgpio/internal/dispatch"
	"github.com/fkcurrie/bcmgpio/internal/types"
	"github.com/fkcurrie/bcmgpio/pkg/mmap"
)

const maxRequestSize = 512

// Server represents the gpiod WebSocket server
type Server struct {
	config   types.ServerConfig
	table    *dispatch.Table
	regs     *mmap.RegisterMap
	logger   *log.Logger
	upgrader websocket.Upgrader

	// mu guards conns and closed. Hijacked connections are invisible to
	// http.Server.Shutdown, so Serve closes them itself.
	mu       sync.Mutex
	conns    map[*websocket.Conn]struct{}
	closed   bool
	handlers sync.WaitGroup
}

// NewServer creates a server answering calls from table. regs is only
// consulted for health reporting.
func NewServer(config types.ServerConfig, table *dispatch.Table, regs *mmap.RegisterMap, logger *log.Logger) *Server {
	return &Server{
		config: config,
		table:  table,
		regs:   regs,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxRequestSize,
			WriteBufferSize: maxRequestSize,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler serving /gpio and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/gpio", s.handleGPIO)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Serve accepts connections on l until ctx is done. It returns only after
// every WebSocket connection has been closed and its handler has finished,
// so no call reaches the registers afterwards.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	s.closeConns()
	s.handlers.Wait()

	if shutdownErr != nil {
		return fmt.Errorf("failed to shut down: %w", shutdownErr)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// track registers conn, or reports false once the server is closing.
func (s *Server) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.handlers.Add(1)
	return true
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.handlers.Done()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.regs.Stats()
	health := types.Health{
		Mapped:       s.regs.Mapped(),
		Base:         fmt.Sprintf("%#x", s.regs.Base()),
		Maps:         stats.Maps,
		Unmaps:       stats.Unmaps,
		Transactions: stats.Transactions,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Printf("error writing health: %v", err)
	}
}

func (s *Server) handleGPIO(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	done := make(chan struct{})
	go s.pingPump(conn, done)
	s.readPump(conn)
	close(done)
}

// readPump answers requests on conn until it closes
func (s *Server) readPump(conn *websocket.Conn) {
	defer conn.Close()

	readTimeout := seconds(s.config.ReadTimeout)
	conn.SetReadLimit(maxRequestSize)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var req types.Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		resp := s.table.Serve(req)
		if resp.Result < 0 {
			s.logger.Printf("%s pin %d from %s: %s", req.Op, req.Pin, conn.RemoteAddr(), resp.Error)
		}

		conn.SetWriteDeadline(time.Now().Add(seconds(s.config.WriteTimeout)))
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Printf("error writing response: %v", err)
			return
		}
	}
}

// pingPump keeps conn alive until done is closed
func (s *Server) pingPump(conn *websocket.Conn, done <-chan struct{}) {
	if s.config.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(seconds(s.config.PingInterval))
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(seconds(s.config.WriteTimeout))
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
