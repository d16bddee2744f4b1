package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/vdombridge/pkg/protocol"
)

// Server accepts WebSocket connections and runs one Bridge per connection.
type Server struct {
	config  *Config
	codec   *protocol.Codec
	factory SessionFactory

	upgrader websocket.Upgrader
	router   chi.Router
	conns    *connManager
	metrics  *Metrics

	mu         sync.Mutex
	httpServer *http.Server

	// baseCtx parents every bridge; cancel ends them all.
	baseCtx context.Context
	cancel  context.CancelFunc

	logger *slog.Logger
}

// New creates a Server. codec decodes inbound actions and factory creates
// the per-connection session. Unset config fields take their defaults.
func New(config *Config, codec *protocol.Codec, factory SessionFactory) *Server {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:  config,
		codec:   codec,
		factory: factory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
			Subprotocols:    []string{config.Protocol},
		},
		conns:   newConnManager(),
		metrics: NewMetrics(config.Registry),
		baseCtx: ctx,
		cancel:  cancel,
		logger:  slog.Default().With("component", "server"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if s.baseCtx.Err() != nil {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{}))
	r.Get(s.config.Path, s.HandleWebSocket)
	return r
}

// Handler returns the HTTP handler serving the upgrade path, /healthz and
// /metrics. It can be mounted in an external router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HandleWebSocket negotiates the sub-protocol, upgrades the connection and
// starts its bridge. It returns without waiting for the connection to end.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.baseCtx.Err() != nil {
		s.metrics.connectionRejected("shutdown")
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		s.metrics.connectionRejected("not_websocket")
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	offered := websocket.Subprotocols(r)
	if !slices.Contains(offered, s.config.Protocol) {
		s.metrics.connectionRejected("subprotocol")
		s.logger.Warn("rejecting connection",
			"error", ErrSubprotocolMismatch,
			"offered", offered,
			"remote_addr", r.RemoteAddr)
		http.Error(w, "unsupported sub-protocol", http.StatusBadRequest)
		return
	}

	if s.factory == nil {
		s.metrics.connectionRejected("session")
		s.logger.Error("rejecting connection", "error", ErrNoSessionFactory)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	logger := s.logger.With("conn_id", id)
	ctx, cancel := context.WithCancel(s.baseCtx)

	session, err := s.factory(ctx, ConnInfo{
		ID:         id,
		RemoteAddr: r.RemoteAddr,
		Logger:     logger,
		Observer:   s.metrics,
	})
	if err != nil {
		cancel()
		s.metrics.connectionRejected("session")
		logger.Error("session factory failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		cancel()
		s.metrics.connectionRejected("upgrade")
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.configureConn(conn, logger)

	if !s.conns.add(id, cancel) {
		cancel()
		s.metrics.connectionRejected("shutdown")
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.config.WriteTimeout))
		_ = conn.Close()
		return
	}
	s.metrics.connectionOpened()
	logger.Info("connection accepted",
		"remote_addr", r.RemoteAddr,
		"subprotocol", conn.Subprotocol())

	bridge := NewBridge(id, conn, s.codec, session, s.config, s.metrics, logger)
	go func() {
		defer s.conns.done(id)
		defer s.metrics.connectionClosed()

		if err := bridge.Run(ctx); err != nil {
			logger.Warn("connection ended with error", "error", err)
			return
		}
		logger.Info("connection closed")
	}()
}

// configureConn installs the control-frame handlers. The close handler
// does not echo the peer's close frame: the bridge always sends its own
// once the snapshot stream ends.
func (s *Server) configureConn(conn *websocket.Conn, logger *slog.Logger) {
	conn.SetReadLimit(s.config.MaxMessageSize)
	conn.SetCloseHandler(func(int, string) error { return nil })
	conn.SetPingHandler(func(data string) error {
		logger.Debug("ping received")
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.config.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})
	conn.SetPongHandler(func(string) error {
		s.metrics.messageDropped("pong")
		return nil
	})
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if s.baseCtx.Err() != nil {
		return ErrServerClosed
	}
	hs := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}
	s.mu.Lock()
	s.httpServer = hs
	s.mu.Unlock()

	s.logger.Info("server listening",
		"address", ln.Addr().String(),
		"path", s.config.Path,
		"subprotocol", s.config.Protocol)
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run listens on the configured address and serves until ctx ends, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.config.Address, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections, cancels every active bridge and
// waits for them to finish, bounded by ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.cancel()
	s.conns.cancelAll()

	var errs []error
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()
	if hs != nil {
		if err := hs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server: http shutdown: %w", err))
		}
	}
	if err := s.conns.wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: waiting for connections: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// Stats returns connection statistics.
func (s *Server) Stats() ConnStats {
	return s.conns.stats()
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Config returns the effective server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogger sets the server logger. Call before serving.
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}
