package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/probewatch/internal/discovery"
	"github.com/muurk/probewatch/internal/logging"
	"github.com/muurk/probewatch/internal/table"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyRunning is returned by Start while a server is up.
	ErrAlreadyRunning = errors.New("web server already running")
	// ErrUnknownHandle is returned by Stop for a handle that is not the
	// running server.
	ErrUnknownHandle = errors.New("unknown web server handle")
)

// Config holds the server configuration
type Config struct {
	Listen      string        // host:port, port 0 picks a free one
	Advertise   bool          // Announce over mDNS while running
	ServiceName string        // mDNS instance name
	PushPeriod  time.Duration // Websocket status refresh
	Version     string        // Reported in TXT records
}

// Status is what /api/status and /ws report.
type Status struct {
	Mode       string    `json:"mode"`
	Link       string    `json:"link"`
	SSID       string    `json:"ssid,omitempty"`
	Address    string    `json:"address,omitempty"`
	Reconnects int       `json:"reconnects"`
	Entries    int       `json:"entries"`
	Time       time.Time `json:"time"`
}

// StatusFunc reports the daemon's current status.
type StatusFunc func() Status

// Handle identifies a started server for Stop. The zero Handle refers to
// no server.
type Handle struct {
	inst *instance
}

// Valid reports whether h refers to a started server.
func (h Handle) Valid() bool { return h.inst != nil }

// Addr returns the address the server listens on.
func (h Handle) Addr() net.Addr {
	if h.inst == nil {
		return nil
	}
	return h.inst.listener.Addr()
}

// Server serves the observation table over HTTP.
type Server struct {
	config   Config
	table    *table.Table
	status   StatusFunc
	upgrader websocket.Upgrader

	mu      sync.Mutex
	current *instance
}

type instance struct {
	srv      *http.Server
	listener net.Listener
	ad       *discovery.Advertisement
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New creates a stopped server.
func New(config Config, tbl *table.Table, status StatusFunc) *Server {
	if config.PushPeriod <= 0 {
		config.PushPeriod = time.Second
	}
	if status == nil {
		status = func() Status { return Status{} }
	}
	return &Server{
		config: config,
		table:  tbl,
		status: status,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Start binds the listener, serves in the background and, when enabled,
// advertises the service over mDNS.
func (s *Server) Start() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return Handle{}, ErrAlreadyRunning
	}

	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	inst := &instance{
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[*websocket.Conn]struct{}),
	}
	inst.srv = &http.Server{
		Handler:           s.handler(inst),
		ReadHeaderTimeout: 10 * time.Second,
	}

	inst.wg.Add(1)
	go func() {
		defer inst.wg.Done()
		if err := inst.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Web server stopped unexpectedly", zap.Error(err))
		}
	}()

	logging.Info("Web server listening", zap.String("addr", listener.Addr().String()))

	if s.config.Advertise {
		port := listener.Addr().(*net.TCPAddr).Port
		ad, err := discovery.Advertise(s.config.ServiceName, port,
			"path=/",
			"version="+s.config.Version,
		)
		if err != nil {
			logging.Warn("mDNS advertisement failed, continuing without it", zap.Error(err))
		} else {
			inst.ad = ad
		}
	}

	s.current = inst
	return Handle{inst: inst}, nil
}

// Stop withdraws the advertisement, closes websocket clients and shuts the
// HTTP server down.
func (s *Server) Stop(h Handle) error {
	s.mu.Lock()
	if h.inst == nil || h.inst != s.current {
		s.mu.Unlock()
		return ErrUnknownHandle
	}
	s.current = nil
	s.mu.Unlock()

	inst := h.inst
	inst.ad.Shutdown()
	inst.cancel()

	inst.mu.Lock()
	for conn := range inst.conns {
		_ = conn.Close()
	}
	inst.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := inst.srv.Shutdown(ctx)

	inst.wg.Wait()
	logging.Info("Web server stopped")
	if err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	return nil
}

// Running reports whether a server is up.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Addr returns the listening address of the running server, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.listener.Addr()
}

// Port returns the configured port, or 0 when it cannot be parsed.
func (c Config) Port() int {
	_, p, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(p)
	return n
}
