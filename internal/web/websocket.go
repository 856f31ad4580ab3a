package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/probewatch/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// handleWebSocket pushes the status to the client every push period until
// either side closes.
func (s *Server) handleWebSocket(inst *instance, w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	remoteAddr := r.RemoteAddr

	inst.mu.Lock()
	inst.conns[conn] = struct{}{}
	inst.mu.Unlock()
	logging.Debug("WebSocket client connected", zap.String("remote_addr", remoteAddr))

	defer func() {
		inst.mu.Lock()
		delete(inst.conns, conn)
		inst.mu.Unlock()
		_ = conn.Close()
		logging.Debug("WebSocket client disconnected", zap.String("remote_addr", remoteAddr))
	}()

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	push := time.NewTicker(s.config.PushPeriod)
	defer push.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.writeStatus(conn); err != nil {
		return
	}
	for {
		select {
		case <-inst.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "mode change"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case <-push.C:
			if err := s.writeStatus(conn); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeStatus(conn *websocket.Conn) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(s.currentStatus()); err != nil {
		logging.Debug("WebSocket write failed", zap.Error(err))
		return err
	}
	return nil
}

// readPump drains client frames so control messages are processed, and
// signals when the client goes away.
func (s *Server) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
