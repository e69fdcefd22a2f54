package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gridclash/api/internal/auth"
	"github.com/gridclash/api/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // Must be less than pongWait
	maxMsgSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS handled by middleware; tighten in production
	},
}

// WSHandler upgrades HTTP requests to websocket connections and runs the
// read/write pumps that bridge them to the dispatcher.
type WSHandler struct {
	hub        *Hub
	dispatcher *Dispatcher
	jwtMgr     *auth.JWTManager
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(hub *Hub, dispatcher *Dispatcher, jwtMgr *auth.JWTManager) *WSHandler {
	return &WSHandler{hub: hub, dispatcher: dispatcher, jwtMgr: jwtMgr}
}

// ServeWS handles GET /api/v1/ws, upgrading to WebSocket.
// Identity via optional ?token= query parameter (WebSocket can't send
// headers); without one the client plays anonymously.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	clientID := ""
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		claims, err := h.jwtMgr.ValidateToken(tokenStr)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		clientID = claims.ClientID
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := NewConn(logger.NewRequestID(), clientID)
	h.hub.Register(conn)

	go h.writePump(conn, ws)
	go h.readPump(conn, ws)

	log.Info().Str("connId", conn.ID()).Str("clientId", clientID).Int("total", h.hub.ConnectionCount()).Msg("WebSocket client connected")
}

// readPump reads frames from the websocket and hands them to the
// dispatcher; on any read error it tears the connection down.
func (h *WSHandler) readPump(c *Conn, ws *websocket.Conn) {
	defer func() {
		h.dispatcher.HandleDisconnect(c)
		ws.Close()
		log.Info().Str("connId", c.ID()).Msg("WebSocket client disconnected")
	}()

	ws.SetReadLimit(maxMsgSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connId", c.ID()).Msg("WebSocket unexpected close")
			}
			break
		}
		h.dispatcher.HandleMessage(c, message)
	}
}

// writePump drains the connection's outbox onto the wire, one message
// per frame, and keeps the connection alive with pings.
func (h *WSHandler) writePump(c *Conn, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.Outbox():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
