package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"holdem/internal/model"
	"holdem/internal/service"
	"holdem/internal/store"
)

// Close codes of the event stream contract.
const (
	CloseAuthFailed   = 4001
	CloseForbidden    = 4003
	CloseGameNotFound = 4004
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandler serves the per-game event stream.
type StreamHandler struct {
	store *store.Store
	hub   *Hub
	coord *service.Coordinator
	log   *zap.Logger
}

func NewStreamHandler(st *store.Store, hub *Hub, coord *service.Coordinator, log *zap.Logger) *StreamHandler {
	return &StreamHandler{store: st, hub: hub, coord: coord, log: log}
}

// HandleGameStream upgrades, authenticates and subscribes one client to a
// game. The first message is always the current authoritative snapshot, so
// late joiners and reconnects resync without extra round trips.
func (h *StreamHandler) HandleGameStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	player, err := h.authenticate(c)
	if err != nil || player == nil {
		closeWith(conn, CloseAuthFailed, "authentication failed")
		return
	}

	gameID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		closeWith(conn, CloseGameNotFound, "game not found")
		return
	}
	exists, err := h.store.GameExists(gameID)
	if err != nil || !exists {
		closeWith(conn, CloseGameNotFound, "game not found")
		return
	}
	seated, err := h.store.SeatExists(gameID, player.ID)
	if err != nil || !seated {
		closeWith(conn, CloseForbidden, "not a member of this game")
		return
	}

	cl := &client{
		playerID: player.ID,
		gameID:   gameID,
		send:     make(chan []byte, sendBuffer),
	}
	h.hub.register(cl)
	go h.writePump(cl, conn)

	// resync: current snapshot straight from the coordinator
	if view, err := h.coord.Snapshot(gameID, player.ID); err == nil {
		if payload, err := json.Marshal(model.Envelope{Type: model.EventGameUpdate, Data: view}); err == nil {
			select {
			case cl.send <- payload:
			default:
			}
		}
	}

	h.readPump(cl, conn)
}

// authenticate resolves the bearer token from the Authorization header or
// the token query parameter (browsers cannot set headers on websockets).
func (h *StreamHandler) authenticate(c *gin.Context) (*model.Player, error) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token == "" {
		return nil, nil
	}
	return h.store.PlayerByToken(token)
}

// readPump consumes the connection until it drops. Clients do not send game
// commands over the stream; actions go through the request API.
func (h *StreamHandler) readPump(cl *client, conn *websocket.Conn) {
	defer func() {
		h.hub.unregister(cl)
		conn.Close()
	}()
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writePump(cl *client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug("subscriber write failed", zap.String("player_id", cl.playerID.String()), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	conn.Close()
}
