package server

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"holdem/internal/model"
)

// client is one subscriber connection. Messages are queued on send and
// written by the client's own writer goroutine, so a slow connection never
// blocks the hub or the game.
type client struct {
	playerID uuid.UUID
	gameID   uuid.UUID
	send     chan []byte
}

// Hub is the per-game subscriber registry. It is a pure read-side fan-out:
// it never touches game state, so a hub failure cannot corrupt a game.
type Hub struct {
	log *zap.Logger

	mu    sync.RWMutex
	games map[uuid.UUID]map[*client]struct{}
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:   log,
		games: make(map[uuid.UUID]map[*client]struct{}),
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.games[cl.gameID]
	if !ok {
		subs = make(map[*client]struct{})
		h.games[cl.gameID] = subs
	}
	subs[cl] = struct{}{}
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.games[cl.gameID]; ok {
		if _, present := subs[cl]; present {
			delete(subs, cl)
			close(cl.send)
		}
		if len(subs) == 0 {
			delete(h.games, cl.gameID)
		}
	}
}

// Publish projects and enqueues one event for every subscriber of a game.
// build runs per subscriber with the subscriber's player id so each view is
// masked for its recipient. A subscriber whose queue is full misses this
// event; it can always re-fetch the authoritative snapshot, and its later
// events still arrive in order.
func (h *Hub) Publish(gameID uuid.UUID, eventType string, build func(viewerID uuid.UUID) any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cl := range h.games[gameID] {
		payload, err := json.Marshal(model.Envelope{Type: eventType, Data: build(cl.playerID)})
		if err != nil {
			h.log.Error("event marshal failed", zap.String("game_id", gameID.String()), zap.Error(err))
			continue
		}
		select {
		case cl.send <- payload:
		default:
			h.log.Warn("subscriber queue full, dropping event",
				zap.String("game_id", gameID.String()),
				zap.String("player_id", cl.playerID.String()))
		}
	}
}
