package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"soluxe-backend/internal/logger"
	"soluxe-backend/internal/models"
	"soluxe-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler is the realtime round channel. Each connection subscribes
// to the event bus and receives an ordered stream of round events; bets can
// be placed through the join-game message.
type WebSocketHandler struct {
	engine *services.RoundEngine
	store  services.Store
	bus    *services.EventBus
	logger zerolog.Logger
}

type wsClientMessage struct {
	Type   string         `json:"type"`
	Side   models.BetSide `json:"side,omitempty"`
	Amount float64        `json:"amount,omitempty"`
}

func NewWebSocketHandler(engine *services.RoundEngine, store services.Store, bus *services.EventBus, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "ws_handler").Logger(),
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	identityID := c.GetString("identity_id")
	clog := logger.WithIdentity(h.logger, identityID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		clog.Error().Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close()

	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	replies := make(chan services.Event, 16)
	done := make(chan struct{})
	writerDone := make(chan struct{})
	defer close(done)

	// Single writer: bus events and per-connection replies share the socket.
	go func() {
		defer close(writerDone)
		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case evt := <-replies:
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// A dead writer must never block the read loop on a full reply buffer.
	send := func(evt services.Event) {
		select {
		case replies <- evt:
		case <-writerDone:
		}
	}

	// Joining mid-round delivers the current snapshot, not a diff.
	send(services.Event{Type: "round-snapshot", Data: h.engine.Snapshot()})

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				clog.Debug().Err(err).Msg("WebSocket closed")
			}
			return
		}

		switch msg.Type {
		case "join-game":
			h.handleJoinGame(c, identityID, &msg, send)
		case "PING":
			send(services.Event{Type: "PONG"})
		}
	}
}

func (h *WebSocketHandler) handleJoinGame(c *gin.Context, identityID string, msg *wsClientMessage, send func(services.Event)) {
	identity, err := h.store.GetIdentity(c.Request.Context(), identityID)
	if err == nil && identity == nil {
		err = models.ErrIdentityNotFound
	}

	var bet *models.Bet
	if err == nil {
		bet, err = h.engine.PlaceBet(c.Request.Context(), identity, msg.Side, msg.Amount)
	}

	if err != nil {
		send(services.Event{Type: "game-join-error", Data: map[string]interface{}{
			"error": err.Error(),
			"code":  models.ErrorCode(err),
		}})
		return
	}

	send(services.Event{Type: "game-join-success", Data: map[string]interface{}{
		"bet": bet,
	}})
}
