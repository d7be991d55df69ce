package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"soluxe-backend/internal/models"
	"soluxe-backend/internal/services"
)

type GameHandler struct {
	engine *services.RoundEngine
	store  services.Store
	logger zerolog.Logger
}

func NewGameHandler(engine *services.RoundEngine, store services.Store, logger zerolog.Logger) *GameHandler {
	return &GameHandler{
		engine: engine,
		store:  store,
		logger: logger.With().Str("component", "game_handler").Logger(),
	}
}

// PlaceBet admits a bet into the current round over HTTP. The same operation
// is available as the join-game event on the websocket channel.
func (h *GameHandler) PlaceBet(c *gin.Context) {
	identityID := c.GetString("identity_id")

	var req models.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, err)
		return
	}

	identity, err := h.store.GetIdentity(c.Request.Context(), identityID)
	if err != nil {
		respondError(c, err)
		return
	}
	if identity == nil {
		respondError(c, models.ErrIdentityNotFound)
		return
	}

	bet, err := h.engine.PlaceBet(c.Request.Context(), identity, req.Side, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"bet":     bet,
	})
}

// GetCurrentRound returns the live round snapshot.
func (h *GameHandler) GetCurrentRound(c *gin.Context) {
	round := h.engine.Snapshot()
	if round == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No active round"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   round,
	})
}

// GetHistory returns recent settled rounds, newest first.
func (h *GameHandler) GetHistory(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	rounds, err := h.store.RecentRounds(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read round history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get round history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rounds":  rounds,
		"count":   len(rounds),
	})
}

// VerifyRound recomputes a round outcome from a revealed seed so anyone can
// audit a spin.
func (h *GameHandler) VerifyRound(c *gin.Context) {
	seed := c.Query("seed")
	roundID := c.Query("round_id")
	if seed == "" || roundID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seed and round_id are required"})
		return
	}

	index, side, commit, err := services.VerifyOutcome(seed, roundID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"winning_index": index,
		"outcome":       side,
		"commit_hash":   commit,
	})
}
