package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"soluxe-backend/internal/models"
	"soluxe-backend/internal/services"
)

type UserHandler struct {
	store  services.Store
	logger zerolog.Logger
}

func NewUserHandler(store services.Store, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		store:  store,
		logger: logger.With().Str("component", "user_handler").Logger(),
	}
}

// GetCurrentUser returns the session identity with its site balances.
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	identityID := c.GetString("identity_id")

	identity, err := h.store.GetIdentity(c.Request.Context(), identityID)
	if err != nil {
		respondError(c, err)
		return
	}
	if identity == nil {
		respondError(c, models.ErrIdentityNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": identity,
		"wallet": gin.H{
			"balance":                   identity.Balance,
			"total_deposited":           identity.TotalDeposited,
			"total_wagered":             identity.TotalWagered,
			"wager_needed_for_withdraw": identity.WagerNeededForWithdraw,
		},
	})
}
