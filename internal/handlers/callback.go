package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"soluxe-backend/internal/models"
	"soluxe-backend/internal/services"
)

// CallbackHandler is the inbound payment-provider listener. The provider
// retries on any non-2xx response, so duplicates answered with 200 here are
// what stops redelivery.
type CallbackHandler struct {
	reconciler *services.Reconciler
	logger     zerolog.Logger
}

func NewCallbackHandler(reconciler *services.Reconciler, logger zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{
		reconciler: reconciler,
		logger:     logger.With().Str("component", "callback_handler").Logger(),
	}
}

// HandleOxapay processes one OxaPay IPN notification.
func (h *CallbackHandler) HandleOxapay(c *gin.Context) {
	var cb models.ProviderCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		h.logger.Warn().Err(err).Msg("Malformed provider callback")
		c.Status(http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("type", cb.Type).
		Str("tx_id", cb.TxID).
		Str("track_id", cb.TrackID).
		Str("status", cb.Status).
		Msg("Provider callback received")

	if err := h.reconciler.HandleCallback(c.Request.Context(), &cb); err != nil {
		switch {
		case errors.Is(err, models.ErrIdentityNotFound),
			errors.Is(err, models.ErrTransactionNotFound):
			// Not a movement we track; acknowledge so the provider stops.
			c.Status(http.StatusNotFound)
		case errors.Is(err, models.ErrUnsupportedCurrency):
			h.logger.Error().Err(err).Msg("Callback for unsupported currency")
			c.Status(http.StatusBadRequest)
		default:
			h.logger.Error().Err(err).Msg("Failed to process provider callback")
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	c.Status(http.StatusOK)
}
