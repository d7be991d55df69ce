package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"soluxe-backend/internal/models"
)

// respondError maps a service error to its HTTP status and stable code.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, models.ErrInvalidSignature):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrIdentityNotFound),
		errors.Is(err, models.ErrTransactionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrChallengeExpired),
		errors.Is(err, models.ErrUsernameTaken),
		errors.Is(err, models.ErrEmailTaken),
		errors.Is(err, models.ErrBettingClosed),
		errors.Is(err, models.ErrInsufficientBalance),
		errors.Is(err, models.ErrInvalidBetSide),
		errors.Is(err, models.ErrInvalidBetAmount),
		errors.Is(err, models.ErrUnsupportedCurrency):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  models.ErrorCode(err),
	})
}
