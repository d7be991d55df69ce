package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"soluxe-backend/internal/models"
	"soluxe-backend/internal/services"
)

type AuthHandler struct {
	auth   *services.WalletAuthService
	logger zerolog.Logger
}

func NewAuthHandler(auth *services.WalletAuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RequestNonce issues the signing message for a wallet.
func (h *AuthHandler) RequestNonce(c *gin.Context) {
	var req models.NonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Wallet address is required",
			"details": err.Error(),
		})
		return
	}

	message, err := h.auth.RequestChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to issue challenge")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

// Verify trades a signed challenge for a session token.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Wallet address and signature are required",
			"details": err.Error(),
		})
		return
	}

	result, err := h.auth.VerifyChallenge(c.Request.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// UpdateProfile completes the username/email setup for the session identity.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	identityID := c.GetString("identity_id")

	var req models.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Username and email are required",
			"details": err.Error(),
		})
		return
	}

	identity, err := h.auth.CompleteProfile(c.Request.Context(), identityID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    identity,
	})
}

// GetBalance reports on-chain and site balances for the session identity.
func (h *AuthHandler) GetBalance(c *gin.Context) {
	identityID := c.GetString("identity_id")

	info, err := h.auth.GetBalanceInfo(c.Request.Context(), identityID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}
