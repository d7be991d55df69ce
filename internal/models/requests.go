package models

import (
	"fmt"
	"regexp"
	"strings"
)

type NonceRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}

type VerifyRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

type ProfileRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

type PlaceBetRequest struct {
	Side   BetSide `json:"side" binding:"required"`
	Amount float64 `json:"amount" binding:"required"`
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate normalizes and checks the profile fields: username 3-16 chars,
// email of a plausible shape.
func (r *ProfileRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))

	if len(r.Username) < 3 || len(r.Username) > 16 {
		return fmt.Errorf("username must be 3-16 chars")
	}
	if !emailPattern.MatchString(r.Email) {
		return fmt.Errorf("valid email is required")
	}
	return nil
}

func (r *PlaceBetRequest) Validate() error {
	if r.Amount <= 0 {
		return ErrInvalidBetAmount
	}
	if !ValidSide(r.Side) {
		return ErrInvalidBetSide
	}
	return nil
}
