package models

import "errors"

// Stable error taxonomy returned by the auth, round, and ledger services.
// Handlers match these with errors.Is and map them to HTTP responses.
var (
	ErrChallengeExpired    = errors.New("challenge expired or not found")
	ErrInvalidSignature    = errors.New("invalid wallet signature")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrEmailTaken          = errors.New("email already in use")
	ErrBettingClosed       = errors.New("betting is closed for this round")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidBetSide      = errors.New("invalid bet side")
	ErrInvalidBetAmount    = errors.New("bet amount must be positive")
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// ErrorCode returns the machine-readable code for a service error, or
// "INTERNAL" for anything outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrChallengeExpired):
		return "CHALLENGE_EXPIRED"
	case errors.Is(err, ErrInvalidSignature):
		return "INVALID_SIGNATURE"
	case errors.Is(err, ErrUsernameTaken):
		return "USERNAME_TAKEN"
	case errors.Is(err, ErrEmailTaken):
		return "EMAIL_TAKEN"
	case errors.Is(err, ErrBettingClosed):
		return "BETTING_CLOSED"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrInvalidBetSide):
		return "INVALID_BET_SIDE"
	case errors.Is(err, ErrInvalidBetAmount):
		return "INVALID_BET_AMOUNT"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, ErrIdentityNotFound):
		return "IDENTITY_NOT_FOUND"
	case errors.Is(err, ErrTransactionNotFound):
		return "TRANSACTION_NOT_FOUND"
	case errors.Is(err, ErrUnsupportedCurrency):
		return "UNSUPPORTED_CURRENCY"
	}
	return "INTERNAL"
}
