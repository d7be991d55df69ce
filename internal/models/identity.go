package models

import (
	"fmt"
	"net/url"
)

// Identity is a user account keyed by its Solana wallet address. The address
// is set once at first login and never changes; username and email are filled
// in later through the profile endpoint.
type Identity struct {
	ID            string `json:"id" redis:"id"`
	WalletAddress string `json:"wallet_address" redis:"wallet_address"`
	Username      string `json:"username" redis:"username"`
	Email         string `json:"email" redis:"email"`
	Avatar        string `json:"avatar" redis:"avatar"`

	HasCompletedProfile bool `json:"has_completed_profile" redis:"has_completed_profile"`

	Balance                float64 `json:"balance" redis:"balance"`
	TotalDeposited         float64 `json:"total_deposited" redis:"total_deposited"`
	TotalWagered           float64 `json:"total_wagered" redis:"total_wagered"`
	WagerNeededForWithdraw float64 `json:"wager_needed_for_withdraw" redis:"wager_needed_for_withdraw"`

	// AffiliateID is the identity that referred this account, empty if none.
	AffiliateID string `json:"affiliate_id,omitempty" redis:"affiliate_id"`

	// DepositAddresses maps a lowercase currency code to the provider-issued
	// deposit address for that coin.
	DepositAddresses map[string]string `json:"deposit_addresses,omitempty" redis:"-"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
	UpdatedAt int64 `json:"updated_at" redis:"updated_at"`
}

// WalletChallenge is the single-use nonce message a wallet must sign to log
// in. At most one challenge exists per address; a new request overwrites it.
type WalletChallenge struct {
	WalletAddress string `json:"wallet_address"`
	Nonce         string `json:"nonce"`
	Message       string `json:"message"`
	ExpiresAt     int64  `json:"expires_at"`
}

// AuthResult is returned to the client after a successful signature
// verification. OnChainBalance is nil when the RPC lookup failed; login still
// succeeds in that case.
type AuthResult struct {
	Token             string   `json:"token"`
	WalletAddress     string   `json:"walletAddress"`
	NeedsProfileSetup bool     `json:"needsProfileSetup"`
	OnChainBalance    *float64 `json:"onChainBalance"`
}

// BalanceInfo is the wallet balance endpoint payload.
type BalanceInfo struct {
	WalletAddress       string   `json:"walletAddress"`
	OnChainBalance      *float64 `json:"onChainBalance"`
	CanDeposit          bool     `json:"canDeposit"`
	CanWithdraw         bool     `json:"canWithdraw"`
	WithdrawableBalance float64  `json:"withdrawableBalance"`
}

// DefaultUsername derives the placeholder username for a fresh identity.
func DefaultUsername(walletAddress string) string {
	if len(walletAddress) < 6 {
		return "sol" + walletAddress
	}
	return "sol" + walletAddress[:6]
}

// DefaultAvatar builds the fallback avatar URL for a username.
func DefaultAvatar(username string) string {
	return fmt.Sprintf(
		"https://ui-avatars.com/api/?name=%s&background=0D8ABC&color=fff",
		url.QueryEscape(username),
	)
}
