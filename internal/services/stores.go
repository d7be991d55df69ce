package services

import (
	"context"
	"time"

	"soluxe-backend/internal/models"
)

// ChallengeStore keeps at most one signing challenge per wallet address.
// Entries expire on their own; readers still check ExpiresAt because a stale
// entry may linger between expiry and eviction.
type ChallengeStore interface {
	PutChallenge(ctx context.Context, ch *models.WalletChallenge, ttl time.Duration) error
	// GetChallenge returns (nil, nil) when no challenge is stored.
	GetChallenge(ctx context.Context, walletAddress string) (*models.WalletChallenge, error)
	DeleteChallenge(ctx context.Context, walletAddress string) error
}

// IdentityStore persists identities and their lookup indexes. Profile fields
// go through SaveIdentity; balance fields are only ever touched through the
// atomic LedgerStore operations.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	GetIdentity(ctx context.Context, id string) (*models.Identity, error)
	// GetIdentityByWallet returns (nil, nil) when the wallet is unknown.
	GetIdentityByWallet(ctx context.Context, walletAddress string) (*models.Identity, error)
	// SaveIdentity rewrites profile fields and indexes; it must not be used
	// for balance mutation.
	SaveIdentity(ctx context.Context, identity *models.Identity) error

	// FindIdentityByUsername and FindIdentityByEmail are case-insensitive
	// and return "" when no identity holds the value.
	FindIdentityByUsername(ctx context.Context, username string) (string, error)
	FindIdentityByEmail(ctx context.Context, email string) (string, error)

	SetDepositAddress(ctx context.Context, identityID, currency, address string) error
	// GetIdentityByDepositAddress returns (nil, nil) when the address does
	// not belong to any identity.
	GetIdentityByDepositAddress(ctx context.Context, currency, address string) (*models.Identity, error)
}

// LedgerStore performs atomic balance mutation. Every operation is a single
// check-and-set on the identity document so concurrent settlement and deposit
// application cannot lose updates.
type LedgerStore interface {
	// DebitForBet atomically checks balance >= amount, debits the stake,
	// bumps total_wagered and reduces the wager requirement. Returns
	// models.ErrInsufficientBalance without mutating on a failed check.
	DebitForBet(ctx context.Context, identityID string, amount float64) error
	// CreditBalance atomically increments the balance.
	CreditBalance(ctx context.Context, identityID string, amount float64) error

	AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error

	// CreateTransaction stores a new reconciliation record unless one already
	// exists for its TxID; it reports whether the record was created.
	CreateTransaction(ctx context.Context, tx *models.Transaction) (bool, error)
	GetTransactionByTxID(ctx context.Context, txID string) (*models.Transaction, error)
	GetTransactionByTrackID(ctx context.Context, trackID string) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) error
	// ClaimDepositCompleted atomically moves the transaction with this TxID to
	// StateCompleted and applies the deposit (balance, total_deposited, wager
	// requirement rule) in the same step. It reports false when the record is
	// missing or already completed. Claim and credit succeed or fail together,
	// so a failed application leaves the claim open for redelivery and a
	// duplicate delivery can never credit twice.
	ClaimDepositCompleted(ctx context.Context, txID, identityID string, amount float64, completedAt int64) (bool, error)
}

// HistoryStore keeps the bounded ring of settled rounds.
type HistoryStore interface {
	AppendRound(ctx context.Context, round *models.Round, limit int64) error
	RecentRounds(ctx context.Context, limit int64) ([]*models.Round, error)
}

// Store is the full persistence surface the services are wired against.
// RedisStore implements it for production, MemoryStore for tests.
type Store interface {
	ChallengeStore
	IdentityStore
	LedgerStore
	HistoryStore
}
