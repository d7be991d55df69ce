package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"soluxe-backend/internal/models"
)

// Ledger is the single entry point for balance mutation. Every movement goes
// through an atomic store operation and leaves a ledger entry behind.
type Ledger struct {
	store  Store
	clock  Clock
	logger zerolog.Logger
}

func NewLedger(store Store, clock Clock, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		clock:  clock,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// DebitStake escrows a bet stake. Returns models.ErrInsufficientBalance when
// the identity cannot cover the amount; nothing is mutated in that case.
func (l *Ledger) DebitStake(ctx context.Context, identityID, roundID string, amount float64) error {
	if err := l.store.DebitForBet(ctx, identityID, amount); err != nil {
		return err
	}

	l.appendEntry(ctx, &models.LedgerEntry{
		IdentityID: identityID,
		Type:       models.EntryBetStake,
		Amount:     -amount,
		Reason:     "Roulette bet",
		RefID:      roundID,
	})
	return nil
}

// CreditPayout credits a settlement win.
func (l *Ledger) CreditPayout(ctx context.Context, identityID, roundID string, amount float64) error {
	if err := l.store.CreditBalance(ctx, identityID, amount); err != nil {
		return fmt.Errorf("failed to credit payout: %w", err)
	}

	l.appendEntry(ctx, &models.LedgerEntry{
		IdentityID: identityID,
		Type:       models.EntryBetPayout,
		Amount:     amount,
		Reason:     "Roulette win",
		RefID:      roundID,
	})
	return nil
}

// RecordDeposit writes the ledger entry for a deposit already applied by
// LedgerStore.ClaimDepositCompleted. The balance moved atomically with the
// claim; only the entry is appended here.
func (l *Ledger) RecordDeposit(ctx context.Context, identityID, transactionID string, amount float64) {
	l.appendEntry(ctx, &models.LedgerEntry{
		IdentityID: identityID,
		Type:       models.EntryDeposit,
		Amount:     amount,
		Reason:     "Crypto deposit",
		RefID:      transactionID,
	})
}

// CreditAffiliate credits a referral commission.
func (l *Ledger) CreditAffiliate(ctx context.Context, identityID, transactionID string, amount float64) error {
	if err := l.store.CreditBalance(ctx, identityID, amount); err != nil {
		return fmt.Errorf("failed to credit affiliate: %w", err)
	}

	l.appendEntry(ctx, &models.LedgerEntry{
		IdentityID: identityID,
		Type:       models.EntryAffiliate,
		Amount:     amount,
		Reason:     "Affiliate deposit commission",
		RefID:      transactionID,
	})
	return nil
}

// appendEntry records the movement. The balance mutation already happened, so
// a failed entry write is logged rather than propagated.
func (l *Ledger) appendEntry(ctx context.Context, entry *models.LedgerEntry) {
	entry.ID = models.GenerateEntryID()
	entry.CreatedAt = l.clock.Now().UnixMilli()

	if err := l.store.AppendLedgerEntry(ctx, entry); err != nil {
		l.logger.Error().Err(err).
			Str("identity_id", entry.IdentityID).
			Str("type", string(entry.Type)).
			Float64("amount", entry.Amount).
			Msg("Failed to append ledger entry")
	}
}
