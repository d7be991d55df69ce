package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"soluxe-backend/internal/models"
)

// Reconciler applies asynchronous payment-provider notifications to the
// ledger. The provider redelivers on any non-success response, so every
// mutation here is keyed by the external transaction id and tolerates
// duplicate or out-of-order delivery.
type Reconciler struct {
	store      Store
	ledger     *Ledger
	rates      *RateTable
	affiliates *AffiliateService
	clock      Clock
	logger     zerolog.Logger
}

func NewReconciler(store Store, ledger *Ledger, rates *RateTable, affiliates *AffiliateService, clock Clock, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:      store,
		ledger:     ledger,
		rates:      rates,
		affiliates: affiliates,
		clock:      clock,
		logger:     logger.With().Str("component", "reconciler").Logger(),
	}
}

// HandleCallback dispatches one provider notification.
func (r *Reconciler) HandleCallback(ctx context.Context, cb *models.ProviderCallback) error {
	switch cb.Type {
	case models.CallbackTypePayment:
		return r.ApplyExternalDeposit(ctx, cb)
	case models.CallbackTypePayout:
		return r.ApplyExternalPayout(ctx, cb)
	default:
		return fmt.Errorf("unknown callback type: %q", cb.Type)
	}
}

// ApplyExternalDeposit processes a deposit notification. "Confirming" records
// a pending transaction with no balance change; "Paid" claims the transaction
// and credits the balance exactly once no matter how often it is delivered.
func (r *Reconciler) ApplyExternalDeposit(ctx context.Context, cb *models.ProviderCallback) error {
	if cb.TxID == "" {
		return fmt.Errorf("deposit callback missing txID")
	}

	identity, err := r.store.GetIdentityByDepositAddress(ctx, cb.PayCurrency, cb.Address)
	if err != nil {
		return fmt.Errorf("deposit address lookup failed: %w", err)
	}
	if identity == nil {
		// Not a deposit to the site; tell the provider to stop redelivering.
		r.logger.Info().Str("address", cb.Address).Str("currency", cb.PayCurrency).Msg("Deposit callback for unknown address")
		return models.ErrIdentityNotFound
	}

	usdValue, ok := r.rates.ConvertToUSD(cb.ReceivedAmount, cb.PayCurrency)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnsupportedCurrency, cb.PayCurrency)
	}

	tx, err := r.store.GetTransactionByTxID(ctx, cb.TxID)
	if err != nil {
		return fmt.Errorf("transaction lookup failed: %w", err)
	}

	if tx == nil {
		now := r.clock.Now().UnixMilli()
		tx = &models.Transaction{
			ID:          models.GenerateTransactionID(),
			IdentityID:  identity.ID,
			Type:        models.TransactionTypeDeposit,
			Currency:    cb.PayCurrency,
			SiteValue:   usdValue,
			CryptoValue: cb.ReceivedAmount,
			Address:     cb.Address,
			TrackID:     cb.TrackID,
			TxID:        cb.TxID,
			State:       models.StatePending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created, err := r.store.CreateTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		if !created {
			// A concurrent delivery won the race; fall through to the claim.
			tx, err = r.store.GetTransactionByTxID(ctx, cb.TxID)
			if err != nil || tx == nil {
				return fmt.Errorf("failed to reload transaction %s: %w", cb.TxID, err)
			}
		}
	}

	switch cb.Status {
	case models.StatusConfirming:
		return nil

	case models.StatusPaid:
		// Claim and credit are one atomic store operation: an error here
		// leaves the transaction unclaimed, the provider redelivers, and the
		// retry applies the deposit.
		claimed, err := r.store.ClaimDepositCompleted(ctx, cb.TxID, identity.ID, usdValue, r.clock.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to apply deposit: %w", err)
		}
		if !claimed {
			r.logger.Info().Str("tx_id", cb.TxID).Msg("Duplicate deposit notification, already applied")
			return nil
		}

		r.ledger.RecordDeposit(ctx, identity.ID, tx.ID, usdValue)
		r.affiliates.ApplyDepositCommission(ctx, identity, tx.ID, usdValue)

		r.logger.Info().
			Str("identity_id", identity.ID).
			Str("tx_id", cb.TxID).
			Str("usd", models.FormatCurrency(usdValue)).
			Str("currency", cb.PayCurrency).
			Msg("Deposit credited")
		return nil

	default:
		return fmt.Errorf("unexpected deposit status: %q", cb.Status)
	}
}

// ApplyExternalPayout advances a pending payout transaction through provider
// states. It never mutates the balance; the withdrawal flow already debited
// it when the payout was requested.
func (r *Reconciler) ApplyExternalPayout(ctx context.Context, cb *models.ProviderCallback) error {
	if cb.TrackID == "" {
		return fmt.Errorf("payout callback missing trackId")
	}

	tx, err := r.store.GetTransactionByTrackID(ctx, cb.TrackID)
	if err != nil {
		return fmt.Errorf("payout lookup failed: %w", err)
	}
	if tx == nil {
		return models.ErrTransactionNotFound
	}

	switch cb.Status {
	case models.StatusConfirming:
		tx.TxID = cb.TxID
		tx.CryptoValue = cb.Amount
	case models.StatusComplete:
		tx.TxID = cb.TxID
		tx.CryptoValue = cb.Amount
		tx.State = models.StateCompleted
	default:
		return fmt.Errorf("unexpected payout status: %q", cb.Status)
	}

	tx.UpdatedAt = r.clock.Now().UnixMilli()
	if err := r.store.UpdateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to update payout transaction: %w", err)
	}

	r.logger.Info().
		Str("track_id", cb.TrackID).
		Str("tx_id", cb.TxID).
		Str("status", cb.Status).
		Msg("Payout transaction updated")
	return nil
}
