package services

import (
	"context"

	"github.com/rs/zerolog"

	"soluxe-backend/internal/models"
)

// AffiliateService credits referral commissions on completed deposits. The
// reconciler calls it exactly once per completed external transaction.
type AffiliateService struct {
	ledger *Ledger
	rate   float64
	logger zerolog.Logger
}

func NewAffiliateService(ledger *Ledger, rate float64, logger zerolog.Logger) *AffiliateService {
	return &AffiliateService{
		ledger: ledger,
		rate:   rate,
		logger: logger.With().Str("component", "affiliates").Logger(),
	}
}

// ApplyDepositCommission credits the depositor's referrer. Commission failure
// is logged and swallowed: it must never fail the deposit itself.
func (s *AffiliateService) ApplyDepositCommission(ctx context.Context, depositor *models.Identity, transactionID string, depositUSD float64) {
	if depositor.AffiliateID == "" || s.rate <= 0 {
		return
	}

	commission := depositUSD * s.rate
	if commission <= 0 {
		return
	}

	if err := s.ledger.CreditAffiliate(ctx, depositor.AffiliateID, transactionID, commission); err != nil {
		s.logger.Error().Err(err).
			Str("affiliate_id", depositor.AffiliateID).
			Str("depositor_id", depositor.ID).
			Float64("commission", commission).
			Msg("Failed to credit affiliate commission")
		return
	}

	s.logger.Info().
		Str("affiliate_id", depositor.AffiliateID).
		Float64("commission", commission).
		Msg("Affiliate commission credited")
}
