package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"soluxe-backend/internal/logger"
	"soluxe-backend/internal/models"
)

const challengeTTL = 5 * time.Minute

// WalletAuthService runs the challenge-response login protocol: a wallet
// requests a nonce message, signs it, and trades the signature for a session
// token and an identity record.
type WalletAuthService struct {
	store  Store
	jwt    *JWTService
	chain  ChainClient
	clock  Clock
	logger zerolog.Logger
}

func NewWalletAuthService(store Store, jwtService *JWTService, chain ChainClient, clock Clock, logger zerolog.Logger) *WalletAuthService {
	return &WalletAuthService{
		store:  store,
		jwt:    jwtService,
		chain:  chain,
		clock:  clock,
		logger: logger.With().Str("component", "wallet_auth").Logger(),
	}
}

// RequestChallenge issues a fresh signing message for the address,
// overwriting any previous challenge. It has no side effect on identities.
func (s *WalletAuthService) RequestChallenge(ctx context.Context, walletAddress string) (string, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	nonce := uuid.New().String()

	message := strings.Join([]string{
		"Sign this message to login to Soluxe.",
		fmt.Sprintf("Wallet: %s", walletAddress),
		fmt.Sprintf("Nonce: %s", nonce),
	}, "\n")

	challenge := &models.WalletChallenge{
		WalletAddress: walletAddress,
		Nonce:         nonce,
		Message:       message,
		ExpiresAt:     s.clock.Now().Add(challengeTTL).UnixMilli(),
	}

	if err := s.store.PutChallenge(ctx, challenge, challengeTTL); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}

	return message, nil
}

// VerifyChallenge validates the signature against the stored challenge,
// consumes the challenge, finds or creates the identity, and issues a session
// token. The on-chain balance lookup is best-effort and never fails the login.
func (s *WalletAuthService) VerifyChallenge(ctx context.Context, walletAddress, signatureBase64 string) (*models.AuthResult, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	signatureBase64 = strings.TrimSpace(signatureBase64)

	challenge, err := s.store.GetChallenge(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge == nil || s.clock.Now().UnixMilli() > challenge.ExpiresAt {
		return nil, models.ErrChallengeExpired
	}

	if err := VerifyWalletSignature(walletAddress, challenge.Message, signatureBase64); err != nil {
		return nil, err
	}

	// Single use: the challenge is gone even if a later step fails.
	if err := s.store.DeleteChallenge(ctx, walletAddress); err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	identity, err := s.store.GetIdentityByWallet(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	if identity == nil {
		username := models.DefaultUsername(walletAddress)
		now := s.clock.Now().UnixMilli()
		identity = &models.Identity{
			ID:                  uuid.New().String(),
			WalletAddress:       walletAddress,
			Username:            username,
			Email:               "",
			Avatar:              models.DefaultAvatar(username),
			HasCompletedProfile: false,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.store.CreateIdentity(ctx, identity); err != nil {
			return nil, fmt.Errorf("failed to create identity: %w", err)
		}
		wlog := logger.WithWallet(s.logger, walletAddress)
		wlog.Info().Str("identity_id", identity.ID).Msg("Created identity for new wallet")
	}

	token, err := s.jwt.GenerateToken(identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	result := &models.AuthResult{
		Token:             token,
		WalletAddress:     walletAddress,
		NeedsProfileSetup: !identity.HasCompletedProfile,
	}

	if balance, err := s.chain.GetBalance(ctx, walletAddress); err != nil {
		s.logger.Warn().Err(err).Str("wallet", walletAddress).Msg("On-chain balance lookup failed, continuing login")
	} else {
		result.OnChainBalance = &balance
	}

	return result, nil
}

// CompleteProfile sets username and email once both pass uniqueness checks.
// Repeating the call with identical values succeeds.
func (s *WalletAuthService) CompleteProfile(ctx context.Context, identityID string, req *models.ProfileRequest) (*models.Identity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if identity == nil {
		return nil, models.ErrIdentityNotFound
	}

	if ownerID, err := s.store.FindIdentityByUsername(ctx, req.Username); err != nil {
		return nil, fmt.Errorf("username lookup failed: %w", err)
	} else if ownerID != "" && ownerID != identity.ID {
		return nil, models.ErrUsernameTaken
	}

	if ownerID, err := s.store.FindIdentityByEmail(ctx, req.Email); err != nil {
		return nil, fmt.Errorf("email lookup failed: %w", err)
	} else if ownerID != "" && ownerID != identity.ID {
		return nil, models.ErrEmailTaken
	}

	identity.Username = req.Username
	identity.Email = req.Email
	identity.HasCompletedProfile = true
	if identity.Avatar == "" {
		identity.Avatar = models.DefaultAvatar(req.Username)
	}
	identity.UpdatedAt = s.clock.Now().UnixMilli()

	if err := s.store.SaveIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	return identity, nil
}

// GetBalanceInfo reports the wallet's on-chain balance alongside the site
// balance. A failed RPC lookup degrades to a nil on-chain figure.
func (s *WalletAuthService) GetBalanceInfo(ctx context.Context, identityID string) (*models.BalanceInfo, error) {
	identity, err := s.store.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if identity == nil {
		return nil, models.ErrIdentityNotFound
	}

	info := &models.BalanceInfo{
		WalletAddress:       identity.WalletAddress,
		CanWithdraw:         identity.Balance > 0,
		WithdrawableBalance: identity.Balance,
	}

	if balance, err := s.chain.GetBalance(ctx, identity.WalletAddress); err != nil {
		s.logger.Warn().Err(err).Str("wallet", identity.WalletAddress).Msg("On-chain balance lookup failed")
	} else {
		info.OnChainBalance = &balance
		info.CanDeposit = balance > 0
	}

	return info, nil
}
