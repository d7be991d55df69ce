package services_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soluxe-backend/internal/config"
	"soluxe-backend/internal/models"
	"soluxe-backend/internal/services"
)

type authFixture struct {
	store *services.MemoryStore
	clock *manualClock
	chain *fakeChain
	jwt   *services.JWTService
	auth  *services.WalletAuthService
}

func newAuthFixture() *authFixture {
	store := services.NewMemoryStore()
	clock := newManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	chain := &fakeChain{balance: 2.5}
	jwtService := services.NewJWTService(&config.Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	})
	auth := services.NewWalletAuthService(store, jwtService, chain, clock, zerolog.Nop())

	return &authFixture{
		store: store,
		clock: clock,
		chain: chain,
		jwt:   jwtService,
		auth:  auth,
	}
}

func newWallet(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return solana.PublicKeyFromBytes(pub).String(), priv
}

func signMessage(priv ed25519.PrivateKey, message string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, []byte(message)))
}

func TestRequestChallengeMessageFormat(t *testing.T) {
	f := newAuthFixture()
	address, _ := newWallet(t)

	message, err := f.auth.RequestChallenge(context.Background(), address)
	require.NoError(t, err)

	lines := strings.Split(message, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Sign this message to login to Soluxe.", lines[0])
	assert.Equal(t, "Wallet: "+address, lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Nonce: "))
}

func TestVerifyChallengeCreatesNewIdentity(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	address, priv := newWallet(t)

	message, err := f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)

	result, err := f.auth.VerifyChallenge(ctx, address, signMessage(priv, message))
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, address, result.WalletAddress)
	assert.True(t, result.NeedsProfileSetup)
	require.NotNil(t, result.OnChainBalance)
	assert.Equal(t, 2.5, *result.OnChainBalance)

	identity, err := f.store.GetIdentityByWallet(ctx, address)
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, models.DefaultUsername(address), identity.Username)
	assert.False(t, identity.HasCompletedProfile)
	assert.Zero(t, identity.Balance)

	claims, err := f.jwt.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, claims.IdentityID)
}

func TestVerifyChallengeReturningIdentity(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	address, priv := newWallet(t)

	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:                  "id-1",
		WalletAddress:       address,
		Username:            "returning",
		Email:               "returning@example.com",
		HasCompletedProfile: true,
		Balance:             120,
	}))

	message, err := f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)

	result, err := f.auth.VerifyChallenge(ctx, address, signMessage(priv, message))
	require.NoError(t, err)

	assert.False(t, result.NeedsProfileSetup)

	claims, err := f.jwt.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "id-1", claims.IdentityID)

	// No second identity was minted for the same wallet.
	identity, err := f.store.GetIdentityByWallet(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, "id-1", identity.ID)
	assert.Equal(t, 120.0, identity.Balance)
}

func TestVerifyChallengeIsSingleUse(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	address, priv := newWallet(t)

	message, err := f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)
	sig := signMessage(priv, message)

	_, err = f.auth.VerifyChallenge(ctx, address, sig)
	require.NoError(t, err)

	// Replaying the same valid signature must fail: the challenge is consumed.
	_, err = f.auth.VerifyChallenge(ctx, address, sig)
	assert.ErrorIs(t, err, models.ErrChallengeExpired)
}

func TestVerifyChallengeExpires(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	address, priv := newWallet(t)

	message, err := f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)

	f.clock.Advance(5*time.Minute + time.Second)

	_, err = f.auth.VerifyChallenge(ctx, address, signMessage(priv, message))
	assert.ErrorIs(t, err, models.ErrChallengeExpired)
}

func TestVerifyChallengeWithoutRequest(t *testing.T) {
	f := newAuthFixture()
	address, priv := newWallet(t)

	_, err := f.auth.VerifyChallenge(context.Background(), address, signMessage(priv, "anything"))
	assert.ErrorIs(t, err, models.ErrChallengeExpired)
}

func TestVerifyChallengeRejectsWrongSignature(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	address, priv := newWallet(t)

	_, err := f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)

	// Signed the wrong message.
	_, err = f.auth.VerifyChallenge(ctx, address, signMessage(priv, "some other message"))
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	// Signed by a different key.
	message, err := f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)
	_, otherPriv := newWallet(t)
	_, err = f.auth.VerifyChallenge(ctx, address, signMessage(otherPriv, message))
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestVerifyChallengeFailsClosedOnGarbage(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	// Address that is not valid base58 for a public key.
	badAddress := "not-a-wallet-0OIl"
	_, err := f.auth.RequestChallenge(ctx, badAddress)
	require.NoError(t, err)
	_, err = f.auth.VerifyChallenge(ctx, badAddress, base64.StdEncoding.EncodeToString(make([]byte, 64)))
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	// Signature that is not base64 at all.
	address, _ := newWallet(t)
	_, err = f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)
	_, err = f.auth.VerifyChallenge(ctx, address, "%%%not-base64%%%")
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	// Signature bytes of the wrong length for ed25519.
	_, err = f.auth.VerifyChallenge(ctx, address, base64.StdEncoding.EncodeToString(make([]byte, 10)))
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
	_, err = f.auth.VerifyChallenge(ctx, address, base64.StdEncoding.EncodeToString(make([]byte, 65)))
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestVerifyChallengeBalanceLookupFailureDoesNotBlockLogin(t *testing.T) {
	f := newAuthFixture()
	f.chain.err = models.ErrUpstreamUnavailable
	ctx := context.Background()
	address, priv := newWallet(t)

	message, err := f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)

	result, err := f.auth.VerifyChallenge(ctx, address, signMessage(priv, message))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Nil(t, result.OnChainBalance)
}

func TestCompleteProfile(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	address, priv := newWallet(t)

	message, err := f.auth.RequestChallenge(ctx, address)
	require.NoError(t, err)
	result, err := f.auth.VerifyChallenge(ctx, address, signMessage(priv, message))
	require.NoError(t, err)
	claims, err := f.jwt.ValidateToken(result.Token)
	require.NoError(t, err)

	identity, err := f.auth.CompleteProfile(ctx, claims.IdentityID, &models.ProfileRequest{
		Username: "highroller",
		Email:    "High@Example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "highroller", identity.Username)
	assert.Equal(t, "high@example.com", identity.Email)
	assert.True(t, identity.HasCompletedProfile)

	// Repeating with the same values is idempotent.
	_, err = f.auth.CompleteProfile(ctx, claims.IdentityID, &models.ProfileRequest{
		Username: "highroller",
		Email:    "high@example.com",
	})
	require.NoError(t, err)
}

func TestCompleteProfileUniqueness(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            "id-a",
		WalletAddress: "wallet-a",
		Username:      "taken",
		Email:         "taken@example.com",
	}))
	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            "id-b",
		WalletAddress: "wallet-b",
		Username:      "solabc",
	}))

	_, err := f.auth.CompleteProfile(ctx, "id-b", &models.ProfileRequest{
		Username: "TAKEN",
		Email:    "fresh@example.com",
	})
	assert.ErrorIs(t, err, models.ErrUsernameTaken)

	_, err = f.auth.CompleteProfile(ctx, "id-b", &models.ProfileRequest{
		Username: "fresh",
		Email:    "Taken@Example.com",
	})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	_, err = f.auth.CompleteProfile(ctx, "missing", &models.ProfileRequest{
		Username: "fresh",
		Email:    "fresh@example.com",
	})
	assert.ErrorIs(t, err, models.ErrIdentityNotFound)
}

func TestCompleteProfileValidation(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            "id-a",
		WalletAddress: "wallet-a",
		Username:      "solabc",
	}))

	cases := []models.ProfileRequest{
		{Username: "ab", Email: "ok@example.com"},              // too short
		{Username: strings.Repeat("x", 17), Email: "a@b.com"},  // too long
		{Username: "validname", Email: "not-an-email"},         // bad email
		{Username: "validname", Email: ""},                     // missing email
	}
	for _, req := range cases {
		r := req
		_, err := f.auth.CompleteProfile(ctx, "id-a", &r)
		assert.Error(t, err, "request %+v should be rejected", req)
		assert.False(t, errors.Is(err, models.ErrIdentityNotFound))
	}
}

func TestGetBalanceInfo(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            "id-a",
		WalletAddress: "wallet-a",
		Username:      "solabc",
		Balance:       42,
	}))

	info, err := f.auth.GetBalanceInfo(ctx, "id-a")
	require.NoError(t, err)
	assert.Equal(t, "wallet-a", info.WalletAddress)
	assert.Equal(t, 42.0, info.WithdrawableBalance)
	assert.True(t, info.CanWithdraw)
	require.NotNil(t, info.OnChainBalance)
	assert.Equal(t, 2.5, *info.OnChainBalance)
	assert.True(t, info.CanDeposit)

	// RPC failure degrades to a nil on-chain figure.
	f.chain.err = models.ErrUpstreamUnavailable
	info, err = f.auth.GetBalanceInfo(ctx, "id-a")
	require.NoError(t, err)
	assert.Nil(t, info.OnChainBalance)
	assert.False(t, info.CanDeposit)

	_, err = f.auth.GetBalanceInfo(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrIdentityNotFound)
}
