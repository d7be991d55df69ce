package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soluxe-backend/internal/models"
	"soluxe-backend/internal/services"
)

type reconcilerFixture struct {
	store      *services.MemoryStore
	clock      *manualClock
	ledger     *services.Ledger
	reconciler *services.Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	store := services.NewMemoryStore()
	clock := newManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ledger := services.NewLedger(store, clock, zerolog.Nop())
	rates := services.NewRateTable()
	affiliates := services.NewAffiliateService(ledger, 0.05, zerolog.Nop())
	reconciler := services.NewReconciler(store, ledger, rates, affiliates, clock, zerolog.Nop())

	return &reconcilerFixture{
		store:      store,
		clock:      clock,
		ledger:     ledger,
		reconciler: reconciler,
	}
}

func (f *reconcilerFixture) seedDepositor(t *testing.T, id, address string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            id,
		WalletAddress: "wallet-" + id,
		Username:      "player-" + id,
	}))
	require.NoError(t, f.store.SetDepositAddress(ctx, id, "SOL", address))
}

func depositCallback(status string) *models.ProviderCallback {
	return &models.ProviderCallback{
		Type:           models.CallbackTypePayment,
		TxID:           "tx1",
		TrackID:        "track1",
		Status:         status,
		Address:        "deposit-addr-a",
		PayCurrency:    "SOL",
		ReceivedAmount: 2.0,
	}
}

func TestDepositConfirmingRecordsPending(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()
	f.seedDepositor(t, "a", "deposit-addr-a")

	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusConfirming)))

	tx, err := f.store.GetTransactionByTxID(ctx, "tx1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, models.StatePending, tx.State)
	assert.Equal(t, models.TransactionTypeDeposit, tx.Type)
	assert.Equal(t, 300.0, tx.SiteValue) // 2 SOL at the table rate
	assert.Equal(t, 2.0, tx.CryptoValue)

	// No balance movement until the provider confirms payment.
	identity, err := f.store.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, identity.Balance)
	assert.Zero(t, identity.TotalDeposited)
}

func TestDepositPaidCreditsOnce(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()
	f.seedDepositor(t, "a", "deposit-addr-a")

	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusConfirming)))
	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))

	// The provider redelivers; the credit must not repeat.
	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))
	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))

	identity, err := f.store.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 300.0, identity.Balance)
	assert.Equal(t, 300.0, identity.TotalDeposited)
	assert.Equal(t, 300.0, identity.WagerNeededForWithdraw)

	tx, err := f.store.GetTransactionByTxID(ctx, "tx1")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, tx.State)

	deposits := 0
	for _, entry := range f.store.LedgerEntries("a") {
		if entry.Type == models.EntryDeposit {
			deposits++
			assert.Equal(t, 300.0, entry.Amount)
		}
	}
	assert.Equal(t, 1, deposits)
}

// flakyDepositStore fails the first n deposit applications.
type flakyDepositStore struct {
	services.Store
	failures int
}

func (s *flakyDepositStore) ClaimDepositCompleted(ctx context.Context, txID, identityID string, amount float64, completedAt int64) (bool, error) {
	if s.failures > 0 {
		s.failures--
		return false, errors.New("store unavailable")
	}
	return s.Store.ClaimDepositCompleted(ctx, txID, identityID, amount, completedAt)
}

func TestDepositTransientFailureRecoversOnRedelivery(t *testing.T) {
	memory := services.NewMemoryStore()
	store := &flakyDepositStore{Store: memory, failures: 1}
	clock := newManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ledger := services.NewLedger(store, clock, zerolog.Nop())
	rates := services.NewRateTable()
	affiliates := services.NewAffiliateService(ledger, 0.05, zerolog.Nop())
	reconciler := services.NewReconciler(store, ledger, rates, affiliates, clock, zerolog.Nop())

	ctx := context.Background()
	require.NoError(t, memory.CreateIdentity(ctx, &models.Identity{
		ID:            "a",
		WalletAddress: "wallet-a",
		Username:      "player-a",
	}))
	require.NoError(t, memory.SetDepositAddress(ctx, "a", "SOL", "deposit-addr-a"))

	// The failed application must surface as an error so the provider
	// redelivers; the claim must not be consumed by the failure.
	err := reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid))
	require.Error(t, err)

	identity, err := memory.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, identity.Balance)

	// Redelivery applies the deposit.
	require.NoError(t, reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))

	identity, err = memory.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 300.0, identity.Balance)
	assert.Equal(t, 300.0, identity.TotalDeposited)

	// And a third delivery is still a no-op.
	require.NoError(t, reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))
	identity, err = memory.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 300.0, identity.Balance)

	deposits := 0
	for _, entry := range memory.LedgerEntries("a") {
		if entry.Type == models.EntryDeposit {
			deposits++
		}
	}
	assert.Equal(t, 1, deposits)
}

func TestDepositPaidWithoutPriorConfirming(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()
	f.seedDepositor(t, "a", "deposit-addr-a")

	// Out-of-order delivery: Paid arrives first.
	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))

	identity, err := f.store.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 300.0, identity.Balance)

	// The late Confirming is a no-op.
	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusConfirming)))
	identity, err = f.store.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 300.0, identity.Balance)
}

func TestDepositClearsWagerDeficit(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:                     "a",
		WalletAddress:          "wallet-a",
		Username:               "player-a",
		WagerNeededForWithdraw: -50,
	}))
	require.NoError(t, f.store.SetDepositAddress(ctx, "a", "SOL", "deposit-addr-a"))

	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))

	// A negative requirement is first cleared to zero, then the full deposit
	// value is added on top.
	identity, err := f.store.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 300.0, identity.WagerNeededForWithdraw)
}

func TestDepositCreditsAffiliateOnce(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            "ref",
		WalletAddress: "wallet-ref",
		Username:      "referrer",
	}))
	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            "a",
		WalletAddress: "wallet-a",
		Username:      "player-a",
		AffiliateID:   "ref",
	}))
	require.NoError(t, f.store.SetDepositAddress(ctx, "a", "SOL", "deposit-addr-a"))

	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))
	require.NoError(t, f.reconciler.HandleCallback(ctx, depositCallback(models.StatusPaid)))

	referrer, err := f.store.GetIdentity(ctx, "ref")
	require.NoError(t, err)
	assert.Equal(t, 15.0, referrer.Balance) // 5% of 300

	// Commission lands as an affiliate ledger entry, not a deposit.
	entries := f.store.LedgerEntries("ref")
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryAffiliate, entries[0].Type)
	assert.Equal(t, 15.0, entries[0].Amount)
	assert.Zero(t, referrer.TotalDeposited)
}

func TestDepositUnknownAddress(t *testing.T) {
	f := newReconcilerFixture()

	err := f.reconciler.HandleCallback(context.Background(), depositCallback(models.StatusPaid))
	assert.ErrorIs(t, err, models.ErrIdentityNotFound)
}

func TestDepositUnsupportedCurrency(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            "a",
		WalletAddress: "wallet-a",
		Username:      "player-a",
	}))
	require.NoError(t, f.store.SetDepositAddress(ctx, "a", "DOGE", "deposit-addr-a"))

	cb := depositCallback(models.StatusPaid)
	cb.PayCurrency = "DOGE"
	err := f.reconciler.HandleCallback(ctx, cb)
	assert.ErrorIs(t, err, models.ErrUnsupportedCurrency)

	identity, err := f.store.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, identity.Balance)
}

func TestPayoutProgression(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	require.NoError(t, f.store.CreateIdentity(ctx, &models.Identity{
		ID:            "a",
		WalletAddress: "wallet-a",
		Username:      "player-a",
		Balance:       100,
	}))
	created, err := f.store.CreateTransaction(ctx, &models.Transaction{
		ID:         "payout-1",
		IdentityID: "a",
		Type:       models.TransactionTypePayout,
		Currency:   "SOL",
		SiteValue:  75,
		TrackID:    "track9",
		TxID:       "pending-track9",
		State:      models.StatePending,
	})
	require.NoError(t, err)
	require.True(t, created)

	require.NoError(t, f.reconciler.HandleCallback(ctx, &models.ProviderCallback{
		Type:    models.CallbackTypePayout,
		TrackID: "track9",
		TxID:    "chain-tx-9",
		Status:  models.StatusConfirming,
		Amount:  0.5,
	}))

	tx, err := f.store.GetTransactionByTrackID(ctx, "track9")
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, tx.State)
	assert.Equal(t, "chain-tx-9", tx.TxID)
	assert.Equal(t, 0.5, tx.CryptoValue)

	require.NoError(t, f.reconciler.HandleCallback(ctx, &models.ProviderCallback{
		Type:    models.CallbackTypePayout,
		TrackID: "track9",
		TxID:    "chain-tx-9",
		Status:  models.StatusComplete,
		Amount:  0.5,
	}))

	tx, err = f.store.GetTransactionByTrackID(ctx, "track9")
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, tx.State)

	// Payout callbacks never move the balance; the withdrawal already did.
	identity, err := f.store.GetIdentity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 100.0, identity.Balance)
}

func TestPayoutUnknownTrackID(t *testing.T) {
	f := newReconcilerFixture()

	err := f.reconciler.HandleCallback(context.Background(), &models.ProviderCallback{
		Type:    models.CallbackTypePayout,
		TrackID: "missing",
		Status:  models.StatusComplete,
	})
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestCallbackUnknownType(t *testing.T) {
	f := newReconcilerFixture()

	err := f.reconciler.HandleCallback(context.Background(), &models.ProviderCallback{
		Type: "refund",
	})
	assert.Error(t, err)
}
