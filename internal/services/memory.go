package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"soluxe-backend/internal/models"
)

// MemoryStore implements Store on mutex-guarded maps with the same atomicity
// guarantees as RedisStore. Used by tests and local development without Redis.
type MemoryStore struct {
	mu sync.Mutex

	challenges   map[string]*models.WalletChallenge
	identities   map[string]*models.Identity
	byWallet     map[string]string
	byUsername   map[string]string
	byEmail      map[string]string
	byDepositKey map[string]string

	transactions map[string]*models.Transaction
	byTxID       map[string]string
	byTrackID    map[string]string

	entries map[string][]*models.LedgerEntry
	history []*models.Round
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges:   make(map[string]*models.WalletChallenge),
		identities:   make(map[string]*models.Identity),
		byWallet:     make(map[string]string),
		byUsername:   make(map[string]string),
		byEmail:      make(map[string]string),
		byDepositKey: make(map[string]string),
		transactions: make(map[string]*models.Transaction),
		byTxID:       make(map[string]string),
		byTrackID:    make(map[string]string),
		entries:      make(map[string][]*models.LedgerEntry),
	}
}

// --- challenges ---

func (s *MemoryStore) PutChallenge(_ context.Context, ch *models.WalletChallenge, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ch
	s.challenges[ch.WalletAddress] = &cp
	return nil
}

func (s *MemoryStore) GetChallenge(_ context.Context, walletAddress string) (*models.WalletChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[walletAddress]
	if !ok {
		return nil, nil
	}
	cp := *ch
	return &cp, nil
}

func (s *MemoryStore) DeleteChallenge(_ context.Context, walletAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, walletAddress)
	return nil
}

// --- identities ---

func (s *MemoryStore) CreateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *identity
	s.identities[cp.ID] = &cp
	s.byWallet[cp.WalletAddress] = cp.ID
	s.byUsername[strings.ToLower(cp.Username)] = cp.ID
	if cp.Email != "" {
		s.byEmail[strings.ToLower(cp.Email)] = cp.ID
	}
	return nil
}

func (s *MemoryStore) GetIdentity(_ context.Context, id string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyIdentity(id), nil
}

func (s *MemoryStore) GetIdentityByWallet(_ context.Context, walletAddress string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byWallet[walletAddress]
	if !ok {
		return nil, nil
	}
	return s.copyIdentity(id), nil
}

func (s *MemoryStore) SaveIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.identities[identity.ID]
	if !ok {
		return models.ErrIdentityNotFound
	}

	cp := *identity
	cp.Balance = existing.Balance
	cp.TotalDeposited = existing.TotalDeposited
	cp.TotalWagered = existing.TotalWagered
	cp.WagerNeededForWithdraw = existing.WagerNeededForWithdraw

	if !strings.EqualFold(existing.Username, cp.Username) {
		delete(s.byUsername, strings.ToLower(existing.Username))
	}
	s.byUsername[strings.ToLower(cp.Username)] = cp.ID

	if existing.Email != "" && !strings.EqualFold(existing.Email, cp.Email) {
		delete(s.byEmail, strings.ToLower(existing.Email))
	}
	if cp.Email != "" {
		s.byEmail[strings.ToLower(cp.Email)] = cp.ID
	}

	s.identities[cp.ID] = &cp
	return nil
}

func (s *MemoryStore) FindIdentityByUsername(_ context.Context, username string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byUsername[strings.ToLower(username)], nil
}

func (s *MemoryStore) FindIdentityByEmail(_ context.Context, email string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEmail[strings.ToLower(email)], nil
}

func (s *MemoryStore) SetDepositAddress(_ context.Context, identityID, currency, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return models.ErrIdentityNotFound
	}
	if identity.DepositAddresses == nil {
		identity.DepositAddresses = make(map[string]string)
	}
	identity.DepositAddresses[strings.ToLower(currency)] = address
	s.byDepositKey[strings.ToLower(currency)+":"+address] = identityID
	return nil
}

func (s *MemoryStore) GetIdentityByDepositAddress(_ context.Context, currency, address string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byDepositKey[strings.ToLower(currency)+":"+address]
	if !ok {
		return nil, nil
	}
	return s.copyIdentity(id), nil
}

func (s *MemoryStore) copyIdentity(id string) *models.Identity {
	identity, ok := s.identities[id]
	if !ok {
		return nil
	}
	cp := *identity
	if identity.DepositAddresses != nil {
		cp.DepositAddresses = make(map[string]string, len(identity.DepositAddresses))
		for k, v := range identity.DepositAddresses {
			cp.DepositAddresses[k] = v
		}
	}
	return &cp
}

// --- ledger ---

func (s *MemoryStore) DebitForBet(_ context.Context, identityID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return models.ErrIdentityNotFound
	}
	if identity.Balance < amount {
		return models.ErrInsufficientBalance
	}

	identity.Balance -= amount
	identity.TotalWagered += amount
	identity.WagerNeededForWithdraw -= amount
	return nil
}

func (s *MemoryStore) CreditBalance(_ context.Context, identityID string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return models.ErrIdentityNotFound
	}
	identity.Balance += amount
	return nil
}

func (s *MemoryStore) AppendLedgerEntry(_ context.Context, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries[entry.IdentityID] = append([]*models.LedgerEntry{&cp}, s.entries[entry.IdentityID]...)
	return nil
}

// LedgerEntries returns the recorded entries for an identity, newest first.
func (s *MemoryStore) LedgerEntries(identityID string) []*models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.LedgerEntry, len(s.entries[identityID]))
	copy(out, s.entries[identityID])
	return out
}

// --- transactions ---

func (s *MemoryStore) CreateTransaction(_ context.Context, tx *models.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byTxID[tx.TxID]; exists {
		return false, nil
	}

	cp := *tx
	s.transactions[cp.ID] = &cp
	s.byTxID[cp.TxID] = cp.ID
	if cp.TrackID != "" {
		s.byTrackID[cp.TrackID] = cp.ID
	}
	return true, nil
}

func (s *MemoryStore) GetTransactionByTxID(_ context.Context, txID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byTxID[txID]
	if !ok {
		return nil, nil
	}
	cp := *s.transactions[id]
	return &cp, nil
}

func (s *MemoryStore) GetTransactionByTrackID(_ context.Context, trackID string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byTrackID[trackID]
	if !ok {
		return nil, nil
	}
	cp := *s.transactions[id]
	return &cp, nil
}

func (s *MemoryStore) UpdateTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[tx.ID]; !ok {
		return models.ErrTransactionNotFound
	}
	cp := *tx
	s.transactions[cp.ID] = &cp
	if cp.TxID != "" {
		s.byTxID[cp.TxID] = cp.ID
	}
	return nil
}

// ClaimDepositCompleted flips the transaction to completed and applies the
// deposit under one lock, mirroring the Redis script: claim and credit are a
// single step, so neither a duplicate delivery nor a partial failure can
// leave the balance wrong.
func (s *MemoryStore) ClaimDepositCompleted(_ context.Context, txID, identityID string, amount float64, completedAt int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byTxID[txID]
	if !ok {
		return false, nil
	}
	tx := s.transactions[id]
	if tx.State == models.StateCompleted {
		return false, nil
	}

	identity, ok := s.identities[identityID]
	if !ok {
		return false, models.ErrIdentityNotFound
	}

	identity.Balance += amount
	identity.TotalDeposited += amount

	increment := amount
	if identity.WagerNeededForWithdraw < 0 {
		increment = -identity.WagerNeededForWithdraw + amount
	}
	identity.WagerNeededForWithdraw += increment

	tx.State = models.StateCompleted
	tx.UpdatedAt = completedAt
	return true, nil
}

// --- round history ---

func (s *MemoryStore) AppendRound(_ context.Context, round *models.Round, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *round
	s.history = append([]*models.Round{&cp}, s.history...)
	if int64(len(s.history)) > limit {
		s.history = s.history[:limit]
	}
	return nil
}

func (s *MemoryStore) RecentRounds(_ context.Context, limit int64) ([]*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.history))
	if limit < n {
		n = limit
	}
	out := make([]*models.Round, n)
	copy(out, s.history[:n])
	return out, nil
}
