package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"soluxe-backend/internal/config"
	"soluxe-backend/internal/models"
)

const (
	keyChallenge      = "challenge:%s"
	keyIdentity       = "identity:%s"
	keyWalletIndex    = "identity:wallet:%s"
	keyUsernameIndex  = "identity:username:%s"
	keyEmailIndex     = "identity:email:%s"
	keyDepositIndex   = "identity:deposit:%s:%s"
	keyTransaction    = "transaction:%s"
	keyTxIDIndex      = "transaction:txid:%s"
	keyTrackIDIndex   = "transaction:track:%s"
	keyLedgerEntries  = "ledger:%s"
	keyRoundHistory   = "rounds:history"
	ledgerEntriesKept = 500
)

// RedisStore implements Store on Redis. Identity documents are JSON values;
// balance mutation goes through Lua scripts so check-and-debit, credits and
// deposit application are atomic against concurrent writers.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// --- challenges ---

func (s *RedisStore) PutChallenge(ctx context.Context, ch *models.WalletChallenge, ttl time.Duration) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, fmt.Sprintf(keyChallenge, ch.WalletAddress), data, ttl).Err()
}

func (s *RedisStore) GetChallenge(ctx context.Context, walletAddress string) (*models.WalletChallenge, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyChallenge, walletAddress)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	var ch models.WalletChallenge
	if err := json.Unmarshal([]byte(data), &ch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return &ch, nil
}

func (s *RedisStore) DeleteChallenge(ctx context.Context, walletAddress string) error {
	return s.client.Del(ctx, fmt.Sprintf(keyChallenge, walletAddress)).Err()
}

// --- identities ---

func (s *RedisStore) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	if err := s.writeIdentity(ctx, identity); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(keyWalletIndex, identity.WalletAddress), identity.ID, 0)
	pipe.Set(ctx, fmt.Sprintf(keyUsernameIndex, strings.ToLower(identity.Username)), identity.ID, 0)
	if identity.Email != "" {
		pipe.Set(ctx, fmt.Sprintf(keyEmailIndex, strings.ToLower(identity.Email)), identity.ID, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyIdentity, id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	var identity models.Identity
	if err := json.Unmarshal([]byte(data), &identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return &identity, nil
}

func (s *RedisStore) GetIdentityByWallet(ctx context.Context, walletAddress string) (*models.Identity, error) {
	id, err := s.client.Get(ctx, fmt.Sprintf(keyWalletIndex, walletAddress)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wallet index: %w", err)
	}
	return s.GetIdentity(ctx, id)
}

// saveProfileScript rewrites only the profile fields inside Redis, so a
// concurrent balance script can never be clobbered by a stale document held
// by the caller.
var saveProfileScript = redis.NewScript(`
	local key = KEYS[1]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("identity not found")
	end

	local identity = cjson.decode(data)
	identity.username = ARGV[1]
	identity.email = ARGV[2]
	identity.avatar = ARGV[3]
	identity.has_completed_profile = ARGV[4] == "1"
	identity.updated_at = tonumber(ARGV[5])

	redis.call("SET", key, cjson.encode(identity))
	return "OK"
`)

// SaveIdentity rewrites the profile fields of an existing identity and moves
// its username/email indexes. Balance fields are never written here; the Lua
// balance scripts are the only writers that change them.
func (s *RedisStore) SaveIdentity(ctx context.Context, identity *models.Identity) error {
	existing, err := s.GetIdentity(ctx, identity.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return models.ErrIdentityNotFound
	}

	completed := "0"
	if identity.HasCompletedProfile {
		completed = "1"
	}
	err = saveProfileScript.Run(ctx, s.client,
		[]string{fmt.Sprintf(keyIdentity, identity.ID)},
		identity.Username, identity.Email, identity.Avatar, completed, identity.UpdatedAt,
	).Err()
	if err != nil {
		if strings.Contains(err.Error(), "identity not found") {
			return models.ErrIdentityNotFound
		}
		return fmt.Errorf("failed to save profile: %w", err)
	}

	pipe := s.client.TxPipeline()
	if !strings.EqualFold(existing.Username, identity.Username) {
		pipe.Del(ctx, fmt.Sprintf(keyUsernameIndex, strings.ToLower(existing.Username)))
	}
	pipe.Set(ctx, fmt.Sprintf(keyUsernameIndex, strings.ToLower(identity.Username)), identity.ID, 0)
	if existing.Email != "" && !strings.EqualFold(existing.Email, identity.Email) {
		pipe.Del(ctx, fmt.Sprintf(keyEmailIndex, strings.ToLower(existing.Email)))
	}
	if identity.Email != "" {
		pipe.Set(ctx, fmt.Sprintf(keyEmailIndex, strings.ToLower(identity.Email)), identity.ID, 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) writeIdentity(ctx context.Context, identity *models.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}
	return s.client.Set(ctx, fmt.Sprintf(keyIdentity, identity.ID), data, 0).Err()
}

func (s *RedisStore) FindIdentityByUsername(ctx context.Context, username string) (string, error) {
	return s.lookupIndex(ctx, fmt.Sprintf(keyUsernameIndex, strings.ToLower(username)))
}

func (s *RedisStore) FindIdentityByEmail(ctx context.Context, email string) (string, error) {
	return s.lookupIndex(ctx, fmt.Sprintf(keyEmailIndex, strings.ToLower(email)))
}

func (s *RedisStore) lookupIndex(ctx context.Context, key string) (string, error) {
	id, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index lookup failed: %w", err)
	}
	return id, nil
}

// setDepositAddressScript adds one currency→address entry to the identity
// document inside Redis; balance fields are untouched.
var setDepositAddressScript = redis.NewScript(`
	local key = KEYS[1]

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("identity not found")
	end

	local identity = cjson.decode(data)
	local addrs = identity.deposit_addresses
	if type(addrs) ~= "table" then
		addrs = {}
	end
	addrs[ARGV[1]] = ARGV[2]
	identity.deposit_addresses = addrs

	redis.call("SET", key, cjson.encode(identity))
	return "OK"
`)

func (s *RedisStore) SetDepositAddress(ctx context.Context, identityID, currency, address string) error {
	currency = strings.ToLower(currency)

	err := setDepositAddressScript.Run(ctx, s.client,
		[]string{fmt.Sprintf(keyIdentity, identityID)},
		currency, address,
	).Err()
	if err != nil {
		if strings.Contains(err.Error(), "identity not found") {
			return models.ErrIdentityNotFound
		}
		return fmt.Errorf("failed to set deposit address: %w", err)
	}

	return s.client.Set(ctx, fmt.Sprintf(keyDepositIndex, currency, address), identityID, 0).Err()
}

func (s *RedisStore) GetIdentityByDepositAddress(ctx context.Context, currency, address string) (*models.Identity, error) {
	id, err := s.lookupIndex(ctx, fmt.Sprintf(keyDepositIndex, strings.ToLower(currency), address))
	if err != nil || id == "" {
		return nil, err
	}
	return s.GetIdentity(ctx, id)
}

// --- ledger ---

var debitBetScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("identity not found")
	end

	local identity = cjson.decode(data)

	if (identity.balance or 0) < amount then
		return redis.error_reply("insufficient balance")
	end

	identity.balance = identity.balance - amount
	identity.total_wagered = (identity.total_wagered or 0) + amount
	identity.wager_needed_for_withdraw = (identity.wager_needed_for_withdraw or 0) - amount

	redis.call("SET", key, cjson.encode(identity))
	return "OK"
`)

var creditBalanceScript = redis.NewScript(`
	local key = KEYS[1]
	local amount = tonumber(ARGV[1])

	local data = redis.call("GET", key)
	if not data then
		return redis.error_reply("identity not found")
	end

	local identity = cjson.decode(data)
	identity.balance = (identity.balance or 0) + amount

	redis.call("SET", key, cjson.encode(identity))
	return "OK"
`)

func (s *RedisStore) DebitForBet(ctx context.Context, identityID string, amount float64) error {
	key := fmt.Sprintf(keyIdentity, identityID)
	err := debitBetScript.Run(ctx, s.client, []string{key}, amount).Err()
	if err != nil && strings.Contains(err.Error(), "insufficient balance") {
		return models.ErrInsufficientBalance
	}
	return err
}

func (s *RedisStore) CreditBalance(ctx context.Context, identityID string, amount float64) error {
	key := fmt.Sprintf(keyIdentity, identityID)
	return creditBalanceScript.Run(ctx, s.client, []string{key}, amount).Err()
}

func (s *RedisStore) AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	key := fmt.Sprintf(keyLedgerEntries, entry.IdentityID)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, ledgerEntriesKept-1)
	_, err = pipe.Exec(ctx)
	return err
}

// --- transactions ---

func (s *RedisStore) CreateTransaction(ctx context.Context, tx *models.Transaction) (bool, error) {
	// The txid index doubles as the creation lock: SETNX loses for
	// duplicate deliveries racing on the same external transaction.
	ok, err := s.client.SetNX(ctx, fmt.Sprintf(keyTxIDIndex, tx.TxID), tx.ID, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve transaction: %w", err)
	}
	if !ok {
		return false, nil
	}

	data, err := json.Marshal(tx)
	if err != nil {
		return false, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(keyTransaction, tx.ID), data, 0)
	if tx.TrackID != "" {
		pipe.Set(ctx, fmt.Sprintf(keyTrackIDIndex, tx.TrackID), tx.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisStore) GetTransactionByTxID(ctx context.Context, txID string) (*models.Transaction, error) {
	id, err := s.lookupIndex(ctx, fmt.Sprintf(keyTxIDIndex, txID))
	if err != nil || id == "" {
		return nil, err
	}
	return s.getTransaction(ctx, id)
}

func (s *RedisStore) GetTransactionByTrackID(ctx context.Context, trackID string) (*models.Transaction, error) {
	id, err := s.lookupIndex(ctx, fmt.Sprintf(keyTrackIDIndex, trackID))
	if err != nil || id == "" {
		return nil, err
	}
	return s.getTransaction(ctx, id)
}

func (s *RedisStore) getTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(keyTransaction, id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	var tx models.Transaction
	if err := json.Unmarshal([]byte(data), &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

func (s *RedisStore) UpdateTransaction(ctx context.Context, tx *models.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, fmt.Sprintf(keyTransaction, tx.ID), data, 0)
	if tx.TxID != "" {
		pipe.Set(ctx, fmt.Sprintf(keyTxIDIndex, tx.TxID), tx.ID, 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// claimDepositScript moves the transaction to completed and applies the
// deposit to the identity in one atomic step: a crash or error between the
// state flip and the credit is impossible, so the provider's redelivery can
// always retry an unapplied deposit and never re-credit an applied one.
//
// Deposit rule: an identity in wagering deficit has the requirement advanced
// by the absolute deficit plus the deposit, which resets it to the deposit
// amount. Intentional, carried over from the payment integration.
var claimDepositScript = redis.NewScript(`
	local indexKey = KEYS[1]
	local identityKey = KEYS[2]
	local amount = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])

	local id = redis.call("GET", indexKey)
	if not id then
		return 0
	end

	local txKey = "transaction:" .. id
	local data = redis.call("GET", txKey)
	if not data then
		return 0
	end

	local tx = cjson.decode(data)
	if tx.state == 3 then
		return 0
	end

	local idata = redis.call("GET", identityKey)
	if not idata then
		return redis.error_reply("identity not found")
	end

	local identity = cjson.decode(idata)
	identity.balance = (identity.balance or 0) + amount
	identity.total_deposited = (identity.total_deposited or 0) + amount

	local wager = identity.wager_needed_for_withdraw or 0
	local increment = amount
	if wager < 0 then
		increment = math.abs(wager) + amount
	end
	identity.wager_needed_for_withdraw = wager + increment

	tx.state = 3
	tx.updated_at = now

	redis.call("SET", identityKey, cjson.encode(identity))
	redis.call("SET", txKey, cjson.encode(tx))
	return 1
`)

func (s *RedisStore) ClaimDepositCompleted(ctx context.Context, txID, identityID string, amount float64, completedAt int64) (bool, error) {
	res, err := claimDepositScript.Run(ctx, s.client,
		[]string{fmt.Sprintf(keyTxIDIndex, txID), fmt.Sprintf(keyIdentity, identityID)},
		amount, completedAt,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to claim deposit: %w", err)
	}
	return res == 1, nil
}

// --- round history ---

func (s *RedisStore) AppendRound(ctx context.Context, round *models.Round, limit int64) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, keyRoundHistory, data)
	pipe.LTrim(ctx, keyRoundHistory, 0, limit-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) RecentRounds(ctx context.Context, limit int64) ([]*models.Round, error) {
	items, err := s.client.LRange(ctx, keyRoundHistory, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read round history: %w", err)
	}

	rounds := make([]*models.Round, 0, len(items))
	for _, item := range items {
		var round models.Round
		if err := json.Unmarshal([]byte(item), &round); err != nil {
			continue
		}
		rounds = append(rounds, &round)
	}
	return rounds, nil
}
