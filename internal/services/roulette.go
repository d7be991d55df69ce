package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"soluxe-backend/internal/logger"
	"soluxe-backend/internal/models"
)

// RoundConfig carries the phase timing for the wheel.
type RoundConfig struct {
	BettingWindow time.Duration
	ResolveWindow time.Duration
	SettleDelay   time.Duration
	HistoryLimit  int64
}

// RoundEngine runs the single active wheel round through
// betting -> locked -> resolving -> settled and opens the next one. All phase
// transitions and bet admissions are serialized on the engine mutex; timers
// come from the injected Clock so tests drive virtual time.
type RoundEngine struct {
	mu sync.Mutex

	store  Store
	ledger *Ledger
	bus    *EventBus
	clock  Clock
	cfg    RoundConfig
	logger zerolog.Logger

	current *models.Round
	seed    []byte // secret until the resolving phase
	timer   Timer
	stopped bool
}

func NewRoundEngine(store Store, ledger *Ledger, bus *EventBus, clock Clock, cfg RoundConfig, logger zerolog.Logger) *RoundEngine {
	return &RoundEngine{
		store:  store,
		ledger: ledger,
		bus:    bus,
		clock:  clock,
		cfg:    cfg,
		logger: logger.With().Str("component", "round_engine").Logger(),
	}
}

// Start opens the first round.
func (e *RoundEngine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = false
	e.openRound()
}

// Stop cancels the pending phase timer. The current round is abandoned; no
// new rounds open until Start is called again.
func (e *RoundEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	if e.timer != nil {
		e.timer.Stop()
	}
}

// openRound creates a fresh round in the betting phase, publishes the fairness
// commit, and schedules the lock at the betting deadline. Caller holds e.mu.
func (e *RoundEngine) openRound() {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		// Without a seed there is no fair round to run.
		e.logger.Error().Err(err).Msg("Failed to generate round seed")
		return
	}

	commit := sha256.Sum256(seed)
	now := e.clock.Now()

	e.seed = seed
	e.current = &models.Round{
		ID:                models.GenerateRoundID(),
		Phase:             models.PhaseBetting,
		CommitHash:        hex.EncodeToString(commit[:]),
		StartedAt:         now.UnixMilli(),
		BettingDeadline:   now.Add(e.cfg.BettingWindow).UnixMilli(),
		Bets:              []models.Bet{},
		AnimationDuration: e.cfg.ResolveWindow.Milliseconds(),
	}

	rlog := logger.WithRound(e.logger, e.current.ID)
	rlog.Info().
		Str("commit_hash", e.current.CommitHash).
		Int64("deadline", e.current.BettingDeadline).
		Msg("Round opened")

	e.bus.Publish(Event{Type: EventNewRound, Data: e.snapshotLocked()})
	e.timer = e.clock.AfterFunc(e.cfg.BettingWindow, e.lockRound)
}

// PlaceBet admits a bet into the current round, escrowing the stake with an
// atomic check-and-debit. Admission is serialized so an identity can never
// stake more than its balance across racing requests.
func (e *RoundEngine) PlaceBet(ctx context.Context, identity *models.Identity, side models.BetSide, amount float64) (*models.Bet, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidBetAmount
	}
	if !models.ValidSide(side) {
		return nil, models.ErrInvalidBetSide
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.current
	if round == nil || round.Phase != models.PhaseBetting {
		return nil, models.ErrBettingClosed
	}
	// Single comparison at the boundary: a bet at exactly the deadline
	// instant is still admitted.
	if e.clock.Now().UnixMilli() > round.BettingDeadline {
		return nil, models.ErrBettingClosed
	}

	if err := e.ledger.DebitStake(ctx, identity.ID, round.ID, amount); err != nil {
		return nil, err
	}

	bet := models.Bet{
		IdentityID: identity.ID,
		Username:   identity.Username,
		Side:       side,
		Amount:     amount,
		PlacedAt:   e.clock.Now().UnixMilli(),
	}
	round.Bets = append(round.Bets, bet)

	e.bus.Publish(Event{Type: EventNewPlayer, Data: map[string]interface{}{
		"round_id": round.ID,
		"bet":      bet,
	}})

	return &bet, nil
}

// lockRound closes betting, reveals the seed, and fixes the outcome. The
// resolving phase then runs for the fixed animation window before settlement.
func (e *RoundEngine) lockRound() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || e.current == nil || e.current.Phase != models.PhaseBetting {
		return
	}

	round := e.current
	round.Phase = models.PhaseLocked
	e.bus.Publish(Event{Type: EventGameLocked, Data: map[string]interface{}{
		"round_id": round.ID,
	}})

	index, side := WheelOutcome(e.seed, round.ID)
	round.Phase = models.PhaseResolving
	round.Seed = hex.EncodeToString(e.seed)
	round.WinningIndex = index
	round.Outcome = side
	round.Multiplier = models.Multipliers()[side]

	rlog := logger.WithRound(e.logger, round.ID)
	rlog.Info().
		Str("outcome", string(side)).
		Int("winning_index", index).
		Int("bets", len(round.Bets)).
		Msg("Round locked and resolved")

	e.bus.Publish(Event{Type: EventGameRolled, Data: map[string]interface{}{
		"round_id":           round.ID,
		"seed":               round.Seed,
		"outcome":            round.Outcome,
		"winning_index":      round.WinningIndex,
		"multiplier":         round.Multiplier,
		"animation_duration": round.AnimationDuration,
	}})

	e.timer = e.clock.AfterFunc(e.cfg.ResolveWindow, e.settleRound)
}

// settleRound credits winners, archives the round and schedules the next one.
// A failed credit for one identity is flagged and skipped; it never blocks
// the rest of the batch.
func (e *RoundEngine) settleRound() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped || e.current == nil || e.current.Phase != models.PhaseResolving {
		return
	}

	round := e.current
	round.Phase = models.PhaseSettled
	round.SettledAt = e.clock.Now().UnixMilli()

	ctx := context.Background()

	// One credit per identity, not per bet.
	payouts := make(map[string]float64)
	for _, bet := range round.Bets {
		if bet.Side == round.Outcome {
			payouts[bet.IdentityID] += models.CalculatePayout(bet.Amount, round.Multiplier)
		}
	}

	round.Payouts = make(map[string]float64, len(payouts))
	for identityID, amount := range payouts {
		if err := e.ledger.CreditPayout(ctx, identityID, round.ID, amount); err != nil {
			round.FailedPayouts = append(round.FailedPayouts, identityID)
			e.logger.Error().Err(err).
				Str("round_id", round.ID).
				Str("identity_id", identityID).
				Float64("amount", amount).
				Msg("Settlement credit failed, flagged for reconciliation")
			continue
		}
		round.Payouts[identityID] = amount
	}

	e.bus.Publish(Event{Type: EventGameSettled, Data: map[string]interface{}{
		"round_id": round.ID,
		"outcome":  round.Outcome,
		"payouts":  round.Payouts,
	}})

	if err := e.store.AppendRound(ctx, round, e.cfg.HistoryLimit); err != nil {
		e.logger.Error().Err(err).Str("round_id", round.ID).Msg("Failed to archive round")
	} else {
		e.bus.Publish(Event{Type: EventHistory, Data: e.snapshotLocked()})
	}

	e.timer = e.clock.AfterFunc(e.cfg.SettleDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.stopped {
			e.openRound()
		}
	})
}

// Snapshot returns a copy of the current round safe to send to a client: the
// seed stays hidden until the resolving phase.
func (e *RoundEngine) Snapshot() *models.Round {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *RoundEngine) snapshotLocked() *models.Round {
	if e.current == nil {
		return nil
	}

	snap := *e.current
	snap.Bets = append([]models.Bet(nil), e.current.Bets...)
	if len(e.current.Payouts) > 0 {
		snap.Payouts = make(map[string]float64, len(e.current.Payouts))
		for k, v := range e.current.Payouts {
			snap.Payouts[k] = v
		}
	}
	return &snap
}

// WheelOutcome maps a revealed seed and round id to the winning wheel index.
// Any verifier can replay it: HMAC-SHA256 keyed by the seed over the round id,
// first 32 bits mod the segment count. The commit hash (sha256 of the seed)
// reveals nothing about the index until the seed itself is published.
func WheelOutcome(seed []byte, roundID string) (int, models.BetSide) {
	h := hmac.New(sha256.New, seed)
	h.Write([]byte(roundID))
	digest := hex.EncodeToString(h.Sum(nil))

	n, err := strconv.ParseUint(digest[:8], 16, 64)
	if err != nil {
		// Unreachable for hex input of this shape.
		n = 0
	}

	index := int(n % models.WheelSegments)
	return index, models.WheelSideAt(index)
}

// VerifyOutcome recomputes a round result from a revealed seed, for the
// public fairness endpoint.
func VerifyOutcome(seedHex, roundID string) (int, models.BetSide, string, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return 0, "", "", fmt.Errorf("invalid seed encoding: %w", err)
	}

	commit := sha256.Sum256(seed)
	index, side := WheelOutcome(seed, roundID)
	return index, side, hex.EncodeToString(commit[:]), nil
}
