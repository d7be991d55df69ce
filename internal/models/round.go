package models

type RoundPhase string

const (
	PhaseBetting   RoundPhase = "betting"
	PhaseLocked    RoundPhase = "locked"
	PhaseResolving RoundPhase = "resolving"
	PhaseSettled   RoundPhase = "settled"
)

type BetSide string

const (
	SideRed   BetSide = "red"
	SideBlack BetSide = "black"
	SideGreen BetSide = "green"
)

// WheelSegments is the number of slots on the wheel: one green, seven red,
// seven black.
const WheelSegments = 15

// Bet is a stake admitted into a round. Never mutated after admission.
type Bet struct {
	IdentityID string  `json:"identity_id"`
	Username   string  `json:"username"`
	Side       BetSide `json:"side"`
	Amount     float64 `json:"amount"`
	PlacedAt   int64   `json:"placed_at"`
}

// Round is one wheel spin. CommitHash is published when betting opens; Seed is
// kept empty in anything sent to clients until the resolving phase.
type Round struct {
	ID              string     `json:"id"`
	Phase           RoundPhase `json:"phase"`
	CommitHash      string     `json:"commit_hash"`
	Seed            string     `json:"seed,omitempty"`
	StartedAt       int64      `json:"started_at"`
	BettingDeadline int64      `json:"betting_deadline"`

	Bets []Bet `json:"bets"`

	Outcome      BetSide `json:"outcome,omitempty"`
	WinningIndex int     `json:"winning_index"`
	Multiplier   float64 `json:"multiplier"`

	// Payouts maps identity id to the total credited at settlement.
	Payouts map[string]float64 `json:"payouts,omitempty"`

	// FailedPayouts lists identities whose settlement credit errored and
	// needs manual reconciliation.
	FailedPayouts []string `json:"failed_payouts,omitempty"`

	SettledAt int64 `json:"settled_at,omitempty"`

	// AnimationDuration is the resolving-phase length in milliseconds, for
	// the client wheel animation. It has no effect on the outcome.
	AnimationDuration int64 `json:"animation_duration"`
}

// Multipliers returns the payout multiplier per winning side.
func Multipliers() map[BetSide]float64 {
	return map[BetSide]float64{
		SideRed:   2,
		SideBlack: 2,
		SideGreen: 14,
	}
}

// WheelSideAt maps a wheel index to its color: slot 0 is green, odd slots are
// red, even slots are black.
func WheelSideAt(index int) BetSide {
	switch {
	case index == 0:
		return SideGreen
	case index%2 == 1:
		return SideRed
	default:
		return SideBlack
	}
}

// ValidSide reports whether s is one of the bettable sides.
func ValidSide(s BetSide) bool {
	switch s {
	case SideRed, SideBlack, SideGreen:
		return true
	}
	return false
}

// StakeOf returns the total stake an identity has in the round.
func (r *Round) StakeOf(identityID string) float64 {
	var total float64
	for _, b := range r.Bets {
		if b.IdentityID == identityID {
			total += b.Amount
		}
	}
	return total
}
