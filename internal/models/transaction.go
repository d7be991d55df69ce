package models

type TransactionType string

const (
	TransactionTypeDeposit TransactionType = "deposit"
	TransactionTypePayout  TransactionType = "payout"
)

// TransactionState follows the provider state numbering from the payment
// integration: 1 pending, 2 declined, 3 completed.
type TransactionState int

const (
	StatePending   TransactionState = 1
	StateDeclined  TransactionState = 2
	StateCompleted TransactionState = 3
)

// Transaction is the reconciliation record for an external crypto movement.
// TxID (the on-chain transaction id) is the idempotency key for deposits: a
// transaction that reached StateCompleted is never applied to a balance again.
type Transaction struct {
	ID         string          `json:"id"`
	IdentityID string          `json:"identity_id"`
	Type       TransactionType `json:"type"`

	Currency    string  `json:"currency"`
	SiteValue   float64 `json:"site_value"`   // value in site balance (USD)
	CryptoValue float64 `json:"crypto_value"` // value in the crypto currency
	Address     string  `json:"address"`

	TrackID string `json:"track_id"` // provider tracking id
	TxID    string `json:"tx_id"`    // blockchain transaction id

	State TransactionState `json:"state"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

type LedgerEntryType string

const (
	EntryDeposit   LedgerEntryType = "deposit"
	EntryBetStake  LedgerEntryType = "bet-stake"
	EntryBetPayout LedgerEntryType = "bet-payout"
	EntryAffiliate LedgerEntryType = "affiliate"
)

// LedgerEntry records one balance movement. Amount is signed: debits are
// negative, credits positive.
type LedgerEntry struct {
	ID         string          `json:"id"`
	IdentityID string          `json:"identity_id"`
	Type       LedgerEntryType `json:"type"`
	Amount     float64         `json:"amount"`
	Reason     string          `json:"reason"`

	// RefID points at the round or transaction that caused the movement.
	RefID string `json:"ref_id,omitempty"`

	CreatedAt int64 `json:"created_at"`
}

// ProviderCallback is the inbound OxaPay notification body.
type ProviderCallback struct {
	Type           string  `json:"type"` // "payment" or "payout"
	TxID           string  `json:"txID"`
	TrackID        string  `json:"trackId"`
	Status         string  `json:"status"` // Confirming, Paid, Complete
	Address        string  `json:"address"`
	PayCurrency    string  `json:"payCurrency"`
	ReceivedAmount float64 `json:"receivedAmount"`
	Amount         float64 `json:"amount"`
}

const (
	CallbackTypePayment = "payment"
	CallbackTypePayout  = "payout"

	StatusConfirming = "Confirming"
	StatusPaid       = "Paid"
	StatusComplete   = "Complete"
)
