// Package ledger tracks who owes whom. It keeps two representations of the
// same debts: an append-oriented history of entries and a compact balance per
// (debtor, creditor) pair. The allocator and the settlement engine are the
// only writers; everything else reads.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quitado/quitado/internal/money"
)

// Entry is one line of debt history. Entries are never deleted; settlement
// marks them settled or shrinks their amount.
type Entry struct {
	ID          int64       `json:"id"`
	DebtorID    int64       `json:"debtor_id"`
	CreditorID  int64       `json:"creditor_id"`
	BillID      *int64      `json:"bill_id,omitempty"`
	Description string      `json:"description"`
	Amount      money.Money `json:"amount"`
	Settled     bool        `json:"settled"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Balance is the current outstanding amount for a (debtor, creditor) pair.
// A persisted balance is always positive; rows are deleted instead of being
// written as zero, and (A,B) and (B,A) are never both present.
type Balance struct {
	DebtorID   int64       `json:"debtor_id"`
	CreditorID int64       `json:"creditor_id"`
	Amount     money.Money `json:"amount"`
}

// BalanceWithNames augments a balance with display names for both sides.
type BalanceWithNames struct {
	Balance
	DebtorName   string `json:"debtor_name"`
	CreditorName string `json:"creditor_name"`
}

// UserRef is the slice of a user the ledger needs for lookups and display.
type UserRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Participant is one share of a bill, expressed as a percentage.
type Participant struct {
	UserID   int64
	SharePct decimal.Decimal
}

// AllocationInput describes a payment to split into credits against the
// payer's co-participants.
type AllocationInput struct {
	Participants []Participant
	PayerID      int64
	BillValue    money.Money
	PaymentValue money.Money
	BillID       *int64
	Description  string
}

// SettleInput describes a settlement between one debtor and one creditor.
// A nil Amount settles the full outstanding balance.
type SettleInput struct {
	DebtorID   int64
	CreditorID int64
	Amount     *money.Money
}

// SettlementResult reports what a settlement did.
type SettlementResult struct {
	SettledFully     bool        `json:"settled_fully"`
	RemainingBalance money.Money `json:"remaining_balance"`
	InvertedAmount   money.Money `json:"inverted_amount"`
	Message          string      `json:"message"`
}
