// Package bills manages the shared expenses that feed the ledger: recurring
// bills, installment purchases, their participants and per-month values.
package bills

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quitado/quitado/internal/money"
)

// BillType distinguishes open-ended recurring bills from finite installments.
type BillType string

const (
	BillTypeRecurring   BillType = "recurring"
	BillTypeInstallment BillType = "installment"
)

// Bill is a shared expense definition.
type Bill struct {
	ID             int64        `json:"id"`
	Description    string       `json:"description"`
	Type           BillType     `json:"type"`
	OwnerID        int64        `json:"owner_id"`
	DueDay         int          `json:"due_day"`
	TotalValue     *money.Money `json:"total_value,omitempty"`
	Installments   *int         `json:"installments,omitempty"`
	StartMonth     *int         `json:"start_month,omitempty"`
	StartYear      *int         `json:"start_year,omitempty"`
	LastOccurrence *time.Time   `json:"last_occurrence,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Participant is one user's share of a bill, as a percentage.
type Participant struct {
	BillID   int64           `json:"bill_id"`
	UserID   int64           `json:"user_id"`
	SharePct decimal.Decimal `json:"share_pct"`
	IsPaid   bool            `json:"is_paid"`
}

// MonthlyValue is the concrete amount a bill costs in one month.
type MonthlyValue struct {
	BillID            int64       `json:"bill_id"`
	Month             int         `json:"month"`
	Year              int         `json:"year"`
	Value             money.Money `json:"value"`
	InstallmentNumber *int        `json:"installment_number,omitempty"`
	DueDate           time.Time   `json:"due_date"`
}

// BillWithParticipants bundles a bill with its share table.
type BillWithParticipants struct {
	Bill         Bill          `json:"bill"`
	Participants []Participant `json:"participants"`
}
