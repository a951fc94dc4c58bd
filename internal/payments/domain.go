// Package payments records money paid against bills and hands each payment
// to the ledger allocator, which turns the surplus into debts owed to the
// payer.
package payments

import (
	"time"

	"github.com/quitado/quitado/internal/money"
)

// Payment is one recorded payment against a bill's monthly value.
type Payment struct {
	ID     int64       `json:"id"`
	UserID int64       `json:"user_id"`
	BillID int64       `json:"bill_id"`
	Month  int         `json:"month"`
	Year   int         `json:"year"`
	Value  money.Money `json:"value"`
	PaidAt time.Time   `json:"paid_at"`
}

// CreatePaymentInput describes a new payment.
type CreatePaymentInput struct {
	UserID         int64
	BillID         int64       `json:"bill_id" validate:"required,gt=0"`
	Month          int         `json:"month" validate:"required,min=1,max=12"`
	Year           int         `json:"year" validate:"required,min=2000"`
	Value          money.Money `json:"value"`
	IdempotencyKey string      `json:"-"`
}
