package bills

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quitado/quitado/internal/money"
	"github.com/quitado/quitado/internal/platform/httpx"
)

// ErrSharesNotHundred indicates participant percentages do not sum to 100.
var ErrSharesNotHundred = errors.New("bills: participant shares must sum to 100")

// ParticipantInput is one share in a create or update request.
type ParticipantInput struct {
	UserID   int64           `json:"user_id" validate:"required,gt=0"`
	SharePct decimal.Decimal `json:"share_pct" validate:"required"`
}

// CreateBillInput describes a new bill.
type CreateBillInput struct {
	Description  string             `json:"description" validate:"required,min=2,max=200"`
	Type         BillType           `json:"type" validate:"required,oneof=recurring installment"`
	OwnerID      int64              `json:"-"`
	DueDay       int                `json:"due_day" validate:"required,min=1,max=31"`
	TotalValue   *money.Money       `json:"total_value,omitempty"`
	Installments *int               `json:"installments,omitempty" validate:"omitempty,min=1"`
	StartMonth   *int               `json:"start_month,omitempty" validate:"omitempty,min=1,max=12"`
	StartYear    *int               `json:"start_year,omitempty" validate:"omitempty,min=2000"`
	Participants []ParticipantInput `json:"participants" validate:"required,min=1,dive"`
}

// UpdateBillInput describes an edit to an existing bill.
type UpdateBillInput struct {
	Description  string             `json:"description" validate:"required,min=2,max=200"`
	DueDay       int                `json:"due_day" validate:"required,min=1,max=31"`
	TotalValue   *money.Money       `json:"total_value,omitempty"`
	Installments *int               `json:"installments,omitempty" validate:"omitempty,min=1"`
	StartMonth   *int               `json:"start_month,omitempty" validate:"omitempty,min=1,max=12"`
	StartYear    *int               `json:"start_year,omitempty" validate:"omitempty,min=2000"`
	Participants []ParticipantInput `json:"participants" validate:"required,min=1,dive"`
}

// MonthlyValueInput describes one month's value for a bill.
type MonthlyValueInput struct {
	Month             int         `json:"month" validate:"required,min=1,max=12"`
	Year              int         `json:"year" validate:"required,min=2000"`
	Value             money.Money `json:"value"`
	InstallmentNumber *int        `json:"installment_number,omitempty" validate:"omitempty,min=1"`
	DueDate           time.Time   `json:"due_date" validate:"required"`
}

// Service handles bill business logic.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var hundred = decimal.NewFromInt(100)

func validateShares(participants []ParticipantInput) error {
	total := decimal.Decimal{}
	for _, p := range participants {
		if p.SharePct.IsNegative() || p.SharePct.IsZero() {
			return fmt.Errorf("%w: share for user %d must be positive", ErrSharesNotHundred, p.UserID)
		}
		total = total.Add(p.SharePct)
	}
	if !total.Equal(hundred) {
		return fmt.Errorf("%w: got %s", ErrSharesNotHundred, total)
	}
	return nil
}

func toParticipants(billID int64, in []ParticipantInput) []Participant {
	out := make([]Participant, 0, len(in))
	for _, p := range in {
		out = append(out, Participant{BillID: billID, UserID: p.UserID, SharePct: p.SharePct})
	}
	return out
}

// Create stores a new bill with its participants.
func (s *Service) Create(ctx context.Context, in CreateBillInput) (Bill, error) {
	if err := validateShares(in.Participants); err != nil {
		return Bill{}, err
	}
	var created Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertBill(ctx, Bill{
			Description:  in.Description,
			Type:         in.Type,
			OwnerID:      in.OwnerID,
			DueDay:       in.DueDay,
			TotalValue:   in.TotalValue,
			Installments: in.Installments,
			StartMonth:   in.StartMonth,
			StartYear:    in.StartYear,
		})
		if err != nil {
			return err
		}
		return tx.ReplaceParticipants(ctx, created.ID, toParticipants(created.ID, in.Participants))
	})
	if err != nil {
		return Bill{}, err
	}
	return created, nil
}

// Get returns a bill with its participants.
func (s *Service) Get(ctx context.Context, id int64) (BillWithParticipants, error) {
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return BillWithParticipants{}, err
	}
	participants, err := s.repo.ListParticipants(ctx, id)
	if err != nil {
		return BillWithParticipants{}, err
	}
	return BillWithParticipants{Bill: bill, Participants: participants}, nil
}

// List returns all bills.
func (s *Service) List(ctx context.Context) ([]Bill, error) {
	return s.repo.ListBills(ctx)
}

// ListByUser returns bills the user owns or participates in.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Bill, error) {
	return s.repo.ListBillsByUser(ctx, userID)
}

// Update edits a bill and replaces its participants.
func (s *Service) Update(ctx context.Context, id int64, in UpdateBillInput) (Bill, error) {
	if err := validateShares(in.Participants); err != nil {
		return Bill{}, err
	}
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return Bill{}, err
	}
	bill.Description = in.Description
	bill.DueDay = in.DueDay
	bill.TotalValue = in.TotalValue
	bill.Installments = in.Installments
	bill.StartMonth = in.StartMonth
	bill.StartYear = in.StartYear

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		return tx.ReplaceParticipants(ctx, id, toParticipants(id, in.Participants))
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// Delete removes a bill. Only the owner may delete it.
func (s *Service) Delete(ctx context.Context, id, requesterID int64) error {
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return err
	}
	if bill.OwnerID != requesterID {
		return httpx.ErrForbidden
	}
	return s.repo.DeleteBill(ctx, id)
}

// MarkParticipantPaid flags one participant's share of the bill as paid.
func (s *Service) MarkParticipantPaid(ctx context.Context, billID, userID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetParticipantPaid(ctx, billID, userID, true)
	})
}

// UpsertMonthlyValues stores per-month amounts for a bill.
func (s *Service) UpsertMonthlyValues(ctx context.Context, billID int64, values []MonthlyValueInput) error {
	if _, err := s.repo.GetBill(ctx, billID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, v := range values {
			mv := MonthlyValue{
				BillID:            billID,
				Month:             v.Month,
				Year:              v.Year,
				Value:             v.Value,
				InstallmentNumber: v.InstallmentNumber,
				DueDate:           v.DueDate,
			}
			if err := tx.UpsertMonthlyValue(ctx, mv); err != nil {
				return err
			}
		}
		return nil
	})
}

// MonthlyValues lists a bill's stored monthly amounts.
func (s *Service) MonthlyValues(ctx context.Context, billID int64) ([]MonthlyValue, error) {
	return s.repo.ListMonthlyValues(ctx, billID)
}

// MonthlyValue returns the bill's amount for one month.
func (s *Service) MonthlyValue(ctx context.Context, billID int64, month, year int) (MonthlyValue, error) {
	return s.repo.GetMonthlyValue(ctx, billID, month, year)
}
