package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quitado/quitado/internal/bills"
	"github.com/quitado/quitado/internal/ledger"
)

// BillDirectory is the slice of the bills service a payment needs: the bill
// with its share table and the amount due in the paid month.
type BillDirectory interface {
	Get(ctx context.Context, id int64) (bills.BillWithParticipants, error)
	MonthlyValue(ctx context.Context, billID int64, month, year int) (bills.MonthlyValue, error)
}

// Allocator turns a recorded payment into ledger credits.
type Allocator interface {
	Allocate(ctx context.Context, in ledger.AllocationInput) error
}

// IdempotencyGuard deduplicates payment submissions by client-provided key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service handles payment intake.
type Service struct {
	repo      Repository
	billDir   BillDirectory
	allocator Allocator
	idem      IdempotencyGuard
	logger    *slog.Logger
}

// NewService builds Service instance. idem may be nil.
func NewService(repo Repository, billDir BillDirectory, allocator Allocator, idem IdempotencyGuard, logger *slog.Logger) *Service {
	return &Service{repo: repo, billDir: billDir, allocator: allocator, idem: idem, logger: logger}
}

const idempotencyModule = "payments"

// Create verifies the payment against its bill, records it and runs the
// allocator. The payment row is only committed if allocation succeeds.
func (s *Service) Create(ctx context.Context, in CreatePaymentInput) (Payment, error) {
	bwp, err := s.billDir.Get(ctx, in.BillID)
	if err != nil {
		return Payment{}, fmt.Errorf("load bill: %w", err)
	}

	participants := make([]ledger.Participant, 0, len(bwp.Participants))
	isParticipant := false
	for _, p := range bwp.Participants {
		participants = append(participants, ledger.Participant{UserID: p.UserID, SharePct: p.SharePct})
		if p.UserID == in.UserID {
			isParticipant = true
		}
	}
	if !isParticipant {
		return Payment{}, ledger.ErrPayerNotParticipant
	}

	monthly, err := s.billDir.MonthlyValue(ctx, in.BillID, in.Month, in.Year)
	if err != nil {
		return Payment{}, fmt.Errorf("load monthly value: %w", err)
	}

	if in.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, idempotencyModule); err != nil {
			return Payment{}, err
		}
	}

	var created Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.InsertPayment(ctx, Payment{
			UserID: in.UserID,
			BillID: in.BillID,
			Month:  in.Month,
			Year:   in.Year,
			Value:  in.Value,
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateBillLastOccurrence(ctx, in.BillID, time.Now().UTC()); err != nil {
			return err
		}
		// Allocation commits in its own transaction; keeping it last means
		// an allocation failure also rolls the payment row back.
		billID := in.BillID
		return s.allocator.Allocate(ctx, ledger.AllocationInput{
			Participants: participants,
			PayerID:      in.UserID,
			BillValue:    monthly.Value,
			PaymentValue: in.Value,
			BillID:       &billID,
			Description:  bwp.Bill.Description,
		})
	})
	if err != nil {
		if in.IdempotencyKey != "" && s.idem != nil {
			if delErr := s.idem.Delete(ctx, in.IdempotencyKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Payment{}, err
	}
	return created, nil
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// List returns all payments newest first.
func (s *Service) List(ctx context.Context) ([]Payment, error) {
	return s.repo.ListPayments(ctx)
}

// ListByUser returns one user's payments newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Payment, error) {
	return s.repo.ListPaymentsByUser(ctx, userID)
}

// ListByBill returns one bill's payments newest first.
func (s *Service) ListByBill(ctx context.Context, billID int64) ([]Payment, error) {
	return s.repo.ListPaymentsByBill(ctx, billID)
}
