package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/quitado/quitado/internal/money"
	"github.com/quitado/quitado/internal/shared"
)

// AuditRecorder is the slice of shared.AuditLogger the service needs.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the payment allocator and the settlement engine.
type Service struct {
	repo   Repository
	logger *slog.Logger
	audit  AuditRecorder
}

// NewService constructs the ledger service. audit may be nil.
func NewService(repo Repository, logger *slog.Logger, audit AuditRecorder) *Service {
	return &Service{repo: repo, logger: logger, audit: audit}
}

// excessDescription marks the entry created when a settlement overshoots the
// outstanding balance and the remainder flips direction.
const excessDescription = "excess payment"

// applyDebt records that debtor owes creditor an additional amount: the
// balance row is created or increased and one unsettled entry is appended.
func applyDebt(ctx context.Context, tx TxRepository, debtorID, creditorID int64, amount money.Money, description string, billID *int64) error {
	balance, found, err := tx.GetBalanceForUpdate(ctx, debtorID, creditorID)
	if err != nil {
		return err
	}
	if found {
		balance.Amount = balance.Amount.Add(amount)
		if err := tx.UpdateBalanceAmount(ctx, balance); err != nil {
			return err
		}
	} else {
		b := Balance{DebtorID: debtorID, CreditorID: creditorID, Amount: amount}
		if err := tx.InsertBalance(ctx, b); err != nil {
			return err
		}
	}
	_, err = tx.InsertEntry(ctx, Entry{
		DebtorID:    debtorID,
		CreditorID:  creditorID,
		BillID:      billID,
		Description: description,
		Amount:      amount,
	})
	return err
}

// Allocate splits a payment over the payer's co-participants. Each
// co-participant is credited the proportional share of whatever the payer
// paid beyond their own share. Runs in a single transaction.
func (s *Service) Allocate(ctx context.Context, in AllocationInput) error {
	payerPct := decimal.Decimal{}
	payerFound := false
	for _, p := range in.Participants {
		if p.UserID == in.PayerID {
			payerPct = p.SharePct
			payerFound = true
			break
		}
	}
	if !payerFound {
		return ErrPayerNotParticipant
	}
	if in.BillValue.IsZero() {
		return nil
	}

	payerShare := in.BillValue.Percent(payerPct)
	surplus := in.PaymentValue.Sub(payerShare)
	if !surplus.IsPositive() {
		return nil
	}
	othersTotal := in.BillValue.Sub(payerShare)
	if !othersTotal.IsPositive() {
		return nil
	}

	// Deterministic lock order: ascending debtor id.
	participants := make([]Participant, 0, len(in.Participants))
	for _, p := range in.Participants {
		if p.UserID != in.PayerID {
			participants = append(participants, p)
		}
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].UserID < participants[j].UserID })

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, in.PayerID); err != nil {
			return err
		}
		for _, p := range participants {
			if _, err := tx.GetUser(ctx, p.UserID); err != nil {
				return err
			}
			share := in.BillValue.Percent(p.SharePct)
			credit := surplus.MulDiv(share.Decimal(), othersTotal.Decimal())
			if !credit.IsPositive() {
				continue
			}
			if err := applyDebt(ctx, tx, p.UserID, in.PayerID, credit, in.Description, in.BillID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("allocate payment: %w", err)
	}

	s.recordAudit(ctx, in.PayerID, "payment.allocate", "bill", in.BillID, map[string]any{
		"bill_value":    in.BillValue.String(),
		"payment_value": in.PaymentValue.String(),
		"participants":  len(in.Participants),
	})
	return nil
}

// Settle consumes the outstanding balance between debtor and creditor,
// oldest entries first. A nil amount settles the whole balance. Paying more
// than is owed flips the remainder into a debt in the opposite direction.
func (s *Service) Settle(ctx context.Context, in SettleInput) (SettlementResult, error) {
	var result SettlementResult

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		debtor, err := tx.GetUser(ctx, in.DebtorID)
		if err != nil {
			return err
		}
		creditor, err := tx.GetUser(ctx, in.CreditorID)
		if err != nil {
			return err
		}

		balance, found, err := tx.GetBalanceForUpdate(ctx, in.DebtorID, in.CreditorID)
		if err != nil {
			return err
		}
		if !found || !balance.Amount.IsPositive() {
			return ErrNoOutstandingDebt
		}

		amount := balance.Amount
		if in.Amount != nil {
			amount = *in.Amount
		}
		if !amount.IsPositive() {
			return ErrInvalidAmount
		}

		entries, err := tx.ListUnsettledEntriesForUpdate(ctx, in.DebtorID, in.CreditorID)
		if err != nil {
			return err
		}

		remaining := amount
		for _, entry := range entries {
			if !remaining.IsPositive() {
				break
			}
			if entry.Amount.LessThanOrEqual(remaining) {
				if err := tx.MarkEntrySettled(ctx, entry.ID); err != nil {
					return err
				}
				remaining = remaining.Sub(entry.Amount)
				continue
			}
			if err := tx.UpdateEntryAmount(ctx, entry.ID, entry.Amount.Sub(remaining)); err != nil {
				return err
			}
			remaining = money.Zero()
		}

		switch {
		case balance.Amount.LessThanOrEqual(amount):
			if err := tx.DeleteBalance(ctx, in.DebtorID, in.CreditorID); err != nil {
				return err
			}
			excess := amount.Sub(balance.Amount)
			if excess.IsPositive() {
				if err := applyDebt(ctx, tx, in.CreditorID, in.DebtorID, excess, excessDescription, nil); err != nil {
					return err
				}
				result = SettlementResult{
					SettledFully:   true,
					InvertedAmount: excess,
					Message: fmt.Sprintf("%s settled the debt with %s; %s is now owed in the opposite direction",
						debtor.Name, creditor.Name, excess),
				}
				return nil
			}
			result = SettlementResult{
				SettledFully: true,
				Message:      fmt.Sprintf("%s fully settled the debt with %s", debtor.Name, creditor.Name),
			}
			return nil
		default:
			balance.Amount = balance.Amount.Sub(amount)
			if err := tx.UpdateBalanceAmount(ctx, balance); err != nil {
				return err
			}
			result = SettlementResult{
				RemainingBalance: balance.Amount,
				Message: fmt.Sprintf("%s paid %s to %s; %s remaining",
					debtor.Name, amount, creditor.Name, balance.Amount),
			}
			return nil
		}
	})
	if err != nil {
		return SettlementResult{}, err
	}

	s.recordAudit(ctx, in.DebtorID, "settlement.confirm", "balance",
		nil, map[string]any{
			"creditor_id":     in.CreditorID,
			"settled_fully":   result.SettledFully,
			"remaining":       result.RemainingBalance.String(),
			"inverted_amount": result.InvertedAmount.String(),
		})
	return result, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID *int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	id := "-"
	if entityID != nil {
		id = strconv.FormatInt(*entityID, 10)
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: id,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
	}
}
