package ledger

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/quitado/quitado/internal/money"
	"github.com/quitado/quitado/internal/shared"
)

// Summary is one user's position: everything they owe and are owed.
type Summary struct {
	User        UserRef            `json:"user"`
	Debts       []BalanceWithNames `json:"debts"`
	Credits     []BalanceWithNames `json:"credits"`
	TotalDebt   money.Money        `json:"total_debt"`
	TotalCredit money.Money        `json:"total_credit"`
	Net         money.Money        `json:"net"`
}

// PairDetail is the current balance of one pair plus its open entries,
// newest first.
type PairDetail struct {
	Balance BalanceWithNames `json:"balance"`
	Entries []Entry          `json:"entries"`
}

// Summary returns the user's aggregate position.
func (s *Service) Summary(ctx context.Context, userID int64) (Summary, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	debts, err := s.repo.ListBalancesByDebtor(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	credits, err := s.repo.ListBalancesByCreditor(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{User: user, Debts: debts, Credits: credits}
	for _, d := range debts {
		out.TotalDebt = out.TotalDebt.Add(d.Amount)
	}
	for _, c := range credits {
		out.TotalCredit = out.TotalCredit.Add(c.Amount)
	}
	out.Net = out.TotalCredit.Sub(out.TotalDebt)
	return out, nil
}

// AllBalances returns every outstanding balance with display names.
func (s *Service) AllBalances(ctx context.Context) ([]BalanceWithNames, error) {
	return s.repo.ListAllBalances(ctx)
}

// History returns a page of entries newest first, optionally restricted to
// entries the user appears in on either side.
func (s *Service) History(ctx context.Context, userID *int64, page, perPage int) ([]Entry, shared.Pagination, error) {
	var (
		total int
		err   error
	)
	if userID == nil {
		total, err = s.repo.CountEntries(ctx)
	} else {
		if _, err := s.repo.GetUser(ctx, *userID); err != nil {
			return nil, shared.Pagination{}, err
		}
		total, err = s.repo.CountEntriesByUser(ctx, *userID)
	}
	if err != nil {
		return nil, shared.Pagination{}, err
	}

	p := shared.NewPagination(page, perPage, total)
	offset := (p.Page - 1) * p.PerPage
	var entries []Entry
	if userID == nil {
		entries, err = s.repo.ListEntries(ctx, p.PerPage, offset)
	} else {
		entries, err = s.repo.ListEntriesByUser(ctx, *userID, p.PerPage, offset)
	}
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, p, nil
}

// DebtDetail returns the open position the debtor has towards the creditor.
func (s *Service) DebtDetail(ctx context.Context, debtorID, creditorID int64) (PairDetail, error) {
	debtor, err := s.repo.GetUser(ctx, debtorID)
	if err != nil {
		return PairDetail{}, err
	}
	creditor, err := s.repo.GetUser(ctx, creditorID)
	if err != nil {
		return PairDetail{}, err
	}
	balance, err := s.repo.GetBalance(ctx, debtorID, creditorID)
	if err != nil {
		return PairDetail{}, err
	}
	entries, err := s.repo.ListUnsettledEntriesByPair(ctx, debtorID, creditorID)
	if err != nil {
		return PairDetail{}, err
	}
	return PairDetail{
		Balance: BalanceWithNames{Balance: balance, DebtorName: debtor.Name, CreditorName: creditor.Name},
		Entries: entries,
	}, nil
}

// CreditDetail is DebtDetail seen from the creditor side.
func (s *Service) CreditDetail(ctx context.Context, creditorID, debtorID int64) (PairDetail, error) {
	return s.DebtDetail(ctx, debtorID, creditorID)
}

// ChargeMessage composes the narrative text sent in charge reminders. It is
// deterministic for a given ledger state and has no side effects.
func (s *Service) ChargeMessage(ctx context.Context, userID int64) (string, error) {
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return "", err
	}

	p := message.NewPrinter(language.English)
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s!", summary.User.Name)
	if len(summary.Debts) == 0 {
		b.WriteString(" You have no outstanding debts.")
		return b.String(), nil
	}
	for _, d := range summary.Debts {
		b.WriteString(p.Sprintf(" You owe %v to %s.", displayAmount(d.Amount), d.CreditorName))
	}
	b.WriteString(p.Sprintf(" Total: %v.", displayAmount(summary.TotalDebt)))
	return b.String(), nil
}

// displayAmount renders a money value with digit grouping for narrative
// text. Display only; never fed back into arithmetic.
func displayAmount(m money.Money) number.Formatter {
	return number.Decimal(m.Decimal().InexactFloat64(),
		number.MinFractionDigits(money.Scale),
		number.MaxFractionDigits(money.Scale))
}
