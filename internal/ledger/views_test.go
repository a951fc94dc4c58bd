package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quitado/quitado/internal/ledger"
)

func TestSummaryTotalsAndNet(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "90.00", "rent")
	seedDebt(t, repo, 3, 1, "60.00", "rent")
	seedDebt(t, repo, 1, 3, "10.00", "coffee")

	summary, err := svc.Summary(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, "Ana", summary.User.Name)
	require.Len(t, summary.Debts, 1)
	require.Len(t, summary.Credits, 2)
	require.Equal(t, "10.00", summary.TotalDebt.String())
	require.Equal(t, "150.00", summary.TotalCredit.String())
	require.Equal(t, "140.00", summary.Net.String())
	require.Equal(t, "Cleo", summary.Debts[0].CreditorName)
}

func TestSummaryUnknownUser(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)

	_, err := svc.Summary(context.Background(), 42)
	require.ErrorIs(t, err, ledger.ErrUserNotFound)
}

func TestAllBalancesIncludesNames(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "90.00", "rent")
	seedDebt(t, repo, 3, 2, "15.00", "snacks")

	balances, err := svc.AllBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	require.Equal(t, "Ben", balances[0].DebtorName)
	require.Equal(t, "Ana", balances[0].CreditorName)
}

func TestHistoryNewestFirstAndFiltered(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "90.00", "rent")
	seedDebt(t, repo, 3, 2, "15.00", "snacks")
	seedDebt(t, repo, 2, 1, "5.00", "coffee")

	all, pagination, err := svc.History(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "coffee", all[0].Description)
	require.Equal(t, "rent", all[2].Description)
	require.Equal(t, 3, pagination.Total)
	require.Equal(t, 1, pagination.TotalPages)

	userID := int64(3)
	filtered, _, err := svc.History(context.Background(), &userID, 0, 0)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, "snacks", filtered[0].Description)

	missing := int64(42)
	_, _, err = svc.History(context.Background(), &missing, 0, 0)
	require.ErrorIs(t, err, ledger.ErrUserNotFound)
}

func TestHistoryPaginates(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "90.00", "rent")
	seedDebt(t, repo, 3, 2, "15.00", "snacks")
	seedDebt(t, repo, 2, 1, "5.00", "coffee")

	first, p, err := svc.History(context.Background(), nil, 1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 2, p.TotalPages)
	require.Equal(t, "coffee", first[0].Description)

	second, _, err := svc.History(context.Background(), nil, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, "rent", second[0].Description)
}

func TestDebtDetail(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "90.00", "rent")
	seedDebt(t, repo, 2, 1, "5.00", "coffee")

	detail, err := svc.DebtDetail(context.Background(), 2, 1)
	require.NoError(t, err)

	require.Equal(t, "95.00", detail.Balance.Amount.String())
	require.Equal(t, "Ben", detail.Balance.DebtorName)
	require.Equal(t, "Ana", detail.Balance.CreditorName)
	require.Len(t, detail.Entries, 2)
	require.Equal(t, "coffee", detail.Entries[0].Description, "entries are newest first")

	_, err = svc.DebtDetail(context.Background(), 3, 1)
	require.ErrorIs(t, err, ledger.ErrNoOutstandingDebt)
}

func TestCreditDetailMirrorsDebtDetail(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "90.00", "rent")

	detail, err := svc.CreditDetail(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, "90.00", detail.Balance.Amount.String())
	require.Equal(t, int64(2), detail.Balance.DebtorID)
	require.Equal(t, int64(1), detail.Balance.CreditorID)
}

func TestChargeMessage(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "90.00", "rent")
	seedDebt(t, repo, 2, 3, "1250.50", "holiday house")

	msg, err := svc.ChargeMessage(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, "Hi Ben! You owe 90.00 to Ana. You owe 1,250.50 to Cleo. Total: 1,340.50.", msg)

	again, err := svc.ChargeMessage(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, msg, again, "charge message is deterministic")
}

func TestChargeMessageNoDebts(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)

	msg, err := svc.ChargeMessage(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Hi Ana! You have no outstanding debts.", msg)
}
