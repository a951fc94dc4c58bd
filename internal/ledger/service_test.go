package ledger_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quitado/quitado/internal/ledger"
	"github.com/quitado/quitado/internal/money"
	_ "github.com/quitado/quitado/testing"
)

type pair struct{ debtor, creditor int64 }

// memRepo implements ledger.Repository and ledger.TxRepository in memory.
// WithTx snapshots the state so a failing transaction leaves nothing behind.
type memRepo struct {
	users    map[int64]ledger.UserRef
	balances map[pair]money.Money
	entries  []ledger.Entry
	nextID   int64
	clock    time.Time

	failMarkSettled bool
}

func newMemRepo(users ...ledger.UserRef) *memRepo {
	r := &memRepo{
		users:    map[int64]ledger.UserRef{},
		balances: map[pair]money.Money{},
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memRepo) snapshot() ([]ledger.Entry, map[pair]money.Money) {
	entries := append([]ledger.Entry(nil), r.entries...)
	balances := map[pair]money.Money{}
	for k, v := range r.balances {
		balances[k] = v
	}
	return entries, balances
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	entries, balances := r.snapshot()
	if err := fn(ctx, r); err != nil {
		r.entries, r.balances = entries, balances
		return err
	}
	return nil
}

func (r *memRepo) GetUser(ctx context.Context, id int64) (ledger.UserRef, error) {
	u, ok := r.users[id]
	if !ok {
		return ledger.UserRef{}, ledger.ErrUserNotFound
	}
	return u, nil
}

func (r *memRepo) GetBalance(ctx context.Context, debtorID, creditorID int64) (ledger.Balance, error) {
	amount, ok := r.balances[pair{debtorID, creditorID}]
	if !ok {
		return ledger.Balance{}, ledger.ErrNoOutstandingDebt
	}
	return ledger.Balance{DebtorID: debtorID, CreditorID: creditorID, Amount: amount}, nil
}

func (r *memRepo) GetBalanceForUpdate(ctx context.Context, debtorID, creditorID int64) (ledger.Balance, bool, error) {
	amount, ok := r.balances[pair{debtorID, creditorID}]
	if !ok {
		return ledger.Balance{}, false, nil
	}
	return ledger.Balance{DebtorID: debtorID, CreditorID: creditorID, Amount: amount}, true, nil
}

func (r *memRepo) InsertBalance(ctx context.Context, b ledger.Balance) error {
	r.balances[pair{b.DebtorID, b.CreditorID}] = b.Amount
	return nil
}

func (r *memRepo) UpdateBalanceAmount(ctx context.Context, b ledger.Balance) error {
	r.balances[pair{b.DebtorID, b.CreditorID}] = b.Amount
	return nil
}

func (r *memRepo) DeleteBalance(ctx context.Context, debtorID, creditorID int64) error {
	delete(r.balances, pair{debtorID, creditorID})
	return nil
}

func (r *memRepo) withNames(debtorID, creditorID int64, amount money.Money) ledger.BalanceWithNames {
	return ledger.BalanceWithNames{
		Balance:      ledger.Balance{DebtorID: debtorID, CreditorID: creditorID, Amount: amount},
		DebtorName:   r.users[debtorID].Name,
		CreditorName: r.users[creditorID].Name,
	}
}

func (r *memRepo) ListBalancesByDebtor(ctx context.Context, debtorID int64) ([]ledger.BalanceWithNames, error) {
	var out []ledger.BalanceWithNames
	for k, v := range r.balances {
		if k.debtor == debtorID {
			out = append(out, r.withNames(k.debtor, k.creditor, v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreditorID < out[j].CreditorID })
	return out, nil
}

func (r *memRepo) ListBalancesByCreditor(ctx context.Context, creditorID int64) ([]ledger.BalanceWithNames, error) {
	var out []ledger.BalanceWithNames
	for k, v := range r.balances {
		if k.creditor == creditorID {
			out = append(out, r.withNames(k.debtor, k.creditor, v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DebtorID < out[j].DebtorID })
	return out, nil
}

func (r *memRepo) ListAllBalances(ctx context.Context) ([]ledger.BalanceWithNames, error) {
	var out []ledger.BalanceWithNames
	for k, v := range r.balances {
		out = append(out, r.withNames(k.debtor, k.creditor, v))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DebtorID != out[j].DebtorID {
			return out[i].DebtorID < out[j].DebtorID
		}
		return out[i].CreditorID < out[j].CreditorID
	})
	return out, nil
}

func newestFirst(entries []ledger.Entry) []ledger.Entry {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries
}

func page(entries []ledger.Entry, limit, offset int) []ledger.Entry {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

func (r *memRepo) ListEntries(ctx context.Context, limit, offset int) ([]ledger.Entry, error) {
	return page(newestFirst(append([]ledger.Entry(nil), r.entries...)), limit, offset), nil
}

func (r *memRepo) ListEntriesByUser(ctx context.Context, userID int64, limit, offset int) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range r.entries {
		if e.DebtorID == userID || e.CreditorID == userID {
			out = append(out, e)
		}
	}
	return page(newestFirst(out), limit, offset), nil
}

func (r *memRepo) CountEntries(ctx context.Context) (int, error) {
	return len(r.entries), nil
}

func (r *memRepo) CountEntriesByUser(ctx context.Context, userID int64) (int, error) {
	total := 0
	for _, e := range r.entries {
		if e.DebtorID == userID || e.CreditorID == userID {
			total++
		}
	}
	return total, nil
}

func (r *memRepo) ListUnsettledEntriesByPair(ctx context.Context, debtorID, creditorID int64) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range r.entries {
		if e.DebtorID == debtorID && e.CreditorID == creditorID && !e.Settled {
			out = append(out, e)
		}
	}
	return newestFirst(out), nil
}

func (r *memRepo) ListUnsettledEntriesForUpdate(ctx context.Context, debtorID, creditorID int64) ([]ledger.Entry, error) {
	var out []ledger.Entry
	for _, e := range r.entries {
		if e.DebtorID == debtorID && e.CreditorID == creditorID && !e.Settled {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memRepo) MarkEntrySettled(ctx context.Context, entryID int64) error {
	if r.failMarkSettled {
		return errors.New("mark settled: injected failure")
	}
	for i := range r.entries {
		if r.entries[i].ID == entryID {
			r.entries[i].Settled = true
			return nil
		}
	}
	return errors.New("entry not found")
}

func (r *memRepo) UpdateEntryAmount(ctx context.Context, entryID int64, amount money.Money) error {
	for i := range r.entries {
		if r.entries[i].ID == entryID {
			r.entries[i].Amount = amount
			return nil
		}
	}
	return errors.New("entry not found")
}

func (r *memRepo) InsertEntry(ctx context.Context, e ledger.Entry) (ledger.Entry, error) {
	r.nextID++
	r.clock = r.clock.Add(time.Second)
	e.ID = r.nextID
	e.CreatedAt = r.clock
	r.entries = append(r.entries, e)
	return e, nil
}

var (
	_ ledger.Repository   = (*memRepo)(nil)
	_ ledger.TxRepository = (*memRepo)(nil)
)

func newService(repo ledger.Repository) *ledger.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ledger.NewService(repo, logger, nil)
}

func pct(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// seedDebt plants one balance increment plus its unsettled entry directly,
// bypassing the allocator.
func seedDebt(t *testing.T, repo *memRepo, debtorID, creditorID int64, amount string, description string) {
	t.Helper()
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx ledger.TxRepository) error {
		balance, found, err := tx.GetBalanceForUpdate(ctx, debtorID, creditorID)
		if err != nil {
			return err
		}
		add := money.MustParse(amount)
		if found {
			balance.Amount = balance.Amount.Add(add)
			if err := tx.UpdateBalanceAmount(ctx, balance); err != nil {
				return err
			}
		} else {
			if err := tx.InsertBalance(ctx, ledger.Balance{DebtorID: debtorID, CreditorID: creditorID, Amount: add}); err != nil {
				return err
			}
		}
		_, err = tx.InsertEntry(ctx, ledger.Entry{
			DebtorID:    debtorID,
			CreditorID:  creditorID,
			Description: description,
			Amount:      add,
		})
		return err
	})
	require.NoError(t, err)
}

func testUsers() []ledger.UserRef {
	return []ledger.UserRef{
		{ID: 1, Name: "Ana"},
		{ID: 2, Name: "Ben"},
		{ID: 3, Name: "Cleo"},
	}
}

func TestAllocateProportionalSplit(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	billID := int64(10)

	err := svc.Allocate(context.Background(), ledger.AllocationInput{
		Participants: []ledger.Participant{
			{UserID: 1, SharePct: pct(50)},
			{UserID: 2, SharePct: pct(30)},
			{UserID: 3, SharePct: pct(20)},
		},
		PayerID:      1,
		BillValue:    money.MustParse("300.00"),
		PaymentValue: money.MustParse("300.00"),
		BillID:       &billID,
		Description:  "march rent",
	})
	require.NoError(t, err)

	require.Equal(t, "90.00", repo.balances[pair{2, 1}].String())
	require.Equal(t, "60.00", repo.balances[pair{3, 1}].String())
	require.NotContains(t, repo.balances, pair{1, 2})

	require.Len(t, repo.entries, 2)
	for _, e := range repo.entries {
		require.False(t, e.Settled)
		require.Equal(t, "march rent", e.Description)
		require.NotNil(t, e.BillID)
		require.Equal(t, billID, *e.BillID)
		require.Equal(t, int64(1), e.CreditorID)
	}
}

func TestAllocateConservation(t *testing.T) {
	// Credits must sum to the surplus up to one minor unit per participant.
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)

	err := svc.Allocate(context.Background(), ledger.AllocationInput{
		Participants: []ledger.Participant{
			{UserID: 1, SharePct: pct(40)},
			{UserID: 2, SharePct: pct(35)},
			{UserID: 3, SharePct: pct(25)},
		},
		PayerID:      1,
		BillValue:    money.MustParse("100.00"),
		PaymentValue: money.MustParse("100.00"),
		Description:  "groceries",
	})
	require.NoError(t, err)

	total := money.Zero()
	for _, amount := range repo.balances {
		total = total.Add(amount)
	}
	surplus := money.MustParse("60.00")
	diff := surplus.Sub(total)
	if diff.IsNegative() {
		diff = money.Zero().Sub(diff)
	}
	require.True(t, diff.LessThanOrEqual(money.MustParse("0.02")), "diff %s", diff)
}

func TestAllocatePayerNotParticipant(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)

	err := svc.Allocate(context.Background(), ledger.AllocationInput{
		Participants: []ledger.Participant{
			{UserID: 2, SharePct: pct(60)},
			{UserID: 3, SharePct: pct(40)},
		},
		PayerID:      1,
		BillValue:    money.MustParse("100.00"),
		PaymentValue: money.MustParse("100.00"),
	})
	require.ErrorIs(t, err, ledger.ErrPayerNotParticipant)
	require.Empty(t, repo.balances)
	require.Empty(t, repo.entries)
}

func TestAllocateNoSurplus(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)

	// Payer covers exactly their own share; nobody owes anything.
	err := svc.Allocate(context.Background(), ledger.AllocationInput{
		Participants: []ledger.Participant{
			{UserID: 1, SharePct: pct(50)},
			{UserID: 2, SharePct: pct(50)},
		},
		PayerID:      1,
		BillValue:    money.MustParse("200.00"),
		PaymentValue: money.MustParse("100.00"),
	})
	require.NoError(t, err)
	require.Empty(t, repo.balances)
	require.Empty(t, repo.entries)
}

func TestAllocateZeroBillValue(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)

	err := svc.Allocate(context.Background(), ledger.AllocationInput{
		Participants: []ledger.Participant{{UserID: 1, SharePct: pct(100)}},
		PayerID:      1,
		BillValue:    money.Zero(),
		PaymentValue: money.MustParse("50.00"),
	})
	require.NoError(t, err)
	require.Empty(t, repo.balances)
}

func TestAllocateAccumulatesExistingBalance(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "25.00", "older debt")

	err := svc.Allocate(context.Background(), ledger.AllocationInput{
		Participants: []ledger.Participant{
			{UserID: 1, SharePct: pct(50)},
			{UserID: 2, SharePct: pct(50)},
		},
		PayerID:      1,
		BillValue:    money.MustParse("100.00"),
		PaymentValue: money.MustParse("100.00"),
		Description:  "dinner",
	})
	require.NoError(t, err)

	require.Equal(t, "75.00", repo.balances[pair{2, 1}].String())
	require.Len(t, repo.entries, 2)
}

func TestSettleConsumesOldestFirst(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "100.00", "rent")
	seedDebt(t, repo, 2, 1, "50.00", "groceries")
	seedDebt(t, repo, 2, 1, "30.00", "utilities")

	amount := money.MustParse("120.00")
	result, err := svc.Settle(context.Background(), ledger.SettleInput{
		DebtorID:   2,
		CreditorID: 1,
		Amount:     &amount,
	})
	require.NoError(t, err)

	require.False(t, result.SettledFully)
	require.Equal(t, "60.00", result.RemainingBalance.String())
	require.True(t, result.InvertedAmount.IsZero())
	require.Contains(t, result.Message, "60.00")

	require.Equal(t, "60.00", repo.balances[pair{2, 1}].String())

	require.True(t, repo.entries[0].Settled, "oldest entry should be settled")
	require.False(t, repo.entries[1].Settled)
	require.Equal(t, "30.00", repo.entries[1].Amount.String(), "second entry should shrink by the remainder")
	require.False(t, repo.entries[2].Settled)
	require.Equal(t, "30.00", repo.entries[2].Amount.String())

	// Balance equals the sum of unsettled entry amounts.
	sum := money.Zero()
	for _, e := range repo.entries {
		if !e.Settled {
			sum = sum.Add(e.Amount)
		}
	}
	require.True(t, sum.Equal(repo.balances[pair{2, 1}]))
}

func TestSettleFullBalanceByDefault(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "40.00", "rent")
	seedDebt(t, repo, 2, 1, "10.00", "coffee")

	result, err := svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 2, CreditorID: 1})
	require.NoError(t, err)

	require.True(t, result.SettledFully)
	require.True(t, result.RemainingBalance.IsZero())
	require.True(t, result.InvertedAmount.IsZero())
	require.Contains(t, result.Message, "fully settled")

	require.NotContains(t, repo.balances, pair{2, 1})
	for _, e := range repo.entries {
		require.True(t, e.Settled)
	}
}

func TestSettleOverpaymentInvertsDirection(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "50.00", "rent")

	amount := money.MustParse("80.00")
	result, err := svc.Settle(context.Background(), ledger.SettleInput{
		DebtorID:   2,
		CreditorID: 1,
		Amount:     &amount,
	})
	require.NoError(t, err)

	require.True(t, result.SettledFully)
	require.Equal(t, "30.00", result.InvertedAmount.String())
	require.Contains(t, result.Message, "opposite direction")

	// The original direction is gone, the inverse carries the excess. Both
	// directions are never positive at once.
	require.NotContains(t, repo.balances, pair{2, 1})
	require.Equal(t, "30.00", repo.balances[pair{1, 2}].String())

	last := repo.entries[len(repo.entries)-1]
	require.Equal(t, int64(1), last.DebtorID)
	require.Equal(t, int64(2), last.CreditorID)
	require.Nil(t, last.BillID)
	require.False(t, last.Settled)
	require.Equal(t, "excess payment", last.Description)
	require.Equal(t, "30.00", last.Amount.String())
}

func TestSettleNoOutstandingDebt(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)

	_, err := svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 2, CreditorID: 1})
	require.ErrorIs(t, err, ledger.ErrNoOutstandingDebt)
	require.Empty(t, repo.entries)
}

func TestSettleInvalidAmount(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "50.00", "rent")

	zero := money.Zero()
	_, err := svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 2, CreditorID: 1, Amount: &zero})
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)

	negative := money.Zero().Sub(money.MustParse("5.00"))
	_, err = svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 2, CreditorID: 1, Amount: &negative})
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)

	require.Equal(t, "50.00", repo.balances[pair{2, 1}].String())
}

func TestSettleUnknownUser(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "50.00", "rent")

	_, err := svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 2, CreditorID: 99})
	require.ErrorIs(t, err, ledger.ErrUserNotFound)

	_, err = svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 99, CreditorID: 1})
	require.ErrorIs(t, err, ledger.ErrUserNotFound)
}

func TestSettleRollsBackOnFailure(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "100.00", "rent")
	seedDebt(t, repo, 2, 1, "50.00", "groceries")

	repo.failMarkSettled = true
	_, err := svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 2, CreditorID: 1})
	require.Error(t, err)

	// Nothing moved.
	require.Equal(t, "150.00", repo.balances[pair{2, 1}].String())
	for _, e := range repo.entries {
		require.False(t, e.Settled)
	}
}

func TestSettleExactPaymentsNeverGoNegative(t *testing.T) {
	repo := newMemRepo(testUsers()...)
	svc := newService(repo)
	seedDebt(t, repo, 2, 1, "60.00", "rent")

	for i := 0; i < 3; i++ {
		amount := money.MustParse("20.00")
		result, err := svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 2, CreditorID: 1, Amount: &amount})
		require.NoError(t, err)
		if i < 2 {
			require.False(t, result.SettledFully)
			require.True(t, result.RemainingBalance.IsPositive())
		} else {
			require.True(t, result.SettledFully)
		}
	}

	require.NotContains(t, repo.balances, pair{2, 1})
	require.NotContains(t, repo.balances, pair{1, 2})

	_, err := svc.Settle(context.Background(), ledger.SettleInput{DebtorID: 2, CreditorID: 1})
	require.ErrorIs(t, err, ledger.ErrNoOutstandingDebt)
}
