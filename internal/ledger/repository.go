package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quitado/quitado/internal/money"
	"github.com/quitado/quitado/internal/platform/db"
)

// Repository encapsulates DB operations for the ledger.
type Repository interface {
	GetUser(ctx context.Context, id int64) (UserRef, error)
	GetBalance(ctx context.Context, debtorID, creditorID int64) (Balance, error)
	ListBalancesByDebtor(ctx context.Context, debtorID int64) ([]BalanceWithNames, error)
	ListBalancesByCreditor(ctx context.Context, creditorID int64) ([]BalanceWithNames, error)
	ListAllBalances(ctx context.Context) ([]BalanceWithNames, error)
	ListEntries(ctx context.Context, limit, offset int) ([]Entry, error)
	ListEntriesByUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, error)
	CountEntries(ctx context.Context) (int, error)
	CountEntriesByUser(ctx context.Context, userID int64) (int, error)
	ListUnsettledEntriesByPair(ctx context.Context, debtorID, creditorID int64) ([]Entry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the mutations available within a settlement or
// allocation transaction. Balance rows are locked FOR UPDATE before any write.
type TxRepository interface {
	GetUser(ctx context.Context, id int64) (UserRef, error)
	GetBalanceForUpdate(ctx context.Context, debtorID, creditorID int64) (Balance, bool, error)
	InsertBalance(ctx context.Context, b Balance) error
	UpdateBalanceAmount(ctx context.Context, b Balance) error
	DeleteBalance(ctx context.Context, debtorID, creditorID int64) error
	ListUnsettledEntriesForUpdate(ctx context.Context, debtorID, creditorID int64) ([]Entry, error)
	MarkEntrySettled(ctx context.Context, entryID int64) error
	UpdateEntryAmount(ctx context.Context, entryID int64, amount money.Money) error
	InsertEntry(ctx context.Context, e Entry) (Entry, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const entryColumns = `id, debtor_id, creditor_id, bill_id, description, amount, settled, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.DebtorID, &e.CreditorID, &e.BillID, &e.Description, &e.Amount, &e.Settled, &e.CreatedAt)
	return e, err
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectBalancesWithNames(rows pgx.Rows) ([]BalanceWithNames, error) {
	defer rows.Close()
	var out []BalanceWithNames
	for rows.Next() {
		var b BalanceWithNames
		if err := rows.Scan(&b.DebtorID, &b.CreditorID, &b.Amount, &b.DebtorName, &b.CreditorName); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) GetUser(ctx context.Context, id int64) (UserRef, error) {
	var u UserRef
	err := r.db.QueryRow(ctx, `SELECT id, name FROM users WHERE id=$1 AND is_active`, id).Scan(&u.ID, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRef{}, ErrUserNotFound
	}
	return u, err
}

func (r *repository) GetBalance(ctx context.Context, debtorID, creditorID int64) (Balance, error) {
	b := Balance{DebtorID: debtorID, CreditorID: creditorID}
	err := r.db.QueryRow(ctx, `SELECT amount FROM balances WHERE debtor_id=$1 AND creditor_id=$2`, debtorID, creditorID).
		Scan(&b.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrNoOutstandingDebt
	}
	return b, err
}

const balanceWithNamesSelect = `
SELECT b.debtor_id, b.creditor_id, b.amount, d.name, c.name
FROM balances b
JOIN users d ON d.id = b.debtor_id
JOIN users c ON c.id = b.creditor_id`

func (r *repository) ListBalancesByDebtor(ctx context.Context, debtorID int64) ([]BalanceWithNames, error) {
	rows, err := r.db.Query(ctx, balanceWithNamesSelect+` WHERE b.debtor_id=$1 ORDER BY b.creditor_id`, debtorID)
	if err != nil {
		return nil, err
	}
	return collectBalancesWithNames(rows)
}

func (r *repository) ListBalancesByCreditor(ctx context.Context, creditorID int64) ([]BalanceWithNames, error) {
	rows, err := r.db.Query(ctx, balanceWithNamesSelect+` WHERE b.creditor_id=$1 ORDER BY b.debtor_id`, creditorID)
	if err != nil {
		return nil, err
	}
	return collectBalancesWithNames(rows)
}

func (r *repository) ListAllBalances(ctx context.Context) ([]BalanceWithNames, error) {
	rows, err := r.db.Query(ctx, balanceWithNamesSelect+` ORDER BY b.debtor_id, b.creditor_id`)
	if err != nil {
		return nil, err
	}
	return collectBalancesWithNames(rows)
}

func (r *repository) ListEntries(ctx context.Context, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM entries
ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *repository) ListEntriesByUser(ctx context.Context, userID int64, limit, offset int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM entries
WHERE debtor_id=$1 OR creditor_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *repository) CountEntries(ctx context.Context) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM entries`).Scan(&total)
	return total, err
}

func (r *repository) CountEntriesByUser(ctx context.Context, userID int64) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM entries WHERE debtor_id=$1 OR creditor_id=$1`, userID).Scan(&total)
	return total, err
}

func (r *repository) ListUnsettledEntriesByPair(ctx context.Context, debtorID, creditorID int64) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM entries
WHERE debtor_id=$1 AND creditor_id=$2 AND NOT settled ORDER BY created_at DESC, id DESC`, debtorID, creditorID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetUser(ctx context.Context, id int64) (UserRef, error) {
	var u UserRef
	err := r.tx.QueryRow(ctx, `SELECT id, name FROM users WHERE id=$1 AND is_active`, id).Scan(&u.ID, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRef{}, ErrUserNotFound
	}
	return u, err
}

func (r *txRepository) GetBalanceForUpdate(ctx context.Context, debtorID, creditorID int64) (Balance, bool, error) {
	b := Balance{DebtorID: debtorID, CreditorID: creditorID}
	err := r.tx.QueryRow(ctx, `SELECT amount FROM balances WHERE debtor_id=$1 AND creditor_id=$2 FOR UPDATE`, debtorID, creditorID).
		Scan(&b.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, false, nil
	}
	if err != nil {
		return Balance{}, false, err
	}
	return b, true, nil
}

func (r *txRepository) InsertBalance(ctx context.Context, b Balance) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO balances (debtor_id, creditor_id, amount) VALUES ($1,$2,$3)`,
		b.DebtorID, b.CreditorID, b.Amount)
	return err
}

func (r *txRepository) UpdateBalanceAmount(ctx context.Context, b Balance) error {
	_, err := r.tx.Exec(ctx, `UPDATE balances SET amount=$3 WHERE debtor_id=$1 AND creditor_id=$2`,
		b.DebtorID, b.CreditorID, b.Amount)
	return err
}

func (r *txRepository) DeleteBalance(ctx context.Context, debtorID, creditorID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM balances WHERE debtor_id=$1 AND creditor_id=$2`, debtorID, creditorID)
	return err
}

// ListUnsettledEntriesForUpdate returns the pair's open entries oldest first,
// locked for the duration of the transaction.
func (r *txRepository) ListUnsettledEntriesForUpdate(ctx context.Context, debtorID, creditorID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+entryColumns+` FROM entries
WHERE debtor_id=$1 AND creditor_id=$2 AND NOT settled ORDER BY created_at, id FOR UPDATE`, debtorID, creditorID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *txRepository) MarkEntrySettled(ctx context.Context, entryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE entries SET settled=TRUE WHERE id=$1`, entryID)
	return err
}

func (r *txRepository) UpdateEntryAmount(ctx context.Context, entryID int64, amount money.Money) error {
	_, err := r.tx.Exec(ctx, `UPDATE entries SET amount=$2 WHERE id=$1`, entryID, amount)
	return err
}

func (r *txRepository) InsertEntry(ctx context.Context, e Entry) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO entries (debtor_id, creditor_id, bill_id, description, amount, settled)
VALUES ($1,$2,$3,$4,$5,FALSE) RETURNING id, created_at`,
		e.DebtorID, e.CreditorID, e.BillID, e.Description, e.Amount)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	return e, nil
}
