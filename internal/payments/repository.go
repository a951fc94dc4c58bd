package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quitado/quitado/internal/platform/db"
	"github.com/quitado/quitado/internal/platform/httpx"
)

// Repository encapsulates DB operations for payments.
type Repository interface {
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context) ([]Payment, error)
	ListPaymentsByUser(ctx context.Context, userID int64) ([]Payment, error)
	ListPaymentsByBill(ctx context.Context, billID int64) ([]Payment, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the mutations of a payment intake transaction.
type TxRepository interface {
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	UpdateBillLastOccurrence(ctx context.Context, billID int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const paymentColumns = `id, user_id, bill_id, month, year, value, paid_at`

func collectPayments(rows pgx.Rows) ([]Payment, error) {
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.BillID, &p.Month, &p.Year, &p.Value, &p.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) GetPayment(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	err := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id).
		Scan(&p.ID, &p.UserID, &p.BillID, &p.Month, &p.Year, &p.Value, &p.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, httpx.ErrNotFound
	}
	return p, err
}

func (r *repository) ListPayments(ctx context.Context) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments ORDER BY paid_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (r *repository) ListPaymentsByUser(ctx context.Context, userID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id=$1 ORDER BY paid_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (r *repository) ListPaymentsByBill(ctx context.Context, billID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE bill_id=$1 ORDER BY paid_at DESC, id DESC`, billID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO payments (user_id, bill_id, month, year, value)
VALUES ($1,$2,$3,$4,$5) RETURNING id, paid_at`, p.UserID, p.BillID, p.Month, p.Year, p.Value)
	if err := row.Scan(&p.ID, &p.PaidAt); err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateBillLastOccurrence(ctx context.Context, billID int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE bills SET last_occurrence=$2, updated_at=now() WHERE id=$1`, billID, at)
	return err
}
