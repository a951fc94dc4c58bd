package bills

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quitado/quitado/internal/platform/db"
	"github.com/quitado/quitado/internal/platform/httpx"
)

// Repository encapsulates DB operations for bills.
type Repository interface {
	GetBill(ctx context.Context, id int64) (Bill, error)
	ListBills(ctx context.Context) ([]Bill, error)
	ListBillsByUser(ctx context.Context, userID int64) ([]Bill, error)
	ListParticipants(ctx context.Context, billID int64) ([]Participant, error)
	GetMonthlyValue(ctx context.Context, billID int64, month, year int) (MonthlyValue, error)
	ListMonthlyValues(ctx context.Context, billID int64) ([]MonthlyValue, error)
	DeleteBill(ctx context.Context, id int64) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the mutations used by bill create/update flows.
type TxRepository interface {
	InsertBill(ctx context.Context, b Bill) (Bill, error)
	UpdateBill(ctx context.Context, b Bill) error
	ReplaceParticipants(ctx context.Context, billID int64, participants []Participant) error
	SetParticipantPaid(ctx context.Context, billID, userID int64, paid bool) error
	UpsertMonthlyValue(ctx context.Context, mv MonthlyValue) error
	UpdateLastOccurrence(ctx context.Context, billID int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const billColumns = `id, description, bill_type, owner_id, due_day, total_value, installments, start_month, start_year, last_occurrence, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.Description, &b.Type, &b.OwnerID, &b.DueDay, &b.TotalValue,
		&b.Installments, &b.StartMonth, &b.StartYear, &b.LastOccurrence, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func collectBills(rows pgx.Rows) ([]Bill, error) {
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) GetBill(ctx context.Context, id int64) (Bill, error) {
	b, err := scanBill(r.db.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, httpx.ErrNotFound
	}
	return b, err
}

func (r *repository) ListBills(ctx context.Context) ([]Bill, error) {
	rows, err := r.db.Query(ctx, `SELECT `+billColumns+` FROM bills ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

func (r *repository) ListBillsByUser(ctx context.Context, userID int64) ([]Bill, error) {
	rows, err := r.db.Query(ctx, `SELECT `+billColumns+` FROM bills
WHERE owner_id=$1 OR id IN (SELECT bill_id FROM bill_participants WHERE user_id=$1)
ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return collectBills(rows)
}

func (r *repository) ListParticipants(ctx context.Context, billID int64) ([]Participant, error) {
	rows, err := r.db.Query(ctx, `SELECT bill_id, user_id, share_pct, is_paid
FROM bill_participants WHERE bill_id=$1 ORDER BY user_id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.BillID, &p.UserID, &p.SharePct, &p.IsPaid); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) GetMonthlyValue(ctx context.Context, billID int64, month, year int) (MonthlyValue, error) {
	var mv MonthlyValue
	err := r.db.QueryRow(ctx, `SELECT bill_id, month, year, value, installment_number, due_date
FROM bill_monthly_values WHERE bill_id=$1 AND month=$2 AND year=$3`, billID, month, year).
		Scan(&mv.BillID, &mv.Month, &mv.Year, &mv.Value, &mv.InstallmentNumber, &mv.DueDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return MonthlyValue{}, httpx.ErrNotFound
	}
	return mv, err
}

func (r *repository) ListMonthlyValues(ctx context.Context, billID int64) ([]MonthlyValue, error) {
	rows, err := r.db.Query(ctx, `SELECT bill_id, month, year, value, installment_number, due_date
FROM bill_monthly_values WHERE bill_id=$1 ORDER BY year, month`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthlyValue
	for rows.Next() {
		var mv MonthlyValue
		if err := rows.Scan(&mv.BillID, &mv.Month, &mv.Year, &mv.Value, &mv.InstallmentNumber, &mv.DueDate); err != nil {
			return nil, err
		}
		out = append(out, mv)
	}
	return out, rows.Err()
}

func (r *repository) DeleteBill(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bills WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO bills (description, bill_type, owner_id, due_day, total_value, installments, start_month, start_year)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at, updated_at`,
		b.Description, b.Type, b.OwnerID, b.DueDay, b.TotalValue, b.Installments, b.StartMonth, b.StartYear)
	if err := row.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return Bill{}, err
	}
	return b, nil
}

func (r *txRepository) UpdateBill(ctx context.Context, b Bill) error {
	tag, err := r.tx.Exec(ctx, `UPDATE bills SET description=$2, due_day=$3, total_value=$4, installments=$5, start_month=$6, start_year=$7, updated_at=now()
WHERE id=$1`, b.ID, b.Description, b.DueDay, b.TotalValue, b.Installments, b.StartMonth, b.StartYear)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) ReplaceParticipants(ctx context.Context, billID int64, participants []Participant) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM bill_participants WHERE bill_id=$1`, billID); err != nil {
		return err
	}
	for _, p := range participants {
		if _, err := r.tx.Exec(ctx, `INSERT INTO bill_participants (bill_id, user_id, share_pct, is_paid)
VALUES ($1,$2,$3,$4)`, billID, p.UserID, p.SharePct, p.IsPaid); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) SetParticipantPaid(ctx context.Context, billID, userID int64, paid bool) error {
	tag, err := r.tx.Exec(ctx, `UPDATE bill_participants SET is_paid=$3 WHERE bill_id=$1 AND user_id=$2`, billID, userID, paid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) UpsertMonthlyValue(ctx context.Context, mv MonthlyValue) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO bill_monthly_values (bill_id, month, year, value, installment_number, due_date)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (bill_id, month, year) DO UPDATE SET value=EXCLUDED.value, installment_number=EXCLUDED.installment_number, due_date=EXCLUDED.due_date`,
		mv.BillID, mv.Month, mv.Year, mv.Value, mv.InstallmentNumber, mv.DueDate)
	return err
}

func (r *txRepository) UpdateLastOccurrence(ctx context.Context, billID int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE bills SET last_occurrence=$2, updated_at=now() WHERE id=$1`, billID, at)
	return err
}
