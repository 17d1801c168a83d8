package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/diagnosis/museum-tickets/internal/domain"
	"github.com/diagnosis/museum-tickets/internal/reservation"
)

type OrderRepoImpl struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepoImpl { return &OrderRepoImpl{pool: pool} }

const orderCols = `id, session_token, confirmation_code,
visit_date, visit_duration, email,
total_amount, payment_state, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.SessionToken, &o.ConfirmationCode,
		&o.VisitDate, &o.VisitDuration, &o.Email,
		&o.TotalAmount, &o.PaymentState, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepoImpl) Create(ctx context.Context, in *domain.Order) (*domain.Order, error) {
	const q = `INSERT INTO orders (
    session_token, visit_date, visit_duration, email,
    total_amount, payment_state, created_at, updated_at
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
  RETURNING ` + orderCols

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanOrder(r.pool.QueryRow(ctx, q,
		in.SessionToken, in.VisitDate, string(in.VisitDuration), in.Email,
		in.TotalAmount, string(domain.PaymentPending), createdAt,
	))
}

func (r *OrderRepoImpl) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	const q = `SELECT ` + orderCols + ` FROM orders WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	o, err := scanOrder(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

func (r *OrderRepoImpl) SetConfirmationCode(ctx context.Context, id int64, code string) error {
	const q = `UPDATE orders SET confirmation_code=$2, updated_at=now() WHERE id=$1`
	return r.exec(ctx, q, id, code)
}

func (r *OrderRepoImpl) UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error {
	const q = `UPDATE orders SET total_amount=$2, updated_at=now() WHERE id=$1`
	return r.exec(ctx, q, id, total)
}

func (r *OrderRepoImpl) exec(ctx context.Context, q string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ct, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepoImpl) MarkConfirmed(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE orders SET payment_state='confirmed', updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE tickets SET confirmed=true WHERE order_id=$1`, id); err != nil {
		return fmt.Errorf("confirm tickets: %w", err)
	}
	return tx.Commit(ctx)
}

var _ reservation.OrderRepository = (*OrderRepoImpl)(nil)
