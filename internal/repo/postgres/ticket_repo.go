package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/museum-tickets/internal/domain"
	"github.com/diagnosis/museum-tickets/internal/reservation"
)

type TicketRepoImpl struct{ pool *pgxpool.Pool }

func NewTicketRepo(pool *pgxpool.Pool) *TicketRepoImpl { return &TicketRepoImpl{pool: pool} }

const ticketCols = `id, order_id, visit_date,
first_name, last_name, country, birth_date,
discount_eligible, age, price, confirmed, created_at`

func (r *TicketRepoImpl) Create(ctx context.Context, in *domain.Ticket) (*domain.Ticket, error) {
	const q = `INSERT INTO tickets (
    order_id, visit_date,
    first_name, last_name, country, birth_date,
    discount_eligible, age, price
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  RETURNING ` + ticketCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var t domain.Ticket
	err := r.pool.QueryRow(ctx, q,
		in.OrderID, in.VisitDate,
		in.FirstName, in.LastName, in.Country, in.BirthDate,
		in.DiscountEligible, in.Age, in.Price,
	).Scan(
		&t.ID, &t.OrderID, &t.VisitDate,
		&t.FirstName, &t.LastName, &t.Country, &t.BirthDate,
		&t.DiscountEligible, &t.Age, &t.Price, &t.Confirmed, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TicketRepoImpl) ListByOrder(ctx context.Context, orderID int64) ([]domain.Ticket, error) {
	const q = `SELECT ` + ticketCols + ` FROM tickets WHERE order_id=$1 ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ts []domain.Ticket
	for rows.Next() {
		var t domain.Ticket
		if err := rows.Scan(
			&t.ID, &t.OrderID, &t.VisitDate,
			&t.FirstName, &t.LastName, &t.Country, &t.BirthDate,
			&t.DiscountEligible, &t.Age, &t.Price, &t.Confirmed, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return ts, rows.Err()
}

func (r *TicketRepoImpl) Delete(ctx context.Context, orderID, ticketID int64) (bool, error) {
	const q = `DELETE FROM tickets WHERE id=$1 AND order_id=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ct, err := r.pool.Exec(ctx, q, ticketID, orderID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *TicketRepoImpl) CountConfirmedForDate(ctx context.Context, date time.Time) (int, error) {
	const q = `SELECT count(*) FROM tickets WHERE visit_date=$1 AND confirmed`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	if err := r.pool.QueryRow(ctx, q, domain.Date(date)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ reservation.TicketRepository = (*TicketRepoImpl)(nil)
