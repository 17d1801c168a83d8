package reservation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diagnosis/museum-tickets/internal/domain"
)

// OrderRepository persists orders. Lookups of missing rows return nil, nil.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	SetConfirmationCode(ctx context.Context, id int64, code string) error
	UpdateTotal(ctx context.Context, id int64, total decimal.Decimal) error
	// MarkConfirmed moves the order and all of its tickets to confirmed in
	// a single transaction.
	MarkConfirmed(ctx context.Context, id int64) error
}

type TicketRepository interface {
	Create(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.Ticket, error)
	Delete(ctx context.Context, orderID, ticketID int64) (bool, error)
	CountConfirmedForDate(ctx context.Context, date time.Time) (int, error)
}
