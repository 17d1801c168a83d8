// Package memory keeps orders and tickets in process memory. It backs
// STORAGE_DRIVER=memory and the handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diagnosis/museum-tickets/internal/domain"
	"github.com/diagnosis/museum-tickets/internal/reservation"
)

type Store struct {
	mu           sync.RWMutex
	orders       map[int64]domain.Order
	tickets      map[int64]domain.Ticket
	nextOrderID  int64
	nextTicketID int64
}

func NewStore() *Store {
	return &Store{
		orders:  make(map[int64]domain.Order),
		tickets: make(map[int64]domain.Ticket),
	}
}

func (s *Store) Orders() *OrderRepo   { return &OrderRepo{s: s} }
func (s *Store) Tickets() *TicketRepo { return &TicketRepo{s: s} }

type OrderRepo struct{ s *Store }

func (r *OrderRepo) Create(_ context.Context, o *domain.Order) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextOrderID++
	stored := *o
	stored.ID = r.s.nextOrderID
	stored.Tickets = nil
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = stored.CreatedAt
	r.s.orders[stored.ID] = stored

	out := stored
	return &out, nil
}

func (r *OrderRepo) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *OrderRepo) SetConfirmationCode(_ context.Context, id int64, code string) error {
	return r.update(id, func(o *domain.Order) { o.ConfirmationCode = code })
}

func (r *OrderRepo) UpdateTotal(_ context.Context, id int64, total decimal.Decimal) error {
	return r.update(id, func(o *domain.Order) { o.TotalAmount = total })
}

func (r *OrderRepo) MarkConfirmed(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.PaymentState = domain.PaymentConfirmed
	o.UpdatedAt = time.Now()
	r.s.orders[id] = o

	for tid, t := range r.s.tickets {
		if t.OrderID == id {
			t.Confirmed = true
			r.s.tickets[tid] = t
		}
	}
	return nil
}

func (r *OrderRepo) update(id int64, fn func(o *domain.Order)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&o)
	o.UpdatedAt = time.Now()
	r.s.orders[id] = o
	return nil
}

type TicketRepo struct{ s *Store }

func (r *TicketRepo) Create(_ context.Context, t *domain.Ticket) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.orders[t.OrderID]; !ok {
		return nil, domain.ErrNotFound
	}
	r.s.nextTicketID++
	stored := *t
	stored.ID = r.s.nextTicketID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.s.tickets[stored.ID] = stored

	out := stored
	return &out, nil
}

func (r *TicketRepo) ListByOrder(_ context.Context, orderID int64) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *TicketRepo) Delete(_ context.Context, orderID, ticketID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tickets[ticketID]
	if !ok || t.OrderID != orderID {
		return false, nil
	}
	delete(r.s.tickets, ticketID)
	return true, nil
}

func (r *TicketRepo) CountConfirmedForDate(_ context.Context, date time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	day := domain.Date(date)
	n := 0
	for _, t := range r.s.tickets {
		if t.Confirmed && domain.Date(t.VisitDate).Equal(day) {
			n++
		}
	}
	return n, nil
}

var (
	_ reservation.OrderRepository  = (*OrderRepo)(nil)
	_ reservation.TicketRepository = (*TicketRepo)(nil)
)
