// Package reservation drives an order from creation through ticket
// attachment and payment to confirmation.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diagnosis/museum-tickets/internal/capacity"
	"github.com/diagnosis/museum-tickets/internal/domain"
	"github.com/diagnosis/museum-tickets/internal/platform/mailer"
	"github.com/diagnosis/museum-tickets/internal/platform/payment"
	"github.com/diagnosis/museum-tickets/internal/pricing"
	"github.com/diagnosis/museum-tickets/pkg/events"
	"github.com/diagnosis/museum-tickets/pkg/logger"
)

type Service interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	AttachTicket(ctx context.Context, orderID int64, v domain.Visitor) (*domain.Ticket, error)
	AttachTickets(ctx context.Context, orderID int64, visitors []domain.Visitor) ([]domain.Ticket, error)
	RemoveTicket(ctx context.Context, orderID, ticketID int64) error
	RecomputeTotal(ctx context.Context, orderID int64) (decimal.Decimal, error)
	ConfirmPayment(ctx context.Context, orderID int64) error
	Checkout(ctx context.Context, orderID int64, paymentToken string) (*CheckoutResult, error)
}

type CreateOrderInput struct {
	SessionToken string
	VisitDate    time.Time
	Duration     domain.VisitDuration
	Email        string
}

// CheckoutResult is the state of an order after a checkout attempt.
// Confirmed is true once the order has been paid.
type CheckoutResult struct {
	Order     *domain.Order
	Confirmed bool
	ChargeID  string
}

type Deps struct {
	Orders     OrderRepository
	Tickets    TicketRepository
	Pricing    *pricing.Policy
	Capacity   *capacity.Controller
	Locker     capacity.Locker
	Payments   payment.Processor
	Mailer     mailer.Service
	Events     events.Publisher
	Location   *time.Location
	CutoffHour int
	Now        func() time.Time
}

type reservationService struct {
	orders     OrderRepository
	tickets    TicketRepository
	pricing    *pricing.Policy
	capacity   *capacity.Controller
	locker     capacity.Locker
	payments   payment.Processor
	mailer     mailer.Service
	events     events.Publisher
	location   *time.Location
	cutoffHour int
	now        func() time.Time
}

func NewService(d Deps) Service {
	s := &reservationService{
		orders:     d.Orders,
		tickets:    d.Tickets,
		pricing:    d.Pricing,
		capacity:   d.Capacity,
		locker:     d.Locker,
		payments:   d.Payments,
		mailer:     d.Mailer,
		events:     d.Events,
		location:   d.Location,
		cutoffHour: d.CutoffHour,
		now:        d.Now,
	}
	if s.location == nil {
		s.location = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.locker == nil {
		s.locker = capacity.NewLocalLocker()
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	return s
}

func (s *reservationService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if in.SessionToken == "" {
		return nil, domain.ErrUnauthorized
	}
	if _, ok := domain.ParseVisitDuration(string(in.Duration)); !ok {
		return nil, fmt.Errorf("%w: unknown visit duration %q", domain.ErrInvalidInput, in.Duration)
	}

	now := s.now().In(s.location)
	visit := domain.Date(in.VisitDate)
	if s.pastCutoff(now, visit, in.Duration) {
		logger.InfoContext(ctx, "Full-day order rejected after cutoff",
			"visit_date", visit.Format(domain.DateLayout), "hour", now.Hour())
		return nil, domain.ErrCutoffPassed
	}

	order, err := s.orders.Create(ctx, &domain.Order{
		SessionToken:  in.SessionToken,
		VisitDate:     visit,
		VisitDuration: in.Duration,
		Email:         in.Email,
		TotalAmount:   decimal.Zero,
		PaymentState:  domain.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	// the code embeds the id, so it can only be written once the row exists
	code := domain.ConfirmationCodeFor(order.CreatedAt.In(s.location), order.ID)
	if err := s.orders.SetConfirmationCode(ctx, order.ID, code); err != nil {
		return nil, fmt.Errorf("failed to set confirmation code: %w", err)
	}
	order.ConfirmationCode = code

	ctx = logger.WithOrder(ctx, order.ID)
	logger.InfoContext(ctx, "Order created",
		"confirmation_code", code,
		"visit_date", visit.Format(domain.DateLayout),
		"duration", order.VisitDuration,
	)

	s.publish(ctx, events.OrderCreated, events.OrderCreatedEvent{
		OrderID:          order.ID,
		ConfirmationCode: code,
		VisitDate:        visit.Format(domain.DateLayout),
		VisitDuration:    string(order.VisitDuration),
		CreatedAt:        order.CreatedAt,
	})

	return order, nil
}

// pastCutoff reports whether a full-day visit today can no longer be sold.
func (s *reservationService) pastCutoff(now, visit time.Time, d domain.VisitDuration) bool {
	return d == domain.DurationFull &&
		visit.Equal(domain.Date(now)) &&
		now.Hour() > s.cutoffHour
}

func (s *reservationService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}

	tickets, err := s.tickets.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	order.Tickets = tickets
	return order, nil
}

func (s *reservationService) AttachTicket(ctx context.Context, orderID int64, v domain.Visitor) (*domain.Ticket, error) {
	tickets, err := s.AttachTickets(ctx, orderID, []domain.Visitor{v})
	if err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (s *reservationService) AttachTickets(ctx context.Context, orderID int64, visitors []domain.Visitor) ([]domain.Ticket, error) {
	if len(visitors) == 0 {
		return nil, fmt.Errorf("%w: no visitors", domain.ErrInvalidInput)
	}

	unlock, err := s.locker.Lock(ctx, capacity.OrderKey(orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	defer unlock()

	order, err := s.pendingOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithOrder(ctx, orderID)
	created := make([]domain.Ticket, 0, len(visitors))
	ids := make([]int64, 0, len(visitors))
	for _, v := range visitors {
		age := domain.AgeOn(order.VisitDate, v.BirthDate)
		t, err := s.tickets.Create(ctx, &domain.Ticket{
			OrderID:          order.ID,
			VisitDate:        order.VisitDate,
			FirstName:        v.FirstName,
			LastName:         v.LastName,
			Country:          v.Country,
			BirthDate:        domain.Date(v.BirthDate),
			DiscountEligible: v.DiscountEligible,
			Age:              age,
			Price:            s.pricing.Price(age, order.VisitDuration, v.DiscountEligible),
			CreatedAt:        s.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ticket: %w", err)
		}
		created = append(created, *t)
		ids = append(ids, t.ID)
	}

	logger.InfoContext(ctx, "Tickets attached", "count", len(created))
	s.publish(ctx, events.OrderTicketsAttached, events.TicketsAttachedEvent{
		OrderID:   orderID,
		TicketIDs: ids,
	})

	return created, nil
}

func (s *reservationService) RemoveTicket(ctx context.Context, orderID, ticketID int64) error {
	unlock, err := s.locker.Lock(ctx, capacity.OrderKey(orderID))
	if err != nil {
		return fmt.Errorf("failed to lock order: %w", err)
	}
	defer unlock()

	if _, err := s.pendingOrder(ctx, orderID); err != nil {
		return err
	}

	deleted, err := s.tickets.Delete(ctx, orderID, ticketID)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if !deleted {
		return domain.ErrNotFound
	}

	logger.InfoContext(logger.WithOrder(ctx, orderID), "Ticket removed", "ticket_id", ticketID)
	return nil
}

// pendingOrder loads an order that may still be modified.
func (s *reservationService) pendingOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if order.IsConfirmed() {
		return nil, domain.ErrOrderConfirmed
	}
	return order, nil
}

func (s *reservationService) RecomputeTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.recompute(ctx, order); err != nil {
		return decimal.Zero, err
	}
	return order.TotalAmount, nil
}

// recompute sums the prices of the loaded tickets and stores the result as
// the order total.
func (s *reservationService) recompute(ctx context.Context, order *domain.Order) error {
	total := decimal.Zero
	for _, t := range order.Tickets {
		total = total.Add(t.Price)
	}
	if err := s.orders.UpdateTotal(ctx, order.ID, total); err != nil {
		return fmt.Errorf("failed to update order total: %w", err)
	}
	order.TotalAmount = total
	return nil
}

func (s *reservationService) ConfirmPayment(ctx context.Context, orderID int64) error {
	unlock, err := s.locker.Lock(ctx, capacity.OrderKey(orderID))
	if err != nil {
		return fmt.Errorf("failed to lock order: %w", err)
	}
	defer unlock()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return domain.ErrNotFound
	}
	if order.IsConfirmed() {
		return nil
	}
	if err := s.orders.MarkConfirmed(ctx, orderID); err != nil {
		return fmt.Errorf("failed to confirm order: %w", err)
	}
	return nil
}

// Checkout recomputes the total and runs capacity admission. Without a
// payment token it only reports the checkout state. With one it charges the
// order, confirms it and notifies the visitor. A declined charge returns
// the current state together with an error wrapping ErrPaymentDeclined.
func (s *reservationService) Checkout(ctx context.Context, orderID int64, paymentToken string) (*CheckoutResult, error) {
	ctx = logger.WithOrder(ctx, orderID)

	unlockOrder, err := s.locker.Lock(ctx, capacity.OrderKey(orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	defer unlockOrder()

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsConfirmed() {
		if paymentToken == "" {
			return &CheckoutResult{Order: order, Confirmed: true}, nil
		}
		return nil, domain.ErrOrderConfirmed
	}

	if err := s.recompute(ctx, order); err != nil {
		return nil, err
	}
	result := &CheckoutResult{Order: order}

	if paymentToken != "" {
		if len(order.Tickets) == 0 {
			return nil, domain.ErrEmptyOrder
		}
		// count, charge and confirm must not interleave with another
		// checkout for the same day
		unlockDate, err := s.locker.Lock(ctx, capacity.DateKey(order.VisitDate))
		if err != nil {
			return nil, fmt.Errorf("failed to lock visit date: %w", err)
		}
		defer unlockDate()
	}

	ok, err := s.capacity.CanAdmit(ctx, order.VisitDate, len(order.Tickets))
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.InfoContext(ctx, "Capacity exceeded",
			"visit_date", order.VisitDate.Format(domain.DateLayout),
			"tickets", len(order.Tickets),
		)
		return nil, domain.ErrCapacityExceeded
	}

	if paymentToken == "" {
		return result, nil
	}

	if order.TotalAmount.IsPositive() {
		chargeID, err := s.payments.Charge(ctx, payment.ChargeRequest{
			Amount:         order.TotalAmount,
			Token:          paymentToken,
			Email:          order.Email,
			Description:    "Tickets " + order.ConfirmationCode,
			IdempotencyKey: order.ConfirmationCode + ":" + paymentToken,
		})
		if errors.Is(err, payment.ErrDeclined) {
			logger.WarnContext(ctx, "Payment declined", "error", err, "amount", order.TotalAmount.String())
			s.publish(ctx, events.PaymentFailed, events.PaymentFailedEvent{
				OrderID: order.ID,
				Amount:  order.TotalAmount,
				Reason:  err.Error(),
			})
			return result, fmt.Errorf("%w: %v", domain.ErrPaymentDeclined, err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to charge payment: %w", err)
		}
		result.ChargeID = chargeID
	}

	if err := s.orders.MarkConfirmed(ctx, order.ID); err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	confirmed, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	result.Order = confirmed
	result.Confirmed = true

	logger.InfoContext(ctx, "Order confirmed",
		"confirmation_code", confirmed.ConfirmationCode,
		"tickets", len(confirmed.Tickets),
		"amount", confirmed.TotalAmount.String(),
	)

	s.notify(ctx, confirmed)
	s.publish(ctx, events.OrderConfirmed, events.OrderConfirmedEvent{
		OrderID:          confirmed.ID,
		ConfirmationCode: confirmed.ConfirmationCode,
		VisitDate:        confirmed.VisitDate.Format(domain.DateLayout),
		Tickets:          len(confirmed.Tickets),
		Amount:           confirmed.TotalAmount,
		ChargeID:         result.ChargeID,
		ConfirmedAt:      s.now(),
	})

	return result, nil
}

// notify sends the confirmation email. Failures are logged only: the order
// is paid and confirmed regardless.
func (s *reservationService) notify(ctx context.Context, order *domain.Order) {
	if s.mailer == nil || order.Email == "" {
		return
	}
	text, html, err := renderConfirmation(order)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to render confirmation email", "error", err)
		return
	}
	id, err := s.mailer.Send(order.Email, "", confirmationSubject, text, html)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to send confirmation email", "error", err)
		return
	}
	logger.InfoContext(ctx, "Confirmation email sent", "message_id", id)
}

func (s *reservationService) publish(ctx context.Context, subject string, data interface{}) {
	if err := s.events.Publish(ctx, subject, data); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
