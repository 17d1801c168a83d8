package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"

	"github.com/diagnosis/museum-tickets/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url, nats.Name("museum-tickets"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// NopPublisher drops every event. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	logger.DebugContext(ctx, "Event bus disabled, dropping event", "subject", subject)
	return nil
}

func (NopPublisher) Close() error { return nil }

// Event subjects
const (
	OrderCreated         = "order.created"
	OrderTicketsAttached = "order.tickets_attached"
	OrderConfirmed       = "order.confirmed"
	PaymentFailed        = "payment.failed"
)

// Event payloads
type OrderCreatedEvent struct {
	OrderID          int64     `json:"order_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	VisitDate        string    `json:"visit_date"`
	VisitDuration    string    `json:"visit_duration"`
	CreatedAt        time.Time `json:"created_at"`
}

type TicketsAttachedEvent struct {
	OrderID   int64   `json:"order_id"`
	TicketIDs []int64 `json:"ticket_ids"`
}

type OrderConfirmedEvent struct {
	OrderID          int64           `json:"order_id"`
	ConfirmationCode string          `json:"confirmation_code"`
	VisitDate        string          `json:"visit_date"`
	Tickets          int             `json:"tickets"`
	Amount           decimal.Decimal `json:"amount"`
	ChargeID         string          `json:"charge_id,omitempty"`
	ConfirmedAt      time.Time       `json:"confirmed_at"`
}

type PaymentFailedEvent struct {
	OrderID int64           `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason"`
}

var (
	_ Publisher = (*NATSEventBus)(nil)
	_ Publisher = NopPublisher{}
)
