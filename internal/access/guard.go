// Package access decides whether a caller may act on an order. The session
// token recorded on the order at creation is the only credential.
package access

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/diagnosis/museum-tickets/internal/domain"
)

type OrderLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
}

type Guard struct {
	orders OrderLookup
}

func NewGuard(orders OrderLookup) *Guard {
	return &Guard{orders: orders}
}

// Authorize returns nil only when token matches the token the order was
// created with. An empty token never matches.
func (g *Guard) Authorize(ctx context.Context, orderID int64, token string) error {
	order, err := g.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return domain.ErrNotFound
	}
	if !Match(order.SessionToken, token) {
		return domain.ErrUnauthorized
	}
	return nil
}

func Match(recorded, supplied string) bool {
	if recorded == "" || supplied == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(recorded), []byte(supplied)) == 1
}
