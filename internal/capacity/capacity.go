// Package capacity decides whether a visit date can still take an order's
// tickets. Only tickets of paid orders count against the daily cap, so
// abandoned carts never hold places.
package capacity

import (
	"context"
	"fmt"
	"time"
)

// ConfirmedCounter counts tickets of confirmed orders for one visit date.
type ConfirmedCounter interface {
	CountConfirmedForDate(ctx context.Context, date time.Time) (int, error)
}

type Controller struct {
	counter  ConfirmedCounter
	capacity int
}

func NewController(counter ConfirmedCounter, capacity int) *Controller {
	return &Controller{counter: counter, capacity: capacity}
}

func (c *Controller) Capacity() int { return c.capacity }

// Admit is the admission rule itself: confirmed + requested must fit in capacity.
func Admit(confirmed, requested, capacity int) bool {
	return confirmed+requested <= capacity
}

// CanAdmit reports whether orderTickets more tickets fit on date.
func (c *Controller) CanAdmit(ctx context.Context, date time.Time, orderTickets int) (bool, error) {
	confirmed, err := c.counter.CountConfirmedForDate(ctx, date)
	if err != nil {
		return false, fmt.Errorf("count confirmed tickets: %w", err)
	}
	return Admit(confirmed, orderTickets, c.capacity), nil
}

type Availability struct {
	Date      string `json:"date"`
	Confirmed int    `json:"confirmed"`
	Capacity  int    `json:"capacity"`
	Remaining int    `json:"remaining"`
}

func (c *Controller) Availability(ctx context.Context, date time.Time) (*Availability, error) {
	confirmed, err := c.counter.CountConfirmedForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("count confirmed tickets: %w", err)
	}
	remaining := c.capacity - confirmed
	if remaining < 0 {
		remaining = 0
	}
	return &Availability{
		Date:      date.Format("2006-01-02"),
		Confirmed: confirmed,
		Capacity:  c.capacity,
		Remaining: remaining,
	}, nil
}
