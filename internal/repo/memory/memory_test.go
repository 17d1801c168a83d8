package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diagnosis/museum-tickets/internal/domain"
)

var visit = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func TestStore_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	orders, tickets := s.Orders(), s.Tickets()

	o, err := orders.Create(ctx, &domain.Order{SessionToken: "tok", VisitDate: visit, PaymentState: domain.PaymentPending})
	if err != nil {
		t.Fatal(err)
	}
	if o.ID != 1 {
		t.Fatalf("expected first id 1, got %d", o.ID)
	}

	for i := 0; i < 2; i++ {
		if _, err := tickets.Create(ctx, &domain.Ticket{OrderID: o.ID, VisitDate: visit, Price: decimal.NewFromInt(16)}); err != nil {
			t.Fatal(err)
		}
	}

	if n, _ := tickets.CountConfirmedForDate(ctx, visit); n != 0 {
		t.Fatalf("pending tickets must not count, got %d", n)
	}

	if err := orders.MarkConfirmed(ctx, o.ID); err != nil {
		t.Fatal(err)
	}

	got, _ := orders.GetByID(ctx, o.ID)
	if !got.IsConfirmed() {
		t.Fatal("expected order confirmed")
	}
	list, _ := tickets.ListByOrder(ctx, o.ID)
	for _, tk := range list {
		if !tk.Confirmed {
			t.Fatalf("ticket %d not confirmed", tk.ID)
		}
	}
	if n, _ := tickets.CountConfirmedForDate(ctx, visit); n != 2 {
		t.Fatalf("expected 2 confirmed tickets, got %d", n)
	}
	if n, _ := tickets.CountConfirmedForDate(ctx, visit.AddDate(0, 0, 1)); n != 0 {
		t.Fatalf("expected 0 on another date, got %d", n)
	}
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	o, err := NewStore().Orders().GetByID(context.Background(), 42)
	if err != nil || o != nil {
		t.Fatalf("expected nil, nil; got %v, %v", o, err)
	}
}

func TestStore_DeleteChecksOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, _ := s.Orders().Create(ctx, &domain.Order{VisitDate: visit})
	b, _ := s.Orders().Create(ctx, &domain.Order{VisitDate: visit})
	tk, _ := s.Tickets().Create(ctx, &domain.Ticket{OrderID: a.ID, VisitDate: visit})

	if ok, _ := s.Tickets().Delete(ctx, b.ID, tk.ID); ok {
		t.Fatal("ticket deleted through a foreign order")
	}
	if ok, _ := s.Tickets().Delete(ctx, a.ID, tk.ID); !ok {
		t.Fatal("expected ticket deleted")
	}
}
