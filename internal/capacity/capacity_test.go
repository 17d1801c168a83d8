package capacity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubCounter struct {
	confirmed map[string]int
	err       error
}

func (s *stubCounter) CountConfirmedForDate(_ context.Context, date time.Time) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.confirmed[date.Format("2006-01-02")], nil
}

func TestAdmit(t *testing.T) {
	for capacity := 0; capacity <= 5; capacity++ {
		for confirmed := 0; confirmed <= 6; confirmed++ {
			for requested := 0; requested <= 6; requested++ {
				want := confirmed+requested <= capacity
				if got := Admit(confirmed, requested, capacity); got != want {
					t.Fatalf("Admit(%d, %d, %d) = %v, want %v", confirmed, requested, capacity, got, want)
				}
			}
		}
	}
}

func TestCanAdmit(t *testing.T) {
	date := time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)
	c := NewController(&stubCounter{confirmed: map[string]int{"2024-07-14": 2}}, 3)

	ok, err := c.CanAdmit(context.Background(), date, 1)
	if err != nil || !ok {
		t.Fatalf("expected one more ticket to fit, got %v %v", ok, err)
	}
	ok, err = c.CanAdmit(context.Background(), date, 2)
	if err != nil || ok {
		t.Fatalf("expected two more tickets to be refused, got %v %v", ok, err)
	}

	other := date.AddDate(0, 0, 1)
	ok, err = c.CanAdmit(context.Background(), other, 3)
	if err != nil || !ok {
		t.Fatalf("expected an empty date to take a full order, got %v %v", ok, err)
	}
}

func TestCanAdmit_CounterError(t *testing.T) {
	boom := errors.New("db down")
	c := NewController(&stubCounter{err: boom}, 10)

	if _, err := c.CanAdmit(context.Background(), time.Now(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped counter error, got %v", err)
	}
}

func TestAvailability(t *testing.T) {
	date := time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC)
	c := NewController(&stubCounter{confirmed: map[string]int{"2024-07-14": 12}}, 10)

	a, err := c.Availability(context.Background(), date)
	if err != nil {
		t.Fatal(err)
	}
	if a.Date != "2024-07-14" || a.Confirmed != 12 || a.Capacity != 10 || a.Remaining != 0 {
		t.Fatalf("unexpected availability %+v", a)
	}
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), DateKey(time.Now()))
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if len(l.locks) != 0 {
		t.Fatalf("expected lock table to be empty, has %d keys", len(l.locks))
	}
}

func TestLocalLocker_RespectsContext(t *testing.T) {
	l := NewLocalLocker()
	unlock, err := l.Lock(context.Background(), OrderKey(7))
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, OrderKey(7)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	other, err := l.Lock(context.Background(), OrderKey(8))
	if err != nil {
		t.Fatalf("expected a different key to be free, got %v", err)
	}
	other()
}
