package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type VisitDuration string

const (
	DurationHalf VisitDuration = "half"
	DurationFull VisitDuration = "full"
)

func ParseVisitDuration(s string) (VisitDuration, bool) {
	switch VisitDuration(s) {
	case DurationHalf, DurationFull:
		return VisitDuration(s), true
	default:
		return "", false
	}
}

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentConfirmed PaymentState = "confirmed"
)

type Order struct {
	ID               int64           `json:"id"`
	SessionToken     string          `json:"-"`
	ConfirmationCode string          `json:"confirmation_code"`
	VisitDate        time.Time       `json:"visit_date"`
	VisitDuration    VisitDuration   `json:"visit_duration"`
	Email            string          `json:"email"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PaymentState     PaymentState    `json:"payment_state"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	Tickets []Ticket `json:"tickets,omitempty"`
}

// IsConfirmed reports whether the order reached its terminal state.
func (o *Order) IsConfirmed() bool {
	return o.PaymentState == PaymentConfirmed
}

// ConfirmationCodeFor builds the human readable order reference, e.g. 160912_15.
func ConfirmationCodeFor(createdAt time.Time, id int64) string {
	return fmt.Sprintf("%s_%d", createdAt.Format("060102"), id)
}

type Ticket struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"order_id"`
	VisitDate        time.Time       `json:"visit_date"`
	FirstName        string          `json:"first_name"`
	LastName         string          `json:"last_name"`
	Country          string          `json:"country"`
	BirthDate        time.Time       `json:"birth_date"`
	DiscountEligible bool            `json:"discount_eligible"`
	Age              int             `json:"age"`
	Price            decimal.Decimal `json:"price"`
	Confirmed        bool            `json:"confirmed"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Visitor holds the caller supplied attributes of one ticket holder.
type Visitor struct {
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Country          string    `json:"country"`
	BirthDate        time.Time `json:"birth_date"`
	DiscountEligible bool      `json:"discount_eligible"`
}
