package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrDeclined wraps every refusal coming from the card network. Other errors
// returned by a Processor are infrastructure failures.
var ErrDeclined = errors.New("card declined")

type ChargeRequest struct {
	Amount         decimal.Decimal
	Token          string
	Email          string
	Description    string
	IdempotencyKey string
}

type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (chargeID string, err error)
}
