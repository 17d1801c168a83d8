package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type StripeProcessor struct {
	api      *client.API
	currency string
}

func NewStripeProcessor(secretKey, currency string) *StripeProcessor {
	return &StripeProcessor{
		api:      client.New(secretKey, nil),
		currency: strings.ToLower(currency),
	}
}

var hundred = decimal.NewFromInt(100)

// MinorUnits converts an amount to the smallest currency unit (cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func (p *StripeProcessor) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	params := &stripe.ChargeParams{
		Amount:       stripe.Int64(MinorUnits(req.Amount)),
		Currency:     stripe.String(p.currency),
		Description:  stripe.String(req.Description),
		ReceiptEmail: stripe.String(req.Email),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if err := params.SetSource(req.Token); err != nil {
		return "", fmt.Errorf("invalid payment source: %w", err)
	}

	ch, err := p.api.Charges.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return "", fmt.Errorf("%w: %s", ErrDeclined, stripeErr.Msg)
		}
		return "", fmt.Errorf("stripe charge: %w", err)
	}
	return ch.ID, nil
}

var _ Processor = (*StripeProcessor)(nil)
