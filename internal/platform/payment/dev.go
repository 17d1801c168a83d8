package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/diagnosis/museum-tickets/pkg/logger"
)

// DeclineToken is refused by DevProcessor, mirroring Stripe's test token.
const DeclineToken = "tok_chargeDeclined"

// DevProcessor approves every charge without calling a provider. It is used
// when no Stripe key is configured.
type DevProcessor struct{}

func (DevProcessor) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if req.Token == DeclineToken {
		return "", fmt.Errorf("%w: test card declined", ErrDeclined)
	}
	id := "dev_" + uuid.NewString()
	logger.InfoContext(ctx, "[DEV PAYMENT] charge approved",
		"charge_id", id,
		"amount", req.Amount.StringFixed(2),
		"email", req.Email,
	)
	return id, nil
}

var _ Processor = DevProcessor{}
