package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result is the tagged outcome of one payment round-trip: either a PaymentID on success
// or a Message on failure.
type Result struct {
	Status    Status
	PaymentID string
	Message   string
}

func Succeeded(paymentID string) Result {
	return Result{Status: StatusSucceeded, PaymentID: paymentID}
}

func Failed(message string) Result {
	return Result{Status: StatusFailed, Message: message}
}

func (r Result) OK() bool { return r.Status == StatusSucceeded }

// Gateway is the outbound port to the payment provider. A non-nil error means the
// round-trip itself failed; callers treat it like a Failed result.
type Gateway interface {
	Initiate(ctx context.Context, amount decimal.Decimal, currency string) (Result, error)
}
