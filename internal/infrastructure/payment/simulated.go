// Package payment holds the payment gateway adapters.
package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultSuccessRate = 0.7
	declinedMessage    = "Payment declined by the issuing bank."
	invalidAmount      = "Payment amount must be greater than zero."
)

// SimulatedGateway approves payments at random with a fixed success rate. It stands in
// for a hosted gateway in local runs and demos.
type SimulatedGateway struct {
	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
	latency     time.Duration
}

func NewSimulatedGateway(successRate float64, latency time.Duration) *SimulatedGateway {
	g := &SimulatedGateway{
		random:  rand.New(rand.NewSource(time.Now().UnixNano())),
		latency: latency,
	}
	g.SetSuccessRate(successRate)
	return g
}

func (g *SimulatedGateway) Initiate(ctx context.Context, amount decimal.Decimal, currency string) (payment.Result, error) {
	if !amount.IsPositive() {
		return payment.Failed(invalidAmount), nil
	}
	_ = currency

	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return payment.Failed(ctx.Err().Error()), nil
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// respect cancellation even though this is mocked
	select {
	case <-ctx.Done():
		return payment.Failed(ctx.Err().Error()), nil
	default:
	}

	if g.random.Float64() < g.successRate {
		return payment.Succeeded("pay_" + uuid.NewString()), nil
	}
	return payment.Failed(declinedMessage), nil
}

// SetSuccessRate clamps rate to [0, 1].
func (g *SimulatedGateway) SetSuccessRate(rate float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	g.successRate = rate
}
