package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	httpclient "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/http"
	"github.com/shopspring/decimal"
)

const (
	initiateEndpoint   = "POST /payments"
	unavailableMessage = "Payment service is unavailable. Please try again."
)

type initiateRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type initiateResponse struct {
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	Message   string `json:"message"`
}

// HTTPGateway calls a remote payment service. It never returns an error: transport
// problems and malformed replies are reported as failed payments.
type HTTPGateway struct {
	client *httpclient.Client
}

func NewHTTPGateway(client *httpclient.Client) *HTTPGateway {
	return &HTTPGateway{client: client}
}

func (g *HTTPGateway) Initiate(ctx context.Context, amount decimal.Decimal, currency string) (payment.Result, error) {
	var resp initiateResponse
	err := g.client.PostJSON(ctx, initiateEndpoint, "/payments", initiateRequest{
		Amount:   amount.StringFixed(2),
		Currency: currency,
	}, &resp)

	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) && resp.Message != "" {
			return payment.Failed(resp.Message), nil
		}
		return payment.Failed(unavailableMessage + " (" + err.Error() + ")"), nil
	}

	switch strings.ToLower(resp.Status) {
	case string(payment.StatusSucceeded), "success":
		if resp.PaymentID == "" {
			return payment.Failed("Payment service returned no payment id."), nil
		}
		return payment.Succeeded(resp.PaymentID), nil
	default:
		msg := resp.Message
		if msg == "" {
			msg = unavailableMessage
		}
		return payment.Failed(msg), nil
	}
}
