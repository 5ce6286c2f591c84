package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	httpclient "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/http"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSimulatedGatewayAlwaysSucceeds(t *testing.T) {
	g := NewSimulatedGateway(1, 0)
	res, err := g.Initiate(context.Background(), decimal.NewFromInt(10), "INR")
	require.NoError(t, err)
	require.True(t, res.OK())
	require.True(t, strings.HasPrefix(res.PaymentID, "pay_"))
}

func TestSimulatedGatewayAlwaysFails(t *testing.T) {
	g := NewSimulatedGateway(0, 0)
	res, err := g.Initiate(context.Background(), decimal.NewFromInt(10), "INR")
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, declinedMessage, res.Message)
}

func TestSimulatedGatewayRejectsNonPositiveAmount(t *testing.T) {
	g := NewSimulatedGateway(1, 0)
	res, err := g.Initiate(context.Background(), decimal.Zero, "INR")
	require.NoError(t, err)
	require.Equal(t, payment.StatusFailed, res.Status)
}

func TestSimulatedGatewayHonoursCancellation(t *testing.T) {
	g := NewSimulatedGateway(1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := g.Initiate(ctx, decimal.NewFromInt(10), "INR")
	require.NoError(t, err)
	require.False(t, res.OK())
}

func newHTTPGateway(t *testing.T, h http.HandlerFunc) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client, err := httpclient.New(srv.URL, "payments", time.Second, nil)
	require.NoError(t, err)
	return NewHTTPGateway(client)
}

func TestHTTPGatewaySuccess(t *testing.T) {
	g := newHTTPGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req initiateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "258.90", req.Amount)
		require.Equal(t, "INR", req.Currency)
		_ = json.NewEncoder(w).Encode(initiateResponse{Status: "succeeded", PaymentID: "pay_123"})
	})

	res, err := g.Initiate(context.Background(), decimal.RequireFromString("258.9"), "INR")
	require.NoError(t, err)
	require.Equal(t, payment.Succeeded("pay_123"), res)
}

func TestHTTPGatewayDeclined(t *testing.T) {
	g := newHTTPGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(initiateResponse{Status: "failed", Message: "Insufficient funds"})
	})

	res, err := g.Initiate(context.Background(), decimal.NewFromInt(10), "INR")
	require.NoError(t, err)
	require.Equal(t, payment.Failed("Insufficient funds"), res)
}

func TestHTTPGatewayTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client, err := httpclient.New(srv.URL, "payments", time.Second, nil)
	require.NoError(t, err)
	srv.Close()

	res, err := NewHTTPGateway(client).Initiate(context.Background(), decimal.NewFromInt(10), "INR")
	require.NoError(t, err)
	require.False(t, res.OK())
	require.True(t, strings.HasPrefix(res.Message, unavailableMessage))
}
