package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/minishop-storefront/internal/application/auth"
	appcart "github.com/Zhima-Mochi/minishop-storefront/internal/application/cart"
	appcheckout "github.com/Zhima-Mochi/minishop-storefront/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-storefront/internal/application/order"
	domcart "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerSessionID      = "X-Session-ID"
	headerAuthorization  = "Authorization"
	maxRequestBody       = 1 << 16
)

type Handler struct {
	cart     *appcart.Service
	checkout *appcheckout.CheckoutUseCase
	orders   apporder.Lister
	verifier auth.TokenVerifier
	metrics  http.Handler

	log           observability.Logger
	httpRequests  observability.Counter   // http_requests_total{method,route,status}
	httpDurations observability.Histogram // http_request_duration_seconds{method,route,status}
}

type Deps struct {
	Cart     *appcart.Service
	Checkout *appcheckout.CheckoutUseCase
	Orders   apporder.Lister
	Verifier auth.TokenVerifier
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

func NewHandler(deps Deps, tel observability.Observability) *Handler {
	_, logger, metrics := observability.Resolve(tel)
	return &Handler{
		cart:          deps.Cart,
		checkout:      deps.Checkout,
		orders:        deps.Orders,
		verifier:      deps.Verifier,
		metrics:       deps.Metrics,
		log:           logger.With(observability.F("component", componentHTTPHandler)),
		httpRequests:  metrics.Counter(observability.MHTTPRequests),
		httpDurations: metrics.Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Trace → ObservabilityMiddleware (request logger) → Auth → HTTP metrics → Access log → Handler
	h.muxHandle(mux, http.MethodGet, "/cart", h.handleGetCart)
	h.muxHandle(mux, http.MethodDelete, "/cart", h.handleClearCart)
	h.muxHandle(mux, http.MethodPost, "/cart/items", h.handleAddItem)
	h.muxHandle(mux, http.MethodPut, "/cart/items/{id}", h.handleSetQuantity)
	h.muxHandle(mux, http.MethodPatch, "/cart/items/{id}", h.handleAdjustQuantity)
	h.muxHandle(mux, http.MethodDelete, "/cart/items/{id}", h.handleRemoveItem)
	h.muxHandle(mux, http.MethodPost, "/cart/discount", h.handleApplyDiscount)
	h.muxHandle(mux, http.MethodDelete, "/cart/discount", h.handleRemoveDiscount)
	h.muxHandle(mux, http.MethodPost, "/checkout", h.handleCheckout)
	h.muxHandle(mux, http.MethodGet, "/checkout", h.handleCheckoutStatus)
	h.muxHandle(mux, http.MethodGet, "/orders", h.handleListOrders)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	pattern := method + " " + route
	wrapped := h.withTrace(
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string {
				return r.Header.Get(headerRequestID)
			},
		)(
			h.withAuth(
				h.withHTTPMetrics(
					h.withAccessLog(http.HandlerFunc(handler)),
				),
			),
		),
	)
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// stable route template for low-cardinality labels
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), pattern)))
	}))
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.Get(r.Context(), sessionID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(view))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.Clear(r.Context(), sessionID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(view))
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ProductID <= 0 {
		writeError(w, http.StatusBadRequest, domcart.ErrInvalidProduct)
		return
	}

	res, err := h.cart.Add(r.Context(), sessionID(r), req.ProductID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	body := newCartResponse(&res.View)
	body.CapReached = res.CapReached
	body.Message = res.Message
	writeJSON(w, http.StatusOK, body)
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := productIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req setQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, errors.New("quantity is required"))
		return
	}

	view, err := h.cart.SetQuantity(r.Context(), sessionID(r), id, *req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(view))
}

type adjustQuantityRequest struct {
	Delta int `json:"delta"`
}

func (h *Handler) handleAdjustQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := productIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req adjustQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := h.cart.AdjustQuantity(r.Context(), sessionID(r), id, req.Delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(view))
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := productIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := h.cart.RemoveLine(r.Context(), sessionID(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(view))
}

type applyDiscountRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req applyDiscountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	view, err := h.cart.ApplyDiscount(r.Context(), sessionID(r), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(view))
}

func (h *Handler) handleRemoveDiscount(w http.ResponseWriter, r *http.Request) {
	view, err := h.cart.RemoveDiscount(r.Context(), sessionID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(view))
}

type checkoutRequest struct {
	Currency string `json:"currency"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	// the body is optional
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.checkout.Execute(r.Context(), appcheckout.CheckoutInput{
		SessionID: sessionID(r),
		Currency:  req.Currency,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{
		PaymentID: res.PaymentID,
		Currency:  res.Currency,
		Pricing:   newPricingDTO(res.Pricing),
		Message:   fmt.Sprintf("Payment successful! ID: %s", res.PaymentID),
	})
}

func (h *Handler) handleCheckoutStatus(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if sid == "" {
		writeDomainError(w, appcheckout.ErrSessionRequired)
		return
	}
	st := h.checkout.Status(r.Context(), sid)
	writeJSON(w, http.StatusOK, checkoutStatusResponse{
		State:         string(st.Status()),
		LastError:     st.LastError,
		LastPaymentID: st.LastPaymentID,
	})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.Execute(r.Context(), sessionID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := ordersResponse{Orders: make([]orderDTO, 0, len(orders))}
	for _, o := range orders {
		out.Orders = append(out.Orders, newOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAuth resolves the bearer token into an authenticated subject on the context. It never
// rejects a request itself; the use cases decide which operations need a subject.
func (h *Handler) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.verifier == nil {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		subject, ok := h.verifier.Verify(r.Context(), token)
		if !ok {
			logctx.FromOr(r.Context(), h.log).Debug("bearer_token_rejected")
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.WithSubject(r.Context(), subject)
		ctx = logctx.Enrich(ctx, h.log, observability.F("subject", subject))
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("storefront.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
// DO NOT new metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		route := routeFromContext(r.Context())
		status := strconv.Itoa(lrw.status)
		h.httpRequests.Add(1,
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", status),
		)
		h.httpDurations.Observe(time.Since(start).Seconds(),
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", status),
		)
	})
}

func sessionID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(headerSessionID))
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get(headerAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func productIDFromPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid product id %q", r.PathValue("id"))
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var payErr *appcheckout.PaymentError
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err)
	case errors.As(err, &payErr):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{
			"error":   err.Error(),
			"message": payErr.Message,
		})
	case errors.Is(err, appcart.ErrInvalidDiscountCode):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, appcheckout.ErrCheckoutInProgress):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, appcart.ErrProductNotFound),
		errors.Is(err, appcart.ErrLineNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, appcheckout.ErrEmptyCart),
		errors.Is(err, appcart.ErrSessionRequired),
		errors.Is(err, appcheckout.ErrSessionRequired),
		errors.Is(err, apporder.ErrValidation),
		errors.Is(err, domcart.ErrInvalidProduct):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
