package httppresentation

import (
	"time"

	appcart "github.com/Zhima-Mochi/minishop-storefront/internal/application/cart"
	domcart "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/minishop-storefront/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
	"github.com/shopspring/decimal"
)

// Money leaves the service as fixed two-decimal strings.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type lineDTO struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	UnitPrice string `json:"unit_price"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type pricingDTO struct {
	Subtotal        string `json:"subtotal"`
	DeliveryFee     string `json:"delivery_fee"`
	DiscountPercent int    `json:"discount_percent"`
	DiscountAmount  string `json:"discount_amount"`
	GrandTotal      string `json:"grand_total"`
}

type discountDTO struct {
	Code    string `json:"code"`
	Percent int    `json:"percent"`
}

type cartResponse struct {
	Lines      []lineDTO    `json:"lines"`
	Count      int          `json:"count"`
	Discount   *discountDTO `json:"discount,omitempty"`
	Pricing    pricingDTO   `json:"pricing"`
	CapReached bool         `json:"cap_reached,omitempty"`
	Message    string       `json:"message,omitempty"`
}

type checkoutResponse struct {
	PaymentID string     `json:"payment_id"`
	Currency  string     `json:"currency"`
	Pricing   pricingDTO `json:"pricing"`
	Message   string     `json:"message"`
}

type checkoutStatusResponse struct {
	State         string `json:"state"`
	LastError     string `json:"last_error,omitempty"`
	LastPaymentID string `json:"last_payment_id,omitempty"`
}

type orderDTO struct {
	ID        string     `json:"id"`
	PaymentID string     `json:"payment_id"`
	Currency  string     `json:"currency"`
	Status    string     `json:"status"`
	Lines     []lineDTO  `json:"lines"`
	Pricing   pricingDTO `json:"pricing"`
	CreatedAt time.Time  `json:"created_at"`
}

type ordersResponse struct {
	Orders []orderDTO `json:"orders"`
}

func newLineDTOs(c domcart.Cart) []lineDTO {
	out := make([]lineDTO, 0, len(c))
	for _, l := range c {
		out = append(out, lineDTO{
			ID:        l.ID,
			Title:     l.Title,
			UnitPrice: money(l.UnitPrice),
			Image:     l.ImageRef,
			Quantity:  l.Quantity,
			LineTotal: money(l.Total()),
		})
	}
	return out
}

func newPricingDTO(s pricing.Snapshot) pricingDTO {
	return pricingDTO{
		Subtotal:        money(s.Subtotal),
		DeliveryFee:     money(s.DeliveryFee),
		DiscountPercent: s.DiscountPercent,
		DiscountAmount:  money(s.DiscountAmount),
		GrandTotal:      money(s.GrandTotal),
	}
}

func newCartResponse(v *appcart.View) cartResponse {
	resp := cartResponse{
		Lines:   newLineDTOs(v.Lines),
		Count:   v.Count,
		Pricing: newPricingDTO(v.Pricing),
	}
	if v.Discount != nil {
		resp.Discount = &discountDTO{Code: v.Discount.Code, Percent: v.Discount.Percent}
	}
	return resp
}

func newOrderDTO(o *domorder.Order) orderDTO {
	return orderDTO{
		ID:        o.ID,
		PaymentID: o.PaymentID,
		Currency:  o.Currency,
		Status:    string(o.Status),
		Lines:     newLineDTOs(o.Lines),
		Pricing:   newPricingDTO(o.Pricing),
		CreatedAt: o.CreatedAt,
	}
}
