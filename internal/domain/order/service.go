package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/threadline/storefront/internal/domain/address"
	"github.com/threadline/storefront/internal/domain/cart"
	"github.com/threadline/storefront/internal/domain/coupon"
	"github.com/threadline/storefront/internal/domain/pricing"
)

// Sentinel errors for checkout precondition failures. These map to inline
// field messages on the storefront, not generic failures.
var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoAddress          = errors.New("shipping address required")
	ErrInvalidPhone       = errors.New("phone number must contain at least 10 digits")
	ErrUnsupportedPayment = errors.New("only cash on delivery is supported")
	ErrNotFound           = errors.New("order not found")
	ErrForbidden          = errors.New("order belongs to another user")
)

// CouponRejectedError carries the validator's user-facing message when a
// coupon submitted at checkout is no longer valid.
type CouponRejectedError struct {
	Message string
}

func (e *CouponRejectedError) Error() string {
	return e.Message
}

// PlaceOrderRequest is the checkout input. Pricing is intentionally absent:
// all amounts are derived server-side from the catalog and the validated
// coupon, never trusted from the client.
type PlaceOrderRequest struct {
	UserID        string
	Email         string
	Phone         string
	AddressID     string
	PaymentMethod string
	CouponCode    string
	OrderNotes    string
}

// Service orchestrates the checkout pipeline: preconditions, coupon
// validation, pricing, the atomic stock-decrement-plus-insert transaction,
// admin notification, and cart clearing.
type Service struct {
	carts     cart.Repository
	addresses address.Repository
	coupons   coupon.Validator
	orders    Repository
	notifier  Notifier

	tracer       trace.Tracer
	ordersPlaced metric.Int64Counter
	now          func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	carts cart.Repository,
	addresses address.Repository,
	coupons coupon.Validator,
	orders Repository,
	notifier Notifier,
) *Service {
	return &Service{
		carts:     carts,
		addresses: addresses,
		coupons:   coupons,
		orders:    orders,
		notifier:  notifier,
		tracer:    noop.NewTracerProvider().Tracer(""),
		now:       time.Now,
	}
}

// WithTelemetry attaches a tracer and an orders-placed counter to the service.
func (s *Service) WithTelemetry(tracer trace.Tracer, ordersPlaced metric.Int64Counter) *Service {
	s.tracer = tracer
	s.ordersPlaced = ordersPlaced
	return s
}

// PlaceOrder runs the checkout pipeline. Each step awaits the previous one;
// the stock decrement and order insert commit in a single transaction, so a
// failure between them can never leave stock reduced without an order.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	addr, err := s.addresses.GetByID(ctx, req.AddressID)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return nil, ErrNoAddress
		}
		return nil, errors.Wrap(err, "load address")
	}
	if addr.UserID != req.UserID || strings.TrimSpace(addr.Address) == "" {
		return nil, ErrNoAddress
	}

	items, err := s.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := cart.Subtotal(items)

	// Coupon validation is re-run at checkout: the code was checked when
	// applied on the cart page, but limits and dates may have moved since.
	discount := decimal.Zero
	var applied *coupon.Coupon
	if req.CouponCode != "" {
		verdict, err := s.coupons.Validate(ctx, req.CouponCode, subtotal, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		if !verdict.Valid {
			return nil, &CouponRejectedError{Message: verdict.Message}
		}
		discount = verdict.DiscountAmount
		applied = verdict.Coupon
	}

	quote := pricing.Compute(toPricingItems(items), discount)

	now := s.now()
	o := &Order{
		ID:     uuid.New().String(),
		UserID: req.UserID,
		Email:  req.Email,
		Phone:  req.Phone,
		Items:  toOrderItems(items),
		ShippingAddress: ShippingAddress{
			Type:    addr.Type,
			Address: addr.Address,
			City:    addr.City,
			State:   addr.State,
			Pincode: addr.Pincode,
		},
		PaymentMethod: PaymentMethodCOD,
		PaymentStatus: "Pending",
		Status:        StatusProcessing,
		Pricing:       quote,
		OrderNotes:    req.OrderNotes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if applied != nil {
		o.CouponID = applied.ID
		o.CouponCode = applied.Code
		o.CouponDiscount = discount
	}

	// Stock decrement + order insert, atomically.
	if err := s.orders.Place(ctx, o); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.number", o.OrderNumber))
	if s.ordersPlaced != nil {
		s.ordersPlaced.Add(ctx, 1)
	}

	// The order is committed at this point; notification and cart-clear
	// failures are surfaced but do not undo it.
	if err := s.notifier.OrderPlaced(ctx, o); err != nil {
		return o, errors.Wrap(err, "notify order placed")
	}
	if err := s.carts.Clear(ctx, req.UserID); err != nil {
		return o, errors.Wrap(err, "clear cart")
	}

	return o, nil
}

// Cancel performs a customer-initiated cancellation. Orders can be cancelled
// until they are delivered.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}

	return s.transition(ctx, o, StatusCancelled)
}

// UpdateStatus performs an admin-driven status transition.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, o, next)
}

func (s *Service) transition(ctx context.Context, o *Order, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}

	if err := s.orders.UpdateStatus(ctx, o.ID, next); err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	o.Status = next
	o.UpdatedAt = s.now()

	if err := s.notifier.OrderStatusChanged(ctx, o); err != nil {
		return o, errors.Wrap(err, "notify status change")
	}
	return o, nil
}

// Get returns an order, enforcing ownership for customer reads.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListForUser returns the user's orders, most recent first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID, limit)
}

func validateRequest(req PlaceOrderRequest) error {
	if req.AddressID == "" {
		return ErrNoAddress
	}
	if digitCount(req.Phone) < 10 {
		return ErrInvalidPhone
	}
	if req.PaymentMethod != "" && req.PaymentMethod != PaymentMethodCOD {
		return ErrUnsupportedPayment
	}
	return nil
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func toPricingItems(items []cart.Item) []pricing.Item {
	out := make([]pricing.Item, len(items))
	for i, item := range items {
		out[i] = pricing.Item{ProductID: item.ProductID, Price: item.Price, Quantity: item.Quantity}
	}
	return out
}

func toOrderItems(items []cart.Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			Image:     item.Image,
		}
	}
	return out
}
