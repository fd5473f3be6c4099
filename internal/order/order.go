// Package order owns the order lifecycle and its stock coupling:
// checkout -> {pending, cancelled}; pending -> {shipping, cancelled};
// shipping -> {delivered, cancelled}. Stock is reserved at creation,
// restored on cancellation, and counted as sold on delivery.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/petjoy-vn/petjoy-core/internal/apperr"
	"github.com/petjoy-vn/petjoy-core/internal/model"
	"github.com/petjoy-vn/petjoy-core/internal/notify"
	"github.com/petjoy-vn/petjoy-core/internal/policy"
	"github.com/petjoy-vn/petjoy-core/internal/refcode"
)

const defaultCancelReason = "No reason provided"

var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderCheckout: {model.OrderPending, model.OrderCancelled},
	model.OrderPending:  {model.OrderShipping, model.OrderCancelled},
	model.OrderShipping: {model.OrderDelivered, model.OrderCancelled},
}

func canTransition(from, to model.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ListFilter struct {
	CustomerID string
	Status     string
	Search     string
	Page       int
	Limit      int
}

type Store interface {
	GetProduct(ctx context.Context, id string) (model.Product, error)
	// CreateOrder persists o and decrements stock for every line item with
	// a conditional update, all in one transaction. Returns
	// model.ErrInsufficientStock when any line loses the race for stock;
	// no partial decrement survives.
	CreateOrder(ctx context.Context, o model.Order) error
	GetOrder(ctx context.Context, id string) (model.Order, error)
	// SaveTransition persists the order's new status and history. When
	// restoreStock is set it re-adds every line's quantity to product
	// stock; when incrementSold is set it bumps each product's sold count.
	SaveTransition(ctx context.Context, o model.Order, restoreStock, incrementSold bool) error
	ListOrders(ctx context.Context, f ListFilter) ([]model.Order, int, error)
}

// Pricing carries checkout money policy. Values are VND.
type Pricing struct {
	FreeShipThreshold int64
	FlatShippingFee   int64
}

type Service struct {
	store       Store
	notifier    notify.Notifier
	logger      *slog.Logger
	pricing     Pricing
	checkoutTTL time.Duration
	now         func() time.Time
}

func NewService(store Store, notifier notify.Notifier, logger *slog.Logger, pricing Pricing, checkoutTTL time.Duration) *Service {
	if pricing.FreeShipThreshold <= 0 {
		pricing.FreeShipThreshold = 500000
	}
	if pricing.FlatShippingFee <= 0 {
		pricing.FlatShippingFee = 30000
	}
	if checkoutTTL <= 0 {
		checkoutTTL = 15 * time.Minute
	}
	return &Service{
		store:       store,
		notifier:    notifier,
		logger:      logger,
		pricing:     pricing,
		checkoutTTL: checkoutTTL,
		now:         time.Now,
	}
}

type LineInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	Items           []LineInput
	ShippingAddress string
	PaymentMethod   string
	Discount        int64
}

func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (model.Order, error) {
	if len(in.Items) == 0 {
		return model.Order{}, apperr.BadRequest("order has no items")
	}
	if in.ShippingAddress == "" {
		return model.Order{}, apperr.BadRequest("shipping address is required")
	}
	if in.PaymentMethod != model.MethodCash && in.PaymentMethod != model.MethodCard {
		return model.Order{}, apperr.BadRequest("unsupported payment method")
	}
	if in.Discount < 0 {
		return model.Order{}, apperr.BadRequest("discount cannot be negative")
	}

	var (
		items    []model.OrderItem
		subtotal int64
	)
	for _, line := range in.Items {
		if line.Quantity < 1 {
			return model.Order{}, apperr.BadRequest("item quantity must be at least 1")
		}
		product, err := s.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.Order{}, apperr.NotFound("product not found: " + line.ProductID)
			}
			return model.Order{}, err
		}
		if line.Quantity > product.Stock {
			return model.Order{}, apperr.BadRequest("insufficient stock for " + product.Name)
		}
		unit := product.UnitPrice()
		item := model.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			OnSale:    product.OnSale,
			SalePrice: product.SalePrice,
			Subtotal:  int64(line.Quantity) * unit,
		}
		items = append(items, item)
		subtotal += item.Subtotal
	}

	shippingFee := s.pricing.FlatShippingFee
	if subtotal >= s.pricing.FreeShipThreshold {
		shippingFee = 0
	}
	total := subtotal + shippingFee - in.Discount
	if total < 0 {
		return model.Order{}, apperr.BadRequest("discount exceeds order total")
	}

	now := s.now()
	status := model.OrderPending
	if in.PaymentMethod == model.MethodCard {
		status = model.OrderCheckout
	}
	o := model.Order{
		ID:              uuid.NewString(),
		OrderNumber:     refcode.New("OD", now),
		CustomerID:      p.ID,
		Items:           items,
		Subtotal:        subtotal,
		ShippingFee:     shippingFee,
		Discount:        in.Discount,
		TotalAmount:     total,
		ShippingAddress: in.ShippingAddress,
		Status:          status,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   model.PayStatusPending,
		CreatedAt:       now,
	}
	if status == model.OrderCheckout {
		o.CheckoutExpiration = now.Add(s.checkoutTTL)
	} else {
		o.StatusHistory = []model.StatusEntry{{Status: status, Timestamp: now, Note: "Order placed"}}
	}

	if err := s.store.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, model.ErrInsufficientStock) {
			return model.Order{}, apperr.BadRequest("insufficient stock")
		}
		return model.Order{}, err
	}

	if o.Status == model.OrderPending {
		s.notifier.Send(ctx, o.CustomerID, "Order placed",
			fmt.Sprintf("Your order %s has been placed.", o.OrderNumber),
			"/orders/"+o.ID)
	}
	s.logger.Info("order created", "order_id", o.ID, "status", o.Status, "total", o.TotalAmount)
	return o, nil
}

func (s *Service) Get(ctx context.Context, p policy.Principal, id string) (model.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Order{}, apperr.NotFound("order not found")
		}
		return model.Order{}, err
	}
	if !policy.Allow(policy.OrderRead, p, o.CustomerID) {
		return model.Order{}, apperr.Forbidden("not allowed to view this order")
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, p policy.Principal, f ListFilter) ([]model.Order, int, error) {
	// Callers without list-any rights are scoped down to their own orders.
	if !policy.Allow(policy.OrderList, p, f.CustomerID) {
		f.CustomerID = p.ID
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.store.ListOrders(ctx, f)
}

// UpdateStatus is the back-office transition endpoint. Every legal move is
// listed in the transitions table; anything else is rejected.
func (s *Service) UpdateStatus(ctx context.Context, p policy.Principal, id string, next model.OrderStatus, note string) (model.Order, error) {
	if !policy.Allow(policy.OrderUpdateStatus, p, "") {
		return model.Order{}, apperr.Forbidden("only staff can update order status")
	}
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Order{}, apperr.NotFound("order not found")
		}
		return model.Order{}, err
	}
	if !canTransition(o.Status, next) {
		return model.Order{}, apperr.BadRequest(fmt.Sprintf("cannot move order from %s to %s", o.Status, next))
	}

	o.Status = next
	o.StatusHistory = append(o.StatusHistory, model.StatusEntry{Status: next, Timestamp: s.now(), Note: note})
	if next == model.OrderCancelled {
		o.CancelledBy = model.CancelledByAdmin
		o.CancelReason = note
		if o.CancelReason == "" {
			o.CancelReason = defaultCancelReason
		}
	}
	restoreStock := next == model.OrderCancelled
	incrementSold := next == model.OrderDelivered
	if err := s.store.SaveTransition(ctx, o, restoreStock, incrementSold); err != nil {
		return model.Order{}, err
	}

	s.notifier.Send(ctx, o.CustomerID, "Order update",
		fmt.Sprintf("Your order %s is now %s.", o.OrderNumber, next),
		"/orders/"+o.ID)
	s.logger.Info("order status updated", "order_id", o.ID, "status", next)
	return o, nil
}

// Cancel is the customer-facing cancellation. Orders past pending are
// already in fulfillment and must go through support.
func (s *Service) Cancel(ctx context.Context, p policy.Principal, id, reason string) (model.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Order{}, apperr.NotFound("order not found")
		}
		return model.Order{}, err
	}
	if !policy.Allow(policy.OrderCancel, p, o.CustomerID) {
		return model.Order{}, apperr.Forbidden("not allowed to cancel this order")
	}
	switch o.Status {
	case model.OrderCheckout:
		return model.Order{}, apperr.BadRequest("order is awaiting payment")
	case model.OrderPending:
	default:
		return model.Order{}, apperr.BadRequest("order can no longer be cancelled")
	}

	o.Status = model.OrderCancelled
	o.CancelledBy = model.CancelledByCustomer
	if policy.Staff(p) {
		o.CancelledBy = model.CancelledByAdmin
	}
	o.CancelReason = reason
	if o.CancelReason == "" {
		o.CancelReason = defaultCancelReason
	}
	o.StatusHistory = append(o.StatusHistory, model.StatusEntry{Status: model.OrderCancelled, Timestamp: s.now(), Note: o.CancelReason})
	if err := s.store.SaveTransition(ctx, o, true, false); err != nil {
		return model.Order{}, err
	}

	s.notifier.Send(ctx, o.CustomerID, "Order cancelled",
		fmt.Sprintf("Your order %s has been cancelled.", o.OrderNumber),
		"/orders/"+o.ID)
	s.logger.Info("order cancelled", "order_id", o.ID, "by", o.CancelledBy)
	return o, nil
}

// ConfirmDelivery lets the owner acknowledge receipt of a shipped order.
func (s *Service) ConfirmDelivery(ctx context.Context, p policy.Principal, id string) (model.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Order{}, apperr.NotFound("order not found")
		}
		return model.Order{}, err
	}
	if !policy.Allow(policy.OrderConfirmDelivery, p, o.CustomerID) {
		return model.Order{}, apperr.Forbidden("only the order's owner can confirm delivery")
	}
	if o.Status != model.OrderShipping {
		return model.Order{}, apperr.BadRequest("only shipping orders can be confirmed as delivered")
	}

	o.Status = model.OrderDelivered
	o.StatusHistory = append(o.StatusHistory, model.StatusEntry{Status: model.OrderDelivered, Timestamp: s.now(), Note: "Delivery confirmed by customer"})
	if err := s.store.SaveTransition(ctx, o, false, true); err != nil {
		return model.Order{}, err
	}

	s.logger.Info("order delivered", "order_id", o.ID)
	return o, nil
}
