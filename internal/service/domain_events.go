package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	mqcontracts "kickspot/contracts/mq"
	"kickspot/internal/model"
	"kickspot/internal/repository"
	"kickspot/pkg/logger"
)

// 订单状态
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
)

// DomainEvents turns storefront events into notifications. Every draft is built
// from the event payload alone, so the hook never reads back order or product state.
type DomainEvents struct {
	emitter *Emitter
	store   repository.NotificationStore
	logger  *zap.Logger
}

func NewDomainEvents(emitter *Emitter, store repository.NotificationStore, logger *zap.Logger) *DomainEvents {
	return &DomainEvents{emitter: emitter, store: store, logger: logger}
}

// OrderPlaced notifies the buyer and every seller admin with products in the order.
func (s *DomainEvents) OrderPlaced(ctx context.Context, e mqcontracts.OrderPlacedPayload) error {
	if err := requirePositive("order_id", e.OrderID); err != nil {
		return err
	}
	if err := requirePositive("buyer_id", e.BuyerID); err != nil {
		return err
	}

	drafts := []model.Draft{{
		Recipient: model.User(e.BuyerID),
		Type:      model.TypeOrderUpdate,
		Title:     "Order placed",
		Message:   fmt.Sprintf("Your order #%d has been placed. Total: $%.2f", e.OrderID, e.TotalAmount),
		Priority:  model.PriorityMedium,
		Metadata:  model.ViewOrder(e.OrderID),
		OrderID:   model.Ptr(e.OrderID),
	}}

	buyer := strings.TrimSpace(e.BuyerName)
	if buyer == "" {
		buyer = "a customer"
	}
	for _, adminID := range uniqueIDs(e.SellerAdminIDs) {
		drafts = append(drafts, model.Draft{
			Recipient: model.Admin(adminID),
			Type:      model.TypeNewOrder,
			Title:     "New order received",
			Message:   fmt.Sprintf("Order #%d from %s contains your products.", e.OrderID, buyer),
			Priority:  model.PriorityHigh,
			Metadata:  model.ViewOrder(e.OrderID),
			OrderID:   model.Ptr(e.OrderID),
		})
	}

	return s.emitAll(ctx, mqcontracts.RoutingKeyOrderPlaced, drafts)
}

// OrderStatusChanged notifies the buyer. Transitions to the same status are ignored.
func (s *DomainEvents) OrderStatusChanged(ctx context.Context, e mqcontracts.OrderStatusChangedPayload) error {
	if err := requirePositive("order_id", e.OrderID); err != nil {
		return err
	}
	if err := requirePositive("buyer_id", e.BuyerID); err != nil {
		return err
	}
	to := strings.ToLower(strings.TrimSpace(e.ToStatus))
	if to == "" {
		return &model.ValidationError{Field: "to_status", Reason: "must not be empty"}
	}
	if strings.EqualFold(strings.TrimSpace(e.FromStatus), to) {
		return nil
	}

	priority := model.PriorityMedium
	if to == StatusCancelled || to == StatusRefunded {
		priority = model.PriorityHigh
	}

	return s.emitAll(ctx, mqcontracts.RoutingKeyOrderStatusChanged, []model.Draft{{
		Recipient: model.User(e.BuyerID),
		Type:      model.TypeOrderUpdate,
		Title:     statusTitle(to),
		Message:   fmt.Sprintf("Your order #%d is now %s.", e.OrderID, to),
		Priority:  priority,
		Metadata:  model.ViewOrder(e.OrderID),
		OrderID:   model.Ptr(e.OrderID),
	}})
}

// PaymentFailed tells the buyer the charge did not go through.
func (s *DomainEvents) PaymentFailed(ctx context.Context, e mqcontracts.OrderPaymentFailedPayload) error {
	if err := requirePositive("order_id", e.OrderID); err != nil {
		return err
	}
	if err := requirePositive("buyer_id", e.BuyerID); err != nil {
		return err
	}

	msg := fmt.Sprintf("Payment for order #%d failed.", e.OrderID)
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		msg = fmt.Sprintf("Payment for order #%d failed: %s", e.OrderID, reason)
	}
	return s.emitAll(ctx, mqcontracts.RoutingKeyOrderPaymentFailed, []model.Draft{{
		Recipient: model.User(e.BuyerID),
		Type:      model.TypePayment,
		Title:     "Payment failed",
		Message:   msg,
		Priority:  model.PriorityHigh,
		Metadata:  model.ViewOrder(e.OrderID),
		OrderID:   model.Ptr(e.OrderID),
	}})
}

// StockLow alerts the seller admin when stock has reached the threshold.
func (s *DomainEvents) StockLow(ctx context.Context, e mqcontracts.ProductStockLowPayload) error {
	if err := requirePositive("product_id", e.ProductID); err != nil {
		return err
	}
	if err := requirePositive("seller_admin_id", e.SellerAdminID); err != nil {
		return err
	}
	if e.Stock > e.Threshold {
		return nil
	}

	name := strings.TrimSpace(e.ProductName)
	if name == "" {
		name = fmt.Sprintf("product #%d", e.ProductID)
	}
	title := "Low stock: " + name
	if e.Stock <= 0 {
		title = "Out of stock: " + name
	}

	return s.emitAll(ctx, mqcontracts.RoutingKeyProductStockLow, []model.Draft{{
		Recipient: model.Admin(e.SellerAdminID),
		Type:      model.TypeInventoryAlert,
		Title:     title,
		Message:   fmt.Sprintf("Only %d left of %s (threshold %d).", max(e.Stock, 0), name, e.Threshold),
		Priority:  model.PriorityHigh,
		Metadata:  model.UpdateInventory(e.ProductID, max(e.Stock, 0), e.Threshold),
		ProductID: model.Ptr(e.ProductID),
	}})
}

// UserRegistered welcomes the user and tells the admins about the new customer.
func (s *DomainEvents) UserRegistered(ctx context.Context, e mqcontracts.UserRegisteredPayload) error {
	if err := requirePositive("user_id", e.UserID); err != nil {
		return err
	}

	drafts := []model.Draft{{
		Recipient: model.User(e.UserID),
		Type:      model.TypeAccountSecurity,
		Title:     "Welcome to KickSpot",
		Message:   "Your account was created. If this wasn't you, contact support.",
		Priority:  model.PriorityMedium,
	}}

	who := strings.TrimSpace(e.Name)
	if who == "" {
		who = fmt.Sprintf("Customer #%d", e.UserID)
	}
	if e.Email != "" {
		who = fmt.Sprintf("%s (%s)", who, e.Email)
	}
	for _, adminID := range uniqueIDs(e.AdminIDs) {
		drafts = append(drafts, model.Draft{
			Recipient: model.Admin(adminID),
			Type:      model.TypeNewCustomer,
			Title:     "New customer registered",
			Message:   who + " just signed up.",
			Priority:  model.PriorityLow,
			Metadata:  model.ViewCustomer(e.UserID),
		})
	}

	return s.emitAll(ctx, mqcontracts.RoutingKeyUserRegistered, drafts)
}

// OrderDeleted removes every notification correlated with the order.
func (s *DomainEvents) OrderDeleted(ctx context.Context, e mqcontracts.OrderDeletedPayload) error {
	if err := requirePositive("order_id", e.OrderID); err != nil {
		return err
	}
	n, err := s.store.DeleteForOrder(ctx, e.OrderID)
	if err != nil {
		return err
	}
	logger.WithTrace(ctx, s.logger).Info("Removed notifications of deleted order",
		zap.Int64("order_id", e.OrderID),
		zap.Int64("removed", n),
	)
	return nil
}

// ProductDeleted removes every notification correlated with the product.
func (s *DomainEvents) ProductDeleted(ctx context.Context, e mqcontracts.ProductDeletedPayload) error {
	if err := requirePositive("product_id", e.ProductID); err != nil {
		return err
	}
	n, err := s.store.DeleteForProduct(ctx, e.ProductID)
	if err != nil {
		return err
	}
	logger.WithTrace(ctx, s.logger).Info("Removed notifications of deleted product",
		zap.Int64("product_id", e.ProductID),
		zap.Int64("removed", n),
	)
	return nil
}

// emitAll emits every draft and returns the first error. One recipient failing
// does not stop the others.
func (s *DomainEvents) emitAll(ctx context.Context, event string, drafts []model.Draft) error {
	var first error
	for _, d := range drafts {
		if _, err := s.emitter.Emit(ctx, d); err != nil {
			logger.WithTrace(ctx, s.logger).Warn("Failed to emit notification for event",
				zap.String("event", event),
				zap.String("recipient", d.Recipient.String()),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func statusTitle(status string) string {
	switch status {
	case StatusPending:
		return "Order pending"
	case StatusProcessing:
		return "Order is being processed"
	case StatusShipped:
		return "Order shipped"
	case StatusDelivered:
		return "Order delivered"
	case StatusCancelled:
		return "Order cancelled"
	case StatusRefunded:
		return "Order refunded"
	default:
		return "Order updated"
	}
}

func requirePositive(field string, v int64) error {
	if v <= 0 {
		return &model.ValidationError{Field: field, Reason: "must be positive"}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
