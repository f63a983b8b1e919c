package mq

import "time"

// Routing keys published by the storefront backend on the events exchange.
const (
	RoutingKeyOrderPlaced        = "order.placed"
	RoutingKeyOrderStatusChanged = "order.status_changed"
	RoutingKeyOrderPaymentFailed = "order.payment_failed"
	RoutingKeyOrderDeleted       = "order.deleted"
	RoutingKeyProductStockLow    = "product.stock_low"
	RoutingKeyProductDeleted     = "product.deleted"
	RoutingKeyUserRegistered     = "user.registered"
)

// EventMeta is embedded in every storefront event. EventID is used for dedup.
type EventMeta struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Meta is promoted to every payload embedding EventMeta.
func (m EventMeta) Meta() EventMeta { return m }

type OrderPlacedPayload struct {
	EventMeta
	OrderID     int64   `json:"order_id"`
	BuyerID     int64   `json:"buyer_id"`
	BuyerName   string  `json:"buyer_name"`
	TotalAmount float64 `json:"total_amount"`
	// SellerAdminIDs are the admins owning at least one product in the order.
	SellerAdminIDs []int64 `json:"seller_admin_ids"`
}

type OrderStatusChangedPayload struct {
	EventMeta
	OrderID    int64  `json:"order_id"`
	BuyerID    int64  `json:"buyer_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

type OrderPaymentFailedPayload struct {
	EventMeta
	OrderID int64  `json:"order_id"`
	BuyerID int64  `json:"buyer_id"`
	Reason  string `json:"reason"`
}

type OrderDeletedPayload struct {
	EventMeta
	OrderID int64 `json:"order_id"`
}

type ProductStockLowPayload struct {
	EventMeta
	ProductID     int64  `json:"product_id"`
	ProductName   string `json:"product_name"`
	SellerAdminID int64  `json:"seller_admin_id"`
	Stock         int    `json:"stock"`
	Threshold     int    `json:"threshold"`
}

type ProductDeletedPayload struct {
	EventMeta
	ProductID int64 `json:"product_id"`
}

type UserRegisteredPayload struct {
	EventMeta
	UserID   int64   `json:"user_id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	AdminIDs []int64 `json:"admin_ids"`
}
