package mq

import "time"

// RoutingKeyNotificationCreated is published through the outbox for downstream
// email/SMS workers. It is independent of the real-time push.
const RoutingKeyNotificationCreated = "notification.created"

type NotificationCreatedPayload struct {
	NotificationID int64     `json:"notification_id"`
	Channel        string    `json:"channel"` // user:<id> / admin:<id>
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Priority       string    `json:"priority"`
	OrderID        *int64    `json:"order_id,omitempty"`
	ProductID      *int64    `json:"product_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	TraceID        string    `json:"trace_id,omitempty"`
}
