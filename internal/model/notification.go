package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Type classifies a notification. The set is closed.
type Type string

const (
	TypeOrderUpdate     Type = "order_update"
	TypeNewOrder        Type = "new_order"
	TypePayment         Type = "payment"
	TypeAccountSecurity Type = "account_security"
	TypeCartReminder    Type = "cart_reminder"
	TypeWishlist        Type = "wishlist"
	TypePromotion       Type = "promotion"
	TypeInventoryAlert  Type = "inventory_alert"
	TypeNewCustomer     Type = "new_customer"
	TypeSystem          Type = "system"
)

var knownTypes = map[Type]struct{}{
	TypeOrderUpdate:     {},
	TypeNewOrder:        {},
	TypePayment:         {},
	TypeAccountSecurity: {},
	TypeCartReminder:    {},
	TypeWishlist:        {},
	TypePromotion:       {},
	TypeInventoryAlert:  {},
	TypeNewCustomer:     {},
	TypeSystem:          {},
}

func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

const maxTitleLen = 255

// Notification is immutable after creation except IsRead.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	AdminID   *int64    `json:"admin_id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  Priority  `json:"priority"`
	IsRead    bool      `json:"is_read"`
	Metadata  Metadata  `json:"metadata"`
	OrderID   *int64    `json:"order_id,omitempty"`
	ProductID *int64    `json:"product_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipient derives the addressee from the user_id/admin_id pair.
func (n *Notification) Recipient() (Recipient, error) {
	switch {
	case n.UserID != nil && n.AdminID != nil:
		return Recipient{}, &ValidationError{Field: "recipient", Reason: "both user_id and admin_id are set"}
	case n.UserID != nil:
		return User(*n.UserID), nil
	case n.AdminID != nil:
		return Admin(*n.AdminID), nil
	default:
		return Recipient{}, &ValidationError{Field: "recipient", Reason: "missing user_id or admin_id"}
	}
}

// BelongsTo reports whether r is the addressee.
func (n *Notification) BelongsTo(r Recipient) bool {
	got, err := n.Recipient()
	return err == nil && got == r
}

// Draft is what domain code hands to the emitter. The store assigns ID and CreatedAt.
type Draft struct {
	Recipient Recipient
	Type      Type
	Title     string
	Message   string
	Priority  Priority
	Metadata  Metadata
	OrderID   *int64
	ProductID *int64
}

// Validate checks the draft and fills the default priority.
func (d *Draft) Validate() error {
	if err := d.Recipient.Validate(); err != nil {
		return err
	}
	if !d.Type.Valid() {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", d.Type)}
	}
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(d.Title) > maxTitleLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("longer than %d characters", maxTitleLen)}
	}
	if strings.TrimSpace(d.Message) == "" {
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if !d.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", d.Priority)}
	}
	return d.Metadata.Validate()
}

// Notification builds the unsaved row for this draft.
func (d *Draft) Notification() *Notification {
	n := &Notification{
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		Priority:  d.Priority,
		Metadata:  d.Metadata,
		OrderID:   d.OrderID,
		ProductID: d.ProductID,
	}
	id := d.Recipient.ID
	if d.Recipient.Role == RoleAdmin {
		n.AdminID = &id
	} else {
		n.UserID = &id
	}
	return n
}

// Ptr is a small helper for optional foreign keys.
func Ptr[T any](v T) *T { return &v }
