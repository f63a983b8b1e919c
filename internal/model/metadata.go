package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Action tags a Metadata variant. The client renders a contextual action from it.
type Action string

const (
	ActionNone            Action = "none"
	ActionViewOrder       Action = "view_order"
	ActionUpdateInventory Action = "update_inventory"
	ActionViewCustomer    Action = "view_customer"
	ActionViewProduct     Action = "view_product"
)

// MetadataVariant is implemented by the payload types below and nothing else.
type MetadataVariant interface {
	action() Action
	validate() error
}

type ViewOrderAction struct {
	OrderID int64 `json:"order_id"`
}

type UpdateInventoryAction struct {
	ProductID int64 `json:"product_id"`
	Stock     int   `json:"stock"`
	Threshold int   `json:"threshold"`
}

type ViewCustomerAction struct {
	CustomerID int64 `json:"customer_id"`
}

type ViewProductAction struct {
	ProductID int64 `json:"product_id"`
}

func (ViewOrderAction) action() Action       { return ActionViewOrder }
func (UpdateInventoryAction) action() Action { return ActionUpdateInventory }
func (ViewCustomerAction) action() Action    { return ActionViewCustomer }
func (ViewProductAction) action() Action     { return ActionViewProduct }

func (a ViewOrderAction) validate() error {
	if a.OrderID <= 0 {
		return &ValidationError{Field: "metadata.order_id", Reason: "must be positive"}
	}
	return nil
}

func (a UpdateInventoryAction) validate() error {
	if a.ProductID <= 0 {
		return &ValidationError{Field: "metadata.product_id", Reason: "must be positive"}
	}
	if a.Stock < 0 || a.Threshold < 0 {
		return &ValidationError{Field: "metadata.stock", Reason: "stock and threshold must not be negative"}
	}
	return nil
}

func (a ViewCustomerAction) validate() error {
	if a.CustomerID <= 0 {
		return &ValidationError{Field: "metadata.customer_id", Reason: "must be positive"}
	}
	return nil
}

func (a ViewProductAction) validate() error {
	if a.ProductID <= 0 {
		return &ValidationError{Field: "metadata.product_id", Reason: "must be positive"}
	}
	return nil
}

// Metadata is a tagged union keyed by action. The zero value carries no action.
type Metadata struct {
	variant MetadataVariant
}

func NoMetadata() Metadata { return Metadata{} }

func ViewOrder(orderID int64) Metadata {
	return Metadata{variant: ViewOrderAction{OrderID: orderID}}
}

func UpdateInventory(productID int64, stock, threshold int) Metadata {
	return Metadata{variant: UpdateInventoryAction{ProductID: productID, Stock: stock, Threshold: threshold}}
}

func ViewCustomer(customerID int64) Metadata {
	return Metadata{variant: ViewCustomerAction{CustomerID: customerID}}
}

func ViewProduct(productID int64) Metadata {
	return Metadata{variant: ViewProductAction{ProductID: productID}}
}

func (m Metadata) Action() Action {
	if m.variant == nil {
		return ActionNone
	}
	return m.variant.action()
}

// Variant returns the payload, or nil for ActionNone. Switch on its concrete type.
func (m Metadata) Variant() MetadataVariant {
	return m.variant
}

func (m Metadata) Validate() error {
	if m.variant == nil {
		return nil
	}
	return m.variant.validate()
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.variant == nil {
		return []byte(`{"action":"none"}`), nil
	}
	body, err := json.Marshal(m.variant)
	if err != nil {
		return nil, err
	}
	// {"action":"...", <variant fields>}
	var buf bytes.Buffer
	buf.WriteString(`{"action":`)
	tag, _ := json.Marshal(m.variant.action())
	buf.Write(tag)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1 : len(body)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Metadata{}
		return nil
	}

	var head struct {
		Action Action `json:"action"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	var v MetadataVariant
	switch head.Action {
	case "", ActionNone:
		*m = Metadata{}
		return nil
	case ActionViewOrder:
		var a ViewOrderAction
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		v = a
	case ActionUpdateInventory:
		var a UpdateInventoryAction
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		v = a
	case ActionViewCustomer:
		var a ViewCustomerAction
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		v = a
	case ActionViewProduct:
		var a ViewProductAction
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		v = a
	default:
		return &ValidationError{Field: "metadata.action", Reason: fmt.Sprintf("unknown action %q", head.Action)}
	}

	*m = Metadata{variant: v}
	return nil
}
