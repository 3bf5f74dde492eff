package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidOrder is wrapped by every validation failure of an OrderSnapshot
var ErrInvalidOrder = errors.New("invalid order")

// ServiceType represents how the order leaves the store
type ServiceType string

const (
	ServiceDelivery ServiceType = "delivery"
	ServicePickup   ServiceType = "pickup"
	ServiceDineIn   ServiceType = "dine-in"
)

func (s ServiceType) String() string {
	return string(s)
}

// Address is the delivery destination of an order
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	Reference    string `json:"reference,omitempty"`
}

// LineItem represents one ordered product
type LineItem struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Size        string          `json:"size,omitempty"`
	Flavors     []string        `json:"flavors,omitempty"`
	Border      string          `json:"border,omitempty"` // Border/edge addon
	Note        string          `json:"note,omitempty"`
}

// OrderSnapshot is a fully resolved, read-only view of an order supplied by the order source
type OrderSnapshot struct {
	ID            string           `json:"id,omitempty"`
	StoreID       string           `json:"store_id"`
	OrderNumber   int              `json:"order_number"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	ServiceType   ServiceType      `json:"service_type"`
	Address       *Address         `json:"address,omitempty"` // Delivery only
	Table         string           `json:"table,omitempty"`   // Dine-in only
	Items         []LineItem       `json:"items"`
	PaymentMethod string           `json:"payment_method"`
	ChangeFor     *decimal.Decimal `json:"change_for,omitempty"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	DeliveryFee   decimal.Decimal  `json:"delivery_fee"`
	Discount      decimal.Decimal  `json:"discount"`
	Total         decimal.Decimal  `json:"total"` // Already reconciled by the caller
	Observations  string           `json:"observations,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Validate rejects snapshots that cannot be rendered
func (o *OrderSnapshot) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if o.OrderNumber <= 0 {
		return fmt.Errorf("%w: order number must be positive, got %d", ErrInvalidOrder, o.OrderNumber)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order %d has no items", ErrInvalidOrder, o.OrderNumber)
	}
	for i, item := range o.Items {
		if strings.TrimSpace(item.ProductName) == "" {
			return fmt.Errorf("%w: item %d has no product name", ErrInvalidOrder, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d (%s) has quantity %d", ErrInvalidOrder, i, item.ProductName, item.Quantity)
		}
		if item.UnitPrice.IsNegative() || item.TotalPrice.IsNegative() {
			return fmt.Errorf("%w: item %d (%s) has a negative price", ErrInvalidOrder, i, item.ProductName)
		}
	}

	money := map[string]decimal.Decimal{
		"subtotal":     o.Subtotal,
		"delivery fee": o.DeliveryFee,
		"discount":     o.Discount,
		"total":        o.Total,
	}
	if o.ChangeFor != nil {
		money["change"] = *o.ChangeFor
	}
	for name, value := range money {
		if value.IsNegative() {
			return fmt.Errorf("%w: %s is negative", ErrInvalidOrder, name)
		}
	}

	return nil
}
