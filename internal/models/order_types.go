package models

import (
	"math"
	"time"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Order is the model for the 'orders' table
type Order struct {
	ID              string      `json:"id" validate:"required"`
	ClientID        string      `json:"client_id" validate:"required"`
	OrderNumber     string      `json:"order_number" validate:"required"`
	TotalAmount     float64     `json:"total_amount" validate:"gte=0"`
	Status          OrderStatus `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	ShippingAddress string      `json:"shipping_address"`
	Notes           *string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joins
	Profiles   *Profile    `json:"profiles,omitempty" validate:"-"`
	OrderItems []OrderItem `json:"order_items,omitempty" validate:"-"`
}

func (o Order) Validate() error {
	if err := check("order", o); err != nil {
		return err
	}
	for _, it := range o.OrderItems {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ItemsTotal sums the line totals of the loaded items.
func (o Order) ItemsTotal() float64 {
	var sum float64
	for _, it := range o.OrderItems {
		sum += it.TotalPrice
	}
	return sum
}

// Reconciled reports whether TotalAmount matches the sum of its items to the
// cent. Orders whose items were not loaded are treated as reconciled.
func (o Order) Reconciled() bool {
	if o.OrderItems == nil {
		return true
	}
	return math.Abs(o.ItemsTotal()-o.TotalAmount) < 0.005
}

// OrderItem is the model for the 'order_items' table
type OrderItem struct {
	ID         string  `json:"id" validate:"required"`
	OrderID    string  `json:"order_id" validate:"required"`
	ProductID  string  `json:"product_id" validate:"required"`
	Quantity   int     `json:"quantity" validate:"gt=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	TotalPrice float64 `json:"total_price" validate:"gte=0"`

	CreatedAt time.Time `json:"created_at"`

	Products *Product `json:"products,omitempty" validate:"-"`
}

func (it OrderItem) Validate() error { return check("order item", it) }
