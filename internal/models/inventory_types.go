package models

import (
	"fmt"
	"time"
)

// Inventory is the model for the 'inventory' table
type Inventory struct {
	ID                string    `json:"id" validate:"required"`
	ProductID         string    `json:"product_id" validate:"required"`
	QuantityAvailable int       `json:"quantity_available"`
	MinimumStock      int       `json:"minimum_stock" validate:"gte=0"`
	LastUpdated       time.Time `json:"last_updated"`

	Products *Product `json:"products,omitempty" validate:"-"`
}

func (i Inventory) Validate() error { return check("inventory", i) }

// IsLowStock reports whether stock has fallen below the minimum.
func (i Inventory) IsLowStock() bool {
	return i.QuantityAvailable < i.MinimumStock
}

// InventoryUpdate sets stock levels. At least one field must be present.
type InventoryUpdate struct {
	QuantityAvailable *int `json:"quantity_available,omitempty" validate:"omitempty,gte=0"`
	MinimumStock      *int `json:"minimum_stock,omitempty" validate:"omitempty,gte=0"`
}

func (u InventoryUpdate) Validate() error {
	if u.QuantityAvailable == nil && u.MinimumStock == nil {
		return fmt.Errorf("%w: inventory update: no fields to change", ErrInvalid)
	}
	return check("inventory update", u)
}
