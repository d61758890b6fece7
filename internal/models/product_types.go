package models

import (
	"time"
)

// ProductCategory is the fixed catalog taxonomy.
type ProductCategory string

const (
	CategoryFloorTiles    ProductCategory = "floor_tiles"
	CategoryCeramicMugs   ProductCategory = "ceramic_mugs"
	CategoryDinnerware    ProductCategory = "dinnerware"
	CategorySanitaryWares ProductCategory = "sanitary_wares"
	CategoryDecorative    ProductCategory = "decorative"
	CategoryIndustrial    ProductCategory = "industrial"
)

// Categories lists every category in display order.
var Categories = []ProductCategory{
	CategoryFloorTiles, CategoryCeramicMugs, CategoryDinnerware,
	CategorySanitaryWares, CategoryDecorative, CategoryIndustrial,
}

// Product is the model for the 'products' table.
type Product struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Category    ProductCategory `json:"category" validate:"required,oneof=floor_tiles ceramic_mugs dinnerware sanitary_wares decorative industrial"`

	Price    *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	ImageURL *string  `json:"image_url,omitempty"`

	Specifications map[string]any `json:"specifications"`
	IsActive       bool           `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Product) Validate() error { return check("product", p) }

// ProductInput is what an admin submits to add a catalog item.
type ProductInput struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Description    string          `json:"description" validate:"max=4000"`
	Category       ProductCategory `json:"category" validate:"required,oneof=floor_tiles ceramic_mugs dinnerware sanitary_wares decorative industrial"`
	Price          *float64        `json:"price,omitempty" validate:"omitempty,gte=0"`
	ImageURL       *string         `json:"image_url,omitempty" validate:"omitempty,url"`
	Specifications map[string]any  `json:"specifications,omitempty"`
}

func (in ProductInput) Validate() error { return check("product input", in) }

// Row returns the insert payload. New products are active.
func (in ProductInput) Row() map[string]any {
	specs := in.Specifications
	if specs == nil {
		specs = map[string]any{}
	}
	row := map[string]any{
		"name":           in.Name,
		"description":    in.Description,
		"category":       in.Category,
		"specifications": specs,
		"is_active":      true,
	}
	if in.Price != nil {
		row["price"] = *in.Price
	}
	if in.ImageURL != nil {
		row["image_url"] = *in.ImageURL
	}
	return row
}
