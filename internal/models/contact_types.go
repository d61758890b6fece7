package models

import (
	"time"
)

// ContactMessage is the model for the 'contact_messages' table
type ContactMessage struct {
	ID              string           `json:"id" validate:"required"`
	Name            string           `json:"name" validate:"required"`
	Email           string           `json:"email" validate:"required,email"`
	Company         *string          `json:"company,omitempty"`
	ProductInterest *ProductCategory `json:"product_interest,omitempty" validate:"omitempty,oneof=floor_tiles ceramic_mugs dinnerware sanitary_wares decorative industrial"`
	Message         string           `json:"message" validate:"required"`
	IsRead          bool             `json:"is_read"`
	CreatedAt       time.Time        `json:"created_at"`
}

func (m ContactMessage) Validate() error { return check("contact message", m) }

// ContactInput is a visitor's submission from the public contact form.
type ContactInput struct {
	Name            string           `json:"name" validate:"required,max=120"`
	Email           string           `json:"email" validate:"required,email,max=254"`
	Company         *string          `json:"company,omitempty" validate:"omitempty,max=160"`
	ProductInterest *ProductCategory `json:"product_interest,omitempty" validate:"omitempty,oneof=floor_tiles ceramic_mugs dinnerware sanitary_wares decorative industrial"`
	Message         string           `json:"message" validate:"required,min=2,max=5000"`
}

func (in ContactInput) Validate() error { return check("contact input", in) }

// Row returns the insert payload. New messages are unread.
func (in ContactInput) Row() map[string]any {
	row := map[string]any{
		"name":    in.Name,
		"email":   in.Email,
		"message": in.Message,
		"is_read": false,
	}
	if in.Company != nil {
		row["company"] = *in.Company
	}
	if in.ProductInterest != nil {
		row["product_interest"] = *in.ProductInterest
	}
	return row
}
