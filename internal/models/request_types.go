package models

import (
	"time"
)

// RequestStatus is the review state of a product request. Only the initial
// pending state is set by clients; every transition after it is admin-driven.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestReviewed RequestStatus = "reviewed"
	RequestQuoted   RequestStatus = "quoted"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ProductRequest is the model for the 'product_requests' table.
type ProductRequest struct {
	ID              string          `json:"id" validate:"required"`
	ClientID        string          `json:"client_id" validate:"required"`
	ProductCategory ProductCategory `json:"product_category" validate:"required,oneof=floor_tiles ceramic_mugs dinnerware sanitary_wares decorative industrial"`
	ProductName     string          `json:"product_name" validate:"required"`
	Description     string          `json:"description"`
	Quantity        int             `json:"quantity" validate:"gt=0"`

	BudgetRange *string `json:"budget_range,omitempty"`
	Deadline    *string `json:"deadline,omitempty"` // date only, YYYY-MM-DD

	Status      RequestStatus `json:"status" validate:"required,oneof=pending reviewed quoted approved rejected"`
	AdminNotes  *string       `json:"admin_notes,omitempty"`
	QuoteAmount *float64      `json:"quote_amount,omitempty" validate:"omitempty,gte=0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joins (embedded by the select list, partial rows)
	Profiles *Profile `json:"profiles,omitempty" validate:"-"`
}

func (r ProductRequest) Validate() error { return check("product request", r) }

// RequestInput is a client's new request.
type RequestInput struct {
	ProductCategory ProductCategory `json:"product_category" validate:"required,oneof=floor_tiles ceramic_mugs dinnerware sanitary_wares decorative industrial"`
	ProductName     string          `json:"product_name" validate:"required,max=200"`
	Description     string          `json:"description" validate:"max=4000"`
	Quantity        int             `json:"quantity" validate:"required,gt=0"`
	BudgetRange     *string         `json:"budget_range,omitempty" validate:"omitempty,max=100"`
	Deadline        *string         `json:"deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

func (in RequestInput) Validate() error { return check("request input", in) }

// Row returns the insert payload for clientID. Status is always pending.
func (in RequestInput) Row(clientID string) map[string]any {
	row := map[string]any{
		"client_id":        clientID,
		"product_category": in.ProductCategory,
		"product_name":     in.ProductName,
		"description":      in.Description,
		"quantity":         in.Quantity,
		"status":           RequestPending,
	}
	if in.BudgetRange != nil {
		row["budget_range"] = *in.BudgetRange
	}
	if in.Deadline != nil {
		row["deadline"] = *in.Deadline
	}
	return row
}

// RequestUpdate is an admin transition. Nil optional fields are not sent.
type RequestUpdate struct {
	Status      RequestStatus `json:"status" validate:"required,oneof=pending reviewed quoted approved rejected"`
	AdminNotes  *string       `json:"admin_notes,omitempty" validate:"omitempty,max=4000"`
	QuoteAmount *float64      `json:"quote_amount,omitempty" validate:"omitempty,gte=0"`
}

func (u RequestUpdate) Validate() error { return check("request update", u) }
