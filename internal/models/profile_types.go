package models

import (
	"time"
)

// Role is the coarse permission class stored on a profile.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Profile is the model for the 'profiles' table. Its ID is the auth identity id.
type Profile struct {
	ID       string `json:"id" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role" validate:"required,oneof=admin client"`

	// --- Contact Fields (Pointers = Clean JSON) ---
	CompanyName *string `json:"company_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the decoded row.
func (p Profile) Validate() error { return check("profile", p) }

func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }

// ProfileUpdate is the set of fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FullName    *string `json:"full_name,omitempty" validate:"omitnil,min=1,max=120"`
	CompanyName *string `json:"company_name,omitempty" validate:"omitempty,max=160"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=400"`
}

func (u ProfileUpdate) Validate() error { return check("profile update", u) }

// Empty reports whether the update carries no field.
func (u ProfileUpdate) Empty() bool {
	return u.FullName == nil && u.CompanyName == nil && u.Phone == nil && u.Address == nil
}
