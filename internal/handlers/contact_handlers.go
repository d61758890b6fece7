package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/models"
)

// CreateContactMessage is the handler for POST /v1/contact
// Anyone may send a message; it lands unread in the admin inbox.
func (h *Handlers) CreateContactMessage(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input models.ContactInput
	if !bindJSON(c, &input) {
		return
	}
	if err := input.Validate(); err != nil {
		h.respondError(c, err)
		return
	}

	// 2. --- Insert ---
	// The public key is enough: the insert policy only admits unread messages.
	if err := h.Supabase.From("contact_messages").Insert(input.Row()).Execute(c.Request.Context(), nil); err != nil {
		h.respondError(c, err)
		return
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusCreated, gin.H{"message": "Thank you! We will get back to you shortly."})
}
