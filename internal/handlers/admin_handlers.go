package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/dashboard"
	"github.com/shomere/ICR-Projects/internal/models"
)

//
// --- Admin: Orders, Messages, Inventory, Products ---
//
// Every mutation answers with the reloaded admin view, so the caller never
// shows stale counts.

type UpdateOrderStatusInput struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// UpdateOrderStatus is the handler for PATCH /v1/admin/orders/:id
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var input UpdateOrderStatusInput
	if !bindJSON(c, &input) {
		return
	}

	view, err := dashboard.NewAdmin(h.clientFor(c), h.logger()).UpdateOrderStatus(c.Request.Context(), c.Param("id"), input.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order updated", "dashboard": view})
}

// MarkMessageRead is the handler for PATCH /v1/admin/messages/:id/read
func (h *Handlers) MarkMessageRead(c *gin.Context) {
	view, err := dashboard.NewAdmin(h.clientFor(c), h.logger()).MarkMessageRead(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read", "dashboard": view})
}

// UpdateInventory is the handler for PATCH /v1/admin/inventory/:id
func (h *Handlers) UpdateInventory(c *gin.Context) {
	var input models.InventoryUpdate
	if !bindJSON(c, &input) {
		return
	}

	view, err := dashboard.NewAdmin(h.clientFor(c), h.logger()).UpdateInventory(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Inventory updated", "dashboard": view})
}

// CreateProduct is the handler for POST /v1/admin/products
func (h *Handlers) CreateProduct(c *gin.Context) {
	// 1. --- Bind JSON ---
	var input models.ProductInput
	if !bindJSON(c, &input) {
		return
	}

	// 2. --- Insert & Reload ---
	view, err := dashboard.NewAdmin(h.clientFor(c), h.logger()).CreateProduct(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 3. --- Drop Cached Catalog ---
	h.Catalog.Invalidate(c.Request.Context())

	c.JSON(http.StatusCreated, gin.H{"message": "Product created", "dashboard": view})
}
