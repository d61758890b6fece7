package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/dashboard"
	"github.com/shomere/ICR-Projects/internal/middleware"
	"github.com/shomere/ICR-Projects/internal/models"
)

// SubmitProductRequest is the handler for POST /v1/client/requests
// It files a new pending request for the caller and returns the refreshed
// client view.
func (h *Handlers) SubmitProductRequest(c *gin.Context) {
	// 1. --- Bind JSON ---
	var input models.RequestInput
	if !bindJSON(c, &input) {
		return
	}

	// 2. --- Insert & Reload ---
	sess := middleware.SessionFrom(c)
	view, err := dashboard.NewClient(h.clientFor(c), h.logger()).SubmitRequest(c.Request.Context(), sess.UserID(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusCreated, gin.H{"message": "Request submitted", "dashboard": view})
}

// UpdateProductRequest is the handler for PATCH /v1/admin/requests/:id
// It sets the status and, optionally, admin notes and a quote.
func (h *Handlers) UpdateProductRequest(c *gin.Context) {
	// 1. --- Bind JSON ---
	var input models.RequestUpdate
	if !bindJSON(c, &input) {
		return
	}

	// 2. --- Update & Reload ---
	view, err := dashboard.NewAdmin(h.clientFor(c), h.logger()).UpdateRequestStatus(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Request updated", "dashboard": view})
}
