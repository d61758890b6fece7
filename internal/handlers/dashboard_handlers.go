package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/dashboard"
	"github.com/shomere/ICR-Projects/internal/middleware"
)

//
// --- Client Dashboard ---
//

// GetClientDashboard returns the caller's requests, orders and the active
// catalog, with summary counts.
// GET /v1/client/dashboard
func (h *Handlers) GetClientDashboard(c *gin.Context) {
	sess := middleware.SessionFrom(c)

	view, err := dashboard.NewClient(h.clientFor(c), h.logger()).Load(c.Request.Context(), sess.UserID())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

//
// --- Admin Dashboard ---
//

// GetAdminDashboard returns every collection with the headline counts.
// Individual failed reads are reported in "errors" and do not fail the call.
// GET /v1/admin/dashboard
func (h *Handlers) GetAdminDashboard(c *gin.Context) {
	view, err := dashboard.NewAdmin(h.clientFor(c), h.logger()).Load(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
