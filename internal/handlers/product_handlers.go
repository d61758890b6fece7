package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/models"
)

// GetProducts is the handler for GET /v1/products
// It returns the active catalog, newest first. An optional ?category=
// narrows the list.
func (h *Handlers) GetProducts(c *gin.Context) {
	// 1. --- Validate Filter ---
	category := models.ProductCategory(c.Query("category"))
	if category != "" && !slices.Contains(models.Categories, category) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown product category", "categories": models.Categories})
		return
	}

	// 2. --- Read Catalog ---
	products, fromCache, err := h.Catalog.Active(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.Metrics != nil {
		source := "remote"
		if fromCache {
			source = "cache"
		}
		h.Metrics.CatalogReads.WithLabelValues(source).Inc()
	}

	// 3. --- Filter ---
	if category != "" {
		filtered := make([]models.Product, 0, len(products))
		for _, p := range products {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		products = filtered
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}
