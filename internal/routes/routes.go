package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/handlers"
	"github.com/shomere/ICR-Projects/internal/middleware"
)

// Options carries the router settings that do not belong to the handlers.
type Options struct {
	CORSOrigin           string
	JWTSecret            []byte // optional; tokens are then only pre-checked locally
	ContactRatePerMinute int
}

// CORSMiddleware tells the browser that the configured frontend origin may
// call us with credentials.
func CORSMiddleware(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Strictly allow ONLY the configured frontend
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Vary", "Origin")

		// 2. Allow standard security credentials
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		// 3. Allow the headers we actually use (specifically "Authorization" for access tokens)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+middleware.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Expose-Headers", middleware.RequestIDHeader+", Retry-After")

		// 4. Allow the HTTP methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH")

		// 5. Handle the "Preflight" OPTIONS request
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()

	// --- APPLY THE CORS GUARD ---
	// This must be the very first thing the router uses
	router.Use(CORSMiddleware(opts.CORSOrigin))
	router.Use(middleware.RequestLogger(logger), gin.Recovery())
	if h.Metrics != nil {
		router.Use(middleware.Metrics(h.Metrics))
		router.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	authenticated := middleware.AuthMiddleware(h.Supabase, opts.JWTSecret, logger)
	contactLimiter := middleware.NewRateLimiter(opts.ContactRatePerMinute)

	v1 := router.Group("/v1")
	{
		// --- Ping Route (Public) ---
		v1.GET("/ping", h.Ping)

		// --- Auth Routes (Public) ---
		v1.POST("/auth/signup", h.SignUp)
		v1.POST("/auth/login", h.Login)
		v1.POST("/auth/refresh", h.Refresh)

		// --- Public Site Routes ---
		v1.GET("/products", h.GetProducts)
		v1.POST("/contact", contactLimiter.Middleware(), h.CreateContactMessage)

		// --- Protected Routes (Login Required) ---
		auth := v1.Group("/")
		auth.Use(authenticated)
		{
			auth.POST("/auth/logout", h.Logout)
			auth.GET("/profile/me", h.GetMyProfile)
			auth.PATCH("/profile/me", h.UpdateMyProfile)

			// --- Client Routes ---
			client := auth.Group("/client")
			client.Use(middleware.ClientOnly())
			{
				client.GET("/dashboard", h.GetClientDashboard)
				client.POST("/requests", h.SubmitProductRequest)
			}

			// --- Admin Routes ---
			admin := auth.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				admin.GET("/dashboard", h.GetAdminDashboard)
				admin.PATCH("/requests/:id", h.UpdateProductRequest)
				admin.PATCH("/orders/:id", h.UpdateOrderStatus)
				admin.PATCH("/messages/:id/read", h.MarkMessageRead)
				admin.PATCH("/inventory/:id", h.UpdateInventory)
				admin.POST("/products", h.CreateProduct)
				admin.POST("/uploads", h.UploadProductImage)
			}
		}
	}

	return router
}
