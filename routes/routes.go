package routes

import (
	"time"

	"pwashop/handlers"
	"pwashop/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterNotificationRoutes registers the push notification API.
func RegisterNotificationRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/notifications")
	{
		api.GET("/vapid-public-key", hb.Notifications.VapidPublicKeyHandler)

		// Protected routes (Require Authentication)
		protected := api.Group("")
		protected.Use(middleware.JWTAuthUserMiddleware(hb.UserRepo))
		protected.POST("/subscribe", hb.Notifications.SubscribeHandler)
		protected.DELETE("/subscribe", hb.Notifications.UnsubscribeHandler)
		protected.POST("/send", hb.Notifications.SendHandler)
		protected.GET("", hb.Notifications.ListHandler)
		protected.PUT("/read-all", hb.Notifications.MarkAllReadHandler)
		protected.PUT("/:id/read", hb.Notifications.MarkReadHandler)
		protected.POST("/broadcast", middleware.AdminOnly(), hb.Notifications.BroadcastHandler)
	}
}

// RegisterServiceWorkerRoutes registers cache lifecycle, background sync and
// offline persistence endpoints.
func RegisterServiceWorkerRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	sw := r.Group("/sw")
	{
		sw.GET("/status", hb.ServiceWorker.StatusHandler)

		user := sw.Group("")
		user.Use(middleware.JWTAuthUserMiddleware(hb.UserRepo))
		user.POST("/sync/:tag", hb.ServiceWorker.RegisterSyncHandler)
		user.POST("/sync/:tag/actions", hb.ServiceWorker.QueueActionHandler)
		user.PUT("/offline/products", hb.ServiceWorker.SetProductsHandler)
		user.DELETE("/offline", hb.ServiceWorker.ClearOfflineHandler)
		user.POST("/update", middleware.AdminOnly(), hb.ServiceWorker.UpdateHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", handlers.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
// Anything not matched falls through to fallback, the fetch interceptor.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, fallback gin.HandlerFunc) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposeHeaders:    []string{"Content-Length", "X-Cache-Source", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterNotificationRoutes(r, hb)
	RegisterServiceWorkerRoutes(r, hb)
	RegisterHealthRoute(r)

	if fallback != nil {
		r.NoRoute(fallback)
	}
}
