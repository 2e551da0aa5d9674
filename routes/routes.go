package routes

import (
	"net/http"
	"time"

	"SellerHub/middleware"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"

	authRoutes "SellerHub/routes/auth"
	convRoutes "SellerHub/routes/conversation"
	dashboardRoutes "SellerHub/routes/dashboard"
	emailRoutes "SellerHub/routes/emails"
	mlRoutes "SellerHub/routes/mercadolibre"
	profileRoutes "SellerHub/routes/profile"
	questionRoutes "SellerHub/routes/questions"
	webhookRoutes "SellerHub/routes/webhooks"
	websocketRoutes "SellerHub/routes/websocket"
	wooRoutes "SellerHub/routes/woocommerce"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "SellerHub backend running"})
	})
	r.GET("/health", health(a))

	webhookRoutes.Register(r, a)
	websocketRoutes.Register(r, a)
	authRoutes.RegisterPublic(r, a)

	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware())
	authRoutes.RegisterProtected(protected, a)
	profileRoutes.Register(protected, a)

	api := protected.Group("/api")
	dashboardRoutes.Register(api, a)
	convRoutes.Register(api, a)
	questionRoutes.Register(api, a)
	emailRoutes.Register(api, a)
	wooRoutes.Register(api, a)
	mlRoutes.Register(api, a)
	websocketRoutes.RegisterProtected(api, a)
}

// health reports the database and which integrations are wired.
func health(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		db := "ok"
		if sqlDB, err := a.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			db, status, code = "unreachable", "degraded", http.StatusServiceUnavailable
		}
		out := gin.H{
			"status":       status,
			"time":         time.Now().UTC(),
			"database":     db,
			"mercadolibre": a.ML != nil,
			"woocommerce":  a.Woo != nil,
			"subscribers":  a.Hub.Subscribers(),
		}
		if a.Tokens != nil {
			out["token"] = a.Tokens.Status()
		}
		c.JSON(code, out)
	}
}
