package woocommerce

import (
	"SellerHub/controllers"
	"SellerHub/middleware"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

func Register(g *gin.RouterGroup, a *app.App) {
	g.POST("/woocommerce/orders/:id/notes", middleware.RateLimit("woo-notes"), controllers.AddOrderNote(a))
	g.PUT("/woocommerce/orders/:id/status", middleware.RateLimit("woo-status"), controllers.UpdateOrderStatus(a))
}
