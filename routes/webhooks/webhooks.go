package webhooks

import (
	"SellerHub/controllers"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

// Register mounts the platform callbacks. They are public; WooCommerce
// deliveries are HMAC signed.
func Register(r *gin.Engine, a *app.App) {
	r.POST("/api/webhooks/mercadolibre", controllers.MercadoLibreWebhook(a))
	r.POST("/api/webhooks/woocommerce", controllers.WooCommerceWebhook(a))
}
