package mercadolibre

import (
	"SellerHub/controllers"
	"SellerHub/middleware"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

func Register(g *gin.RouterGroup, a *app.App) {
	g.GET("/mercadolibre/token", controllers.TokenStatus(a))
	g.POST("/mercadolibre/token/refresh", middleware.RateLimit("token"), controllers.RefreshToken(a))
	g.GET("/sync/status/:entity_type/:entity_id", controllers.SyncStatus(a))
}
