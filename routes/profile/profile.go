package profile

import (
	"SellerHub/controllers"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

// Register registers protected profile routes on supplied router group
// expects the group to already have AuthMiddleware applied
func Register(g *gin.RouterGroup, a *app.App) {
	g.GET("/profile", controllers.Profile(a))
	g.PUT("/profile", controllers.Profile(a))
}
