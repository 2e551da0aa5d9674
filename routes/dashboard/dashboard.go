package dashboard

import (
	"SellerHub/controllers"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

func Register(g *gin.RouterGroup, a *app.App) {
	g.GET("/dashboard/stats", controllers.DashboardStats(a))
	g.GET("/orders", controllers.ListOrders(a))
	g.GET("/orders/:platform/:id", controllers.GetOrder(a))
	g.GET("/customers", controllers.ListCustomers(a))
	g.GET("/products", controllers.ListProducts(a))
}
