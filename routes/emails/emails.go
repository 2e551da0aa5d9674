package emails

import (
	"SellerHub/controllers"
	"SellerHub/middleware"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

func Register(g *gin.RouterGroup, a *app.App) {
	g.POST("/emails/send", middleware.RateLimit("emails"), controllers.SendEmail(a))
	g.GET("/emails/logs", controllers.EmailLogs(a))
	g.GET("/emails/templates", controllers.EmailTemplates(a))
}
