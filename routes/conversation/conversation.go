package conversation

import (
	"SellerHub/controllers"
	"SellerHub/middleware"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

// Register registers conversation routes (protected)
func Register(g *gin.RouterGroup, a *app.App) {
	g.GET("/conversations", controllers.ListConversations(a))
	g.POST("/conversations/sync", middleware.RateLimit("sync"), controllers.SyncConversations(a))
	g.GET("/conversations/:pack_id/messages", controllers.GetThread(a))
	// outbound relay: rate limited, duplicate guarded in the handler
	g.POST("/conversations/:pack_id/messages", middleware.RateLimit("messages"), controllers.SendMessage(a))
}
