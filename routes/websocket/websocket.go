package websocket

import (
	"SellerHub/controllers"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

// Register mounts the WebSocket feed, which authenticates with ?token=.
func Register(r *gin.Engine, a *app.App) {
	r.GET("/ws/notifications", controllers.NotificationsWS(a))
}

// RegisterProtected mounts the SSE feed behind AuthMiddleware.
func RegisterProtected(g *gin.RouterGroup, a *app.App) {
	g.GET("/notifications/stream", controllers.NotificationStream(a))
}
