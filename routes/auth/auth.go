package auth

import (
	"SellerHub/controllers"
	"SellerHub/middleware"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

// RegisterPublic registers public auth routes: /register, /login
func RegisterPublic(r *gin.Engine, a *app.App) {
	r.POST("/register", middleware.RateLimit("register"), controllers.Register(a))
	r.POST("/login", middleware.RateLimit("login"), controllers.Login(a))
}

// RegisterProtected registers protected auth routes (e.g. logout)
func RegisterProtected(g *gin.RouterGroup, a *app.App) {
	g.POST("/logout", controllers.Logout())
}
