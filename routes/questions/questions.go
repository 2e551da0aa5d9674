package questions

import (
	"SellerHub/controllers"
	"SellerHub/middleware"
	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

func Register(g *gin.RouterGroup, a *app.App) {
	g.GET("/questions", controllers.ListQuestions(a))
	g.POST("/questions/:id/answer", middleware.RateLimit("answers"), controllers.AnswerQuestion(a))
}
