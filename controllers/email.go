package controllers

import (
	"net/http"

	"SellerHub/middleware"
	"SellerHub/pkg/app"
	"SellerHub/pkg/services"
	utils "SellerHub/pkg/utills"

	"github.com/gin-gonic/gin"
)

// SendEmail renders a template and mails it. The admin's profile signature
// is appended unless the request supplies one.
func SendEmail(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.SendEmailInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		user, ok := currentUser(c, a)
		if !ok {
			return
		}
		dupKey := middleware.CurrentUserID(c) + "|email|" + in.To
		dupText := in.Template + in.OrderID + in.Data.Subject + in.Data.Message
		if middleware.IsDuplicate(dupKey, dupText) {
			c.JSON(http.StatusConflict, gin.H{"msg": "duplicate email, already sent moments ago"})
			return
		}
		res, err := a.Email.Send(c.Request.Context(), in, user.Signature)
		if err != nil {
			respondError(c, err)
			return
		}
		middleware.RememberSent(dupKey, dupText)
		c.JSON(http.StatusOK, res)
	}
}

func EmailLogs(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := a.Email.Logs(c.Request.Context(), utils.IntOr(c.Query("limit"), 50))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs})
	}
}

func EmailTemplates(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"templates": a.Email.Templates()})
	}
}
