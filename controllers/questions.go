package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"SellerHub/pkg/app"
	"SellerHub/pkg/services"
	utils "SellerHub/pkg/utills"

	"github.com/gin-gonic/gin"
)

// ListQuestions defaults to unanswered questions; ?status=all lists every one.
func ListQuestions(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("status", "UNANSWERED")))
		if status == "ALL" {
			status = ""
		}
		list, err := a.Questions.List(c.Request.Context(), services.QuestionQuery{
			Status:  status,
			ItemID:  c.Query("item_id"),
			Page:    utils.IntOr(c.Query("page"), 1),
			PerPage: utils.IntOr(c.Query("per_page"), 20),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func AnswerQuestion(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid question id"})
			return
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "text is required"})
			return
		}
		q, err := a.Questions.Answer(c.Request.Context(), id, body.Text)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}
