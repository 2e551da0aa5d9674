package controllers

import (
	"net/http"

	"SellerHub/pkg/app"

	"github.com/gin-gonic/gin"
)

func AddOrderNote(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Note         string `json:"note"`
			CustomerNote bool   `json:"customer_note"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "note is required"})
			return
		}
		n, err := a.Dashboard.AddWooNote(c.Request.Context(), c.Param("id"), body.Note, body.CustomerNote)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, n)
	}
}

func UpdateOrderStatus(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Status string `json:"status"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "status is required"})
			return
		}
		o, err := a.Dashboard.UpdateWooStatus(c.Request.Context(), c.Param("id"), body.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
