package controllers

import (
	"net/http"

	"SellerHub/pkg/app"
	"SellerHub/pkg/services"

	"github.com/gin-gonic/gin"
)

func TokenStatus(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Tokens == nil {
			c.JSON(http.StatusOK, gin.H{"configured": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"configured": true, "token": a.Tokens.Status()})
	}
}

// RefreshToken forces a refresh now, whatever the remaining lifetime.
func RefreshToken(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.Tokens == nil {
			respondError(c, services.ErrNotConfigured)
			return
		}
		if _, err := a.Tokens.Refresh(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "token refreshed", "token": a.Tokens.Status()})
	}
}

func SyncStatus(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := a.Store.GetSyncStatus(c.Request.Context(), c.Param("entity_type"), c.Param("entity_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
