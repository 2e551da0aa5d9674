package controllers

import (
	"net/http"

	"SellerHub/middleware"
	"SellerHub/pkg/app"
	"SellerHub/pkg/services"
	utils "SellerHub/pkg/utills"

	"github.com/gin-gonic/gin"
)

// ListConversations serves cached threads; ?refresh=1 syncs recent orders first.
func ListConversations(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := a.Conversations.List(c.Request.Context(), services.ListConversationsInput{
			Search:     c.Query("search"),
			UnreadOnly: utils.Truthy(c.Query("unread")),
			Page:       utils.IntOr(c.Query("page"), 1),
			PerPage:    utils.IntOr(c.Query("per_page"), 20),
			Refresh:    utils.Truthy(c.Query("refresh")),
			Days:       utils.IntOr(c.Query("days"), 0),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// SyncConversations runs a manual sync: one pack when pack_id is given,
// otherwise every pack with orders in the last days.
func SyncConversations(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			PackID    string `json:"pack_id"`
			Days      int    `json:"days"`
			MaxOrders int    `json:"max_orders"`
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
				return
			}
		}

		release, ok := middleware.TryAcquireSlot(middleware.CurrentUserID(c))
		if !ok {
			c.JSON(http.StatusTooManyRequests, gin.H{"msg": "a sync is already running for this account"})
			return
		}
		defer release()

		ctx := c.Request.Context()
		if body.PackID != "" {
			res, err := a.Sync.SyncConversation(ctx, body.PackID, services.SyncHint{})
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, res)
			return
		}
		sum, err := a.Sync.SyncRecent(ctx, services.SyncOptions{Days: body.Days, MaxOrders: body.MaxOrders})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func GetThread(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		th, err := a.Conversations.Thread(c.Request.Context(), c.Param("pack_id"), utils.Truthy(c.Query("refresh")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, th)
	}
}

func SendMessage(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "text is required"})
			return
		}
		packID := c.Param("pack_id")
		dupKey := middleware.CurrentUserID(c) + "|" + packID
		if middleware.IsDuplicate(dupKey, body.Text) {
			c.JSON(http.StatusConflict, gin.H{"msg": "duplicate message, already sent moments ago"})
			return
		}
		msg, err := a.Conversations.Send(c.Request.Context(), packID, body.Text)
		if err != nil {
			respondError(c, err)
			return
		}
		middleware.RememberSent(dupKey, body.Text)
		c.JSON(http.StatusCreated, msg)
	}
}
