package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SellerHub/pkg/app"
	"SellerHub/pkg/logger"
	"SellerHub/pkg/services"
	"SellerHub/pkg/woocommerce"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const webhookTimeout = 2 * time.Minute

// runAsync processes webhook work after the response went out. Tests
// replace it to run inline.
var runAsync = func(f func()) { go f() }

func background() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), webhookTimeout)
}

type mlNotification struct {
	Resource      string `json:"resource"`
	UserID        int64  `json:"user_id"`
	Topic         string `json:"topic"`
	ApplicationID int64  `json:"application_id"`
	Attempts      int    `json:"attempts"`
}

// MercadoLibreWebhook acknowledges at once, since MercadoLibre retries
// notifications that are not answered quickly, and handles the topic after.
func MercadoLibreWebhook(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var n mlNotification
		if err := c.ShouldBindJSON(&n); err != nil || n.Resource == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid notification"})
			return
		}
		wlog := logger.Component("webhook").With().Str("topic", n.Topic).Str("resource", n.Resource).Logger()

		if a.ML != nil && n.UserID != 0 {
			if seller := a.ML.SellerID(); seller != "" && seller != strconv.FormatInt(n.UserID, 10) {
				wlog.Warn().Int64("user_id", n.UserID).Msg("notification for another seller ignored")
				c.JSON(http.StatusOK, gin.H{"msg": "ignored"})
				return
			}
		}

		switch n.Topic {
		case "messages":
			runAsync(func() {
				ctx, cancel := background()
				defer cancel()
				if _, err := a.Sync.HandleMessageNotification(ctx, n.Resource); err != nil {
					wlog.Error().Err(err).Msg("message notification failed")
				}
			})
		case "questions":
			a.Questions.HandleQuestionNotification(n.Resource)
		case "orders_v2", "orders":
			runAsync(func() {
				ctx, cancel := background()
				defer cancel()
				a.Dashboard.HandleOrderNotification(ctx, services.PlatformMercadoLibre, n.Resource)
			})
		default:
			wlog.Debug().Msg("unhandled topic")
		}
		c.JSON(http.StatusOK, gin.H{"msg": "received"})
	}
}

// WooCommerceWebhook verifies X-WC-Webhook-Signature and reacts to order
// topics. Delivery pings carry no topic and are acknowledged as is.
func WooCommerceWebhook(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "unreadable body"})
			return
		}
		topic := c.GetHeader("X-WC-Webhook-Topic")
		if topic == "" {
			c.JSON(http.StatusOK, gin.H{"msg": "pong"})
			return
		}
		if a.WooWebhookSecret == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"msg": "webhook secret not configured"})
			return
		}
		if !woocommerce.VerifyWebhook(a.WooWebhookSecret, body, c.GetHeader("X-WC-Webhook-Signature")) {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "invalid signature"})
			return
		}

		var payload struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(body, &payload); err != nil || payload.ID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid payload"})
			return
		}
		if strings.HasPrefix(topic, "order.") {
			id := strconv.FormatInt(payload.ID, 10)
			runAsync(func() {
				ctx, cancel := background()
				defer cancel()
				a.Dashboard.HandleOrderNotification(ctx, services.PlatformWooCommerce, id)
			})
		} else {
			log.Debug().Str("component", "webhook").Str("topic", topic).Msg("unhandled woocommerce topic")
		}
		c.JSON(http.StatusOK, gin.H{"msg": "received"})
	}
}
