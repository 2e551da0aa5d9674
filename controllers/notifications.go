package controllers

import (
	"io"
	"net/http"
	"time"

	"SellerHub/middleware"
	"SellerHub/pkg/app"
	"SellerHub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	pingEvery = 25 * time.Second
	pongWait  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

// NotificationStream pushes hub events as server-sent events. The event
// name is the notification type.
func NotificationStream(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, cancel := a.Hub.Subscribe()
		defer cancel()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent("ready", gin.H{"subscribers": a.Hub.Subscribers()})
		c.Writer.Flush()

		ping := time.NewTicker(pingEvery)
		defer ping.Stop()
		done := c.Request.Context().Done()
		c.Stream(func(io.Writer) bool {
			select {
			case <-done:
				return false
			case ev, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent(ev.Type, ev)
				return true
			case t := <-ping.C:
				c.SSEvent("ping", t.Unix())
				return true
			}
		})
	}
}

// NotificationsWS streams hub events as JSON frames.
// Authenticate via ?token=JWT. The client only needs to answer pings.
func NotificationsWS(a *app.App) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := middleware.ParseToken(c.Query("token"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Str("component", "ws").Err(err).Msg("upgrade failed")
			return
		}
		defer conn.Close()
		wsLog := logger.Component("ws").With().Str("user", s.UserID).Logger()
		wsLog.Debug().Msg("notifications connected")

		events, cancel := a.Hub.Subscribe()
		defer cancel()

		// Setup read limits and pong handler for keepalive
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		// The reader only drains control frames and notices the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingEvery)
		defer ping.Stop()
		_ = conn.WriteJSON(gin.H{"type": "ready"})
		for {
			select {
			case <-closed:
				return
			case <-c.Request.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(ev); err != nil {
					wsLog.Debug().Err(err).Msg("write failed")
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}
}
