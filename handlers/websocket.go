package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"cityflow/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveAccidents streams accidents announced by the ingestor on channel.
// Browsers cannot set headers on a websocket handshake, so the token comes
// from the query string.
func LiveAccidents(cache *services.CacheService, authService *services.AuthService, channel string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token query parameter"})
			return
		}
		if _, err := authService.ValidateToken(tokenStr); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		if !cache.Available() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live stream unavailable"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Reading is only used to notice the client going away.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		pubsub := cache.Subscribe(ctx, channel)
		defer pubsub.Close()
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteJSON(liveMessage(msg.Payload)); err != nil {
					log.Printf("ws write error: %v", err)
					return
				}
			}
		}
	}
}

// liveMessage wraps a published payload. JSON payloads are embedded as-is,
// anything else is sent as a string.
func liveMessage(payload string) gin.H {
	var data any = payload
	if json.Valid([]byte(payload)) {
		data = json.RawMessage(payload)
	}
	return gin.H{"type": "accident", "data": data}
}
