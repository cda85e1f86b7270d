package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/DongTao/tls-mempool/internal/events"
)

// WebSocketUpgrade is middleware that checks for WebSocket upgrade requests.
func WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// EventStream streams pool events over a WebSocket.
// GET /v1/events/stream?pool=xxx or ?thread=N
func EventStream(broker *events.Broker) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		topic := determineTopic(c.Query("pool"), c.Query("thread"))

		slog.Info("websocket connected",
			"remote_addr", c.RemoteAddr().String(),
			"topic", topic,
		)

		sub := broker.Subscribe(topic)
		if sub == nil {
			slog.Error("broker closed, cannot subscribe")
			return
		}
		defer sub.Unsubscribe()

		if err := c.WriteJSON(map[string]any{
			"type":    "connected",
			"topic":   topic,
			"message": "Connected to pool event stream",
		}); err != nil {
			slog.Error("failed to send connection message", "error", err)
			return
		}

		// Reads only detect the client going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-sub.Events():
				if !ok {
					return
				}
				if err := c.WriteJSON(event); err != nil {
					slog.Debug("websocket write error", "error", err)
					return
				}
			case <-done:
				slog.Info("websocket disconnected", "remote_addr", c.RemoteAddr().String())
				return
			}
		}
	}, websocket.Config{
		EnableCompression: true,
		RecoverHandler: func(c *websocket.Conn) {
			slog.Error("websocket panic recovered", "remote_addr", c.RemoteAddr().String())
		},
	})
}

// determineTopic picks the subscription topic from query parameters.
// A pool name wins over a thread id; neither subscribes to everything.
func determineTopic(pool, thread string) string {
	if pool != "" {
		return pool
	}
	if id, err := strconv.ParseUint(thread, 10, 64); err == nil && id > 0 {
		return events.ThreadTopic(id)
	}
	return "*"
}
