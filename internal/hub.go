package internal

import (
	"context"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/DrGermanius/bookstore/internal/model"
)

const subscriberBuffer = 16

// Hub fans notifications out to websocket subscribers.
type Hub struct {
	logger *zap.SugaredLogger

	mu          sync.RWMutex
	subscribers map[chan model.Notification]struct{}
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[chan model.Notification]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called once the subscriber goes away.
func (h *Hub) Subscribe() (<-chan model.Notification, func()) {
	ch := make(chan model.Notification, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subscribers[ch]; ok {
				delete(h.subscribers, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast never blocks on a slow subscriber: one with a full buffer is
// dropped and has to reconnect.
func (h *Hub) Broadcast(_ context.Context, n model.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			h.logger.Warnf("dropping slow subscriber, notification %s", n.ID)
			delete(h.subscribers, ch)
			close(ch)
		}
	}
	return nil
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *Hub) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ch, cancel := h.Subscribe()
		defer cancel()

		// the read loop only exists to notice the client going away
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case n, ok := <-ch:
				if !ok {
					return
				}
				if err := conn.WriteJSON(n); err != nil {
					h.logger.Debugf("websocket write error: %s", err.Error())
					return
				}
			case <-done:
				return
			}
		}
	})
}
