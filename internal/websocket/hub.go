package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ai-bookingchat-be/internal/dto"
	"ai-bookingchat-be/internal/pkg/logger"
)

// Hub fans escalation alerts out to connected operator dashboards. A
// business can have several open dashboards (multi-device), and a Redis
// channel bridges instances.
type Hub struct {
	// BusinessID -> operator connections for that tenant
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.BusinessID] = append(h.clients[client.BusinessID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Operator dashboard connected", map[string]interface{}{"business_id": client.BusinessID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.BusinessID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.BusinessID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.BusinessID]) == 0 {
					delete(h.clients, client.BusinessID)
					h.logger.Info("Hub", "Last operator dashboard disconnected", map[string]interface{}{"business_id": client.BusinessID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Send delivers an escalation alert to every dashboard of one business.
// With Redis configured the message goes through the cluster channel and
// comes back via the subscription, so every instance (this one included)
// delivers it exactly once.
func (h *Hub) Send(businessID uuid.UUID, notification *dto.NotificationResponse) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "escalation",
		"data": notification,
	})

	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_business_id": businessID.String(),
			"message":            json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), "cluster_events", jsonPayload)
		return
	}

	h.deliverLocal(businessID, data)
}

func (h *Hub) deliverLocal(businessID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients, ok := h.clients[businessID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Dashboard send buffer full, dropping connection", map[string]interface{}{"business_id": businessID})
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to one cluster channel and filters by
	// the businesses it holds locally.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetBusinessID string          `json:"target_business_id"`
			Message          json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		bid, err := uuid.Parse(payload.TargetBusinessID)
		if err != nil {
			continue
		}

		h.deliverLocal(bid, payload.Message)
	}
}
