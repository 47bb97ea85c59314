package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"go.uber.org/atomic"

	"tush00nka/phonechat/internal/model"
)

const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameError       = "error"
	FrameSubscribed  = "subscribed"
)

var ErrInvalidTopic = errors.New("invalid conversation")

// InEvent входящее событие
type InEvent struct {
	Type string `json:"type"`
	With string `json:"with"`
}

// OutEvent исходящее событие хаба. События переписки уходят как model.Event
type OutEvent struct {
	Type    string `json:"type"`
	With    string `json:"with,omitempty"`
	Message string `json:"message,omitempty"`
}

// PresenceTracker учитывает открытые соединения пользователей
type PresenceTracker interface {
	AddConnection(ctx context.Context, userID, connID string) error
	RemoveConnection(ctx context.Context, userID, connID string) (int64, error)
	Refresh(ctx context.Context, userID string) error
}

// Metrics метрики
type Metrics struct {
	EventsDelivered atomic.Int64
	EventsDropped   atomic.Int64
	Connections     atomic.Int64
	Errors          atomic.Int64
}

// HubStats статистика хаба
type HubStats struct {
	Topics           int   `json:"topics"`
	Connections      int64 `json:"connections"`
	EventsDelivered  int64 `json:"eventsDelivered"`
	EventsDropped    int64 `json:"eventsDropped"`
	ConnectionErrors int64 `json:"connectionErrors"`
}

// Hub рассылает события переписки подписанным соединениям.
// Хаб только получает события, запись идет через сервис сообщений.
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*Client]struct{}
	clients  map[*Client]struct{}
	presence PresenceTracker
	metrics  Metrics
}

// NewHub создает новый хаб. presence может быть nil
func NewHub(presence PresenceTracker) *Hub {
	return &Hub{
		topics:   make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]struct{}),
		presence: presence,
	}
}

// Publish доставляет событие локальным подписчикам. Так хаб служит
// публикатором, когда брокер не настроен
func (h *Hub) Publish(ctx context.Context, event model.Event) error {
	h.Dispatch(event)
	return nil
}

// Dispatch рассылает событие подписчикам его переписки
func (h *Hub) Dispatch(event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("hub: failed to marshal %s event: %v", event.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.topics[event.ConversationKey] {
		if client.SendRaw(data) {
			h.metrics.EventsDelivered.Inc()
		} else {
			h.metrics.EventsDropped.Inc()
		}
	}
}

// Register регистрирует клиента и отмечает пользователя онлайн
func (h *Hub) Register(ctx context.Context, client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.metrics.Connections.Inc()

	if h.presence != nil {
		if err := h.presence.AddConnection(ctx, client.UserID, client.ID); err != nil {
			log.Printf("hub: failed to record presence for %s: %v", client.UserID, err)
		}
	}
}

// Unregister отключает клиента от всех переписок
func (h *Hub) Unregister(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	for key := range client.topics {
		h.removeFromTopic(key, client)
	}
	client.topics = nil
	h.mu.Unlock()
	h.metrics.Connections.Dec()

	if h.presence != nil {
		if _, err := h.presence.RemoveConnection(ctx, client.UserID, client.ID); err != nil {
			log.Printf("hub: failed to clear presence for %s: %v", client.UserID, err)
		}
	}
}

// Subscribe подписывает клиента на переписку с пользователем with
func (h *Hub) Subscribe(client *Client, with string) (string, error) {
	if with == "" || with == client.UserID {
		return "", ErrInvalidTopic
	}
	key := model.ConversationKey(client.UserID, with)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return "", ErrInvalidTopic
	}
	subs, ok := h.topics[key]
	if !ok {
		subs = make(map[*Client]struct{})
		h.topics[key] = subs
	}
	subs[client] = struct{}{}
	client.topics[key] = struct{}{}
	return key, nil
}

// Unsubscribe отписывает клиента от переписки
func (h *Hub) Unsubscribe(client *Client, with string) {
	key := model.ConversationKey(client.UserID, with)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromTopic(key, client)
	delete(client.topics, key)
}

func (h *Hub) removeFromTopic(key string, client *Client) {
	subs, ok := h.topics[key]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.topics, key)
	}
}

func (h *Hub) refreshPresence(ctx context.Context, client *Client) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Refresh(ctx, client.UserID); err != nil {
		log.Printf("hub: failed to refresh presence for %s: %v", client.UserID, err)
	}
}

// handleIncoming обрабатывает управляющий фрейм клиента
func (h *Hub) handleIncoming(client *Client, ev InEvent) {
	if !client.CheckRateLimit() {
		client.SendJSON(OutEvent{Type: FrameError, Message: "too many requests"})
		return
	}

	switch ev.Type {
	case FrameSubscribe:
		if _, err := h.Subscribe(client, ev.With); err != nil {
			client.SendJSON(OutEvent{Type: FrameError, With: ev.With, Message: err.Error()})
			return
		}
		client.SendJSON(OutEvent{Type: FrameSubscribed, With: ev.With})
	case FrameUnsubscribe:
		h.Unsubscribe(client, ev.With)
	default:
		client.SendJSON(OutEvent{Type: FrameError, Message: "unknown frame type"})
	}
}

// Stats возвращает статистику хаба
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	topics := len(h.topics)
	h.mu.RUnlock()

	return HubStats{
		Topics:           topics,
		Connections:      h.metrics.Connections.Load(),
		EventsDelivered:  h.metrics.EventsDelivered.Load(),
		EventsDropped:    h.metrics.EventsDropped.Load(),
		ConnectionErrors: h.metrics.Errors.Load(),
	}
}

// Shutdown закрывает все соединения
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
