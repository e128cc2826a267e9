// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"policy-service/internal/domain/policy"
	wstypes "policy-service/internal/domain/websocket"
	"policy-service/internal/metrics"

	"go.uber.org/zap"
)

type Hub struct {
	// Registered clients
	clients map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	// Handler registry for modular message handling
	handlerRegistry *HandlerRegistry

	metrics *metrics.Metrics
	logger  *zap.Logger

	// Closed when Run returns
	done chan struct{}
}

type BroadcastMessage struct {
	Channel wstypes.ChannelType
	Message *wstypes.WSMessage
}

func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		clients:         make(map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		broadcast:       make(chan *BroadcastMessage, 256),
		handlerRegistry: NewHandlerRegistry(),
		metrics:         m,
		logger:          logger,
		done:            make(chan struct{}),
	}
}

// RegisterHandler registers a message handler
func (h *Hub) RegisterHandler(handler MessageHandler) {
	h.handlerRegistry.Register(handler)
}

// HandleClientMessage routes msg to its registered handler. It reports false when no
// handler claims the message type.
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) (bool, error) {
	handler, exists := h.handlerRegistry.GetHandler(msg.Type)
	if !exists {
		return false, nil
	}
	return true, handler.HandleMessage(ctx, client, msg)
}

// Register adds a client to the hub. It fails once the hub has stopped.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.WebsocketClients.Set(float64(total))
	client.logger.Info("websocket client connected", zap.Int("total", total))

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, wstypes.ConnectedData{
		ClientID: client.id,
		Channels: client.channels(),
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, exists := h.clients[client]
	if exists {
		delete(h.clients, client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !exists {
		return
	}

	client.Close()
	h.metrics.WebsocketClients.Set(float64(total))
	client.logger.Info("websocket client disconnected", zap.Int("total", total))
}

// BroadcastMessage delivers msg to every client subscribed to its channel
func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.IsSubscribed(msg.Channel) {
			client.SendMessage(msg.Message)
		}
	}
}

// Broadcast queues msg for delivery on channel. It never blocks; when the queue is
// full or the hub has stopped the message is dropped.
func (h *Hub) Broadcast(channel wstypes.ChannelType, msg *wstypes.WSMessage) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- &BroadcastMessage{Channel: channel, Message: msg}:
		return nil
	default:
		h.logger.Warn("websocket broadcast queue full, dropping message", zap.String("type", string(msg.Type)))
		return nil
	}
}

// BroadcastPolicyEvent pushes a committed policy change to the policies channel
func (h *Hub) BroadcastPolicyEvent(evt *policy.Event) error {
	var eventType wstypes.EventType
	switch evt.Type {
	case policy.EventCreated:
		eventType = wstypes.EventTypePolicyCreated
	case policy.EventCancelled:
		eventType = wstypes.EventTypePolicyCancelled
	default:
		return ErrUnsupportedType
	}

	msg := wstypes.NewMessage(eventType, evt.Policy)
	msg.ID = evt.ID
	msg.Timestamp = evt.OccurredAt
	return h.Broadcast(wstypes.ChannelPolicies, msg)
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	h.metrics.WebsocketClients.Set(0)
	h.logger.Info("websocket hub stopped")
}
