package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/whackboard/internal/domain"
)

// Message types
const (
	MessageTypeLeaderboardUpdate = "leaderboard_update"
	MessageTypeProfileUpdate     = "profile_update"
	MessageTypeSubscribe         = "subscribe"
	MessageTypeUnsubscribe       = "unsubscribe"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Scope     string      `json:"scope,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// LeaderboardUpdate contains a scoped leaderboard snapshot for broadcast
type LeaderboardUpdate struct {
	Scope        domain.LeaderboardScope `json:"scope"`
	Month        string                  `json:"month,omitempty"`
	Entries      []domain.RankedEntry    `json:"entries"`
	TotalPlayers int64                   `json:"total_players"`
}

// Hub maintains the set of active clients and broadcasts messages. Clients
// subscribe to a leaderboard scope (all_time or monthly).
type Hub struct {
	// Registered clients by scope
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound messages from clients
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	scope  string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all scope subscriptions
				for scope, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, scope)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.scope]; !ok {
				h.clients[req.scope] = make(map[*Client]bool)
			}
			h.clients[req.scope][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "scope", req.scope)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.scope]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.scope)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "scope", req.scope)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all subscribed clients
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// If message has a scope, only send to subscribed clients
	if message.Scope != "" {
		if clients, ok := h.clients[message.Scope]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		// Broadcast to all clients
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// BroadcastLeaderboardUpdate sends a scoped leaderboard snapshot to subscribers
func (h *Hub) BroadcastLeaderboardUpdate(scope domain.LeaderboardScope, month string, entries []domain.RankedEntry, totalPlayers int64) {
	message := &Message{
		Type:  MessageTypeLeaderboardUpdate,
		Scope: string(scope),
		Data: LeaderboardUpdate{
			Scope:        scope,
			Month:        month,
			Entries:      entries,
			TotalPlayers: totalPlayers,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastProfileUpdate sends a post-mutation profile to all clients
func (h *Hub) BroadcastProfileUpdate(profile *domain.Profile) {
	message := &Message{
		Type:      MessageTypeProfileUpdate,
		Data:      profile,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a scope subscription
func (h *Hub) Subscribe(client *Client, scope string) {
	h.subscribe <- &subscriptionRequest{
		client: client,
		scope:  scope,
	}
}

// Unsubscribe removes a client from a scope subscription
func (h *Hub) Unsubscribe(client *Client, scope string) {
	h.unsubscribe <- &subscriptionRequest{
		client: client,
		scope:  scope,
	}
}

// GetSubscriberCount returns the number of subscribers for a scope
func (h *Hub) GetSubscriberCount(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[scope]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
