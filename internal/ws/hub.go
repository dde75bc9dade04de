package ws

import (
	"fmt"
	"sort"
	"sync"
)

type Subscriber struct {
	SessionID string
	UserID    string
	Portfolio bool
	AssetIDs  map[string]struct{}
}

// Subscriptions is a point-in-time copy of one session's subscriptions.
type Subscriptions struct {
	UserID    string
	Portfolio bool
	AssetIDs  []string
}

type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]*Subscriber)}
}

func (h *Hub) Add(sessionID, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sessionID == "" || userID == "" {
		return fmt.Errorf("sessionID and userID are required")
	}
	if _, ok := h.subscribers[sessionID]; ok {
		return fmt.Errorf("session already exists")
	}
	h.subscribers[sessionID] = &Subscriber{
		SessionID: sessionID,
		UserID:    userID,
		AssetIDs:  map[string]struct{}{},
	}
	return nil
}

func (h *Hub) Remove(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, sessionID)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) SetPortfolio(sessionID string, subscribed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[sessionID]; ok {
		sub.Portfolio = subscribed
	}
}

func (h *Hub) SubscribeAsset(sessionID, assetID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[sessionID]; ok {
		sub.AssetIDs[assetID] = struct{}{}
	}
}

func (h *Hub) UnsubscribeAsset(sessionID, assetID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[sessionID]; ok {
		delete(sub.AssetIDs, assetID)
	}
}

// Snapshot returns the session's subscriptions with asset ids sorted.
func (h *Hub) Snapshot(sessionID string) (Subscriptions, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subscribers[sessionID]
	if !ok {
		return Subscriptions{}, false
	}
	assetIDs := make([]string, 0, len(sub.AssetIDs))
	for assetID := range sub.AssetIDs {
		assetIDs = append(assetIDs, assetID)
	}
	sort.Strings(assetIDs)
	return Subscriptions{UserID: sub.UserID, Portfolio: sub.Portfolio, AssetIDs: assetIDs}, true
}
