package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind names a cross-tab session signal
type EventKind string

const (
	EventLogin   EventKind = "login"
	EventLogout  EventKind = "logout"
	EventChanged EventKind = "changed"
)

// Event says a user's session state changed somewhere
type Event struct {
	Kind      EventKind `json:"kind"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Origin    string    `json:"origin"`
}

// Relay moves events between server instances
type Relay interface {
	Publish(ctx context.Context, ev Event) error
	// Run delivers events from other publishers until ctx ends
	Run(ctx context.Context, deliver func(Event)) error
}

func newOrigin() string { return uuid.NewString() }

// Hub fans session signals out to every subscribed view of a user
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe returns a channel signalled on every change for userID and a
// func that removes the subscription
func (h *Hub) Subscribe(userID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	set := h.subs[userID]
	if set == nil {
		set = make(map[chan struct{}]struct{})
		h.subs[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
		})
	}
}

// Notify signals every subscriber of userID. Signals coalesce: a subscriber
// that has not drained the previous one sees a single pending signal.
func (h *Hub) Notify(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers counts live subscriptions for userID
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
