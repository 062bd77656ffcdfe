// Package livefeed pushes queue transitions to connected display boards
// over WebSocket. Each client watches one or more branches.
package livefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentaldesk/dental/internal/platform/events"
)

// sendBuffer is how many frames a slow client may fall behind before
// frames are dropped for it.
const sendBuffer = 64

// Message is what a client may send to change the branches it watches.
type Message struct {
	Action   string   `json:"action"` // "watch" or "unwatch"
	Branches []string `json:"branches"`
}

type Client struct {
	ID       string
	branches map[string]struct{}
	send     chan []byte
}

func newClient(branches ...string) *Client {
	c := &Client{
		ID:       uuid.NewString(),
		branches: make(map[string]struct{}, len(branches)),
		send:     make(chan []byte, sendBuffer),
	}
	for _, b := range branches {
		c.branches[b] = struct{}{}
	}
	return c
}

// Hub tracks connected clients by branch. It implements events.Publisher so
// it can sit next to the Kafka publisher behind events.Fanout.
type Hub struct {
	mu       sync.RWMutex
	watchers map[string]map[*Client]struct{}
	all      map[*Client]struct{}
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		watchers: make(map[string]map[*Client]struct{}),
		all:      make(map[*Client]struct{}),
		logger:   logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[c] = struct{}{}
	for b := range c.branches {
		h.add(b, c)
	}
}

// Unregister drops the client and closes its send channel, which ends its
// write loop. Unregistering twice is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregister(c)
}

func (h *Hub) unregister(c *Client) {
	if _, ok := h.all[c]; !ok {
		return
	}
	for b := range c.branches {
		h.remove(b, c)
	}
	delete(h.all, c)
	close(c.send)
}

func (h *Hub) Watch(c *Client, branches []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.all[c]; !ok {
		return
	}
	for _, b := range branches {
		c.branches[b] = struct{}{}
		h.add(b, c)
	}
}

func (h *Hub) Unwatch(c *Client, branches []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range branches {
		delete(c.branches, b)
		h.remove(b, c)
	}
}

func (h *Hub) add(branch string, c *Client) {
	if h.watchers[branch] == nil {
		h.watchers[branch] = make(map[*Client]struct{})
	}
	h.watchers[branch][c] = struct{}{}
}

func (h *Hub) remove(branch string, c *Client) {
	if set, ok := h.watchers[branch]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.watchers, branch)
		}
	}
}

func (h *Hub) process(c *Client, msg Message) {
	switch msg.Action {
	case "watch":
		h.Watch(c, msg.Branches)
	case "unwatch":
		h.Unwatch(c, msg.Branches)
	}
}

// Publish sends the event to every client watching its branch. A client
// whose buffer is full misses the frame.
func (h *Hub) Publish(_ context.Context, evt events.QueueEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode queue event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.watchers[evt.BranchID] {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn().Str("branch_id", evt.BranchID).Int("dropped", dropped).Msg("live feed clients too slow")
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.all {
		h.unregister(c)
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) WatcherCount(branch string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[branch])
}
