package ws

import (
	"encoding/json"
	"log"
	"sync"

	"color-grade-agent/internal/model"
	"github.com/gorilla/websocket"
)

// JobHub delivers progress events to clients subscribed to a single batch
// job.
type JobHub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewJobHub() *JobHub {
	return &JobHub{clients: map[string]map[*Client]struct{}{}}
}

// Subscribe attaches conn to jobID. The returned client is removed from the
// hub when its ReadPump exits.
func (h *JobHub) Subscribe(jobID string, conn *websocket.Conn) *Client {
	var c *Client
	c = newClient(conn, func() { h.Unsubscribe(jobID, c) })
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[jobID]; !ok {
		h.clients[jobID] = map[*Client]struct{}{}
	}
	h.clients[jobID][c] = struct{}{}
	return c
}

func (h *JobHub) Unsubscribe(jobID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(jobID, c)
}

func (h *JobHub) removeLocked(jobID string, c *Client) {
	m, ok := h.clients[jobID]
	if !ok {
		return
	}
	if _, exist := m[c]; exist {
		delete(m, c)
		close(c.send)
	}
	if len(m) == 0 {
		delete(h.clients, jobID)
	}
}

// Subscribers returns how many clients watch jobID.
func (h *JobHub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

// Publish sends evt to every subscriber of jobID. Slow subscribers are
// dropped.
func (h *JobHub) Publish(jobID string, evt model.Event) {
	b, err := json.Marshal(evt)
	if err != nil {
		log.Printf("marshal job event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[jobID] {
		select {
		case c.send <- b:
		default:
			h.removeLocked(jobID, c)
		}
	}
}

// Finish closes every subscription to jobID after queued events drain.
func (h *JobHub) Finish(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[jobID] {
		h.removeLocked(jobID, c)
	}
}
