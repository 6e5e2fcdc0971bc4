package ws

import (
	"encoding/json"
	"log"

	"color-grade-agent/internal/model"
)

const eventQueue = 256

type event struct {
	typ  string
	data []byte
}

// Hub fans events out to dashboard clients. Each client may restrict itself
// to a set of event types. Events of the replayed types are remembered, and
// the latest of each is sent to clients as they join.
type Hub struct {
	clients map[*Client]struct{}
	replay  map[string]bool
	latest  map[string][]byte
	events  chan event
	join    chan *Client
	leave   chan *Client
	done    chan struct{}
}

// NewHub returns a hub that replays the last event of each type in replay to
// newly joined clients.
func NewHub(replay ...string) *Hub {
	h := &Hub{
		clients: map[*Client]struct{}{},
		replay:  map[string]bool{},
		latest:  map[string][]byte{},
		events:  make(chan event, eventQueue),
		join:    make(chan *Client),
		leave:   make(chan *Client),
		done:    make(chan struct{}),
	}
	for _, typ := range replay {
		h.replay[typ] = true
	}
	return h
}

func (h *Hub) Register(c *Client) {
	select {
	case h.join <- c:
	case <-h.done:
		close(c.send)
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.join:
			h.clients[c] = struct{}{}
			for typ, data := range h.latest {
				if c.wants(typ) {
					h.deliver(c, data)
				}
			}
		case c := <-h.leave:
			h.drop(c)
		case evt := <-h.events:
			if h.replay[evt.typ] {
				h.latest[evt.typ] = evt.data
			}
			for c := range h.clients {
				if c.wants(evt.typ) {
					h.deliver(c, evt.data)
				}
			}
		case <-h.done:
			for c := range h.clients {
				h.drop(c)
			}
			return
		}
	}
}

// deliver queues data for c, disconnecting c if its queue is full.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("ws client lagging, disconnecting")
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Stop ends Run and closes every client. It must be called at most once.
func (h *Hub) Stop() {
	close(h.done)
}

// BroadcastEvent queues evt for the clients that want its type. Events are
// dropped, with a log line, when the queue is full.
func (h *Hub) BroadcastEvent(evt model.Event) {
	b, err := json.Marshal(evt)
	if err != nil {
		log.Printf("marshal ws event: %v", err)
		return
	}
	select {
	case h.events <- event{typ: evt.Type, data: b}:
	default:
		log.Printf("ws event queue full, dropping %s", evt.Type)
	}
}
