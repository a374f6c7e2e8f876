package main

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 32
)

// client is one browser connection with its own outbound queue, so a slow
// reader never blocks the broadcast loop.
type client struct {
	conn *websocket.Conn
	send chan UtteranceEvent
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(ev); err != nil {
			log.Printf("Write error: %v", err)
			return
		}
	}
}

// Hub fans utterances out to connected clients and keeps the most recent
// ones for clients that connect later.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	recent  []UtteranceEvent
	keep    int
}

func newHub(keep int) *Hub {
	return &Hub{clients: make(map[*client]struct{}), keep: keep}
}

// add registers conn and replays the recent utterances to it.
func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan UtteranceEvent, sendBuffer+h.keep)}

	h.mu.Lock()
	for _, ev := range h.recent {
		c.send <- ev
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	go c.writeLoop()
	log.Printf("Client connected. Total: %d", n)
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("Client disconnected. Total: %d", n)
}

func (h *Hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// publish queues ev for every client. Clients whose queue is full are
// dropped.
func (h *Hub) publish(ev UtteranceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent = append(h.recent, ev)
	if len(h.recent) > h.keep {
		h.recent = h.recent[len(h.recent)-h.keep:]
	}

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			log.Printf("Dropping slow client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}
