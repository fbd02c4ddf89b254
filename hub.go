package main

import "encoding/json"

// signal is the lightweight refresh hint pushed to connected views. It
// carries no message bodies; clients re-derive their view from the stores.
type signal struct {
	Kind string `json:"kind"`
}

// Hub maintains the set of active websocket clients and broadcasts
// refresh signals to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// notify broadcasts a refresh signal of the given kind.
func (h *Hub) notify(kind string) {
	data, err := json.Marshal(signal{Kind: kind})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}
