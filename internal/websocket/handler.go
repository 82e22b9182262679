package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches one operator dashboard connection to the hub.
func ServeWs(hub *Hub, c *websocket.Conn, businessID uuid.UUID) {
	client := &Client{Hub: hub, Conn: c, BusinessID: businessID, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
