package websocket

import (
	"encoding/json"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/proxygrid/proxygrid/internal/config"
	"github.com/proxygrid/proxygrid/internal/middleware"
)

// UpgradeMiddleware rejects non-websocket requests and authenticates
// the operator before the upgrade
func UpgradeMiddleware(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return middleware.AuthMiddleware(config.Get())(c)
}

type clientMessage struct {
	Action   string `json:"action"`
	ModuleID string `json:"moduleId"`
}

// Handler runs one operator connection: clients subscribe to module
// rooms and receive deployment/route events until they disconnect.
func Handler(conn *websocket.Conn) {
	actorID, _ := conn.Locals("actorId").(string)

	client := &Client{
		Conn:    conn,
		ActorID: actorID,
		Rooms:   make(map[string]bool),
	}

	h := GetHub()
	h.Register(client)
	defer h.Unregister(client)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[WebSocket] Invalid message from %s: %v", actorID, err)
			continue
		}
		if msg.ModuleID == "" {
			continue
		}

		roomID := "module:" + msg.ModuleID
		switch msg.Action {
		case "subscribe":
			h.JoinRoom(client, roomID)
			_ = h.SendToClient(client, "subscribed", fiber.Map{"moduleId": msg.ModuleID})
		case "unsubscribe":
			h.LeaveRoom(client, roomID)
			_ = h.SendToClient(client, "unsubscribed", fiber.Map{"moduleId": msg.ModuleID})
		}
	}
}
