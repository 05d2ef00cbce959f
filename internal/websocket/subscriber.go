package websocket

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/proxygrid/proxygrid/internal/config"
	"github.com/proxygrid/proxygrid/internal/notify"
)

// subscriberRetryDelay throttles the receive loop when Redis is down.
const subscriberRetryDelay = time.Second

// RedisMessage represents a fan-out message from Redis
type RedisMessage struct {
	RoomID string `json:"roomId"`
	Data   struct {
		Event   string      `json:"event"`
		Payload interface{} `json:"payload"`
	} `json:"data"`
}

// StartRedisSubscriber relays change notifications published by any
// API instance to the operators connected to this one.
func StartRedisSubscriber(cfg *config.Config) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisHost + ":" + cfg.RedisPort,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[WebSocket] Failed to connect to Redis for subscriber: %v", err)
		return
	}

	pubsub := client.Subscribe(ctx, notify.ChannelWebSocket)
	defer pubsub.Close()

	log.Printf("[WebSocket] Subscribed to Redis channel: %s", notify.ChannelWebSocket)

	hub := GetHub()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			log.Printf("[WebSocket] Error receiving Redis message: %v", err)
			time.Sleep(subscriberRetryDelay)
			continue
		}
		relayPayload(hub, msg.Payload)
	}
}

// relayPayload parses one fan-out message and forwards it to the room
// it addresses. Reports whether anything was broadcast.
func relayPayload(hub *Hub, payload string) bool {
	var msg RedisMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		log.Printf("[WebSocket] Error parsing Redis message: %v", err)
		return false
	}
	if msg.RoomID == "" || msg.Data.Event == "" {
		return false
	}
	hub.BroadcastToRoom(msg.RoomID, msg.Data.Event, msg.Data.Payload)
	return true
}
