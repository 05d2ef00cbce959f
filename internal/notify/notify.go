package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Redis channels consumed by the config-snapshot builder and the
// websocket fan-out.
const (
	ChannelModuleConfig = "module:config"
	ChannelModuleRoutes = "module:routes"
	ChannelDeployments  = "deployment:changed"
	ChannelWebSocket    = "websocket"
)

// Publisher emits post-commit change notifications over Redis. All
// publishes are best-effort: failures are logged and swallowed, since
// the state change they describe has already committed.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// ModuleChanged signals that a module's configuration or desired state
// changed and the config snapshot should be rebuilt.
func (p *Publisher) ModuleChanged(ctx context.Context, moduleID string) {
	p.publish(ctx, ChannelModuleConfig, map[string]string{"moduleId": moduleID})
	p.broadcast(ctx, moduleID, "module.updated", map[string]string{"moduleId": moduleID})
}

// RoutesChanged signals that a module's route table changed.
func (p *Publisher) RoutesChanged(ctx context.Context, moduleID string) {
	p.publish(ctx, ChannelModuleRoutes, map[string]string{"moduleId": moduleID})
	p.broadcast(ctx, moduleID, "routes.updated", map[string]string{"moduleId": moduleID})
}

// DeploymentChanged signals a deployment lifecycle event (created,
// promoted, rolled back, updated).
func (p *Publisher) DeploymentChanged(ctx context.Context, moduleID, deploymentID, event string) {
	payload := map[string]string{
		"moduleId":     moduleID,
		"deploymentId": deploymentID,
		"event":        event,
	}
	p.publish(ctx, ChannelDeployments, payload)
	p.broadcast(ctx, moduleID, event, payload)
}

func (p *Publisher) publish(ctx context.Context, channel string, payload interface{}) {
	if p == nil || p.client == nil {
		return
	}
	message, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Notify] Error marshaling message for %s: %v", channel, err)
		return
	}
	if err := p.client.Publish(ctx, channel, message).Err(); err != nil {
		log.Printf("[Notify] Error publishing to %s: %v", channel, err)
	}
}

// broadcast routes an event to the websocket hub (possibly on another
// instance) through the shared websocket channel, room-keyed by module.
func (p *Publisher) broadcast(ctx context.Context, moduleID, event string, payload interface{}) {
	p.publish(ctx, ChannelWebSocket, map[string]interface{}{
		"roomId": "module:" + moduleID,
		"data": map[string]interface{}{
			"event":   event,
			"payload": payload,
		},
	})
}
