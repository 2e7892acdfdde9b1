package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	webhookQueueKey = "dispatch_webhook_events"
)

// Типы событий диспетчеризации, доставляемых внешним потребителям
const (
	EventTeamAssigned  = "team_assigned"
	EventTeamReleased  = "team_released"
	EventAlertResolved = "alert_resolved"
)

// DispatchEvent - структура для данных вебхука о событии диспетчеризации
type DispatchEvent struct {
	Type      string     `json:"type"`
	AlertID   uuid.UUID  `json:"alert_id"`
	TeamID    *uuid.UUID `json:"team_id,omitempty"`
	TeamName  string     `json:"team_name,omitempty"`
	Stage     string     `json:"stage,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event DispatchEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event DispatchEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// Используем LPUSH для добавления события в левую часть списка (очереди)
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}
