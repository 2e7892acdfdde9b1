package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/korzhev/alert_dispatch_system/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	alertFeedQueueKey = "alert_created_events"
)

// AlertCreatedEvent - запись подписной ленты о появлении новой тревоги
type AlertCreatedEvent struct {
	AlertID   uuid.UUID `json:"alert_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisAlertFeedPublisher публикует события создания тревог в очередь Redis,
// реализует service.AlertFeedPublisher
type RedisAlertFeedPublisher struct {
	redisClient *redis.Client
}

// NewRedisAlertFeedPublisher создает новый RedisAlertFeedPublisher
func NewRedisAlertFeedPublisher(client *redis.Client) *RedisAlertFeedPublisher {
	return &RedisAlertFeedPublisher{
		redisClient: client,
	}
}

// PublishAlertCreated добавляет событие о новой тревоге в очередь подписки
func (p *RedisAlertFeedPublisher) PublishAlertCreated(ctx context.Context, alert *models.Alert) error {
	event := AlertCreatedEvent{
		AlertID:   alert.ID,
		Latitude:  alert.Latitude,
		Longitude: alert.Longitude,
		CreatedAt: alert.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert-created event: %w", err)
	}

	if err := p.redisClient.LPush(ctx, alertFeedQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alert-created event to Redis: %w", err)
	}
	return nil
}
