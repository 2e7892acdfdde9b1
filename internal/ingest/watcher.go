package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/korzhev/alert_dispatch_system/internal/config"
	"github.com/korzhev/alert_dispatch_system/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// AlertWatcher слушает подписную очередь событий создания тревог и для каждой
// новой pending-тревоги без команды запускает матчинг и commit. Несколько
// экземпляров Watcher-а могут работать параллельно: корректность обеспечивает
// перечитывание тревоги и условные записи в Committer-е, а не этот цикл.
type AlertWatcher struct {
	redisClient *redis.Client
	dispatch    service.DispatchService
	logger      *logrus.Logger
	cfg         *config.Config

	// Best-effort дедупликация в рамках жизни процесса. Только совет, не
	// механизм корректности: множество не переживает рестарт и не видно
	// другим экземплярам.
	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
}

// NewAlertWatcher создает новый AlertWatcher
func NewAlertWatcher(redisClient *redis.Client, dispatch service.DispatchService, logger *logrus.Logger, cfg *config.Config) *AlertWatcher {
	return &AlertWatcher{
		redisClient: redisClient,
		dispatch:    dispatch,
		logger:      logger,
		cfg:         cfg,
		seen:        make(map[uuid.UUID]struct{}),
	}
}

// markSeen отмечает тревогу обработанной; false, если она уже была отмечена
func (w *AlertWatcher) markSeen(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[id]; ok {
		return false
	}
	w.seen[id] = struct{}{}
	return true
}

// forget снимает отметку, чтобы sweep или повторное событие могли попробовать снова
func (w *AlertWatcher) forget(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.seen, id)
}

// Start запускает горутину, обрабатывающую очередь событий создания тревог
func (w *AlertWatcher) Start(ctx context.Context) {
	w.logger.Info("Starting alert watcher...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping alert watcher.")
				return
			default:
				result, err := w.redisClient.BRPop(ctx, 0, alertFeedQueueKey).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) {
						continue // Контекст отменен, но не ошибка Redis
					}
					w.logger.WithError(err).Error("Failed to pop alert-created event from Redis")
					time.Sleep(time.Second) // Ждем перед повторной попыткой
					continue
				}

				// result[0] - ключ, result[1] - значение
				var event AlertCreatedEvent
				if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
					w.logger.WithError(err).Error("Failed to unmarshal alert-created event from Redis")
					continue
				}

				w.processAlertCreated(ctx, event)
			}
		}
	}()
}

func (w *AlertWatcher) processAlertCreated(ctx context.Context, event AlertCreatedEvent) {
	log := w.logger.WithField("alert_id", event.AlertID)

	if !w.markSeen(event.AlertID) {
		log.Debug("Alert already processed in this watcher, skipping")
		return
	}

	_, err := w.dispatch.DispatchAlert(ctx, event.AlertID)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, service.ErrAlreadyAssigned):
		// Другой экземпляр успел раньше - это штатно
		log.Debug("Alert was assigned elsewhere")
	case errors.Is(err, service.ErrNoTeamAvailable):
		// Ожидаемое восстановимое состояние: тревога остается pending, ее
		// подберет каскад при освобождении команды или периодический sweep
		log.Info("No team available, alert left pending")
		w.forget(event.AlertID)
	case errors.Is(err, service.ErrNotFound):
		log.Warn("Alert vanished before dispatch, abandoning attempt")
	default:
		// Повторы внутри DispatchAlert уже исчерпаны; тревога остается
		// pending и видима - это всегда безопаснее молчаливой потери
		log.WithError(err).Warn("Failed to dispatch alert, leaving it for reconciliation")
		w.forget(event.AlertID)
	}
}
