package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/korzhev/alert_dispatch_system/internal/models"
	"github.com/korzhev/alert_dispatch_system/internal/webhook"
	"github.com/sirupsen/logrus"
)

// TimelineService определяет контракт журнала этапов реагирования на тревогу
type TimelineService interface {
	RecordStage(ctx context.Context, alertID uuid.UUID, stage, operatorID, operatorName, notes string) (*models.ResponseEvent, error)
	ListTimeline(ctx context.Context, alertID uuid.UUID) ([]*models.ResponseEvent, error)
}

type timelineService struct {
	alerts   AlertRepository
	teams    TeamRepository
	events   EventRepository
	dispatch DispatchService
	logger   *logrus.Logger
	webhooks webhook.WebhookPublisher
}

func NewTimelineService(alerts AlertRepository, teams TeamRepository, events EventRepository, dispatch DispatchService, logger *logrus.Logger, webhooks webhook.WebhookPublisher) TimelineService {
	return &timelineService{
		alerts:   alerts,
		teams:    teams,
		events:   events,
		dispatch: dispatch,
		logger:   logger,
		webhooks: webhooks,
	}
}

// RecordStage фиксирует этап реагирования для тревоги. Этапы образуют строгий
// порядок acknowledged < dispatched < arrived < resolved: этап отклоняется,
// пока не записаны все предыдущие (ErrStageOutOfOrder), и не более одного
// события на этап (ErrStageAlreadyRecorded). При записи resolved тревога
// переводится в resolved, назначенная команда безусловно освобождается
// (оператор, закрывший инцидент, всегда важнее любых проверок ожидаемого
// состояния), и синхронно запускается каскад по backlog-у.
func (s *timelineService) RecordStage(ctx context.Context, alertID uuid.UUID, stage, operatorID, operatorName, notes string) (*models.ResponseEvent, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "timeline",
		"method":   "RecordStage",
		"alert_id": alertID,
		"stage":    stage,
	})
	log.Info("Recording response stage")

	stageIdx := models.StageIndex(stage)
	if stageIdx < 0 {
		return nil, fmt.Errorf("service: unknown stage %q: %w", stage, ErrStageOutOfOrder)
	}

	alert, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		log.WithError(err).Warn("Failed to get alert for stage recording")
		return nil, fmt.Errorf("service: could not get alert: %w", err)
	}

	recorded, err := s.events.ListByAlert(ctx, alertID)
	if err != nil {
		log.WithError(err).Error("Failed to list recorded stages")
		return nil, fmt.Errorf("service: could not list response events: %w", err)
	}

	present := make(map[string]bool, len(recorded))
	for _, event := range recorded {
		present[event.Stage] = true
	}

	if present[stage] {
		log.Info("Stage already recorded, rejecting duplicate")
		return nil, fmt.Errorf("service: stage %s: %w", stage, ErrStageAlreadyRecorded)
	}
	for _, prior := range models.StageOrder[:stageIdx] {
		if !present[prior] {
			log.WithField("missing_stage", prior).Info("Predecessor stage missing, rejecting")
			return nil, fmt.Errorf("service: stage %s requires %s first: %w", stage, prior, ErrStageOutOfOrder)
		}
	}

	event := &models.ResponseEvent{
		AlertID:      alertID,
		OperatorID:   operatorID,
		OperatorName: operatorName,
		Stage:        stage,
		Notes:        notes,
	}
	// Гонку двух операторов за один этап разрешает уникальный индекс на стороне
	// записи: второй вызов получает ErrStageAlreadyRecorded
	if err := s.events.Create(ctx, event); err != nil {
		if errors.Is(err, ErrStageAlreadyRecorded) {
			log.Info("Lost the race for stage recording")
			return nil, fmt.Errorf("service: %w", err)
		}
		log.WithError(err).Error("Failed to create response event")
		return nil, fmt.Errorf("service: could not record stage: %w", err)
	}

	if stage == models.StageResolved {
		s.finalizeResolution(ctx, alert, log)
	}

	log.Info("Response stage recorded")
	return event, nil
}

// finalizeResolution выполняет побочные эффекты терминального этапа: перевод
// тревоги в resolved, освобождение команды и каскадный прогон backlog-а.
// Сбои здесь логируются, но не отменяют уже записанный этап - недоделанное
// доведет до конца reconciliation sweep.
func (s *timelineService) finalizeResolution(ctx context.Context, alert *models.Alert, log *logrus.Entry) {
	now := time.Now()

	if err := s.alerts.MarkResolved(ctx, alert.ID); err != nil {
		log.WithError(err).Error("Failed to mark alert resolved")
	}
	if err := s.alerts.InvalidateAlertCache(ctx, alert.ID); err != nil {
		log.WithError(err).Warn("Failed to invalidate alert cache after resolution")
	}

	if alert.AssignedTeamID != nil {
		// Безусловное освобождение: разрешение инцидента оператором важнее
		// любых параллельных изменений статуса команды
		if err := s.teams.UpdateTeamStatus(ctx, *alert.AssignedTeamID, models.TeamStatusAvailable, nil, now); err != nil {
			log.WithError(err).WithField("team_id", *alert.AssignedTeamID).Warn("Failed to release assigned team")
		}
	}

	if err := s.webhooks.Publish(ctx, webhook.DispatchEvent{
		Type:      webhook.EventAlertResolved,
		AlertID:   alert.ID,
		TeamID:    alert.AssignedTeamID,
		Stage:     models.StageResolved,
		Timestamp: now,
	}); err != nil {
		log.WithError(err).Warn("Failed to publish alert-resolved webhook event")
	}

	// Каскад: освободившаяся команда сразу пробуется на текущий backlog.
	// Вызов синхронный, чтобы исход каскада был детерминированно наблюдаем.
	assigned, err := s.dispatch.DrainBacklog(ctx)
	if err != nil {
		log.WithError(err).Warn("Backlog cascade after resolution failed")
		return
	}
	log.WithField("cascade_assigned", assigned).Info("Backlog cascade after resolution finished")
}

// ListTimeline возвращает журнал этапов тревоги, старые записи первыми
func (s *timelineService) ListTimeline(ctx context.Context, alertID uuid.UUID) ([]*models.ResponseEvent, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "timeline",
		"method":   "ListTimeline",
		"alert_id": alertID,
	})

	if _, err := s.alerts.GetByID(ctx, alertID); err != nil {
		log.WithError(err).Warn("Failed to get alert for timeline listing")
		return nil, fmt.Errorf("service: could not get alert: %w", err)
	}

	events, err := s.events.ListByAlert(ctx, alertID)
	if err != nil {
		log.WithError(err).Error("Failed to list response events")
		return nil, fmt.Errorf("service: could not list response events: %w", err)
	}
	return events, nil
}
