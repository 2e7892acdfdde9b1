package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/korzhev/alert_dispatch_system/internal/config"
	"github.com/korzhev/alert_dispatch_system/internal/geo"
	"github.com/korzhev/alert_dispatch_system/internal/models"
	"github.com/korzhev/alert_dispatch_system/internal/webhook"
	"github.com/sirupsen/logrus"
)

// AlertRepository определяет контракт для работы с бд тревог
type AlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListAlerts(ctx context.Context, status string, assigned *bool) ([]*models.Alert, error)
	ListPendingUnassigned(ctx context.Context) ([]*models.Alert, error)
	BindTeam(ctx context.Context, alertID uuid.UUID, team *models.ResponseTeam, assignedAt time.Time) error
	MarkResolved(ctx context.Context, alertID uuid.UUID) error
	GetAlertFromCache(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	SetAlertCache(ctx context.Context, alert *models.Alert) error
	InvalidateAlertCache(ctx context.Context, id uuid.UUID) error
}

// TeamRepository определяет контракт реестра команд реагирования
type TeamRepository interface {
	Create(ctx context.Context, team *models.ResponseTeam) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ResponseTeam, error)
	ListTeams(ctx context.Context) ([]*models.ResponseTeam, error)
	UpdateTeamStatus(ctx context.Context, id uuid.UUID, newStatus string, expectedPrior *string, ts time.Time) error
	ListStuckBusy(ctx context.Context, grace time.Duration) ([]*models.ResponseTeam, error)
}

// EventRepository определяет контракт журнала этапов реагирования
type EventRepository interface {
	Create(ctx context.Context, event *models.ResponseEvent) error
	ListByAlert(ctx context.Context, alertID uuid.UUID) ([]*models.ResponseEvent, error)
}

// AlertFeedPublisher публикует событие о создании тревоги в подписную очередь,
// из которой Watcher запускает назначение. Создание тревоги никогда не
// блокируется назначением - оно асинхронно через очередь.
type AlertFeedPublisher interface {
	PublishAlertCreated(ctx context.Context, alert *models.Alert) error
}

// DispatchService определяет контракт движка назначения команд
type DispatchService interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListAlerts(ctx context.Context, status string, assigned *bool) ([]*models.Alert, error)
	DispatchAlert(ctx context.Context, alertID uuid.UUID) (*models.ResponseTeam, error)
	DrainBacklog(ctx context.Context) (int, error)
	ReleaseStuckTeams(ctx context.Context) (int, error)
	Sweep(ctx context.Context) (models.SweepResult, error)
}

type dispatchService struct {
	alerts   AlertRepository
	teams    TeamRepository
	logger   *logrus.Logger
	cfg      *config.Config
	feed     AlertFeedPublisher
	webhooks webhook.WebhookPublisher
}

func NewDispatchService(alerts AlertRepository, teams TeamRepository, logger *logrus.Logger, cfg *config.Config, feed AlertFeedPublisher, webhooks webhook.WebhookPublisher) DispatchService {
	return &dispatchService{
		alerts:   alerts,
		teams:    teams,
		logger:   logger,
		cfg:      cfg,
		feed:     feed,
		webhooks: webhooks,
	}
}

// MatchNearestTeam выбирает команду для тревоги по снимку реестра.
// Чистая функция: только доступные команды; среди попадающих в собственный
// радиус - ближайшая; при отсутствии таких - глобально ближайшая доступная
// (деградация с обслуживанием лучше, чем отказ). Равные расстояния разрешаются
// в пользу меньшего id для детерминизма. nil - доступных команд нет вовсе.
func MatchNearestTeam(alert *models.Alert, teams []*models.ResponseTeam) *models.ResponseTeam {
	var bestInRadius, bestOverall *models.ResponseTeam
	minInRadius, minOverall := 0.0, 0.0

	for _, team := range teams {
		if team.CurrentStatus != models.TeamStatusAvailable {
			continue
		}

		distance := geo.Distance(alert.Latitude, alert.Longitude, team.Latitude, team.Longitude)

		if bestOverall == nil || distance < minOverall ||
			(distance == minOverall && team.ID.String() < bestOverall.ID.String()) {
			bestOverall = team
			minOverall = distance
		}

		if distance <= team.ResponseRadius {
			if bestInRadius == nil || distance < minInRadius ||
				(distance == minInRadius && team.ID.String() < bestInRadius.ID.String()) {
				bestInRadius = team
				minInRadius = distance
			}
		}
	}

	if bestInRadius != nil {
		return bestInRadius
	}
	return bestOverall
}

// CreateAlert сохраняет новую тревогу и публикует событие в подписную очередь
func (s *dispatchService) CreateAlert(ctx context.Context, alert *models.Alert) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "dispatch",
		"method":   "CreateAlert",
		"reporter": alert.ReporterName,
	})
	log.Info("Registering a new alert")

	alert.Status = models.AlertStatusPending
	if err := s.alerts.Create(ctx, alert); err != nil {
		log.WithError(err).Error("Failed to create alert in repository")
		return fmt.Errorf("service: could not create alert: %w", err)
	}

	// Публикация в очередь - best effort: при сбое тревога остается pending
	// и будет подобрана reconciliation sweep
	if err := s.feed.PublishAlertCreated(ctx, alert); err != nil {
		log.WithError(err).Warn("Failed to publish alert-created event, sweep will pick the alert up")
	}

	log.WithField("alert_id", alert.ID).Info("Alert registered")
	return nil
}

// GetAlert получает тревогу по ID (сначала кэш, затем бд)
func (s *dispatchService) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "dispatch",
		"method":   "GetAlert",
		"alert_id": id,
	})

	cached, err := s.alerts.GetAlertFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read alert cache, falling back to database")
	}
	if cached != nil {
		return cached, nil
	}

	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to get alert from repository")
		return nil, fmt.Errorf("service: could not get alert: %w", err)
	}

	if err := s.alerts.SetAlertCache(ctx, alert); err != nil {
		log.WithError(err).Warn("Failed to cache alert")
	}
	return alert, nil
}

// ListAlerts возвращает тревоги по фильтрам; незанятый backlog всегда отличим
// от назначенных тревог
func (s *dispatchService) ListAlerts(ctx context.Context, status string, assigned *bool) ([]*models.Alert, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "dispatch",
		"method":  "ListAlerts",
		"status":  status,
	})

	alerts, err := s.alerts.ListAlerts(ctx, status, assigned)
	if err != nil {
		log.WithError(err).Error("Failed to list alerts from repository")
		return nil, fmt.Errorf("service: could not list alerts: %w", err)
	}
	return alerts, nil
}

// DispatchAlert выполняет полный цикл матчинг+commit для одной тревоги с
// ограниченным числом повторов. При ErrStatusConflict (команду успели занять)
// матчинг повторяется по свежему снимку с исключением проигранной команды.
// Исчерпание повторов оставляет тревогу pending для reconciliation sweep.
func (s *dispatchService) DispatchAlert(ctx context.Context, alertID uuid.UUID) (*models.ResponseTeam, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "dispatch",
		"method":   "DispatchAlert",
		"alert_id": alertID,
	})
	log.Info("Dispatching alert")

	excluded := make(map[uuid.UUID]struct{})
	delay := s.cfg.DispatchRetryBaseDelay

	for attempt := 0; attempt <= s.cfg.DispatchMaxRetries; attempt++ {
		// Авторитетная проверка идемпотентности: перечитываем тревогу из
		// хранилища непосредственно перед commit, независимо от любых
		// in-memory дедупликаций Watcher-а
		alert, err := s.alerts.GetByID(ctx, alertID)
		if err != nil {
			log.WithError(err).Warn("Failed to re-read alert before commit")
			return nil, fmt.Errorf("service: could not re-read alert: %w", err)
		}
		if alert.IsAssigned() {
			log.Info("Alert is already assigned, nothing to do")
			return nil, fmt.Errorf("service: %w", ErrAlreadyAssigned)
		}
		if alert.Status != models.AlertStatusPending {
			log.WithField("status", alert.Status).Info("Alert is no longer pending, skipping dispatch")
			return nil, nil
		}

		teams, err := s.teams.ListTeams(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to snapshot team registry")
			return nil, fmt.Errorf("service: could not list teams: %w", err)
		}

		candidates := make([]*models.ResponseTeam, 0, len(teams))
		for _, team := range teams {
			if _, lost := excluded[team.ID]; lost {
				continue
			}
			candidates = append(candidates, team)
		}

		team := MatchNearestTeam(alert, candidates)
		if team == nil {
			log.Info("No available team for alert, leaving it pending")
			return nil, fmt.Errorf("service: %w", ErrNoTeamAvailable)
		}

		err = s.commitAssignment(ctx, alert, team)
		if err == nil {
			log.WithFields(logrus.Fields{
				"team_id":   team.ID,
				"team_name": team.TeamName,
			}).Info("Team assigned to alert")
			return team, nil
		}

		if errors.Is(err, ErrStatusConflict) {
			// Команду успели занять - повторяем матчинг без нее по свежему снимку
			log.WithField("team_id", team.ID).Warn("Lost the race for team, re-matching")
			excluded[team.ID] = struct{}{}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		if errors.Is(err, ErrAlreadyAssigned) {
			return nil, fmt.Errorf("service: %w", ErrAlreadyAssigned)
		}

		log.WithError(err).Error("Failed to commit assignment")
		return nil, fmt.Errorf("service: could not commit assignment: %w", err)
	}

	log.Warn("Dispatch retries exhausted, leaving alert pending for reconciliation")
	return nil, fmt.Errorf("service: dispatch retries exhausted: %w", ErrStatusConflict)
}

// commitAssignment - собственно commit: условный перевод команды в busy, затем
// привязка тревоги. Частичный сбой (команда busy, тревога не привязана) не
// откатывается - откат рискует освободить команду, которую уже переиспользовал
// другой процесс; его чинит reconciliation sweep.
func (s *dispatchService) commitAssignment(ctx context.Context, alert *models.Alert, team *models.ResponseTeam) error {
	now := time.Now()

	expected := models.TeamStatusAvailable
	if err := s.teams.UpdateTeamStatus(ctx, team.ID, models.TeamStatusBusy, &expected, now); err != nil {
		return err
	}

	if err := s.alerts.BindTeam(ctx, alert.ID, team, now); err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":  "dispatch",
			"alert_id": alert.ID,
			"team_id":  team.ID,
		}).WithError(err).Error("Team marked busy but alert binding failed, reconciliation sweep will repair")
		return err
	}

	if err := s.alerts.InvalidateAlertCache(ctx, alert.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate alert cache after assignment")
	}

	if err := s.webhooks.Publish(ctx, webhook.DispatchEvent{
		Type:      webhook.EventTeamAssigned,
		AlertID:   alert.ID,
		TeamID:    &team.ID,
		TeamName:  team.TeamName,
		Timestamp: now,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish team-assigned webhook event")
	}

	return nil
}

// DrainBacklog прогоняет все pending-тревоги без команды через матчинг и
// commit, старые первыми. Останавливается, как только матчинг не находит
// команду: каждый проход берет свежий снимок, недобранный хвост подберет
// следующий sweep.
func (s *dispatchService) DrainBacklog(ctx context.Context) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "dispatch",
		"method":  "DrainBacklog",
	})

	backlog, err := s.alerts.ListPendingUnassigned(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list pending unassigned alerts")
		return 0, fmt.Errorf("service: could not list backlog: %w", err)
	}
	log.WithField("backlog_size", len(backlog)).Info("Draining alert backlog")

	assigned := 0
	for _, alert := range backlog {
		_, err := s.DispatchAlert(ctx, alert.ID)
		if err == nil {
			assigned++
			continue
		}
		if errors.Is(err, ErrNoTeamAvailable) {
			log.Info("No more available teams, stopping backlog drain")
			break
		}
		if errors.Is(err, ErrAlreadyAssigned) || errors.Is(err, ErrNotFound) {
			continue
		}
		// Transient-сбой одной тревоги не останавливает обход остальных
		log.WithError(err).WithField("alert_id", alert.ID).Warn("Failed to dispatch backlog alert")
	}

	log.WithField("assigned", assigned).Info("Backlog drain finished")
	return assigned, nil
}

// ReleaseStuckTeams освобождает команды, зависшие в busy без привязанной
// pending-тревоги дольше grace-периода (осиротевший результат частичного
// сбоя commit-а)
func (s *dispatchService) ReleaseStuckTeams(ctx context.Context) (int, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "dispatch",
		"method":  "ReleaseStuckTeams",
	})

	stuck, err := s.teams.ListStuckBusy(ctx, s.cfg.TeamReleaseGracePeriod)
	if err != nil {
		log.WithError(err).Error("Failed to list stuck busy teams")
		return 0, fmt.Errorf("service: could not list stuck teams: %w", err)
	}

	released := 0
	for _, team := range stuck {
		now := time.Now()
		if err := s.teams.UpdateTeamStatus(ctx, team.ID, models.TeamStatusAvailable, nil, now); err != nil {
			log.WithError(err).WithField("team_id", team.ID).Warn("Failed to release stuck team")
			continue
		}
		released++
		log.WithField("team_id", team.ID).Info("Released stuck busy team")

		if err := s.webhooks.Publish(ctx, webhook.DispatchEvent{
			Type:      webhook.EventTeamReleased,
			AlertID:   uuid.Nil,
			TeamID:    &team.ID,
			TeamName:  team.TeamName,
			Timestamp: now,
		}); err != nil {
			log.WithError(err).Warn("Failed to publish team-released webhook event")
		}
	}

	return released, nil
}

// Sweep - один полный проход reconciliation: освободить зависшие команды,
// затем прогнать backlog через матчинг
func (s *dispatchService) Sweep(ctx context.Context) (models.SweepResult, error) {
	released, err := s.ReleaseStuckTeams(ctx)
	if err != nil {
		return models.SweepResult{}, err
	}

	assigned, err := s.DrainBacklog(ctx)
	if err != nil {
		return models.SweepResult{TeamsReleased: released}, err
	}

	return models.SweepResult{AlertsAssigned: assigned, TeamsReleased: released}, nil
}
