package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/korzhev/alert_dispatch_system/internal/models"
	"github.com/sirupsen/logrus"
)

// TeamService определяет контракт управления командами реагирования
type TeamService interface {
	CreateTeam(ctx context.Context, team *models.ResponseTeam) error
	ListTeams(ctx context.Context) ([]*models.ResponseTeam, error)
	OverrideTeamStatus(ctx context.Context, id uuid.UUID, status string) (*models.ResponseTeam, error)
}

type teamService struct {
	teams  TeamRepository
	logger *logrus.Logger
}

func NewTeamService(teams TeamRepository, logger *logrus.Logger) TeamService {
	return &teamService{
		teams:  teams,
		logger: logger,
	}
}

// CreateTeam регистрирует новую команду реагирования
func (s *teamService) CreateTeam(ctx context.Context, team *models.ResponseTeam) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":   "team",
		"method":    "CreateTeam",
		"team_name": team.TeamName,
	})
	log.Info("Registering a new response team")

	if team.CurrentStatus == "" {
		team.CurrentStatus = models.TeamStatusAvailable
	}
	if err := s.teams.Create(ctx, team); err != nil {
		log.WithError(err).Error("Failed to create team in repository")
		return fmt.Errorf("service: could not create team: %w", err)
	}

	log.WithField("team_id", team.ID).Info("Response team registered")
	return nil
}

// ListTeams возвращает снимок реестра команд
func (s *teamService) ListTeams(ctx context.Context) ([]*models.ResponseTeam, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "team",
		"method":  "ListTeams",
	})

	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list teams from repository")
		return nil, fmt.Errorf("service: could not list teams: %w", err)
	}
	return teams, nil
}

// OverrideTeamStatus - ручное изменение статуса оператором. Запись безусловная:
// ручное вмешательство всегда побеждает и никогда не перетирается движком.
func (s *teamService) OverrideTeamStatus(ctx context.Context, id uuid.UUID, status string) (*models.ResponseTeam, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "team",
		"method":  "OverrideTeamStatus",
		"team_id": id,
		"status":  status,
	})
	log.Info("Applying manual team status override")

	if err := s.teams.UpdateTeamStatus(ctx, id, status, nil, time.Now()); err != nil {
		log.WithError(err).Warn("Failed to override team status")
		return nil, fmt.Errorf("service: could not override team status: %w", err)
	}

	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not read team after override: %w", err)
	}
	return team, nil
}
