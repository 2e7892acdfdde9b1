package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korzhev/alert_dispatch_system/internal/models"
	"github.com/korzhev/alert_dispatch_system/internal/service"
)

type TeamRepository struct {
	db *pgxpool.Pool
}

func NewTeamRepository(db *pgxpool.Pool) service.TeamRepository {
	return &TeamRepository{db: db}
}

const teamColumns = `
	id,
	team_name,
	team_type,
	latitude,
	longitude,
	response_radius_m,
	current_status,
	last_active
`

func scanTeam(row pgx.Row) (*models.ResponseTeam, error) {
	team := &models.ResponseTeam{}
	err := row.Scan(
		&team.ID,
		&team.TeamName,
		&team.TeamType,
		&team.Latitude,
		&team.Longitude,
		&team.ResponseRadius,
		&team.CurrentStatus,
		&team.LastActive,
	)
	if err != nil {
		return nil, err
	}
	return team, nil
}

// Create создает новую команду реагирования в бд
func (r *TeamRepository) Create(ctx context.Context, team *models.ResponseTeam) error {
	query := `
		INSERT INTO response_teams (team_name, team_type, latitude, longitude, response_radius_m, current_status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, last_active;
	`
	err := r.db.QueryRow(ctx, query,
		team.TeamName,
		team.TeamType,
		team.Latitude,
		team.Longitude,
		team.ResponseRadius,
		team.CurrentStatus,
	).Scan(&team.ID, &team.LastActive)
	if err != nil {
		return fmt.Errorf("failed to create response team: %w", err)
	}
	return nil
}

// GetByID возвращает команду по UUID
func (r *TeamRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ResponseTeam, error) {
	query := `SELECT ` + teamColumns + ` FROM response_teams WHERE id = $1;`
	team, err := scanTeam(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("team %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get team by id: %w", err)
	}
	return team, nil
}

// ListTeams возвращает полный консистентный снимок всех команд
func (r *TeamRepository) ListTeams(ctx context.Context) ([]*models.ResponseTeam, error) {
	query := `SELECT ` + teamColumns + ` FROM response_teams ORDER BY id ASC;`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.ResponseTeam, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return teams, nil
}

// UpdateTeamStatus изменяет статус команды. Если expectedPrior задан, запись
// условная: при несовпадении сохраненного статуса (другой процесс или оператор
// успел изменить его) возвращается ErrStatusConflict, а не молчаливая
// перезапись. Это главная защита от двойного назначения.
// expectedPrior == nil - безусловная запись (ручной override оператора,
// освобождение при разрешении).
func (r *TeamRepository) UpdateTeamStatus(ctx context.Context, id uuid.UUID, newStatus string, expectedPrior *string, ts time.Time) error {
	var cmdTag pgconn.CommandTag
	var err error
	if expectedPrior != nil {
		query := `
			UPDATE response_teams SET current_status = $1, last_active = $2
			WHERE id = $3 AND current_status = $4;
		`
		cmdTag, err = r.db.Exec(ctx, query, newStatus, ts, id, *expectedPrior)
	} else {
		query := `
			UPDATE response_teams SET current_status = $1, last_active = $2
			WHERE id = $3;
		`
		cmdTag, err = r.db.Exec(ctx, query, newStatus, ts, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update team status: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		// RowsAffected == 0 неоднозначен: команды нет вовсе либо статус не
		// совпал с ожидаемым. Различаем повторным чтением.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("team %s status is not %q: %w", id, derefStatus(expectedPrior), service.ErrStatusConflict)
	}
	return nil
}

// ListStuckBusy находит команды в статусе busy, на которые не ссылается ни одна
// pending-тревога, с last_active старше grace-периода. Это осиротевший
// промежуточный результат частично завершенного назначения (команда занята,
// тревога не привязана) - его чинит reconciliation sweep.
func (r *TeamRepository) ListStuckBusy(ctx context.Context, grace time.Duration) ([]*models.ResponseTeam, error) {
	query := `
		SELECT ` + teamColumns + `
		FROM response_teams t
		WHERE
			t.current_status = $1
			AND t.last_active < NOW() - ($2 * INTERVAL '1 second')
			AND NOT EXISTS (
				SELECT 1 FROM alerts a
				WHERE a.assigned_team_id = t.id AND a.status = $3
			);
	`
	rows, err := r.db.Query(ctx, query, models.TeamStatusBusy, int(grace.Seconds()), models.AlertStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck busy teams: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.ResponseTeam, 0)
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team row in ListStuckBusy: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration in ListStuckBusy: %w", err)
	}
	return teams, nil
}

func derefStatus(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
