package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korzhev/alert_dispatch_system/internal/models"
	"github.com/korzhev/alert_dispatch_system/internal/service"
	"github.com/redis/go-redis/v9"
)

type AlertRepository struct {
	db          *pgxpool.Pool
	redisClient *redis.Client
}

func NewAlertRepository(db *pgxpool.Pool, redisClient *redis.Client) service.AlertRepository {
	return &AlertRepository{
		db:          db,
		redisClient: redisClient,
	}
}

const alertColumns = `
	id,
	reporter_name,
	phone_number,
	latitude,
	longitude,
	status,
	assigned_team_id,
	assigned_team_name,
	assigned_at,
	created_at
`

func scanAlert(row pgx.Row) (*models.Alert, error) {
	alert := &models.Alert{}
	err := row.Scan(
		&alert.ID,
		&alert.ReporterName,
		&alert.PhoneNumber,
		&alert.Latitude,
		&alert.Longitude,
		&alert.Status,
		&alert.AssignedTeamID,
		&alert.AssignedTeamName,
		&alert.AssignedAt,
		&alert.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return alert, nil
}

// Create создает новую запись о тревоге в бд
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (reporter_name, phone_number, latitude, longitude, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		alert.ReporterName,
		alert.PhoneNumber,
		alert.Latitude,
		alert.Longitude,
		alert.Status,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetByID возвращает тревогу по UUID напрямую из бд (минуя кэш).
// Committer обязан перечитывать тревогу именно отсюда перед привязкой команды.
func (r *AlertRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1;`
	alert, err := scanAlert(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}
	return alert, nil
}

// ListAlerts возвращает тревоги по статусу и признаку назначения.
// status == "" - любой статус; assigned == nil - и назначенные, и нет.
func (r *AlertRepository) ListAlerts(ctx context.Context, status string, assigned *bool) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE ($1 = '' OR status = $1)`
	args := []any{status}
	if assigned != nil {
		if *assigned {
			query += ` AND assigned_team_id IS NOT NULL`
		} else {
			query += ` AND assigned_team_id IS NULL`
		}
	}
	query += ` ORDER BY created_at DESC;`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return alerts, nil
}

// ListPendingUnassigned возвращает необработанный backlog: pending без команды,
// старые тревоги первыми (порядок для каскада и sweep)
func (r *AlertRepository) ListPendingUnassigned(ctx context.Context) ([]*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE status = $1 AND assigned_team_id IS NULL
		ORDER BY created_at ASC;
	`
	rows, err := r.db.Query(ctx, query, models.AlertStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending unassigned alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row in ListPendingUnassigned: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration in ListPendingUnassigned: %w", err)
	}
	return alerts, nil
}

// BindTeam привязывает команду к тревоге. Запись условная: выполняется только
// если assigned_team_id еще NULL, что исключает вторую привязку при гонке.
func (r *AlertRepository) BindTeam(ctx context.Context, alertID uuid.UUID, team *models.ResponseTeam, assignedAt time.Time) error {
	query := `
		UPDATE alerts SET
			assigned_team_id = $1,
			assigned_team_name = $2,
			assigned_at = $3
		WHERE id = $4 AND assigned_team_id IS NULL;
	`
	cmdTag, err := r.db.Exec(ctx, query, team.ID, team.TeamName, assignedAt, alertID)
	if err != nil {
		return fmt.Errorf("failed to bind team to alert: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		// Либо тревоги нет, либо она уже привязана - различаем повторным чтением
		if _, err := r.GetByID(ctx, alertID); err != nil {
			return err
		}
		return fmt.Errorf("alert %s: %w", alertID, service.ErrAlreadyAssigned)
	}
	return nil
}

// MarkResolved переводит тревогу в статус resolved. Поля назначения не
// очищаются - они остаются как исторический след.
func (r *AlertRepository) MarkResolved(ctx context.Context, alertID uuid.UUID) error {
	query := `UPDATE alerts SET status = $1 WHERE id = $2;`
	cmdTag, err := r.db.Exec(ctx, query, models.AlertStatusResolved, alertID)
	if err != nil {
		return fmt.Errorf("failed to mark alert resolved: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", alertID, service.ErrNotFound)
	}
	return nil
}

// GetAlertFromCache пытается получить тревогу из Redis
func (r *AlertRepository) GetAlertFromCache(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	key := fmt.Sprintf("alert:%s", id.String())
	val, err := r.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert from cache: %w", err)
	}

	alert := &models.Alert{}
	if err := json.Unmarshal(val, alert); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert from cache: %w", err)
	}
	return alert, nil
}

// SetAlertCache сохраняет тревогу в Redis
func (r *AlertRepository) SetAlertCache(ctx context.Context, alert *models.Alert) error {
	key := fmt.Sprintf("alert:%s", alert.ID.String())
	val, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert for cache: %w", err)
	}
	// Срок жизни кэша - 5 минут
	if err := r.redisClient.Set(ctx, key, val, 5*time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set alert in cache: %w", err)
	}
	return nil
}

// InvalidateAlertCache удаляет тревогу из Redis кэша
func (r *AlertRepository) InvalidateAlertCache(ctx context.Context, id uuid.UUID) error {
	key := fmt.Sprintf("alert:%s", id.String())
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate alert cache: %w", err)
	}
	return nil
}
