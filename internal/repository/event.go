package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/korzhev/alert_dispatch_system/internal/models"
	"github.com/korzhev/alert_dispatch_system/internal/service"
)

type EventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) service.EventRepository {
	return &EventRepository{db: db}
}

// Create добавляет запись этапа в журнал реагирования. Журнал append-only.
// Ограничение UNIQUE(alert_id, stage) - арбитр на стороне записи: из двух
// операторов, одновременно фиксирующих один этап, ровно один получает успех,
// второй - ErrStageAlreadyRecorded.
func (r *EventRepository) Create(ctx context.Context, event *models.ResponseEvent) error {
	query := `
		INSERT INTO response_events (alert_id, operator_id, operator_name, stage, notes)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at;
	`
	err := r.db.QueryRow(ctx, query,
		event.AlertID,
		event.OperatorID,
		event.OperatorName,
		event.Stage,
		event.Notes,
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("stage %s for alert %s: %w", event.Stage, event.AlertID, service.ErrStageAlreadyRecorded)
		}
		return fmt.Errorf("failed to create response event: %w", err)
	}
	return nil
}

// ListByAlert возвращает журнал этапов тревоги, старые записи первыми
func (r *EventRepository) ListByAlert(ctx context.Context, alertID uuid.UUID) ([]*models.ResponseEvent, error) {
	query := `
		SELECT id, alert_id, operator_id, operator_name, stage, notes, created_at
		FROM response_events
		WHERE alert_id = $1
		ORDER BY created_at ASC;
	`
	rows, err := r.db.Query(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to list response events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.ResponseEvent, 0)
	for rows.Next() {
		event := &models.ResponseEvent{}
		err := rows.Scan(
			&event.ID,
			&event.AlertID,
			&event.OperatorID,
			&event.OperatorName,
			&event.Stage,
			&event.Notes,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return events, nil
}
