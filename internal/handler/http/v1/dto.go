package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateAlertRequest DTO для регистрации тревоги
// @Description DTO для регистрации тревоги
type CreateAlertRequest struct {
	ReporterName string  `json:"reporter_name" validate:"required,min=2,max=255"`
	PhoneNumber  string  `json:"phone_number" validate:"required,min=5,max=32"`
	Latitude     float64 `json:"latitude" validate:"required,latitude"`
	Longitude    float64 `json:"longitude" validate:"required,longitude"`
}

// AlertResponse DTO для ответа с информацией о тревоге
// @Description DTO для ответа с информацией о тревоге
type AlertResponse struct {
	ID               uuid.UUID  `json:"id"`
	ReporterName     string     `json:"reporter_name"`
	PhoneNumber      string     `json:"phone_number"`
	Latitude         float64    `json:"latitude"`
	Longitude        float64    `json:"longitude"`
	Status           string     `json:"status"`
	AssignedTeamID   *uuid.UUID `json:"assigned_team_id,omitempty"`
	AssignedTeamName *string    `json:"assigned_team_name,omitempty"`
	AssignedAt       *time.Time `json:"assigned_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CreateTeamRequest DTO для регистрации команды реагирования
// @Description DTO для регистрации команды реагирования
type CreateTeamRequest struct {
	TeamName       string  `json:"team_name" validate:"required,min=2,max=255"`
	TeamType       string  `json:"team_type" validate:"required,oneof=police medical fire rescue"`
	Latitude       float64 `json:"latitude" validate:"required,latitude"`
	Longitude      float64 `json:"longitude" validate:"required,longitude"`
	ResponseRadius float64 `json:"response_radius_m" validate:"required,gt=0"`
}

// OverrideTeamStatusRequest DTO для ручного изменения статуса команды
// @Description DTO для ручного изменения статуса команды
type OverrideTeamStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available busy offline"`
}

// TeamResponse DTO для ответа с информацией о команде
// @Description DTO для ответа с информацией о команде
type TeamResponse struct {
	ID             uuid.UUID `json:"id"`
	TeamName       string    `json:"team_name"`
	TeamType       string    `json:"team_type"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	ResponseRadius float64   `json:"response_radius_m"`
	CurrentStatus  string    `json:"current_status"`
	LastActive     time.Time `json:"last_active"`
}

// RecordStageRequest DTO для фиксации этапа реагирования
// @Description DTO для фиксации этапа реагирования
type RecordStageRequest struct {
	Stage        string `json:"stage" validate:"required,oneof=acknowledged dispatched arrived resolved"`
	OperatorID   string `json:"operator_id" validate:"required"`
	OperatorName string `json:"operator_name" validate:"required,min=2,max=255"`
	Notes        string `json:"notes,omitempty" validate:"max=2000"`
}

// ResponseEventResponse DTO для записи журнала реагирования
// @Description DTO для записи журнала реагирования
type ResponseEventResponse struct {
	ID           uuid.UUID `json:"id"`
	AlertID      uuid.UUID `json:"alert_id"`
	OperatorID   string    `json:"operator_id"`
	OperatorName string    `json:"operator_name"`
	Stage        string    `json:"stage"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// SweepResponse DTO для итога reconciliation sweep
// @Description DTO для итога reconciliation sweep
type SweepResponse struct {
	AlertsAssigned int `json:"alerts_assigned"`
	TeamsReleased  int `json:"teams_released"`
}
