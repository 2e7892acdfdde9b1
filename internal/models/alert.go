package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы жизненного цикла тревоги
const (
	AlertStatusPending  = "pending"
	AlertStatusResolved = "resolved"
)

// Alert представляет сигнал бедствия, требующий назначения команды реагирования.
// Поля назначения заполняются ровно один раз и не очищаются при разрешении —
// они остаются как исторический след.
type Alert struct {
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

// IsAssigned сообщает, привязана ли к тревоге команда
func (a *Alert) IsAssigned() bool {
	return a.AssignedTeamID != nil
}
