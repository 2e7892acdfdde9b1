package models

import (
	"time"

	"github.com/google/uuid"
)

// Состояния доступности команды. Поле current_status — единственная точка
// сериализации для "можно ли занять команду": переход в busy допустим только
// через условное обновление с ожидаемым прежним состоянием.
const (
	TeamStatusAvailable = "available"
	TeamStatusBusy      = "busy"
	TeamStatusOffline   = "offline"
)

// Типы команд (используются только для отображения, не для матчинга)
const (
	TeamTypePolice  = "police"
	TeamTypeMedical = "medical"
	TeamTypeFire    = "fire"
	TeamTypeRescue  = "rescue"
)

// ResponseTeam представляет команду реагирования с базовой точкой и радиусом покрытия
type ResponseTeam struct {
	ID             uuid.UUID `json:"id"`
	TeamName       string    `json:"team_name"`
	TeamType       string    `json:"team_type"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	ResponseRadius float64   `json:"response_radius_m"`
	CurrentStatus  string    `json:"current_status"`
	LastActive     time.Time `json:"last_active"`
}
