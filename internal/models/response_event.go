package models

import (
	"time"

	"github.com/google/uuid"
)

// Этапы реагирования в строгом порядке. Этап нельзя записать, пока не
// записаны все предыдущие; каждый этап записывается не более одного раза.
const (
	StageAcknowledged = "acknowledged"
	StageDispatched   = "dispatched"
	StageArrived      = "arrived"
	StageResolved     = "resolved"
)

// StageOrder — фиксированный порядок этапов для проверки префикса
var StageOrder = []string{
	StageAcknowledged,
	StageDispatched,
	StageArrived,
	StageResolved,
}

// StageIndex возвращает позицию этапа в порядке, -1 для неизвестного этапа
func StageIndex(stage string) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// ResponseEvent — запись журнала реагирования (append-only).
// Созданные события никогда не изменяются и не удаляются.
type ResponseEvent struct {
	ID           uuid.UUID `json:"id"`
	AlertID      uuid.UUID `json:"alert_id"`
	OperatorID   string    `json:"operator_id"`
	OperatorName string    `json:"operator_name"`
	Stage        string    `json:"stage"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
