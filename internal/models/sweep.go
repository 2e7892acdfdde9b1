package models

// SweepResult - итог одного прохода reconciliation sweep
type SweepResult struct {
	AlertsAssigned int `json:"alerts_assigned"`
	TeamsReleased  int `json:"teams_released"`
}
