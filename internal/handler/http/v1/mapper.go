package v1

import "github.com/korzhev/alert_dispatch_system/internal/models"

// DTOToAlertModel преобразует DTO регистрации тревоги в доменную модель
func DTOToAlertModel(dto CreateAlertRequest) *models.Alert {
	return &models.Alert{
		ReporterName: dto.ReporterName,
		PhoneNumber:  dto.PhoneNumber,
		Latitude:     dto.Latitude,
		Longitude:    dto.Longitude,
	}
}

// DTOToTeamModel преобразует DTO регистрации команды в доменную модель
func DTOToTeamModel(dto CreateTeamRequest) *models.ResponseTeam {
	return &models.ResponseTeam{
		TeamName:       dto.TeamName,
		TeamType:       dto.TeamType,
		Latitude:       dto.Latitude,
		Longitude:      dto.Longitude,
		ResponseRadius: dto.ResponseRadius,
	}
}

// ModelToAlertResponse преобразует доменную модель тревоги в DTO для ответа
func ModelToAlertResponse(model *models.Alert) *AlertResponse {
	return &AlertResponse{
		ID:               model.ID,
		ReporterName:     model.ReporterName,
		PhoneNumber:      model.PhoneNumber,
		Latitude:         model.Latitude,
		Longitude:        model.Longitude,
		Status:           model.Status,
		AssignedTeamID:   model.AssignedTeamID,
		AssignedTeamName: model.AssignedTeamName,
		AssignedAt:       model.AssignedAt,
		CreatedAt:        model.CreatedAt,
	}
}

// ModelsToAlertResponses преобразует слайс моделей тревог в слайс DTO
func ModelsToAlertResponses(models []*models.Alert) []*AlertResponse {
	responses := make([]*AlertResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToAlertResponse(model)
	}
	return responses
}

// ModelToTeamResponse преобразует доменную модель команды в DTO для ответа
func ModelToTeamResponse(model *models.ResponseTeam) *TeamResponse {
	return &TeamResponse{
		ID:             model.ID,
		TeamName:       model.TeamName,
		TeamType:       model.TeamType,
		Latitude:       model.Latitude,
		Longitude:      model.Longitude,
		ResponseRadius: model.ResponseRadius,
		CurrentStatus:  model.CurrentStatus,
		LastActive:     model.LastActive,
	}
}

// ModelsToTeamResponses преобразует слайс моделей команд в слайс DTO
func ModelsToTeamResponses(models []*models.ResponseTeam) []*TeamResponse {
	responses := make([]*TeamResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToTeamResponse(model)
	}
	return responses
}

// ModelToEventResponse преобразует запись журнала реагирования в DTO для ответа
func ModelToEventResponse(model *models.ResponseEvent) *ResponseEventResponse {
	return &ResponseEventResponse{
		ID:           model.ID,
		AlertID:      model.AlertID,
		OperatorID:   model.OperatorID,
		OperatorName: model.OperatorName,
		Stage:        model.Stage,
		Notes:        model.Notes,
		CreatedAt:    model.CreatedAt,
	}
}

// ModelsToEventResponses преобразует слайс записей журнала в слайс DTO
func ModelsToEventResponses(models []*models.ResponseEvent) []*ResponseEventResponse {
	responses := make([]*ResponseEventResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToEventResponse(model)
	}
	return responses
}
