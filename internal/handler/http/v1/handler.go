package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/korzhev/alert_dispatch_system/internal/config"
	"github.com/korzhev/alert_dispatch_system/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	dispatchService service.DispatchService
	teamService     service.TeamService
	timelineService service.TimelineService
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(dispatchService service.DispatchService, teamService service.TeamService, timelineService service.TimelineService, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		dispatchService: dispatchService,
		teamService:     teamService,
		timelineService: timelineService,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// @Summary Register a new distress alert
// @Description Register a new distress alert. Assignment happens asynchronously. Requires API key.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param alert body CreateAlertRequest true "Alert registration request"
// @Success 201 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts [post]
func (h *Handler) createAlert(c *gin.Context) {
	var input CreateAlertRequest
	log := h.logger.WithField("method", "createAlert")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model := DTOToAlertModel(input)
	if err := h.dispatchService.CreateAlert(c.Request.Context(), model); err != nil {
		log.WithError(err).Error("Failed to create alert in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, ModelToAlertResponse(model))
}

// @Summary Get a list of alerts
// @Description Get alerts filtered by status and assignment so the unassigned backlog is always observable. Requires API key.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Filter by status (pending|resolved)"
// @Param assigned query bool false "Filter by assignment presence"
// @Success 200 {array} AlertResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts [get]
func (h *Handler) listAlerts(c *gin.Context) {
	log := h.logger.WithField("method", "listAlerts")
	status := c.Query("status")

	var assigned *bool
	if raw := c.Query("assigned"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assigned filter"})
			return
		}
		assigned = &parsed
	}

	alerts, err := h.dispatchService.ListAlerts(c.Request.Context(), status, assigned)
	if err != nil {
		log.WithError(err).Error("Failed to list alerts from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToAlertResponses(alerts))
}

// @Summary Get alert by ID
// @Description Get a single alert by its ID. Requires API key.
// @Tags Alerts
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Success 200 {object} AlertResponse
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts/{id} [get]
func (h *Handler) getAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}
	log := h.logger.WithField("method", "getAlert").WithField("id", id)

	alert, err := h.dispatchService.GetAlert(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to get alert from service")
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		return
	}
	c.JSON(http.StatusOK, ModelToAlertResponse(alert))
}

// @Summary Get alert response timeline
// @Description Get the ordered response stage log for an alert, oldest first. Requires API key.
// @Tags Timeline
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Success 200 {array} ResponseEventResponse
// @Failure 400 {object} map[string]string "Invalid alert ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts/{id}/timeline [get]
func (h *Handler) getTimeline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}
	log := h.logger.WithField("method", "getTimeline").WithField("id", id)

	events, err := h.timelineService.ListTimeline(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		log.WithError(err).Error("Failed to list timeline from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelsToEventResponses(events))
}

// @Summary Record a response stage
// @Description Record an operator response stage for an alert. Stages must follow the fixed order acknowledged, dispatched, arrived, resolved; duplicates are rejected. Requires API key.
// @Tags Timeline
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Alert ID"
// @Param stage body RecordStageRequest true "Stage recording request"
// @Success 201 {object} ResponseEventResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Alert not found"
// @Failure 409 {object} map[string]string "Stage out of order or already recorded"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /alerts/{id}/response [post]
func (h *Handler) recordStage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert ID"})
		return
	}
	log := h.logger.WithField("method", "recordStage").WithField("id", id)

	var input RecordStageRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.timelineService.RecordStage(c.Request.Context(), id, input.Stage, input.OperatorID, input.OperatorName, input.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
		case errors.Is(err, service.ErrStageOutOfOrder):
			// Нарушения протокола оператора - отклоненные действия, не сбои системы
			c.JSON(http.StatusConflict, gin.H{"error": "response stage out of order"})
		case errors.Is(err, service.ErrStageAlreadyRecorded):
			c.JSON(http.StatusConflict, gin.H{"error": "response stage already recorded"})
		default:
			log.WithError(err).Error("Failed to record stage in service")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}
	c.JSON(http.StatusCreated, ModelToEventResponse(event))
}

// @Summary Register a new response team
// @Description Register a new response team in the registry. Requires API key.
// @Tags Teams
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param team body CreateTeamRequest true "Team registration request"
// @Success 201 {object} TeamResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /teams [post]
func (h *Handler) createTeam(c *gin.Context) {
	var input CreateTeamRequest
	log := h.logger.WithField("method", "createTeam")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model := DTOToTeamModel(input)
	if err := h.teamService.CreateTeam(c.Request.Context(), model); err != nil {
		log.WithError(err).Error("Failed to create team in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, ModelToTeamResponse(model))
}

// @Summary Get the team registry
// @Description Get a snapshot of all response teams. Requires API key.
// @Tags Teams
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} TeamResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /teams [get]
func (h *Handler) listTeams(c *gin.Context) {
	log := h.logger.WithField("method", "listTeams")

	teams, err := h.teamService.ListTeams(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list teams from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToTeamResponses(teams))
}

// @Summary Manually override team status
// @Description Manually set a team's availability status. The override is unconditional and always wins over engine state. Requires API key.
// @Tags Teams
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Team ID"
// @Param status body OverrideTeamStatusRequest true "Status override request"
// @Success 200 {object} TeamResponse
// @Failure 400 {object} map[string]string "Invalid team ID or request body"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Team not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /teams/{id}/status [patch]
func (h *Handler) overrideTeamStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid team ID"})
		return
	}
	log := h.logger.WithField("method", "overrideTeamStatus").WithField("id", id)

	var input OverrideTeamStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	team, err := h.teamService.OverrideTeamStatus(c.Request.Context(), id, input.Status)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "team not found"})
			return
		}
		log.WithError(err).Error("Failed to override team status in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, ModelToTeamResponse(team))
}

// @Summary Run a reconciliation sweep
// @Description Release stuck busy teams and drive the pending backlog through matching. Requires API key.
// @Tags Dispatch
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} SweepResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /dispatch/sweep [post]
func (h *Handler) runSweep(c *gin.Context) {
	log := h.logger.WithField("method", "runSweep")

	result, err := h.dispatchService.Sweep(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to run reconciliation sweep")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, SweepResponse{
		AlertsAssigned: result.AlertsAssigned,
		TeamsReleased:  result.TeamsReleased,
	})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
