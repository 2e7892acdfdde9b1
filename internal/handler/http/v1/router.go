package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршрут Health-check - без аутентификации
	api.GET("/system/health", h.healthCheck)

	// Все остальные маршруты за проверкой API-ключа
	if len(h.cfg.APIKeys) > 0 {
		api.Use(APIKeyAuthMiddleware(h.cfg, h.logger))
	}

	// Маршруты тревог и журнала реагирования
	alerts := api.Group("/alerts")
	{
		alerts.POST("", h.createAlert)
		alerts.GET("", h.listAlerts)
		alerts.GET("/:id", h.getAlert)
		alerts.GET("/:id/timeline", h.getTimeline)
		alerts.POST("/:id/response", h.recordStage)
	}

	// Маршруты реестра команд
	teams := api.Group("/teams")
	{
		teams.POST("", h.createTeam)
		teams.GET("", h.listTeams)
		teams.PATCH("/:id/status", h.overrideTeamStatus)
	}

	// Маршрут ops-инструментария: запуск reconciliation sweep
	api.POST("/dispatch/sweep", h.runSweep)
}
