package handlers

import (
	"net/http"

	"naftapp/internal/middleware"
	"naftapp/internal/models"
	"naftapp/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the moderation queue.
type AdminHandler struct {
	stations *services.StationService
	log      *logrus.Logger
}

func NewAdminHandler(stations *services.StationService, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{stations: stations, log: log}
}

type moderateRequest struct {
	Action models.ModerationAction `json:"action" binding:"required,oneof=approve reject"`
	Reason string                  `json:"reason"`
}

// Moderate handles PATCH /stations/:id/moderate. The service enforces the admin role.
func (h *AdminHandler) Moderate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req moderateRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.stations.Moderate(c.Request.Context(), middleware.CurrentIdentity(c), id, req.Action, req.Reason)
	if err != nil {
		RespondError(c, h.log, "moderate_station", id, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// 待审核列表
func (h *AdminHandler) Pending(c *gin.Context) {
	stations, err := h.stations.ListPendingStations(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		RespondError(c, h.log, "list_pending_stations", 0, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stations": stations})
}

func (h *AdminHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	records, err := h.stations.ModerationHistory(c.Request.Context(), middleware.CurrentIdentity(c), id)
	if err != nil {
		RespondError(c, h.log, "moderation_history", id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}
