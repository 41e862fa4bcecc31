package handlers

import (
	"net/http"

	"naftapp/internal/middleware"
	"naftapp/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type StationHandler struct {
	stations *services.StationService
	log      *logrus.Logger
}

func NewStationHandler(stations *services.StationService, log *logrus.Logger) *StationHandler {
	return &StationHandler{stations: stations, log: log}
}

func (h *StationHandler) Create(c *gin.Context) {
	var in services.StationInput
	if !bindJSON(c, &in) {
		return
	}
	station, err := h.stations.CreateStation(c.Request.Context(), middleware.CurrentIdentity(c), in)
	if err != nil {
		RespondError(c, h.log, "create_station", 0, err)
		return
	}
	c.JSON(http.StatusCreated, station)
}

func (h *StationHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.stations.GetStation(c.Request.Context(), id, middleware.CurrentIdentity(c))
	if err != nil {
		RespondError(c, h.log, "get_station", id, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Resubmit handles PATCH /stations/:id/resubmit with optional corrections.
func (h *StationHandler) Resubmit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var changes services.StationChanges
	if !bindOptionalJSON(c, &changes) {
		return
	}
	view, err := h.stations.Resubmit(c.Request.Context(), middleware.CurrentIdentity(c), id, changes)
	if err != nil {
		RespondError(c, h.log, "resubmit_station", id, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
