package handlers

import (
	"net/http"

	"naftapp/internal/middleware"
	"naftapp/internal/models"
	"naftapp/internal/services"
	"naftapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxCountIDs = 100

type PriceHandler struct {
	prices        *services.PriceService
	confirmations *services.ConfirmationService
	log           *logrus.Logger
}

func NewPriceHandler(prices *services.PriceService, confirmations *services.ConfirmationService, log *logrus.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, confirmations: confirmations, log: log}
}

type quickPriceRequest struct {
	FuelType  models.FuelType  `json:"fuel_type" binding:"required"`
	Price     float64          `json:"price"`
	TimeOfDay models.TimeOfDay `json:"time_of_day" binding:"required"`
	Notes     string           `json:"notes"`
}

// Report handles POST /prices.
func (h *PriceHandler) Report(c *gin.Context) {
	var in services.PriceInput
	if !bindJSON(c, &in) {
		return
	}
	user := middleware.CurrentUser(c)
	rows, err := h.prices.ReportPrice(c.Request.Context(), user.ID, in)
	if err != nil {
		RespondError(c, h.log, "report_price", in.StationID, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"prices": rows})
}

// Quick handles PATCH /stations/:id/prices/quick.
func (h *PriceHandler) Quick(c *gin.Context) {
	stationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req quickPriceRequest
	if !bindJSON(c, &req) {
		return
	}
	user := middleware.CurrentUser(c)
	rows, err := h.prices.SetStationPrice(c.Request.Context(), user.ID, stationID, services.PriceInput{
		FuelType:  req.FuelType,
		Price:     req.Price,
		TimeOfDay: req.TimeOfDay,
		Notes:     req.Notes,
	})
	if err != nil {
		RespondError(c, h.log, "set_station_price", stationID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": rows})
}

// StationPrices handles GET /stations/:id/prices.
func (h *PriceHandler) StationPrices(c *gin.Context) {
	stationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	views, err := h.prices.StationPrices(c.Request.Context(), stationID, middleware.CurrentIdentity(c))
	if err != nil {
		RespondError(c, h.log, "station_prices", stationID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": views})
}

// Confirm handles POST /prices/:id/confirmations.
func (h *PriceHandler) Confirm(c *gin.Context) {
	priceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	res, err := h.confirmations.ConfirmPrice(c.Request.Context(), user.ID, priceID)
	if err != nil {
		RespondError(c, h.log, "confirm_price", priceID, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Unconfirm handles DELETE /prices/:id/confirmations for the session user.
func (h *PriceHandler) Unconfirm(c *gin.Context) {
	priceID, ok := paramID(c, "id")
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	res, err := h.confirmations.RemoveConfirmation(c.Request.Context(), user.ID, priceID)
	if err != nil {
		RespondError(c, h.log, "remove_confirmation", priceID, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Counts handles GET /prices/confirmation-counts?ids=1,2,3.
func (h *PriceHandler) Counts(c *gin.Context) {
	ids := utils.ParseIDList(c.Query("ids"))
	if len(ids) > maxCountIDs {
		RespondError(c, h.log, "confirmation_counts", 0, services.ValidationErrors{
			"ids": "at most 100 ids per request",
		}.Err())
		return
	}
	counts, err := h.confirmations.ConfirmationCounts(c.Request.Context(), ids)
	if err != nil {
		RespondError(c, h.log, "confirmation_counts", 0, err)
		return
	}

	body := gin.H{"counts": counts}
	if id := middleware.CurrentIdentity(c); id != nil {
		confirmed, err := h.confirmations.ConfirmedBy(c.Request.Context(), id.UserID, ids)
		if err != nil {
			RespondError(c, h.log, "confirmation_counts", 0, err)
			return
		}
		body["confirmed_by_viewer"] = confirmed
	}
	c.JSON(http.StatusOK, body)
}
