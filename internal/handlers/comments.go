package handlers

import (
	"net/http"

	"naftapp/internal/middleware"
	"naftapp/internal/models"
	"naftapp/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CommentHandler struct {
	comments *services.CommentService
	log      *logrus.Logger
}

func NewCommentHandler(comments *services.CommentService, log *logrus.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, log: log}
}

type createCommentRequest struct {
	StationID uint   `json:"station_id" binding:"required"`
	Text      string `json:"text"`
}

type updateCommentRequest struct {
	Text string `json:"text"`
}

type reportCommentRequest struct {
	Reasons []models.ReportReason `json:"reasons"`
	Notes   string                `json:"notes"`
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req createCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	user := middleware.CurrentUser(c)
	comment, err := h.comments.CreateComment(c.Request.Context(), user.ID, req.StationID, req.Text)
	if err != nil {
		RespondError(c, h.log, "create_comment", req.StationID, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req updateCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	user := middleware.CurrentUser(c)
	comment, err := h.comments.UpdateComment(c.Request.Context(), user.ID, id, req.Text)
	if err != nil {
		RespondError(c, h.log, "update_comment", id, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	if err := h.comments.DeleteComment(c.Request.Context(), user.ID, id); err != nil {
		RespondError(c, h.log, "delete_comment", id, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Vote toggles the caller's vote.
func (h *CommentHandler) Vote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	res, err := h.comments.ToggleVote(c.Request.Context(), user.ID, id)
	if err != nil {
		RespondError(c, h.log, "toggle_vote", id, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CommentHandler) Report(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reportCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	user := middleware.CurrentUser(c)
	res, err := h.comments.ReportComment(c.Request.Context(), user.ID, id, req.Reasons, req.Notes)
	if err != nil {
		RespondError(c, h.log, "report_comment", id, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// List handles GET /stations/:id/comments; anonymous viewers get no flags.
func (h *CommentHandler) List(c *gin.Context) {
	stationID, ok := paramID(c, "id")
	if !ok {
		return
	}
	views, err := h.comments.ListComments(c.Request.Context(), stationID, middleware.CurrentIdentity(c))
	if err != nil {
		RespondError(c, h.log, "list_comments", stationID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": views})
}
