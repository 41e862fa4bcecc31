package handlers

import (
	"net/http"

	"naftapp/internal/middleware"
	"naftapp/internal/models"
	"naftapp/internal/services"
	"naftapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationHandler serves the in-app inbox.
type NotificationHandler struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewNotificationHandler(db *gorm.DB, log *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{db: db, log: log}
}

func (h *NotificationHandler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)

	limit := utils.StringToInt(c.Query("limit"))
	if limit <= 0 {
		limit = defaultNotificationLimit
	} else if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	var notifications []models.Notification
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", user.ID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		RespondError(c, h.log, "list_notifications", user.ID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  middleware.UnreadCount(c),
	})
}

func (h *NotificationHandler) Read(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, user.ID).
		Update("is_read", true)
	if res.Error != nil {
		RespondError(c, h.log, "read_notification", id, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		RespondError(c, h.log, "read_notification", id, services.ErrNotFound("notification"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, user.ID).
		Delete(&models.Notification{})
	if res.Error != nil {
		RespondError(c, h.log, "delete_notification", id, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		RespondError(c, h.log, "delete_notification", id, services.ErrNotFound("notification"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	user := middleware.CurrentUser(c)

	res := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Update("is_read", true)
	if res.Error != nil {
		RespondError(c, h.log, "read_all_notifications", user.ID, res.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": res.RowsAffected})
}
