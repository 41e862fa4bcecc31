package middleware

import (
	"net/http"

	"naftapp/internal/models"
	"naftapp/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	CheckUserKey   = "user"
	UnreadCountKey = "unread_count"

	// SessionUserKey is the session field holding the logged-in user id.
	SessionUserKey = "user_id"
)

// LoadUser retrieves the user from the session and sets it on the context.
// Stale sessions pointing at deleted users are cleared.
func LoadUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(SessionUserKey)
		if userID == nil {
			c.Next()
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			session.Delete(SessionUserKey)
			_ = session.Save()
			c.Next()
			return
		}
		c.Set(CheckUserKey, &user)

		// 未读通知数
		var count int64
		db.WithContext(c.Request.Context()).Model(&models.Notification{}).
			Where("user_id = ? AND is_read = ?", user.ID, false).
			Count(&count)
		c.Set(UnreadCountKey, count)

		c.Next()
	}
}

// CurrentUser returns the logged-in user or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentIdentity returns the caller identity, nil when anonymous.
func CurrentIdentity(c *gin.Context) *services.Identity {
	return services.IdentityOf(CurrentUser(c))
}

// UnreadCount returns the unread inbox count computed by LoadUser.
func UnreadCount(c *gin.Context) int64 {
	if v, ok := c.Get(UnreadCountKey); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

// AuthRequired ensures a user is logged in. Must run after LoadUser.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   services.KindUnauthenticated,
				"message": "authentication required",
			})
			return
		}
		c.Next()
	}
}

// AdminRequired ensures the logged-in user is an admin.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   services.KindUnauthenticated,
				"message": "authentication required",
			})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   services.KindForbidden,
				"message": "admin role required",
			})
			return
		}
		c.Next()
	}
}
