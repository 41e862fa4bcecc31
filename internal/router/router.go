package router

import (
	"net/http"

	"naftapp/internal/handlers"
	"naftapp/internal/metrics"
	"naftapp/internal/middleware"
	"naftapp/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps holds everything the route table needs.
type Deps struct {
	DB            *gorm.DB
	Log           *logrus.Logger
	Accounts      *services.AccountService
	Captcha       *services.CaptchaService
	Prices        *services.PriceService
	Confirmations *services.ConfirmationService
	Comments      *services.CommentService
	Stations      *services.StationService
	Limiter       *middleware.RateLimiter
}

// RegisterRoutes mounts the API. Sessions middleware must already be installed on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Accounts, d.Captcha, d.Log)
	priceHandler := handlers.NewPriceHandler(d.Prices, d.Confirmations, d.Log)
	commentHandler := handlers.NewCommentHandler(d.Comments, d.Log)
	stationHandler := handlers.NewStationHandler(d.Stations, d.Log)
	adminHandler := handlers.NewAdminHandler(d.Stations, d.Log)
	notificationHandler := handlers.NewNotificationHandler(d.DB, d.Log)

	r.GET("/metrics", metrics.Handler())
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	r.Use(middleware.LoadUser(d.DB))

	// 公共路由
	r.GET("/stations/:id", stationHandler.Get)
	r.GET("/stations/:id/prices", priceHandler.StationPrices)
	r.GET("/stations/:id/comments", commentHandler.List)
	r.GET("/prices/confirmation-counts", priceHandler.Counts)

	auth := r.Group("/auth")
	if d.Limiter != nil {
		auth.Use(d.Limiter.Handler())
	}
	{
		auth.GET("/captcha", authHandler.Captcha)
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", authHandler.Me)
	}

	// 需要登录的路由
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	if d.Limiter != nil {
		authorized.Use(d.Limiter.Handler())
	}
	{
		authorized.POST("/prices", priceHandler.Report)
		authorized.POST("/prices/:id/confirmations", priceHandler.Confirm)
		authorized.DELETE("/prices/:id/confirmations", priceHandler.Unconfirm)

		authorized.POST("/stations", stationHandler.Create)
		authorized.PATCH("/stations/:id/prices/quick", priceHandler.Quick)
		authorized.PATCH("/stations/:id/resubmit", stationHandler.Resubmit)
		authorized.PATCH("/stations/:id/moderate", adminHandler.Moderate)

		authorized.POST("/comments", commentHandler.Create)
		authorized.PUT("/comments/:id", commentHandler.Update)
		authorized.DELETE("/comments/:id", commentHandler.Delete)
		authorized.POST("/comments/:id/votes", commentHandler.Vote)
		authorized.POST("/comments/:id/reports", commentHandler.Report)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)
	}

	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/stations/pending", adminHandler.Pending)
		admin.GET("/stations/:id/history", adminHandler.History)
	}
}
