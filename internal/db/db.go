package db

import (
	"context"
	"fmt"
	"time"

	"naftapp/internal/models"
	"naftapp/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres. TranslateError maps unique violations to gorm.ErrDuplicatedKey.
func Open(ctx context.Context, dsn string, log *logrus.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("Database connection established")
	return db, nil
}

// Migrate creates tables and the indexes gorm tags cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Station{},
		&models.PriceReport{},
		&models.Confirmation{},
		&models.Comment{},
		&models.CommentVote{},
		&models.CommentReport{},
		&models.ModerationRecord{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// 每个用户最多一个待审核的加油站
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_pending_station_per_user
		ON stations (creator_user_id) WHERE moderation_state = 'pending'`).Error; err != nil {
		return fmt.Errorf("create pending station index: %w", err)
	}
	return nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func EnsureAdmin(db *gorm.DB, email, password string, log *logrus.Logger) error {
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.WithField("email", email).Debug("Admin already exists, skipping")
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:     "Administrador",
		Email:    email,
		Password: hash,
		Role:     models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.WithField("email", email).Info("Admin account created")
	return nil
}
