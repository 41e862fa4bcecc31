package services

import (
	"fmt"

	"naftapp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Invalidator drops read-path cache entries by tag.
type Invalidator interface {
	Invalidate(tags ...string)
}

// NotificationQueue accepts post-commit notifications without blocking.
type NotificationQueue interface {
	Notify(n Notification)
	NotifyAdmins(kind models.NotificationKind, ctx map[string]string)
}

// Deps are the collaborators every domain service shares.
// Notify and Cache are optional.
type Deps struct {
	DB     *gorm.DB
	Log    *logrus.Logger
	Notify NotificationQueue
	Cache  Invalidator
}

func (d Deps) invalidate(tags ...string) {
	if d.Cache != nil {
		d.Cache.Invalidate(tags...)
	}
}

func (d Deps) notify(n Notification) {
	if d.Notify != nil {
		d.Notify.Notify(n)
	}
}

func (d Deps) notifyAdmins(kind models.NotificationKind, ctx map[string]string) {
	if d.Notify != nil {
		d.Notify.NotifyAdmins(kind, ctx)
	}
}

func StationTag(id uint) string {
	return fmt.Sprintf("station:%d", id)
}

func PriceTag(id uint) string {
	return fmt.Sprintf("price:%d", id)
}

// forUpdate locks the selected rows for the rest of the transaction.
// SQLite has no row locks and serialises writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
