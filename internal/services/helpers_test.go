package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"naftapp/internal/db"
	"naftapp/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// newTestDB opens a private in-memory SQLite database with the production schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// recordingQueue captures notifications instead of dispatching them.
type recordingQueue struct {
	mu     sync.Mutex
	notes  []Notification
	admins []Notification
}

func (q *recordingQueue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notes = append(q.notes, n)
}

func (q *recordingQueue) NotifyAdmins(kind models.NotificationKind, ctx map[string]string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.admins = append(q.admins, Notification{Kind: kind, Context: ctx})
}

func (q *recordingQueue) userNotes() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification(nil), q.notes...)
}

func (q *recordingQueue) adminNotes() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification(nil), q.admins...)
}

// recordingCache records invalidated tags.
type recordingCache struct {
	mu   sync.Mutex
	tags []string
}

func (c *recordingCache) Invalidate(tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = append(c.tags, tags...)
}

func (c *recordingCache) invalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.tags...)
}

type fixture struct {
	db    *gorm.DB
	deps  Deps
	queue *recordingQueue
	cache *recordingCache
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := newTestDB(t)
	queue := &recordingQueue{}
	cache := &recordingCache{}
	return &fixture{
		db:    gdb,
		deps:  Deps{DB: gdb, Log: quietLogger(), Notify: queue, Cache: cache},
		queue: queue,
		cache: cache,
		ctx:   context.Background(),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := models.User{Name: name, Email: strings.ToLower(name) + "@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, f.db.Create(&u).Error)
	return &u
}

func (f *fixture) admin(t *testing.T, name string) *models.User {
	t.Helper()
	u := models.User{Name: name, Email: strings.ToLower(name) + "@example.com", Password: "x", Role: models.RoleAdmin}
	require.NoError(t, f.db.Create(&u).Error)
	return &u
}

func (f *fixture) officialStation(t *testing.T) *models.Station {
	t.Helper()
	st := models.Station{
		Name: "YPF Centro", Brand: "YPF", Address: "Av. Colón 1200", City: "Córdoba", Province: "Córdoba",
		Latitude: -31.41, Longitude: -64.19, Source: models.SourceOfficial, ModerationState: models.StateApproved,
	}
	require.NoError(t, f.db.Create(&st).Error)
	return &st
}

func (f *fixture) userStation(t *testing.T, creator *models.User, state models.ModerationState) *models.Station {
	t.Helper()
	id := creator.ID
	st := models.Station{
		Name: "Shell Ruta 9", Brand: "Shell", Address: "Ruta 9 km 700", City: "Villa María", Province: "Córdoba",
		Latitude: -32.41, Longitude: -63.24, CreatorUserID: &id, Source: models.SourceUser, ModerationState: state,
	}
	require.NoError(t, f.db.Create(&st).Error)
	return &st
}

func (f *fixture) userPrice(t *testing.T, station *models.Station, reporter *models.User) *models.PriceReport {
	t.Helper()
	p := models.PriceReport{
		StationID: station.ID, ReporterUserID: reporter.ID, FuelType: models.FuelNafta, Price: 850,
		TimeOfDay: models.TimeDiurno, Source: models.SourceUser,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return &p
}

func identity(u *models.User) *Identity {
	return IdentityOf(u)
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}
