//go:build integration
// +build integration

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"naftapp/internal/db"
	"naftapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("naftapp"),
		postgres.WithUsername("naftapp"),
		postgres.WithPassword("naftapp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := db.Open(ctx, dsn, quietLogger())
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func TestConcurrentConfirmationsPostgres(t *testing.T) {
	gdb := setupPostgres(t)
	ctx := context.Background()
	svc := NewConfirmationService(Deps{DB: gdb, Log: quietLogger()})

	reporter := models.User{Name: "Reporter", Email: "reporter@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, gdb.Create(&reporter).Error)
	station := models.Station{
		Name: "YPF", Address: "Av. Siempreviva 742", City: "Rosario", Province: "Santa Fe",
		Latitude: -32.95, Longitude: -60.65, Source: models.SourceOfficial, ModerationState: models.StateApproved,
	}
	require.NoError(t, gdb.Create(&station).Error)
	price := models.PriceReport{
		StationID: station.ID, ReporterUserID: reporter.ID, FuelType: models.FuelNafta,
		Price: 850, TimeOfDay: models.TimeDiurno, Source: models.SourceUser,
	}
	require.NoError(t, gdb.Create(&price).Error)

	const users = 8
	const attemptsPerUser = 3
	ids := make([]uint, users)
	for i := range ids {
		u := models.User{Name: fmt.Sprintf("U%d", i), Email: fmt.Sprintf("u%d@example.com", i), Password: "x", Role: models.RoleUser}
		require.NoError(t, gdb.Create(&u).Error)
		ids[i] = u.ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes = make(map[uint]int)
		conflicts int
	)
	for _, id := range ids {
		for a := 0; a < attemptsPerUser; a++ {
			wg.Add(1)
			go func(userID uint) {
				defer wg.Done()
				_, err := svc.ConfirmPrice(ctx, userID, price.ID)
				mu.Lock()
				defer mu.Unlock()
				switch KindOf(err) {
				case "":
					if err == nil {
						successes[userID]++
					} else {
						t.Errorf("unexpected error: %v", err)
					}
				case KindConflict:
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, 1, successes[id], "user %d", id)
	}
	assert.Equal(t, users*(attemptsPerUser-1), conflicts)

	var stored models.PriceReport
	require.NoError(t, gdb.First(&stored, price.ID).Error)
	assert.True(t, stored.IsValidated)

	// Concurrent withdrawals leave a consistent flag.
	var rm sync.WaitGroup
	for _, id := range ids[:users-2] {
		rm.Add(1)
		go func(userID uint) {
			defer rm.Done()
			_, err := svc.RemoveConfirmation(ctx, userID, price.ID)
			assert.NoError(t, err)
		}(id)
	}
	rm.Wait()

	counts, err := svc.ConfirmationCounts(ctx, []uint{price.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[price.ID])
	require.NoError(t, gdb.First(&stored, price.ID).Error)
	assert.False(t, stored.IsValidated)
}

func TestPendingStationIndexPostgres(t *testing.T) {
	gdb := setupPostgres(t)
	ctx := context.Background()
	svc := NewStationService(Deps{DB: gdb, Log: quietLogger()})

	owner := models.User{Name: "Ana", Email: "ana@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, gdb.Create(&owner).Error)

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateStation(ctx, IdentityOf(&owner), validStationInput())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		if err == nil {
			created++
			continue
		}
		assert.Equal(t, KindConflict, KindOf(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, created)
}

func TestConcurrentCommentReportsPostgres(t *testing.T) {
	gdb := setupPostgres(t)
	ctx := context.Background()
	svc := NewCommentService(Deps{DB: gdb, Log: quietLogger()})

	author := models.User{Name: "Ana", Email: "ana@example.com", Password: "x", Role: models.RoleUser}
	reporter := models.User{Name: "Bruno", Email: "bruno@example.com", Password: "x", Role: models.RoleUser}
	require.NoError(t, gdb.Create(&author).Error)
	require.NoError(t, gdb.Create(&reporter).Error)
	station := models.Station{
		Name: "Shell", Address: "Bv. Oroño 100", City: "Rosario", Province: "Santa Fe",
		Latitude: -32.95, Longitude: -60.65, Source: models.SourceOfficial, ModerationState: models.StateApproved,
	}
	require.NoError(t, gdb.Create(&station).Error)
	comment, err := svc.CreateComment(ctx, author.ID, station.ID, "Siempre sin GNC")
	require.NoError(t, err)

	// Different reasons never collide on the unique index, only the lock serializes them.
	reasons := []models.ReportReason{
		models.ReasonSpam, models.ReasonOther, models.ReasonFalseInformation, models.ReasonInappropriateContent,
	}
	var wg sync.WaitGroup
	results := make(chan error, len(reasons)*2)
	for i := 0; i < 2; i++ {
		for _, reason := range reasons {
			wg.Add(1)
			go func(r models.ReportReason) {
				defer wg.Done()
				_, err := svc.ReportComment(ctx, reporter.ID, comment.ID, []models.ReportReason{r}, "")
				results <- err
			}(reason)
		}
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
			continue
		}
		assert.Equal(t, KindConflict, KindOf(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, accepted)

	var rows int64
	require.NoError(t, gdb.Model(&models.CommentReport{}).
		Where("comment_id = ? AND reporter_user_id = ?", comment.ID, reporter.ID).
		Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}
