package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"naftapp/internal/metrics"
	"naftapp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	MaxPrice      = 100000.0
	MaxNotesRunes = 288
)

type PriceInput struct {
	StationID uint             `json:"station_id"`
	FuelType  models.FuelType  `json:"fuel_type"`
	Price     float64          `json:"price"`
	TimeOfDay models.TimeOfDay `json:"time_of_day"`
	Notes     string           `json:"notes"`
}

// PriceView is a price row as shown on a station page.
type PriceView struct {
	models.PriceReport
	ConfirmationCount int64 `json:"confirmation_count"`
	ConfirmedByViewer bool  `json:"confirmed_by_viewer"`
}

// Cache is the read side of the tag cache.
type Cache interface {
	Invalidator
	Get(key string) interface{}
	Set(key string, data interface{}, tags ...string)
}

type PriceService struct {
	Deps
	confirmations *ConfirmationService
	readCache     Cache
}

// NewPriceService wires the price paths. readCache may be nil.
func NewPriceService(d Deps, confirmations *ConfirmationService, readCache Cache) *PriceService {
	return &PriceService{Deps: d, confirmations: confirmations, readCache: readCache}
}

// ReportPrice stores a user's price observation. "ambos" creates one row per time of day.
func (s *PriceService) ReportPrice(ctx context.Context, userID uint, in PriceInput) ([]models.PriceReport, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	times, err := validatePriceInput(&in)
	if err != nil {
		return nil, err
	}

	var created []models.PriceReport
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var station models.Station
		if err := tx.First(&station, in.StationID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("station")
			}
			return err
		}
		if !station.IsPublic() {
			return ErrNotFound("station")
		}

		now := time.Now()
		for _, tod := range times {
			row := models.PriceReport{
				StationID:      in.StationID,
				ReporterUserID: userID,
				FuelType:       in.FuelType,
				Price:          in.Price,
				TimeOfDay:      tod,
				Source:         models.SourceUser,
				Notes:          in.Notes,
				IsValidated:    false,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			created = append(created, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(StationTag(in.StationID))
	metrics.RecordEvent(metrics.EventPriceReported)
	s.Log.WithFields(logrus.Fields{
		"operation": "report_price",
		"entity_id": in.StationID,
		"user_id":   userID,
		"rows":      len(created),
	}).Info("Price reported")
	return created, nil
}

// SetStationPrice is the owner quick-entry path: the creator of an approved station
// sets its price directly. Rows are trusted and upserted per fuel and time of day.
func (s *PriceService) SetStationPrice(ctx context.Context, userID, stationID uint, in PriceInput) ([]models.PriceReport, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	in.StationID = stationID
	times, err := validatePriceInput(&in)
	if err != nil {
		return nil, err
	}

	var saved []models.PriceReport
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var station models.Station
		if err := forUpdate(tx).First(&station, stationID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("station")
			}
			return err
		}
		if !station.IsCreatedBy(userID) {
			return ErrForbidden("only the station owner can set its prices")
		}
		if station.ModerationState != models.StateApproved {
			return ErrInvalidState("station is %s, prices can be set once it is approved", station.ModerationState)
		}

		for _, tod := range times {
			var row models.PriceReport
			err := tx.Where("station_id = ? AND fuel_type = ? AND time_of_day = ? AND source = ? AND reporter_user_id = ?",
				stationID, in.FuelType, tod, models.SourceUser, userID).
				Order("id DESC").
				First(&row).Error
			switch {
			case err == nil:
				row.Price = in.Price
				row.Notes = in.Notes
				row.Trusted = true
				row.IsValidated = true
				row.UpdatedAt = time.Now()
				if err := tx.Model(&row).Select("price", "notes", "trusted", "is_validated", "updated_at").Updates(&row).Error; err != nil {
					return err
				}
			case isNotFound(err):
				row = models.PriceReport{
					StationID:      stationID,
					ReporterUserID: userID,
					FuelType:       in.FuelType,
					Price:          in.Price,
					TimeOfDay:      tod,
					Source:         models.SourceUser,
					Notes:          in.Notes,
					Trusted:        true,
					IsValidated:    true,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			default:
				return err
			}
			saved = append(saved, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tags := []string{StationTag(stationID)}
	for _, row := range saved {
		tags = append(tags, PriceTag(row.ID))
	}
	s.invalidate(tags...)
	metrics.RecordEvent(metrics.EventPriceQuickSet)
	return saved, nil
}

// StationPrices returns the most recently written price per fuel type, time of day and source.
func (s *PriceService) StationPrices(ctx context.Context, stationID uint, viewer *Identity) ([]PriceView, error) {
	var station models.Station
	if err := s.DB.WithContext(ctx).First(&station, stationID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound("station")
		}
		return nil, err
	}
	if !canView(&station, viewer) {
		return nil, ErrNotFound("station")
	}

	views, err := s.cachedLatestPrices(ctx, stationID)
	if err != nil {
		return nil, err
	}

	uid := viewerID(viewer)
	if uid == 0 || len(views) == 0 {
		return views, nil
	}
	ids := make([]uint, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	confirmed, err := s.confirmations.ConfirmedBy(ctx, uid, ids)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].ConfirmedByViewer = confirmed[views[i].ID]
	}
	return views, nil
}

// cachedLatestPrices returns a copy safe for per-viewer decoration.
func (s *PriceService) cachedLatestPrices(ctx context.Context, stationID uint) ([]PriceView, error) {
	key := fmt.Sprintf("prices:station:%d", stationID)
	if s.readCache != nil {
		if cached, ok := s.readCache.Get(key).([]PriceView); ok {
			return append([]PriceView(nil), cached...), nil
		}
	}

	var rows []models.PriceReport
	if err := s.DB.WithContext(ctx).
		Where("station_id = ?", stationID).
		Order("updated_at DESC, id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	type slot struct {
		fuel   models.FuelType
		tod    models.TimeOfDay
		source models.Source
	}
	seen := make(map[slot]bool)
	var latest []models.PriceReport
	for _, r := range rows {
		k := slot{r.FuelType, r.TimeOfDay, r.Source}
		if seen[k] {
			continue
		}
		seen[k] = true
		latest = append(latest, r)
	}
	sort.SliceStable(latest, func(i, j int) bool {
		if latest[i].FuelType != latest[j].FuelType {
			return fuelOrder(latest[i].FuelType) < fuelOrder(latest[j].FuelType)
		}
		if latest[i].TimeOfDay != latest[j].TimeOfDay {
			return latest[i].TimeOfDay == models.TimeDiurno
		}
		return latest[i].Source == models.SourceOfficial
	})

	ids := make([]uint, len(latest))
	for i, r := range latest {
		ids[i] = r.ID
	}
	counts, err := s.confirmations.ConfirmationCounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]PriceView, len(latest))
	tags := []string{StationTag(stationID)}
	for i, r := range latest {
		views[i] = PriceView{PriceReport: r, ConfirmationCount: counts[r.ID]}
		tags = append(tags, PriceTag(r.ID))
	}
	if s.readCache != nil {
		s.readCache.Set(key, views, tags...)
	}
	return append([]PriceView(nil), views...), nil
}

func fuelOrder(f models.FuelType) int {
	for i, ft := range models.FuelTypes {
		if ft == f {
			return i
		}
	}
	return len(models.FuelTypes)
}

// validatePriceInput normalises in and returns the stored time-of-day values.
func validatePriceInput(in *PriceInput) ([]models.TimeOfDay, error) {
	errs := ValidationErrors{}
	if in.StationID == 0 {
		errs.Add("station_id", "is required")
	}
	in.FuelType = models.FuelType(strings.TrimSpace(string(in.FuelType)))
	if !in.FuelType.Valid() {
		errs.Add("fuel_type", "must be one of nafta, nafta_premium, gasoil, gasoil_premium, gnc")
	}
	// Round first so nothing below a cent is stored as zero.
	if !math.IsNaN(in.Price) && !math.IsInf(in.Price, 0) {
		in.Price = math.Round(in.Price*100) / 100
	}
	if math.IsNaN(in.Price) || in.Price <= 0 {
		errs.Add("price", "must be greater than 0")
	} else if in.Price > MaxPrice {
		errs.Add("price", fmt.Sprintf("must be at most %.0f", MaxPrice))
	}
	times := in.TimeOfDay.Expand()
	if times == nil {
		errs.Add("time_of_day", "must be diurno, nocturno or ambos")
	}
	in.Notes = SanitizeText(in.Notes)
	if utf8.RuneCountInString(in.Notes) > MaxNotesRunes {
		errs.Add("notes", fmt.Sprintf("must be at most %d characters", MaxNotesRunes))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return times, nil
}

// canView hides unmoderated stations from everyone but their creator and admins.
func canView(station *models.Station, viewer *Identity) bool {
	if station.IsPublic() {
		return true
	}
	return viewer.IsAdmin() || (viewer != nil && station.IsCreatedBy(viewer.UserID))
}
