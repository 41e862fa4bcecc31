package services

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"naftapp/internal/metrics"
	"naftapp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Argentina bounding box used to reject obviously wrong coordinates.
const (
	minLatitude  = -55.1
	maxLatitude  = -21.7
	minLongitude = -73.6
	maxLongitude = -53.6

	maxReasonRunes = 500
)

type StationInput struct {
	Name      string  `json:"name"`
	Brand     string  `json:"brand"`
	Address   string  `json:"address"`
	City      string  `json:"city"`
	Province  string  `json:"province"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// StationChanges are the corrections a creator may send with a resubmission.
type StationChanges struct {
	Name      *string  `json:"name"`
	Brand     *string  `json:"brand"`
	Address   *string  `json:"address"`
	City      *string  `json:"city"`
	Province  *string  `json:"province"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type StationView struct {
	models.Station
	PreviousRejectionReason string `json:"previous_rejection_reason,omitempty"`
}

type StationService struct {
	Deps
}

func NewStationService(d Deps) *StationService {
	return &StationService{Deps: d}
}

// CreateStation registers a user station. Non-admin stations start pending and a
// user may only have one pending station at a time.
func (s *StationService) CreateStation(ctx context.Context, actor *Identity, in StationInput) (*models.Station, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if err := validateStationInput(&in); err != nil {
		return nil, err
	}

	creator := actor.UserID
	station := models.Station{
		Name:            in.Name,
		Brand:           in.Brand,
		Address:         in.Address,
		City:            in.City,
		Province:        in.Province,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		CreatorUserID:   &creator,
		Source:          models.SourceUser,
		ModerationState: models.StatePending,
	}
	if actor.IsAdmin() {
		station.ModerationState = models.StateApproved
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if station.ModerationState == models.StatePending {
			if err := ensureNoPendingStation(tx, creator, 0); err != nil {
				return err
			}
		}
		if err := tx.Create(&station).Error; err != nil {
			if isUniqueViolation(err) {
				return errPendingStationExists()
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(StationTag(station.ID))
	metrics.RecordEvent(metrics.EventStationCreated)
	s.Log.WithFields(logrus.Fields{
		"operation": "create_station",
		"entity_id": station.ID,
		"user_id":   creator,
		"state":     station.ModerationState,
	}).Info("Station created")

	if station.ModerationState == models.StatePending {
		s.notifyAdmins(models.NotificationStationPending, stationContext(&station))
	}
	return &station, nil
}

// GetStation returns a station. Unmoderated stations are only visible to their creator and admins.
func (s *StationService) GetStation(ctx context.Context, stationID uint, viewer *Identity) (*StationView, error) {
	db := s.DB.WithContext(ctx)
	var station models.Station
	if err := db.First(&station, stationID).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound("station")
		}
		return nil, err
	}
	if !canView(&station, viewer) {
		return nil, ErrNotFound("station")
	}

	view := &StationView{Station: station}
	if station.Source == models.SourceUser && (viewer.IsAdmin() || (viewer != nil && station.IsCreatedBy(viewer.UserID))) {
		reason, err := latestRejectionReason(db, station.ID)
		if err != nil {
			return nil, err
		}
		view.PreviousRejectionReason = reason
	}
	return view, nil
}

// ListPendingStations is the admin review queue, oldest first.
func (s *StationService) ListPendingStations(ctx context.Context, actor *Identity) ([]models.Station, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden("admin role required")
	}
	var stations []models.Station
	err := s.DB.WithContext(ctx).
		Where("source = ? AND moderation_state = ?", models.SourceUser, models.StatePending).
		Order("created_at ASC, id ASC").
		Find(&stations).Error
	return stations, err
}

// ModerationHistory returns a station's audit trail, oldest first.
func (s *StationService) ModerationHistory(ctx context.Context, actor *Identity, stationID uint) ([]models.ModerationRecord, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden("admin role required")
	}
	var records []models.ModerationRecord
	err := s.DB.WithContext(ctx).
		Where("station_id = ?", stationID).
		Order("created_at ASC, id ASC").
		Find(&records).Error
	return records, err
}

// Moderate applies an admin approve/reject decision to a pending user station.
func (s *StationService) Moderate(ctx context.Context, actor *Identity, stationID uint, action models.ModerationAction, reason string) (*StationView, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden("admin role required")
	}
	if action != models.ActionApprove && action != models.ActionReject {
		return nil, ValidationErrors{"action": "must be approve or reject"}.Err()
	}
	reason = SanitizeText(reason)
	if utf8.RuneCountInString(reason) > maxReasonRunes {
		return nil, ValidationErrors{"reason": fmt.Sprintf("must be at most %d characters", maxReasonRunes)}.Err()
	}

	var station models.Station
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&station, stationID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("station")
			}
			return err
		}
		if station.Source != models.SourceUser {
			return ErrInvalidSource("only user-created stations are moderated")
		}
		next, err := NextState(station.ModerationState, action)
		if err != nil {
			return err
		}

		record := models.ModerationRecord{
			StationID:       station.ID,
			ModeratorUserID: actor.UserID,
			Action:          action,
			Reason:          reason,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if err := tx.Model(&station).Update("moderation_state", next).Error; err != nil {
			return err
		}
		station.ModerationState = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(StationTag(station.ID))
	kind := models.NotificationStationApproved
	event := metrics.EventStationApproved
	if action == models.ActionReject {
		kind = models.NotificationStationRejected
		event = metrics.EventStationRejected
	}
	metrics.RecordEvent(event)
	s.Log.WithFields(logrus.Fields{
		"operation": "moderate_station",
		"entity_id": station.ID,
		"user_id":   actor.UserID,
		"action":    action,
	}).Info("Station moderated")

	if station.CreatorUserID != nil {
		if recipient, ok := recipientOf(s.DB.WithContext(ctx), *station.CreatorUserID); ok {
			nctx := stationContext(&station)
			nctx["reason"] = reason
			s.notify(Notification{Kind: kind, Recipient: recipient, Context: nctx})
		}
	}

	view := &StationView{Station: station}
	if action == models.ActionReject {
		view.PreviousRejectionReason = reason
	}
	return view, nil
}

// Resubmit sends a rejected station back to review. Only its creator may do this.
func (s *StationService) Resubmit(ctx context.Context, actor *Identity, stationID uint, changes StationChanges) (*StationView, error) {
	if err := requireIdentity(actor); err != nil {
		return nil, err
	}

	var (
		station        models.Station
		previousReason string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&station, stationID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("station")
			}
			return err
		}
		if !station.IsCreatedBy(actor.UserID) {
			return ErrForbidden("only the station creator can resubmit it")
		}
		next, err := NextState(station.ModerationState, models.ActionResubmit)
		if err != nil {
			return err
		}
		if err := applyStationChanges(&station, changes); err != nil {
			return err
		}
		if err := ensureNoPendingStation(tx, actor.UserID, station.ID); err != nil {
			return err
		}

		station.ModerationState = next
		if err := tx.Model(&station).Select(
			"name", "brand", "address", "city", "province", "latitude", "longitude", "moderation_state",
		).Updates(&station).Error; err != nil {
			if isUniqueViolation(err) {
				return errPendingStationExists()
			}
			return err
		}

		previousReason, err = latestRejectionReason(tx, station.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(StationTag(station.ID))
	metrics.RecordEvent(metrics.EventStationResubmitted)

	nctx := stationContext(&station)
	nctx["previous_reason"] = previousReason
	if recipient, ok := recipientOf(s.DB.WithContext(ctx), actor.UserID); ok {
		s.notify(Notification{Kind: models.NotificationStationResubmitted, Recipient: recipient, Context: nctx})
	}
	s.notifyAdmins(models.NotificationStationPending, stationContext(&station))

	return &StationView{Station: station, PreviousRejectionReason: previousReason}, nil
}

func latestRejectionReason(tx *gorm.DB, stationID uint) (string, error) {
	var record models.ModerationRecord
	err := tx.Where("station_id = ? AND action = ?", stationID, models.ActionReject).
		Order("created_at DESC, id DESC").
		First(&record).Error
	if isNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.Reason, nil
}

// ensureNoPendingStation fails when userID has a pending station other than exceptID.
func ensureNoPendingStation(tx *gorm.DB, userID, exceptID uint) error {
	var count int64
	q := tx.Model(&models.Station{}).
		Where("creator_user_id = ? AND moderation_state = ?", userID, models.StatePending)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errPendingStationExists()
	}
	return nil
}

func errPendingStationExists() *Error {
	return ErrConflict("you already have a station waiting for review")
}

func stationContext(st *models.Station) map[string]string {
	return map[string]string{
		"station_id":      fmt.Sprintf("%d", st.ID),
		"station_name":    st.Name,
		"station_address": fmt.Sprintf("%s, %s, %s", st.Address, st.City, st.Province),
	}
}

func applyStationChanges(st *models.Station, ch StationChanges) error {
	in := StationInput{
		Name: st.Name, Brand: st.Brand, Address: st.Address, City: st.City,
		Province: st.Province, Latitude: st.Latitude, Longitude: st.Longitude,
	}
	if ch.Name != nil {
		in.Name = *ch.Name
	}
	if ch.Brand != nil {
		in.Brand = *ch.Brand
	}
	if ch.Address != nil {
		in.Address = *ch.Address
	}
	if ch.City != nil {
		in.City = *ch.City
	}
	if ch.Province != nil {
		in.Province = *ch.Province
	}
	if ch.Latitude != nil {
		in.Latitude = *ch.Latitude
	}
	if ch.Longitude != nil {
		in.Longitude = *ch.Longitude
	}
	if err := validateStationInput(&in); err != nil {
		return err
	}
	st.Name, st.Brand, st.Address, st.City, st.Province = in.Name, in.Brand, in.Address, in.City, in.Province
	st.Latitude, st.Longitude = in.Latitude, in.Longitude
	return nil
}

func validateStationInput(in *StationInput) error {
	errs := ValidationErrors{}
	text := func(field string, value *string, max int, required bool) {
		*value = SanitizeText(*value)
		n := utf8.RuneCountInString(*value)
		if n == 0 && required {
			errs.Add(field, "is required")
		} else if n > max {
			errs.Add(field, fmt.Sprintf("must be at most %d characters", max))
		}
	}
	text("name", &in.Name, 120, true)
	text("brand", &in.Brand, 60, false)
	text("address", &in.Address, 200, true)
	text("city", &in.City, 100, true)
	text("province", &in.Province, 100, true)

	if math.IsNaN(in.Latitude) || in.Latitude < minLatitude || in.Latitude > maxLatitude {
		errs.Add("latitude", "must be inside Argentina")
	}
	if math.IsNaN(in.Longitude) || in.Longitude < minLongitude || in.Longitude > maxLongitude {
		errs.Add("longitude", "must be inside Argentina")
	}
	return errs.Err()
}
