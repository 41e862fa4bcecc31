package services

import (
	"context"

	"naftapp/internal/metrics"
	"naftapp/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ValidationThreshold is the number of confirmations from other users that marks
// a user-reported price as validated.
const ValidationThreshold = 3

type ConfirmationResult struct {
	Confirmed         bool  `json:"confirmed"`
	ConfirmationCount int64 `json:"confirmation_count"`
	IsValidated       bool  `json:"is_validated"`
}

// ConfirmationService is the ledger of "this price is right" confirmations.
type ConfirmationService struct {
	Deps
}

func NewConfirmationService(d Deps) *ConfirmationService {
	return &ConfirmationService{Deps: d}
}

// ConfirmPrice records userID's confirmation of another user's price report.
func (s *ConfirmationService) ConfirmPrice(ctx context.Context, userID, priceID uint) (ConfirmationResult, error) {
	if err := requireUser(userID); err != nil {
		return ConfirmationResult{}, err
	}

	var (
		result  ConfirmationResult
		price   models.PriceReport
		flipped bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&price, priceID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("price report")
			}
			return err
		}
		if price.Source != models.SourceUser {
			return ErrInvalidTarget("official prices cannot be confirmed")
		}
		if price.ReporterUserID == userID {
			return ErrSelfAction("you cannot confirm your own price report")
		}

		// 检查是否已确认（唯一索引兜底）
		var existing int64
		if err := tx.Model(&models.Confirmation{}).
			Where("price_report_id = ? AND confirming_user_id = ?", priceID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrConflict("price already confirmed by this user")
		}

		confirmation := models.Confirmation{PriceReportID: priceID, ConfirmingUserID: userID}
		if err := tx.Create(&confirmation).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("price already confirmed by this user")
			}
			return err
		}

		count, changed, err := recomputeValidation(tx, &price)
		if err != nil {
			return err
		}
		flipped = changed
		result = ConfirmationResult{Confirmed: true, ConfirmationCount: count, IsValidated: price.IsValidated}
		return nil
	})
	if err != nil {
		return ConfirmationResult{}, err
	}

	s.afterLedgerChange(&price, metrics.EventPriceConfirmed, flipped)
	s.Log.WithFields(logrus.Fields{
		"operation": "confirm_price",
		"entity_id": priceID,
		"user_id":   userID,
		"count":     result.ConfirmationCount,
	}).Debug("Price confirmed")
	return result, nil
}

// RemoveConfirmation withdraws userID's confirmation.
func (s *ConfirmationService) RemoveConfirmation(ctx context.Context, userID, priceID uint) (ConfirmationResult, error) {
	if err := requireUser(userID); err != nil {
		return ConfirmationResult{}, err
	}

	var (
		result  ConfirmationResult
		price   models.PriceReport
		flipped bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&price, priceID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("confirmation")
			}
			return err
		}

		res := tx.Where("price_report_id = ? AND confirming_user_id = ?", priceID, userID).
			Delete(&models.Confirmation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound("confirmation")
		}

		count, changed, err := recomputeValidation(tx, &price)
		if err != nil {
			return err
		}
		flipped = changed
		result = ConfirmationResult{Confirmed: false, ConfirmationCount: count, IsValidated: price.IsValidated}
		return nil
	})
	if err != nil {
		return ConfirmationResult{}, err
	}

	s.afterLedgerChange(&price, metrics.EventConfirmationRemoved, flipped)
	return result, nil
}

// ConfirmationCounts returns the confirmation count per price id; ids without
// confirmations map to 0.
func (s *ConfirmationService) ConfirmationCounts(ctx context.Context, priceIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(priceIDs))
	if len(priceIDs) == 0 {
		return counts, nil
	}
	for _, id := range priceIDs {
		counts[id] = 0
	}

	type countResult struct {
		PriceReportID uint
		Count         int64
	}
	var results []countResult
	if err := s.DB.WithContext(ctx).Model(&models.Confirmation{}).
		Select("price_report_id, COUNT(*) as count").
		Where("price_report_id IN ?", priceIDs).
		Group("price_report_id").
		Scan(&results).Error; err != nil {
		return nil, err
	}
	for _, r := range results {
		counts[r.PriceReportID] = r.Count
	}
	return counts, nil
}

// ConfirmedBy returns the subset of priceIDs userID has confirmed.
func (s *ConfirmationService) ConfirmedBy(ctx context.Context, userID uint, priceIDs []uint) (map[uint]bool, error) {
	confirmed := make(map[uint]bool)
	if userID == 0 || len(priceIDs) == 0 {
		return confirmed, nil
	}
	var ids []uint
	if err := s.DB.WithContext(ctx).Model(&models.Confirmation{}).
		Where("confirming_user_id = ? AND price_report_id IN ?", userID, priceIDs).
		Pluck("price_report_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		confirmed[id] = true
	}
	return confirmed, nil
}

func (s *ConfirmationService) afterLedgerChange(price *models.PriceReport, event string, flipped bool) {
	s.invalidate(PriceTag(price.ID), StationTag(price.StationID))
	metrics.RecordEvent(event)
	if flipped {
		if price.IsValidated {
			metrics.RecordEvent(metrics.EventPriceValidated)
		} else {
			metrics.RecordEvent(metrics.EventPriceInvalidated)
		}
	}
}

// recomputeValidation counts the ledger inside tx and persists the derived flag.
// changed reports whether the flag flipped.
func recomputeValidation(tx *gorm.DB, price *models.PriceReport) (count int64, changed bool, err error) {
	if err := tx.Model(&models.Confirmation{}).
		Where("price_report_id = ?", price.ID).
		Count(&count).Error; err != nil {
		return 0, false, err
	}

	validated := price.Trusted || count >= ValidationThreshold
	if validated == price.IsValidated {
		return count, false, nil
	}
	if err := tx.Model(&models.PriceReport{}).
		Where("id = ?", price.ID).
		UpdateColumn("is_validated", validated).Error; err != nil {
		return 0, false, err
	}
	price.IsValidated = validated
	return count, true, nil
}
