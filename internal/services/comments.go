package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"naftapp/internal/metrics"
	"naftapp/internal/models"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const MaxCommentRunes = 144

// textPolicy strips all markup from user text.
var textPolicy = bluemonday.StrictPolicy()

type CommentView struct {
	ID               uint      `json:"id"`
	StationID        uint      `json:"station_id"`
	AuthorUserID     uint      `json:"author_user_id"`
	AuthorName       string    `json:"author_name"`
	Text             string    `json:"text"`
	VoteCount        int64     `json:"vote_count"`
	VotedByViewer    bool      `json:"voted_by_viewer"`
	ReportedByViewer bool      `json:"reported_by_viewer"`
	IsOwn            bool      `json:"is_own"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type VoteResult struct {
	Voted     bool  `json:"voted"`
	VoteCount int64 `json:"vote_count"`
}

type ReportResult struct {
	Reported bool                  `json:"reported"`
	Reasons  []models.ReportReason `json:"reasons"`
}

var errAlreadyVoted = errors.New("vote already recorded")

type CommentService struct {
	Deps
}

func NewCommentService(d Deps) *CommentService {
	return &CommentService{Deps: d}
}

// CreateComment adds the user's single comment on a station.
func (s *CommentService) CreateComment(ctx context.Context, userID, stationID uint, text string) (*models.Comment, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	text, err := cleanCommentText(text)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{StationID: stationID, AuthorUserID: userID, Text: text}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var station models.Station
		if err := tx.First(&station, stationID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("station")
			}
			return err
		}
		if !station.IsPublic() {
			return ErrNotFound("station")
		}

		var existing int64
		if err := tx.Model(&models.Comment{}).
			Where("station_id = ? AND author_user_id = ?", stationID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrConflict("you already commented on this station")
		}
		if err := tx.Create(&comment).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("you already commented on this station")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(StationTag(stationID))
	metrics.RecordEvent(metrics.EventCommentCreated)
	return &comment, nil
}

// UpdateComment edits the caller's own comment. Someone else's comment is reported as not found.
func (s *CommentService) UpdateComment(ctx context.Context, userID, commentID uint, text string) (*models.Comment, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	text, err := cleanCommentText(text)
	if err != nil {
		return nil, err
	}

	var comment models.Comment
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ownComment(tx, userID, commentID, &comment); err != nil {
			return err
		}
		comment.Text = text
		return tx.Model(&comment).Update("text", text).Error
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(StationTag(comment.StationID))
	return &comment, nil
}

// DeleteComment removes the caller's own comment with its votes and reports.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	if err := requireUser(userID); err != nil {
		return err
	}

	var comment models.Comment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ownComment(tx, userID, commentID, &comment); err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.CommentVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.CommentReport{}).Error; err != nil {
			return err
		}
		return tx.Delete(&comment).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(StationTag(comment.StationID))
	return nil
}

// ToggleVote marks the comment as useful, or removes the caller's earlier vote.
func (s *CommentService) ToggleVote(ctx context.Context, userID, commentID uint) (VoteResult, error) {
	if err := requireUser(userID); err != nil {
		return VoteResult{}, err
	}

	var (
		comment models.Comment
		voted   bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&comment, commentID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("comment")
			}
			return err
		}
		if comment.AuthorUserID == userID {
			return ErrSelfAction("you cannot vote your own comment")
		}

		res := tx.Where("comment_id = ? AND voter_user_id = ?", commentID, userID).Delete(&models.CommentVote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			voted = false
			return nil
		}

		vote := models.CommentVote{CommentID: commentID, VoterUserID: userID}
		if err := tx.Create(&vote).Error; err != nil {
			if isUniqueViolation(err) {
				return errAlreadyVoted
			}
			return err
		}
		voted = true
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyVoted):
		// a concurrent call from the same user inserted first
		voted = true
	case err != nil:
		return VoteResult{}, err
	}

	// 统计 CommentVote 表，而非内存计数
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.CommentVote{}).
		Where("comment_id = ?", commentID).
		Count(&count).Error; err != nil {
		return VoteResult{}, err
	}

	s.invalidate(StationTag(comment.StationID))
	if voted {
		metrics.RecordEvent(metrics.EventCommentVoted)
	} else {
		metrics.RecordEvent(metrics.EventCommentUnvoted)
	}
	return VoteResult{Voted: voted, VoteCount: count}, nil
}

// ReportComment files an abuse report with one or more reasons. Reporting twice is a conflict.
func (s *CommentService) ReportComment(ctx context.Context, userID, commentID uint, reasons []models.ReportReason, notes string) (ReportResult, error) {
	if err := requireUser(userID); err != nil {
		return ReportResult{}, err
	}
	reasons, notes, err := validateReport(reasons, notes)
	if err != nil {
		return ReportResult{}, err
	}

	var comment models.Comment
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the comment so concurrent reports by one user serialize on the count below.
		if err := forUpdate(tx).First(&comment, commentID).Error; err != nil {
			if isNotFound(err) {
				return ErrNotFound("comment")
			}
			return err
		}
		if comment.AuthorUserID == userID {
			return ErrSelfAction("you cannot report your own comment")
		}

		var existing int64
		if err := tx.Model(&models.CommentReport{}).
			Where("comment_id = ? AND reporter_user_id = ?", commentID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrConflict("you already reported this comment")
		}

		now := time.Now()
		rows := make([]models.CommentReport, len(reasons))
		for i, reason := range reasons {
			rows[i] = models.CommentReport{
				CommentID:      commentID,
				ReporterUserID: userID,
				Reason:         reason,
				Notes:          notes,
				CreatedAt:      now,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrConflict("you already reported this comment")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return ReportResult{}, err
	}

	metrics.RecordEvent(metrics.EventCommentReported)
	s.Log.WithFields(logrus.Fields{
		"operation": "report_comment",
		"entity_id": commentID,
		"user_id":   userID,
		"reasons":   reasons,
	}).Info("Comment reported")

	// 异步发送感谢通知和管理员提醒
	if recipient, ok := recipientOf(s.DB.WithContext(ctx), userID); ok {
		s.notify(Notification{Kind: models.NotificationReportThanks, Recipient: recipient})
	}
	reasonNames := make([]string, len(reasons))
	for i, r := range reasons {
		reasonNames[i] = string(r)
	}
	s.notifyAdmins(models.NotificationCommentReported, map[string]string{
		"comment_id": strconv.FormatUint(uint64(commentID), 10),
		"station_id": strconv.FormatUint(uint64(comment.StationID), 10),
		"reasons":    strings.Join(reasonNames, ", "),
	})

	return ReportResult{Reported: true, Reasons: reasons}, nil
}

// ListComments returns a station's comments, most useful first, then newest.
func (s *CommentService) ListComments(ctx context.Context, stationID uint, viewer *Identity) ([]CommentView, error) {
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

	var comments []models.Comment
	if err := db.Preload("Author").Where("station_id = ?", stationID).Find(&comments).Error; err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return []CommentView{}, nil
	}

	ids := make([]uint, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}

	// 批量查询投票数
	type countResult struct {
		CommentID uint
		Count     int64
	}
	var counts []countResult
	if err := db.Model(&models.CommentVote{}).
		Select("comment_id, COUNT(*) as count").
		Where("comment_id IN ?", ids).
		Group("comment_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	countMap := make(map[uint]int64, len(counts))
	for _, c := range counts {
		countMap[c.CommentID] = c.Count
	}

	voted := make(map[uint]bool)
	reported := make(map[uint]bool)
	uid := viewerID(viewer)
	if uid != 0 {
		var votedIDs, reportedIDs []uint
		if err := db.Model(&models.CommentVote{}).
			Where("voter_user_id = ? AND comment_id IN ?", uid, ids).
			Pluck("comment_id", &votedIDs).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.CommentReport{}).
			Where("reporter_user_id = ? AND comment_id IN ?", uid, ids).
			Distinct().
			Pluck("comment_id", &reportedIDs).Error; err != nil {
			return nil, err
		}
		for _, id := range votedIDs {
			voted[id] = true
		}
		for _, id := range reportedIDs {
			reported[id] = true
		}
	}

	views := make([]CommentView, len(comments))
	for i, c := range comments {
		views[i] = CommentView{
			ID:               c.ID,
			StationID:        c.StationID,
			AuthorUserID:     c.AuthorUserID,
			AuthorName:       c.Author.Name,
			Text:             c.Text,
			VoteCount:        countMap[c.ID],
			VotedByViewer:    voted[c.ID],
			ReportedByViewer: reported[c.ID],
			IsOwn:            uid != 0 && c.AuthorUserID == uid,
			CreatedAt:        c.CreatedAt,
			UpdatedAt:        c.UpdatedAt,
		}
	}
	sortCommentViews(views)
	return views, nil
}

// sortCommentViews orders by vote count desc, then created_at desc, then id desc.
func sortCommentViews(views []CommentView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.VoteCount != b.VoteCount {
			return a.VoteCount > b.VoteCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// ownComment loads the comment only if it belongs to userID.
func ownComment(tx *gorm.DB, userID, commentID uint, out *models.Comment) error {
	err := tx.Where("id = ? AND author_user_id = ?", commentID, userID).First(out).Error
	if isNotFound(err) {
		return ErrNotFound("comment")
	}
	return err
}

const maxSanitizeRounds = 4

// SanitizeText strips markup and surrounding whitespace from user text.
// Entities are decoded before stripping, and the result is only returned
// unescaped once another pass would leave it unchanged, so encoded markup
// cannot come back to life.
func SanitizeText(s string) string {
	text := html.UnescapeString(s)
	for i := 0; i < maxSanitizeRounds; i++ {
		clean := textPolicy.Sanitize(text)
		plain := html.UnescapeString(clean)
		if plain == text {
			return strings.TrimSpace(plain)
		}
		text = plain
	}
	return strings.TrimSpace(textPolicy.Sanitize(text))
}

func cleanCommentText(text string) (string, error) {
	text = SanitizeText(text)
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return "", ValidationErrors{"text": "is required"}.Err()
	}
	if n > MaxCommentRunes {
		return "", ValidationErrors{"text": fmt.Sprintf("must be at most %d characters", MaxCommentRunes)}.Err()
	}
	return text, nil
}

func validateReport(reasons []models.ReportReason, notes string) ([]models.ReportReason, string, error) {
	errs := ValidationErrors{}
	seen := make(map[models.ReportReason]bool, len(reasons))
	var unique []models.ReportReason
	for _, r := range reasons {
		if !r.Valid() {
			errs.Add("reasons", fmt.Sprintf("unknown reason %q", r))
			continue
		}
		if !seen[r] {
			seen[r] = true
			unique = append(unique, r)
		}
	}
	if len(reasons) == 0 {
		errs.Add("reasons", "select at least one reason")
	}
	notes = SanitizeText(notes)
	if utf8.RuneCountInString(notes) > MaxNotesRunes {
		errs.Add("notes", fmt.Sprintf("must be at most %d characters", MaxNotesRunes))
	}
	if err := errs.Err(); err != nil {
		return nil, "", err
	}
	return unique, notes, nil
}
