package reportstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimdaga/friend-frenzy/internal/insights"
	"github.com/jimdaga/friend-frenzy/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps insights records in the poll_ai_insights table.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a store on an open database.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Get loads the record of a poll. A missing row is (nil, nil).
func (s *GormStore) Get(ctx context.Context, pollID string) (*insights.Record, error) {
	var row models.PollInsight
	err := s.db.WithContext(ctx).Where("poll_id = ?", pollID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load insights record: %w", err)
	}

	report, err := decodeReport(row.Insights)
	if err != nil {
		return nil, err
	}

	return &insights.Record{
		PollID:    row.PollID,
		Status:    insights.Status(row.Status),
		Report:    report,
		Error:     row.ErrorMessage,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Put upserts the whole record; the last write wins.
func (s *GormStore) Put(ctx context.Context, pollID string, rec insights.Record) error {
	data, err := encodeReport(rec.Report)
	if err != nil {
		return err
	}

	row := models.PollInsight{
		PollID:       pollID,
		Status:       string(rec.Status),
		Insights:     datatypes.JSON(data),
		ErrorMessage: rec.Error,
		UpdatedAt:    s.now().UTC(),
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "poll_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "insights", "error_message", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save insights record: %w", err)
	}
	return nil
}
