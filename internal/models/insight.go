package models

import (
	"time"

	"gorm.io/datatypes"
)

// PollInsight is the cached AI insights record of a poll. One row per poll,
// overwritten wholesale on every transition.
type PollInsight struct {
	PollID       string         `gorm:"type:uuid;primaryKey"`
	Status       string         `gorm:"not null;index"`
	Insights     datatypes.JSON `gorm:"type:jsonb"`
	ErrorMessage string         `gorm:"column:error_message;type:text"`
	UpdatedAt    time.Time
}

// TableName keeps the table name used by the web client's schema.
func (PollInsight) TableName() string {
	return "poll_ai_insights"
}
