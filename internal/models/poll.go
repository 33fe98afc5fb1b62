package models

import (
	"time"

	"gorm.io/datatypes"
)

// Poll status constants
const (
	PollStatusActive = "active"
	PollStatusClosed = "closed"
)

// Creator owns polls. Email is the identity key; AuthSubject links the row
// to a Google login once the creator signs in.
type Creator struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"not null"`
	Email       string `gorm:"not null;uniqueIndex"`
	AuthSubject *string
	CreatedAt   time.Time

	Polls []Poll `gorm:"constraint:OnDelete:CASCADE;"`
}

// Poll is a single frenzy: a question set voted on by its friends.
type Poll struct {
	ID            string         `gorm:"type:uuid;primaryKey"`
	CreatorID     string         `gorm:"type:uuid;not null;index"`
	Creator       Creator        `gorm:"constraint:OnDelete:CASCADE;"`
	CreatorIP     string         `gorm:"column:creator_ip;not null;default:'unknown'"`
	PollName      string         `gorm:"not null;default:''"`
	QuestionSet   datatypes.JSON `gorm:"type:jsonb;not null"`
	Status        string         `gorm:"not null;default:'active';index"`
	AdminToken    string         `gorm:"not null"`
	CreatorPollID int            `gorm:"not null"`
	ExpiresAt     time.Time      `gorm:"not null"`
	CreatedAt     time.Time

	Friends []Friend `gorm:"constraint:OnDelete:CASCADE;"`
}

// Friend is a member of a poll; friends are both the voters and the targets.
type Friend struct {
	ID     string `gorm:"type:uuid;primaryKey"`
	PollID string `gorm:"type:uuid;not null;index"`
	Name   string `gorm:"not null"`
	Gender string `gorm:"not null;default:''"`
}

// Result is the running vote counter for one answer to one question:
// either a friend or, for pair questions, a percentage option.
type Result struct {
	ID           uint    `gorm:"primaryKey"`
	PollID       string  `gorm:"type:uuid;not null;index"`
	Question     string  `gorm:"not null"`
	FriendID     *string `gorm:"type:uuid"`
	Friend       *Friend `gorm:"constraint:OnDelete:CASCADE;"`
	AnswerOption *string
	VoteCount    int `gorm:"not null;default:0"`
}

// Vote is one ballot. A voter answers each question at most once.
type Vote struct {
	ID             uint    `gorm:"primaryKey"`
	PollID         string  `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_question_voter"`
	Question       string  `gorm:"not null;uniqueIndex:idx_votes_poll_question_voter"`
	VoterID        string  `gorm:"type:uuid;not null;uniqueIndex:idx_votes_poll_question_voter"`
	TargetFriendID *string `gorm:"type:uuid"`
	AnswerOption   *string
	VoterIP        string `gorm:"column:voter_ip;not null;default:'unknown'"`
	CreatedAt      time.Time
}

// Confession is an anonymous note attached to a poll.
type Confession struct {
	ID             uint   `gorm:"primaryKey"`
	PollID         string `gorm:"type:uuid;not null;index"`
	ConfessionText string `gorm:"not null"`
	CreatedAt      time.Time
}
