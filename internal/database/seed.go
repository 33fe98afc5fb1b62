package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/friend-frenzy/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const devCreatorEmail = "dev@friendfrenzy.local"

// SeedDevData populates the database with a development creator, one closed
// poll with votes and a confession, and one active poll.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	var existing models.Creator
	result := db.Where("email = ?", devCreatorEmail).First(&existing)
	if result.Error == nil {
		slog.Info("Seed data already exists, skipping")
		return nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check seed data: %w", result.Error)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		creator := models.Creator{
			ID:    uuid.NewString(),
			Name:  "Dev Creator",
			Email: devCreatorEmail,
		}
		if err := tx.Create(&creator).Error; err != nil {
			return err
		}

		questions := []string{
			"Who is the life of the party?",
			"Who would survive a zombie apocalypse?",
			"What are the chances that Asha has a crush on Ben?",
		}

		closed, err := seedPoll(tx, creator.ID, 1, "Closed Dev Frenzy", models.PollStatusClosed, questions)
		if err != nil {
			return err
		}
		if _, err := seedPoll(tx, creator.ID, 2, "Active Dev Frenzy", models.PollStatusActive, questions[:2]); err != nil {
			return err
		}

		// Everyone votes for the first friend on the first question; the
		// pair question gets a 75% answer.
		voters := closed.Friends
		for _, voter := range voters {
			target := voters[0].ID
			if err := tx.Create(&models.Vote{
				PollID:         closed.ID,
				Question:       questions[0],
				VoterID:        voter.ID,
				TargetFriendID: &target,
				VoterIP:        "127.0.0.1",
			}).Error; err != nil {
				return err
			}
			option := "75"
			if err := tx.Create(&models.Vote{
				PollID:       closed.ID,
				Question:     questions[2],
				VoterID:      voter.ID,
				AnswerOption: &option,
				VoterIP:      "127.0.0.1",
			}).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Result{}).
			Where("poll_id = ? AND question = ? AND friend_id = ?", closed.ID, questions[0], voters[0].ID).
			Update("vote_count", len(voters)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Result{}).
			Where("poll_id = ? AND question = ? AND answer_option = ?", closed.ID, questions[2], "75").
			Update("vote_count", len(voters)).Error; err != nil {
			return err
		}

		if err := tx.Create(&models.Confession{
			PollID:         closed.ID,
			ConfessionText: "I voted for myself every single time.",
		}).Error; err != nil {
			return err
		}

		slog.Info("Seeded dev data", "creator", creator.Email, "polls", 2, "closed_poll_id", closed.ID)
		return nil
	})
}

func seedPoll(tx *gorm.DB, creatorID string, seq int, name, status string, questions []string) (*models.Poll, error) {
	questionJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, err
	}

	poll := models.Poll{
		ID:            uuid.NewString(),
		CreatorID:     creatorID,
		CreatorIP:     "127.0.0.1",
		PollName:      name,
		QuestionSet:   datatypes.JSON(questionJSON),
		Status:        status,
		AdminToken:    uuid.NewString(),
		CreatorPollID: seq,
		ExpiresAt:     time.Now().Add(7 * 24 * time.Hour),
	}
	if err := tx.Omit("Creator", "Friends").Create(&poll).Error; err != nil {
		return nil, err
	}

	for _, friendName := range []string{"Asha", "Ben", "Chidi"} {
		friend := models.Friend{ID: uuid.NewString(), PollID: poll.ID, Name: friendName}
		if err := tx.Create(&friend).Error; err != nil {
			return nil, err
		}
		poll.Friends = append(poll.Friends, friend)
	}

	for _, q := range questions[:2] {
		for _, f := range poll.Friends {
			friendID := f.ID
			if err := tx.Create(&models.Result{PollID: poll.ID, Question: q, FriendID: &friendID}).Error; err != nil {
				return nil, err
			}
		}
	}
	if len(questions) > 2 {
		for _, opt := range []string{"10", "25", "50", "75", "90"} {
			option := opt
			if err := tx.Create(&models.Result{PollID: poll.ID, Question: questions[2], AnswerOption: &option}).Error; err != nil {
				return nil, err
			}
		}
	}

	return &poll, nil
}
