// Package polls serves the poll API: creation, voting, results,
// confessions, admin actions and the AI insights endpoint.
package polls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jimdaga/friend-frenzy/internal/insights"
	"github.com/jimdaga/friend-frenzy/internal/models"
	"github.com/jimdaga/friend-frenzy/internal/questions"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Vote outcome errors
var (
	ErrPollClosed    = errors.New("poll is no longer accepting votes")
	ErrUnknownVoter  = errors.New("voter is not a friend of this poll")
	ErrAlreadyVoted  = errors.New("voter already answered this question")
	ErrUnknownChoice = errors.New("vote matches no answer of this question")
)

// Repository is the storage the poll handlers need.
type Repository interface {
	insights.PollSource

	CreatePoll(ctx context.Context, p NewPoll) (*CreatedPoll, error)
	CountRecentPolls(ctx context.Context, ip string, since time.Time) (int64, error)
	GetPoll(ctx context.Context, pollID string) (*models.Poll, error)
	CastVote(ctx context.Context, b Ballot) error
	Results(ctx context.Context, pollID string) (*Results, error)
	AddConfession(ctx context.Context, pollID, text string) error
	AdminToken(ctx context.Context, pollID string) (string, error)
	SetStatus(ctx context.Context, pollID, status string) error
	SetExpiry(ctx context.Context, pollID string, expiresAt time.Time) error
	DeletePoll(ctx context.Context, pollID string) error
	CreatorNameTaken(ctx context.Context, name string) (bool, error)
	CreatorPolls(ctx context.Context, email, subject string) ([]CreatorPoll, error)
}

// NewPoll is a validated creation request.
type NewPoll struct {
	CreatorName string
	Email       string
	PollName    string
	CreatorIP   string
	Friends     []NewFriend
	Questions   []string
	ExpiresAt   time.Time
}

// NewFriend is one friend of a new poll.
type NewFriend struct {
	Name   string `json:"name"`
	Gender string `json:"gender"`
}

// CreatedPoll is returned to the creator once.
type CreatedPoll struct {
	ID            string `json:"id"`
	AdminToken    string `json:"adminToken"`
	CreatorPollID int    `json:"creatorPollId"`
}

// Ballot is one answer. Exactly one of FriendID and Option is set.
type Ballot struct {
	PollID   string
	Question string
	VoterID  string
	FriendID string
	Option   string
	VoterIP  string
	Now      time.Time
}

// Results are the vote counters of a poll keyed by question, then by friend
// name or "N%" option label.
type Results struct {
	Results     map[string]map[string]int `json:"results"`
	TotalVoters int                       `json:"totalVoters"`
}

// CreatorPoll is one row of a signed-in creator's dashboard.
type CreatorPoll struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	QuestionSet json.RawMessage `json:"question_set"`
	CreatedAt   time.Time       `json:"created_at"`
	AdminToken  string          `json:"admin_token"`
	PollName    string          `json:"poll_name"`
}

// GormRepository implements Repository on Postgres.
type GormRepository struct {
	db   *gorm.DB
	bank *questions.Bank
}

// NewGormRepository creates a repository. bank classifies questions for
// result rows and vote categories.
func NewGormRepository(db *gorm.DB, bank *questions.Bank) *GormRepository {
	return &GormRepository{db: db, bank: bank}
}

// validID filters ids that Postgres would reject as uuid input.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CreatePoll stores the creator (matched by email), the poll, its friends
// and zeroed result counters in one transaction.
func (r *GormRepository) CreatePoll(ctx context.Context, p NewPoll) (*CreatedPoll, error) {
	questionJSON, err := json.Marshal(p.Questions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode questions: %w", err)
	}

	var created CreatedPoll
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		creator := models.Creator{ID: uuid.NewString(), Name: p.CreatorName, Email: p.Email}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&creator).Error; err != nil {
			return fmt.Errorf("failed to create creator: %w", err)
		}
		if err := tx.Where("email = ?", p.Email).First(&creator).Error; err != nil {
			return fmt.Errorf("failed to load creator: %w", err)
		}

		var existing int64
		if err := tx.Model(&models.Poll{}).Where("creator_id = ?", creator.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count creator polls: %w", err)
		}

		poll := models.Poll{
			ID:            uuid.NewString(),
			CreatorID:     creator.ID,
			CreatorIP:     p.CreatorIP,
			PollName:      p.PollName,
			QuestionSet:   datatypes.JSON(questionJSON),
			Status:        models.PollStatusActive,
			AdminToken:    uuid.NewString(),
			CreatorPollID: int(existing) + 1,
			ExpiresAt:     p.ExpiresAt,
		}
		if err := tx.Omit("Creator", "Friends").Create(&poll).Error; err != nil {
			return fmt.Errorf("failed to create poll: %w", err)
		}

		friends := make([]models.Friend, len(p.Friends))
		for i, f := range p.Friends {
			friends[i] = models.Friend{ID: uuid.NewString(), PollID: poll.ID, Name: f.Name, Gender: f.Gender}
		}
		if err := tx.Create(&friends).Error; err != nil {
			return fmt.Errorf("failed to create friends: %w", err)
		}

		results := initialResults(r.bank, poll.ID, p.Questions, friends)
		if len(results) > 0 {
			if err := tx.Omit("Friend").Create(&results).Error; err != nil {
				return fmt.Errorf("failed to initialize results: %w", err)
			}
		}

		created = CreatedPoll{ID: poll.ID, AdminToken: poll.AdminToken, CreatorPollID: poll.CreatorPollID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// initialResults builds one zero counter per friend for regular questions
// and one per option for pair questions.
func initialResults(bank *questions.Bank, pollID string, qs []string, friends []models.Friend) []models.Result {
	var results []models.Result
	for _, q := range qs {
		match := bank.Match(q)
		if match.IsPair() {
			for _, label := range match.OptionLabels() {
				option := label
				results = append(results, models.Result{PollID: pollID, Question: q, AnswerOption: &option})
			}
			continue
		}
		for _, f := range friends {
			friendID := f.ID
			results = append(results, models.Result{PollID: pollID, Question: q, FriendID: &friendID})
		}
	}
	return results
}

// CountRecentPolls counts polls created from ip after since.
func (r *GormRepository) CountRecentPolls(ctx context.Context, ip string, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Poll{}).
		Where("creator_ip = ? AND created_at > ?", ip, since).
		Count(&n).Error
	return n, err
}

// GetPoll loads a poll with its creator and friends.
func (r *GormRepository) GetPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	if !validID(pollID) {
		return nil, insights.ErrPollNotFound
	}
	var poll models.Poll
	err := r.db.WithContext(ctx).Preload("Creator").Preload("Friends").First(&poll, "id = ?", pollID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, insights.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load poll: %w", err)
	}
	return &poll, nil
}

// CastVote records a ballot and increments its counter in one transaction.
func (r *GormRepository) CastVote(ctx context.Context, b Ballot) error {
	if !validID(b.PollID) {
		return insights.ErrPollNotFound
	}
	if !validID(b.VoterID) {
		return ErrUnknownVoter
	}
	if b.FriendID != "" && !validID(b.FriendID) {
		return ErrUnknownChoice
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var poll models.Poll
		err := tx.Select("id", "status", "expires_at").First(&poll, "id = ?", b.PollID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return insights.ErrPollNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load poll: %w", err)
		}
		if poll.Status != models.PollStatusActive || b.Now.After(poll.ExpiresAt) {
			return ErrPollClosed
		}

		var voters int64
		if err := tx.Model(&models.Friend{}).Where("id = ? AND poll_id = ?", b.VoterID, b.PollID).Count(&voters).Error; err != nil {
			return fmt.Errorf("failed to verify voter: %w", err)
		}
		if voters == 0 {
			return ErrUnknownVoter
		}

		vote := models.Vote{
			PollID:   b.PollID,
			Question: b.Question,
			VoterID:  b.VoterID,
			VoterIP:  b.VoterIP,
		}
		counter := tx.Model(&models.Result{}).Where("poll_id = ? AND question = ?", b.PollID, b.Question)
		if b.Option != "" {
			vote.AnswerOption = &b.Option
			counter = counter.Where("answer_option = ?", b.Option)
		} else {
			vote.TargetFriendID = &b.FriendID
			counter = counter.Where("friend_id = ?", b.FriendID)
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&vote)
		if res.Error != nil {
			return fmt.Errorf("failed to record vote: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyVoted
		}

		inc := counter.UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1))
		if inc.Error != nil {
			return fmt.Errorf("failed to increment result: %w", inc.Error)
		}
		// No results row means the question or answer is not part of the
		// poll; returning an error rolls the vote back.
		if inc.RowsAffected == 0 {
			return ErrUnknownChoice
		}
		return nil
	})
}

type resultRow struct {
	Question     string
	FriendID     *string
	FriendName   *string
	AnswerOption *string
	VoteCount    int
}

func (r *GormRepository) resultRows(ctx context.Context, pollID string) ([]resultRow, error) {
	var rows []resultRow
	err := r.db.WithContext(ctx).Table("results").
		Select("results.question, results.friend_id, friends.name AS friend_name, results.answer_option, results.vote_count").
		Joins("LEFT JOIN friends ON friends.id = results.friend_id").
		Where("results.poll_id = ?", pollID).
		Order("results.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	return rows, nil
}

// Results organizes the counters by question.
func (r *GormRepository) Results(ctx context.Context, pollID string) (*Results, error) {
	if !validID(pollID) {
		return &Results{Results: map[string]map[string]int{}}, nil
	}

	rows, err := r.resultRows(ctx, pollID)
	if err != nil {
		return nil, err
	}

	var voters int64
	if err := r.db.WithContext(ctx).Model(&models.Vote{}).
		Where("poll_id = ?", pollID).
		Distinct("voter_id").
		Count(&voters).Error; err != nil {
		return nil, fmt.Errorf("failed to count voters: %w", err)
	}

	out := &Results{Results: make(map[string]map[string]int), TotalVoters: int(voters)}
	for _, row := range rows {
		if out.Results[row.Question] == nil {
			out.Results[row.Question] = make(map[string]int)
		}
		out.Results[row.Question][resultLabel(row)] = row.VoteCount
	}
	return out, nil
}

func resultLabel(row resultRow) string {
	switch {
	case row.AnswerOption != nil && *row.AnswerOption != "":
		return *row.AnswerOption + "%"
	case row.FriendName != nil:
		return *row.FriendName
	default:
		return "Unknown"
	}
}

// AddConfession stores an anonymous confession.
func (r *GormRepository) AddConfession(ctx context.Context, pollID, text string) error {
	if !validID(pollID) {
		return insights.ErrPollNotFound
	}
	err := r.db.WithContext(ctx).Create(&models.Confession{PollID: pollID, ConfessionText: text}).Error
	if err != nil {
		return fmt.Errorf("failed to save confession: %w", err)
	}
	return nil
}

// AdminToken returns the poll's admin token.
func (r *GormRepository) AdminToken(ctx context.Context, pollID string) (string, error) {
	if !validID(pollID) {
		return "", insights.ErrPollNotFound
	}
	var poll models.Poll
	err := r.db.WithContext(ctx).Select("id", "admin_token").First(&poll, "id = ?", pollID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", insights.ErrPollNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load poll: %w", err)
	}
	return poll.AdminToken, nil
}

// SetStatus opens or closes a poll.
func (r *GormRepository) SetStatus(ctx context.Context, pollID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Poll{}).Where("id = ?", pollID).Update("status", status).Error
}

// SetExpiry moves a poll's expiry.
func (r *GormRepository) SetExpiry(ctx context.Context, pollID string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Poll{}).Where("id = ?", pollID).Update("expires_at", expiresAt).Error
}

// DeletePoll removes a poll; friends, votes, results, confessions and the
// insights record cascade.
func (r *GormRepository) DeletePoll(ctx context.Context, pollID string) error {
	return r.db.WithContext(ctx).Delete(&models.Poll{}, "id = ?", pollID).Error
}

// CreatorNameTaken reports whether a creator already uses name.
func (r *GormRepository) CreatorNameTaken(ctx context.Context, name string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Creator{}).Where("name = ?", strings.TrimSpace(name)).Count(&n).Error
	return n > 0, err
}

// LinkCreator attaches the login subject to every creator row with email
// that has none yet, and returns how many rows were linked.
func (r *GormRepository) LinkCreator(ctx context.Context, email, subject string) (int64, error) {
	if email == "" || subject == "" {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Creator{}).
		Where("email = ? AND auth_subject IS NULL", email).
		Update("auth_subject", subject)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to link creator: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CreatorPolls lists the polls of every creator row matching the login
// subject or email, newest first. Rows found by email are linked to the
// subject.
func (r *GormRepository) CreatorPolls(ctx context.Context, email, subject string) ([]CreatorPoll, error) {
	db := r.db.WithContext(ctx)

	var creators []models.Creator
	q := db.Where("auth_subject = ?", subject)
	if email != "" {
		q = q.Or("email = ?", email)
	}
	if err := q.Find(&creators).Error; err != nil {
		return nil, fmt.Errorf("failed to find creators: %w", err)
	}
	if len(creators) == 0 {
		return []CreatorPoll{}, nil
	}

	ids := make([]string, 0, len(creators))
	var unlinked []string
	for _, c := range creators {
		ids = append(ids, c.ID)
		if c.AuthSubject == nil {
			unlinked = append(unlinked, c.ID)
		}
	}
	if len(unlinked) > 0 && subject != "" {
		if err := db.Model(&models.Creator{}).Where("id IN ?", unlinked).Update("auth_subject", subject).Error; err != nil {
			return nil, fmt.Errorf("failed to link creators: %w", err)
		}
	}

	var polls []models.Poll
	if err := db.Where("creator_id IN ?", ids).Order("created_at DESC").Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("failed to load polls: %w", err)
	}

	out := make([]CreatorPoll, len(polls))
	for i, p := range polls {
		out[i] = CreatorPoll{
			ID:          p.ID,
			Status:      p.Status,
			QuestionSet: json.RawMessage(p.QuestionSet),
			CreatedAt:   p.CreatedAt,
			AdminToken:  p.AdminToken,
			PollName:    p.PollName,
		}
	}
	return out, nil
}

// CloseExpired closes active polls past their expiry and returns how many
// were closed.
func (r *GormRepository) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Poll{}).
		Where("status = ? AND expires_at < ?", models.PollStatusActive, now).
		Update("status", models.PollStatusClosed)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to close expired polls: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Poll implements insights.PollSource.
func (r *GormRepository) Poll(ctx context.Context, pollID string) (*insights.PollContext, error) {
	if !validID(pollID) {
		return nil, insights.ErrPollNotFound
	}
	var poll models.Poll
	err := r.db.WithContext(ctx).Preload("Creator").First(&poll, "id = ?", pollID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, insights.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load poll: %w", err)
	}
	return pollContext(&poll)
}

func pollContext(poll *models.Poll) (*insights.PollContext, error) {
	var qs []string
	if len(poll.QuestionSet) > 0 {
		if err := json.Unmarshal(poll.QuestionSet, &qs); err != nil {
			return nil, fmt.Errorf("failed to decode question set: %w", err)
		}
	}
	return &insights.PollContext{
		ID:          poll.ID,
		Status:      poll.Status,
		Questions:   qs,
		CreatorName: poll.Creator.Name,
	}, nil
}

// Votes implements insights.PollSource.
func (r *GormRepository) Votes(ctx context.Context, pollID string) ([]insights.VoteAggregate, error) {
	rows, err := r.resultRows(ctx, pollID)
	if err != nil {
		return nil, err
	}

	votes := make([]insights.VoteAggregate, 0, len(rows))
	for _, row := range rows {
		v := insights.VoteAggregate{
			Question: row.Question,
			Category: r.bank.Match(row.Question).Category,
			Count:    row.VoteCount,
		}
		if row.FriendID != nil {
			v.FriendID = *row.FriendID
		}
		if row.FriendName != nil {
			v.FriendName = *row.FriendName
		}
		if row.AnswerOption != nil {
			v.Option = *row.AnswerOption
		}
		votes = append(votes, v)
	}
	return votes, nil
}

// Friends implements insights.PollSource.
func (r *GormRepository) Friends(ctx context.Context, pollID string) ([]insights.Friend, error) {
	var rows []models.Friend
	if err := r.db.WithContext(ctx).Where("poll_id = ?", pollID).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load friends: %w", err)
	}
	friends := make([]insights.Friend, len(rows))
	for i, f := range rows {
		friends[i] = insights.Friend{ID: f.ID, Name: f.Name, Tag: f.Gender}
	}
	return friends, nil
}

// Confessions implements insights.PollSource.
func (r *GormRepository) Confessions(ctx context.Context, pollID string) ([]string, error) {
	var texts []string
	err := r.db.WithContext(ctx).Model(&models.Confession{}).
		Where("poll_id = ?", pollID).
		Order("created_at").
		Pluck("confession_text", &texts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load confessions: %w", err)
	}
	return texts, nil
}
