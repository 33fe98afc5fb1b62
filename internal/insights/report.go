// Package insights generates, caches and serves the AI insights report of a
// closed poll.
package insights

import (
	"errors"
	"time"
)

// ErrPollNotFound is returned by a PollSource when the poll does not exist.
var ErrPollNotFound = errors.New("poll not found")

// Poll lifecycle statuses
const (
	PollStatusActive = "active"
	PollStatusClosed = "closed"
)

// Status is the generation status of a persisted report.
type Status string

// Report status constants
const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Report is the structured humorous analysis of one poll.
type Report struct {
	FriendJudgments  []FriendJudgment `json:"friendJudgments"`
	SongDedications  []SongDedication `json:"songDedications"`
	GroupVerdict     GroupVerdict     `json:"groupVerdict"`
	PairCommentaries []PairCommentary `json:"pairCommentaries"`
}

// FriendJudgment is a one-line roast of a single friend.
type FriendJudgment struct {
	Name     string `json:"name"`
	Judgment string `json:"judgment"`
}

// SongDedication is the song picked for a single friend.
type SongDedication struct {
	Name   string `json:"name"`
	Song   string `json:"song"`
	Artist string `json:"artist"`
	Vibe   string `json:"vibe"`
	Reason string `json:"reason"`
}

// GroupVerdict sums up the whole group in one sentence.
type GroupVerdict struct {
	Summary string `json:"summary"`
}

// PairCommentary comments on one pair-frenzy question.
type PairCommentary struct {
	Pair       string `json:"pair"`
	Commentary string `json:"commentary"`
}

// PollContext is the read-only snapshot of a poll needed for generation.
type PollContext struct {
	ID          string
	Status      string
	Questions   []string
	CreatorName string
}

// IsClosed reports whether the poll no longer accepts votes.
func (p PollContext) IsClosed() bool {
	return p.Status == PollStatusClosed
}

// VoteAggregate is the cumulative count for one (question, target) pair.
// Exactly one of FriendID or Option is set; Option holds the percentage
// label of a pair-frenzy question.
type VoteAggregate struct {
	Question   string
	FriendID   string
	FriendName string
	Option     string
	Category   string
	Count      int
}

// Friend is a named participant of a poll.
type Friend struct {
	ID   string
	Name string
	Tag  string
}

// Record is the persisted unit of the report store, one per poll.
type Record struct {
	PollID    string    `json:"pollId"`
	Status    Status    `json:"status"`
	Report    *Report   `json:"report,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
