package polls

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/friend-frenzy/internal/insights"
	"github.com/jimdaga/friend-frenzy/internal/models"
)

const optionPrefix = "option:"

// Options configures a Handler.
type Options struct {
	// Lifetime is how long a new or extended poll accepts votes.
	Lifetime time.Duration
	// CreateLimit polls may be created per client IP within CreateWindow.
	CreateLimit  int
	CreateWindow time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Handler serves the poll API.
type Handler struct {
	repo         Repository
	lifetime     time.Duration
	createLimit  int
	createWindow time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewHandler creates a Handler; zero options take the production defaults.
func NewHandler(repo Repository, opts Options) *Handler {
	h := &Handler{
		repo:         repo,
		lifetime:     opts.Lifetime,
		createLimit:  opts.CreateLimit,
		createWindow: opts.CreateWindow,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if h.lifetime <= 0 {
		h.lifetime = 7 * 24 * time.Hour
	}
	if h.createLimit <= 0 {
		h.createLimit = 30
	}
	if h.createWindow <= 0 {
		h.createWindow = 5 * time.Minute
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

type createPollRequest struct {
	CreatorName string      `json:"creatorName"`
	Email       string      `json:"email"`
	PollName    string      `json:"pollName"`
	Friends     []NewFriend `json:"friends"`
	Questions   []string    `json:"questions"`
}

// CreatePoll handles POST /api/polls.
func (h *Handler) CreatePoll(c *gin.Context) {
	var req createPollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	p, msg := req.validate()
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	now := h.now()
	p.CreatorIP = c.ClientIP()
	p.ExpiresAt = now.Add(h.lifetime)

	recent, err := h.repo.CountRecentPolls(ctx, p.CreatorIP, now.Add(-h.createWindow))
	if err != nil {
		h.internalError(c, "Failed to create poll", err)
		return
	}
	if recent >= int64(h.createLimit) {
		h.logger.Warn("Poll creation rate limited", "creator_ip", p.CreatorIP, "recent", recent)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many polls created. Please wait a few minutes."})
		return
	}

	created, err := h.repo.CreatePoll(ctx, p)
	if err != nil {
		h.internalError(c, "Failed to create poll", err)
		return
	}

	h.logger.Info("Poll created", "poll_id", created.ID, "friends", len(p.Friends), "questions", len(p.Questions))
	c.JSON(http.StatusCreated, created)
}

// validate trims the request and returns the user-facing problem, if any.
func (r createPollRequest) validate() (NewPoll, string) {
	p := NewPoll{
		CreatorName: strings.TrimSpace(r.CreatorName),
		Email:       strings.TrimSpace(r.Email),
		PollName:    strings.TrimSpace(r.PollName),
	}
	if p.CreatorName == "" {
		return p, "Creator name is required"
	}
	if !strings.Contains(p.Email, "@") {
		return p, "Valid email is required"
	}

	// Reports address friends by name, so names must be distinct.
	names := make(map[string]bool)
	for _, f := range r.Friends {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if names[key] {
			return p, fmt.Sprintf("Friend names must be unique (%q appears twice)", name)
		}
		names[key] = true
		p.Friends = append(p.Friends, NewFriend{Name: name, Gender: strings.TrimSpace(f.Gender)})
	}
	if len(p.Friends) < 2 {
		return p, "At least 2 friends are required"
	}

	seen := make(map[string]bool)
	for _, q := range r.Questions {
		if q = strings.TrimSpace(q); q != "" && !seen[q] {
			seen[q] = true
			p.Questions = append(p.Questions, q)
		}
	}
	if len(p.Questions) == 0 {
		return p, "At least 1 question is required"
	}

	return p, ""
}

type friendView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetPoll handles GET /api/polls/:id.
func (h *Handler) GetPoll(c *gin.Context) {
	poll, err := h.repo.GetPoll(c.Request.Context(), c.Param("id"))
	if errors.Is(err, insights.ErrPollNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Frenzy not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to fetch poll", err)
		return
	}

	pc, err := pollContext(poll)
	if err != nil {
		h.internalError(c, "Failed to fetch poll", err)
		return
	}
	qs := pc.Questions
	if qs == nil {
		qs = []string{}
	}

	friends := make([]friendView, len(poll.Friends))
	for i, f := range poll.Friends {
		friends[i] = friendView{ID: f.ID, Name: f.Name}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         poll.ID,
		"questions":  qs,
		"friends":    friends,
		"expires_at": poll.ExpiresAt,
		"status":     poll.Status,
		"frenzyName": poll.PollName,
	})
}

type voteRequest struct {
	FriendID string `json:"friendId"`
	Question string `json:"question"`
	VoterID  string `json:"voterId"`
}

// CastVote handles POST /api/polls/:id/votes. friendId is either a friend
// id or "option:N" for pair questions.
func (h *Handler) CastVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FriendID == "" || req.Question == "" || req.VoterID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	b := Ballot{
		PollID:   c.Param("id"),
		Question: req.Question,
		VoterID:  req.VoterID,
		VoterIP:  c.ClientIP(),
		Now:      h.now(),
	}
	if option, ok := strings.CutPrefix(req.FriendID, optionPrefix); ok {
		b.Option = option
	} else {
		b.FriendID = req.FriendID
	}

	err := h.repo.CastVote(c.Request.Context(), b)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"success": true})
	case errors.Is(err, insights.ErrPollNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Poll not found"})
	case errors.Is(err, ErrPollClosed):
		c.JSON(http.StatusForbidden, gin.H{"error": "This poll is no longer accepting votes."})
	case errors.Is(err, ErrUnknownVoter):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid voter identity for this poll."})
	case errors.Is(err, ErrUnknownChoice):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vote choice for this question."})
	case errors.Is(err, ErrAlreadyVoted):
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("You already voted on %q", req.Question)})
	default:
		h.internalError(c, "Failed to submit vote", err)
	}
}

// Results handles GET /api/polls/:id/results.
func (h *Handler) Results(c *gin.Context) {
	res, err := h.repo.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.internalError(c, "Failed to fetch results", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AddConfession handles POST /api/polls/:id/confessions.
func (h *Handler) AddConfession(c *gin.Context) {
	var req struct {
		Confession string `json:"confession"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Confession) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Confession cannot be empty"})
		return
	}

	err := h.repo.AddConfession(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.Confession))
	if errors.Is(err, insights.ErrPollNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Poll not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to save confession", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// authorizeAdmin reports whether token is the poll's admin token, writing
// the error response when it is not.
func (h *Handler) authorizeAdmin(c *gin.Context, pollID, token string) bool {
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	stored, err := h.repo.AdminToken(c.Request.Context(), pollID)
	if err != nil && !errors.Is(err, insights.ErrPollNotFound) {
		h.internalError(c, "Failed to verify admin token", err)
		return false
	}
	if err != nil || subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	return true
}

// Admin handles PATCH /api/polls/:id/admin with actions close, open and
// extend.
func (h *Handler) Admin(c *gin.Context) {
	var req struct {
		AdminToken string `json:"adminToken"`
		Action     string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	pollID := c.Param("id")
	if !h.authorizeAdmin(c, pollID, req.AdminToken) {
		return
	}

	ctx := c.Request.Context()
	var err error
	switch req.Action {
	case "close":
		err = h.repo.SetStatus(ctx, pollID, models.PollStatusClosed)
	case "open":
		err = h.repo.SetStatus(ctx, pollID, models.PollStatusActive)
	case "extend":
		err = h.repo.SetExpiry(ctx, pollID, h.now().Add(h.lifetime))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to update poll", err)
		return
	}

	h.logger.Info("Poll admin action", "poll_id", pollID, "action", req.Action)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeletePoll handles DELETE /api/polls/:id/admin?token=.
func (h *Handler) DeletePoll(c *gin.Context) {
	pollID := c.Param("id")
	if !h.authorizeAdmin(c, pollID, c.Query("token")) {
		return
	}
	if err := h.repo.DeletePoll(c.Request.Context(), pollID); err != nil {
		h.internalError(c, "Failed to delete poll", err)
		return
	}
	h.logger.Info("Poll deleted", "poll_id", pollID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckCreator handles GET /api/creators/check?name=.
func (h *Handler) CheckCreator(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}
	taken, err := h.repo.CreatorNameTaken(c.Request.Context(), name)
	if err != nil {
		h.internalError(c, "Failed to check name", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": taken, "available": !taken})
}

// CreatorPolls handles GET /api/creators/polls for the signed-in creator.
// It expects user_id and user_email in the context (set by auth middleware).
func (h *Handler) CreatorPolls(c *gin.Context) {
	subject := c.GetString("user_id")
	if subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Please sign in."})
		return
	}

	polls, err := h.repo.CreatorPolls(c.Request.Context(), c.GetString("user_email"), subject)
	if err != nil {
		h.internalError(c, "Failed to fetch polls", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"polls": polls})
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "path", c.FullPath(), "poll_id", c.Param("id"), "error", err.Error())
	c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
