package polls

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jimdaga/friend-frenzy/internal/insights"
	"github.com/jimdaga/friend-frenzy/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errDB = errors.New("connection reset by peer")

// fakeRepo is an in-memory Repository with injectable failures.
type fakeRepo struct {
	mu sync.Mutex

	polls       map[string]*models.Poll
	confessions map[string][]string
	ballots     []Ballot
	created     []NewPoll
	statuses    map[string]string
	expiries    map[string]time.Time
	deleted     []string
	takenNames  map[string]bool

	recent  int64
	voteErr error
	err     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		polls:       make(map[string]*models.Poll),
		confessions: make(map[string][]string),
		statuses:    make(map[string]string),
		expiries:    make(map[string]time.Time),
		takenNames:  make(map[string]bool),
	}
}

func (f *fakeRepo) addPoll(p *models.Poll) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[p.ID] = p
}

func (f *fakeRepo) CreatePoll(_ context.Context, p NewPoll) (*CreatedPoll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, p)
	return &CreatedPoll{ID: "new-poll", AdminToken: "admin-token", CreatorPollID: len(f.created)}, nil
}

func (f *fakeRepo) CountRecentPolls(context.Context, string, time.Time) (int64, error) {
	return f.recent, f.err
}

func (f *fakeRepo) GetPoll(_ context.Context, pollID string) (*models.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.polls[pollID]
	if !ok {
		return nil, insights.ErrPollNotFound
	}
	return p, nil
}

func (f *fakeRepo) CastVote(_ context.Context, b Ballot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.voteErr != nil {
		return f.voteErr
	}
	f.ballots = append(f.ballots, b)
	return nil
}

func (f *fakeRepo) Results(context.Context, string) (*Results, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Results{
		Results:     map[string]map[string]int{"Who is the life of the party?": {"Asha": 2, "Ben": 0}},
		TotalVoters: 2,
	}, nil
}

func (f *fakeRepo) AddConfession(_ context.Context, pollID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.polls[pollID]; !ok {
		return insights.ErrPollNotFound
	}
	f.confessions[pollID] = append(f.confessions[pollID], text)
	return nil
}

func (f *fakeRepo) AdminToken(_ context.Context, pollID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	p, ok := f.polls[pollID]
	if !ok {
		return "", insights.ErrPollNotFound
	}
	return p.AdminToken, nil
}

func (f *fakeRepo) SetStatus(_ context.Context, pollID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[pollID] = status
	return nil
}

func (f *fakeRepo) SetExpiry(_ context.Context, pollID string, t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiries[pollID] = t
	return nil
}

func (f *fakeRepo) DeletePoll(_ context.Context, pollID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, pollID)
	delete(f.polls, pollID)
	return nil
}

func (f *fakeRepo) CreatorNameTaken(_ context.Context, name string) (bool, error) {
	return f.takenNames[name], f.err
}

func (f *fakeRepo) CreatorPolls(_ context.Context, email, subject string) ([]CreatorPoll, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []CreatorPoll{{ID: "p1", Status: models.PollStatusClosed, AdminToken: "tok", PollName: email + "|" + subject}}, nil
}

func (f *fakeRepo) Poll(_ context.Context, pollID string) (*insights.PollContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[pollID]
	if !ok {
		return nil, insights.ErrPollNotFound
	}
	return &insights.PollContext{ID: p.ID, Status: p.Status, CreatorName: p.Creator.Name}, nil
}

func (f *fakeRepo) Votes(context.Context, string) ([]insights.VoteAggregate, error) {
	return []insights.VoteAggregate{{Question: "Who is the life of the party?", FriendID: "f1", FriendName: "Asha", Count: 2}}, nil
}

func (f *fakeRepo) Friends(_ context.Context, pollID string) ([]insights.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[pollID]
	if !ok {
		return nil, nil
	}
	out := make([]insights.Friend, len(p.Friends))
	for i, fr := range p.Friends {
		out[i] = insights.Friend{ID: fr.ID, Name: fr.Name}
	}
	return out, nil
}

func (f *fakeRepo) Confessions(_ context.Context, pollID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confessions[pollID], nil
}

func samplePoll(id, status string) *models.Poll {
	return &models.Poll{
		ID:          id,
		Status:      status,
		PollName:    "Weekend Crew",
		AdminToken:  "secret-" + id,
		QuestionSet: []byte(`["Who is the life of the party?"]`),
		ExpiresAt:   time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		Creator:     models.Creator{Name: "Dev"},
		Friends: []models.Friend{
			{ID: "f1", PollID: id, Name: "Asha"},
			{ID: "f2", PollID: id, Name: "Ben"},
		},
	}
}

func errNotFound() error {
	return insights.ErrPollNotFound
}
