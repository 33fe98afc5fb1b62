package insights

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/jimdaga/friend-frenzy/internal/openrouter"
)

var testFriends = []Friend{
	{ID: "fa", Name: "A"},
	{ID: "fb", Name: "B"},
	{ID: "fc", Name: "C"},
}

var testVotes = []VoteAggregate{
	{Question: "Q1", FriendID: "fa", FriendName: "A", Count: 5},
	{Question: "Q1", FriendID: "fb", FriendName: "B", Count: 1},
	{Question: "Q1", FriendID: "fc", FriendName: "C", Count: 0},
}

const genuineReportJSON = `{
  "friendJudgments": [
    {"name": "A", "judgment": "Collects votes like Shah Rukh collects fan mail, zero humility detected."},
    {"name": "B", "judgment": "One vote, drawn like a background dancer who forgot the steps."},
    {"name": "C", "judgment": "So invisible the poll thought they were a loading screen."}
  ],
  "songDedications": [
    {"name": "A", "song": "Blank Space", "artist": "Taylor Swift", "vibe": "Power trip", "reason": "Wrote their name on every ballot."},
    {"name": "B", "song": "Starboy", "artist": "The Weeknd", "vibe": "Aspirational", "reason": "Manifesting a second vote."},
    {"name": "C", "song": "Lose Yourself", "artist": "Eminem", "vibe": "Missing", "reason": "Already lost, apparently."}
  ],
  "groupVerdict": {"summary": "A monarchy pretending to be a democracy at 2:17 AM."},
  "pairCommentaries": []
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedCompleter answers per model and records every call.
type scriptedCompleter struct {
	mu      sync.Mutex
	calls   []string
	respond func(model string) (string, error)
}

func (s *scriptedCompleter) Complete(ctx context.Context, req openrouter.CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req.Model)
	s.mu.Unlock()
	return s.respond(req.Model)
}

func (s *scriptedCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func alwaysContent(content string) *scriptedCompleter {
	return &scriptedCompleter{respond: func(string) (string, error) { return content, nil }}
}

func alwaysError() *scriptedCompleter {
	return &scriptedCompleter{respond: func(model string) (string, error) {
		return "", fmt.Errorf("dial %s: connection refused", model)
	}}
}

var fourModels = []string{"m/one", "m/two", "m/three", "m/four"}

func newTestGenerator(c Completer) *Generator {
	return NewGenerator(c, GeneratorConfig{Models: fourModels, Temperature: 0.8, MaxTokens: 800}, discardLogger())
}

// fakeSource serves a fixed poll.
type fakeSource struct {
	poll        *PollContext
	pollErr     error
	votes       []VoteAggregate
	votesErr    error
	friends     []Friend
	confessions []string
}

func (f *fakeSource) Poll(context.Context, string) (*PollContext, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.poll == nil {
		return nil, ErrPollNotFound
	}
	p := *f.poll
	return &p, nil
}

func (f *fakeSource) Votes(context.Context, string) ([]VoteAggregate, error) {
	return f.votes, f.votesErr
}

func (f *fakeSource) Friends(context.Context, string) ([]Friend, error) {
	return f.friends, nil
}

func (f *fakeSource) Confessions(context.Context, string) ([]string, error) {
	return f.confessions, nil
}

func closedSource() *fakeSource {
	return &fakeSource{
		poll:    &PollContext{ID: "P1", Status: PollStatusClosed, Questions: []string{"Q1"}, CreatorName: "Creator"},
		votes:   testVotes,
		friends: testFriends,
	}
}

// recordingStore wraps MemoryStore and logs every write.
type recordingStore struct {
	*MemoryStore
	mu      sync.Mutex
	history []Status
	putErr  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

func (s *recordingStore) Put(ctx context.Context, pollID string, rec Record) error {
	s.mu.Lock()
	s.history = append(s.history, rec.Status)
	putErr := s.putErr
	s.mu.Unlock()
	if putErr != nil {
		return putErr
	}
	return s.MemoryStore.Put(ctx, pollID, rec)
}

func (s *recordingStore) writes() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Status(nil), s.history...)
}

// countingGenerator returns a fixed result and counts invocations.
type countingGenerator struct {
	mu     sync.Mutex
	calls  int
	report *Report
	err    error
	panics bool
}

func (g *countingGenerator) Generate(context.Context, PollContext, []VoteAggregate, []Friend, []string) (*Report, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.panics {
		panic("generator exploded")
	}
	return g.report, g.err
}

func (g *countingGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func genuineReport() *Report {
	r, err := parseReport(genuineReportJSON, 3)
	if err != nil {
		panic(err)
	}
	return r
}

// recordingDispatcher remembers dispatched polls without running them.
type recordingDispatcher struct {
	mu    sync.Mutex
	polls []string
	err   error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, pollID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.polls = append(d.polls, pollID)
	return nil
}

var errBoom = errors.New("boom")

func hasMarker(r *Report) bool {
	for _, j := range r.FriendJudgments {
		if strings.Contains(j.Judgment, FallbackMarker) {
			return true
		}
	}
	return false
}
