package polls

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/friend-frenzy/internal/models"
)

var fixedNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestRouter(repo *fakeRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(repo, Options{Logger: discardLogger(), Now: func() time.Time { return fixedNow }})

	r := gin.New()
	r.POST("/api/polls", h.CreatePoll)
	r.GET("/api/polls/:id", h.GetPoll)
	r.POST("/api/polls/:id/votes", h.CastVote)
	r.GET("/api/polls/:id/results", h.Results)
	r.POST("/api/polls/:id/confessions", h.AddConfession)
	r.PATCH("/api/polls/:id/admin", h.Admin)
	r.DELETE("/api/polls/:id/admin", h.DeletePoll)
	r.GET("/api/creators/check", h.CheckCreator)
	r.GET("/api/creators/polls", func(c *gin.Context) {
		if sub := c.GetHeader("X-Test-User"); sub != "" {
			c.Set("user_id", sub)
			c.Set("user_email", "dev@example.com")
		}
		c.Next()
	}, h.CreatorPolls)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
	return body
}

func TestCreatePollValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "Invalid request body"},
		{"no creator", `{"email":"a@b.c","friends":[{"name":"A"},{"name":"B"}],"questions":["Q?"]}`, "Creator name is required"},
		{"bad email", `{"creatorName":"Dev","email":"nope","friends":[{"name":"A"},{"name":"B"}],"questions":["Q?"]}`, "Valid email is required"},
		{"one friend", `{"creatorName":"Dev","email":"a@b.c","friends":[{"name":"A"},{"name":"  "}],"questions":["Q?"]}`, "At least 2 friends are required"},
		{"duplicate friend", `{"creatorName":"Dev","email":"a@b.c","friends":[{"name":"Sam"},{"name":" sam "}],"questions":["Q?"]}`, `Friend names must be unique ("sam" appears twice)`},
		{"no questions", `{"creatorName":"Dev","email":"a@b.c","friends":[{"name":"A"},{"name":"B"}],"questions":[" "]}`, "At least 1 question is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			w := do(newTestRouter(repo), http.MethodPost, "/api/polls", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if got := decode(t, w)["error"]; got != tt.want {
				t.Errorf("expected error %q, got %q", tt.want, got)
			}
			if len(repo.created) != 0 {
				t.Error("invalid request must not create a poll")
			}
		})
	}
}

func TestCreatePollSuccess(t *testing.T) {
	repo := newFakeRepo()
	body := `{"creatorName":"  Dev ","email":" dev@example.com ","pollName":"Crew",
		"friends":[{"name":" Asha ","gender":"f"},{"name":"Ben"}],
		"questions":["Who is the life of the party?","Who is the life of the party?",""]}`

	w := do(newTestRouter(repo), http.MethodPost, "/api/polls", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	got := decode(t, w)
	if got["id"] != "new-poll" || got["adminToken"] != "admin-token" || got["creatorPollId"] != float64(1) {
		t.Errorf("unexpected body: %v", got)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 created poll, got %d", len(repo.created))
	}
	p := repo.created[0]
	if p.CreatorName != "Dev" || p.Email != "dev@example.com" {
		t.Errorf("expected trimmed creator, got %q %q", p.CreatorName, p.Email)
	}
	if len(p.Friends) != 2 || p.Friends[0].Name != "Asha" || p.Friends[0].Gender != "f" {
		t.Errorf("unexpected friends: %+v", p.Friends)
	}
	if len(p.Questions) != 1 {
		t.Errorf("expected deduplicated questions, got %v", p.Questions)
	}
	if !p.ExpiresAt.Equal(fixedNow.Add(7 * 24 * time.Hour)) {
		t.Errorf("expected 7 day expiry, got %s", p.ExpiresAt)
	}
}

func TestCreatePollRateLimited(t *testing.T) {
	repo := newFakeRepo()
	repo.recent = 30
	w := do(newTestRouter(repo), http.MethodPost, "/api/polls",
		`{"creatorName":"Dev","email":"a@b.c","friends":[{"name":"A"},{"name":"B"}],"questions":["Q?"]}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if len(repo.created) != 0 {
		t.Error("rate-limited request must not create a poll")
	}
}

func TestGetPoll(t *testing.T) {
	repo := newFakeRepo()
	repo.addPoll(samplePoll("p1", models.PollStatusActive))
	r := newTestRouter(repo)

	w := do(r, http.MethodGet, "/api/polls/missing", "")
	if w.Code != http.StatusNotFound || decode(t, w)["error"] != "Frenzy not found" {
		t.Errorf("expected 404 Frenzy not found, got %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/polls/p1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["frenzyName"] != "Weekend Crew" || body["status"] != "active" {
		t.Errorf("unexpected body %v", body)
	}
	if friends, ok := body["friends"].([]any); !ok || len(friends) != 2 {
		t.Errorf("expected 2 friends, got %v", body["friends"])
	}
	if qs, ok := body["questions"].([]any); !ok || len(qs) != 1 {
		t.Errorf("expected 1 question, got %v", body["questions"])
	}
}

func TestCastVoteStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		voteErr error
		body    string
		want    int
	}{
		{"missing fields", nil, `{"question":"Q?"}`, http.StatusBadRequest},
		{"success", nil, `{"friendId":"f1","question":"Q?","voterId":"f2"}`, http.StatusCreated},
		{"unknown poll", errNotFound(), `{"friendId":"f1","question":"Q?","voterId":"f2"}`, http.StatusNotFound},
		{"closed", ErrPollClosed, `{"friendId":"f1","question":"Q?","voterId":"f2"}`, http.StatusForbidden},
		{"stranger", ErrUnknownVoter, `{"friendId":"f1","question":"Q?","voterId":"zz"}`, http.StatusUnauthorized},
		{"unknown choice", ErrUnknownChoice, `{"friendId":"option:42","question":"Q?","voterId":"f2"}`, http.StatusBadRequest},
		{"repeat", ErrAlreadyVoted, `{"friendId":"f1","question":"Q?","voterId":"f2"}`, http.StatusConflict},
		{"db down", errDB, `{"friendId":"f1","question":"Q?","voterId":"f2"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.voteErr = tt.voteErr
			w := do(newTestRouter(repo), http.MethodPost, "/api/polls/p1/votes", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCastVoteParsesOption(t *testing.T) {
	repo := newFakeRepo()
	r := newTestRouter(repo)

	do(r, http.MethodPost, "/api/polls/p1/votes", `{"friendId":"option:75","question":"Q?","voterId":"f2"}`)
	do(r, http.MethodPost, "/api/polls/p1/votes", `{"friendId":"f1","question":"Q2?","voterId":"f2"}`)

	if len(repo.ballots) != 2 {
		t.Fatalf("expected 2 ballots, got %d", len(repo.ballots))
	}
	if b := repo.ballots[0]; b.Option != "75" || b.FriendID != "" || b.PollID != "p1" {
		t.Errorf("unexpected option ballot %+v", b)
	}
	if b := repo.ballots[1]; b.FriendID != "f1" || b.Option != "" {
		t.Errorf("unexpected friend ballot %+v", b)
	}
	if !repo.ballots[0].Now.Equal(fixedNow) {
		t.Errorf("expected ballot stamped with handler clock, got %s", repo.ballots[0].Now)
	}
}

func TestResults(t *testing.T) {
	w := do(newTestRouter(newFakeRepo()), http.MethodGet, "/api/polls/p1/results", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["totalVoters"] != float64(2) {
		t.Errorf("expected 2 voters, got %v", body["totalVoters"])
	}
}

func TestAddConfession(t *testing.T) {
	repo := newFakeRepo()
	repo.addPoll(samplePoll("p1", models.PollStatusActive))
	r := newTestRouter(repo)

	if w := do(r, http.MethodPost, "/api/polls/p1/confessions", `{"confession":"   "}`); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank confession, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/polls/nope/confessions", `{"confession":"hi"}`); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown poll, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/polls/p1/confessions", `{"confession":"  I lied  "}`); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if got := repo.confessions["p1"]; len(got) != 1 || got[0] != "I lied" {
		t.Errorf("expected trimmed confession, got %v", got)
	}
}

func TestAdminActions(t *testing.T) {
	repo := newFakeRepo()
	repo.addPoll(samplePoll("p1", models.PollStatusActive))
	r := newTestRouter(repo)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no token", `{"action":"close"}`, http.StatusUnauthorized},
		{"wrong token", `{"adminToken":"guess","action":"close"}`, http.StatusUnauthorized},
		{"bad action", `{"adminToken":"secret-p1","action":"explode"}`, http.StatusBadRequest},
		{"close", `{"adminToken":"secret-p1","action":"close"}`, http.StatusOK},
		{"extend", `{"adminToken":"secret-p1","action":"extend"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(r, http.MethodPatch, "/api/polls/p1/admin", tt.body); w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	if repo.statuses["p1"] != models.PollStatusClosed {
		t.Errorf("expected poll closed, got %q", repo.statuses["p1"])
	}
	if !repo.expiries["p1"].Equal(fixedNow.Add(7 * 24 * time.Hour)) {
		t.Errorf("expected extension to now+7d, got %s", repo.expiries["p1"])
	}

	if w := do(r, http.MethodPatch, "/api/polls/ghost/admin", `{"adminToken":"x","action":"close"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown poll, got %d", w.Code)
	}
}

func TestDeletePoll(t *testing.T) {
	repo := newFakeRepo()
	repo.addPoll(samplePoll("p1", models.PollStatusActive))
	r := newTestRouter(repo)

	if w := do(r, http.MethodDelete, "/api/polls/p1/admin?token=wrong", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/polls/p1/admin?token=secret-p1", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "p1" {
		t.Errorf("expected p1 deleted, got %v", repo.deleted)
	}
}

func TestCheckCreator(t *testing.T) {
	repo := newFakeRepo()
	repo.takenNames["Dev"] = true
	r := newTestRouter(repo)

	if w := do(r, http.MethodGet, "/api/creators/check", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without name, got %d", w.Code)
	}

	w := do(r, http.MethodGet, "/api/creators/check?name=Dev", "")
	if body := decode(t, w); body["exists"] != true || body["available"] != false {
		t.Errorf("expected Dev taken, got %v", body)
	}
	w = do(r, http.MethodGet, "/api/creators/check?name=Free", "")
	if body := decode(t, w); body["exists"] != false || body["available"] != true {
		t.Errorf("expected Free available, got %v", body)
	}
}

func TestCreatorPolls(t *testing.T) {
	r := newTestRouter(newFakeRepo())

	if w := do(r, http.MethodGet, "/api/creators/polls", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without session, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/creators/polls", nil)
	req.Header.Set("X-Test-User", "google-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	polls, ok := decode(t, w)["polls"].([]any)
	if !ok || len(polls) != 1 {
		t.Fatalf("expected 1 poll, got %v", polls)
	}
	if name := polls[0].(map[string]any)["poll_name"]; name != "dev@example.com|google-123" {
		t.Errorf("expected lookup by email and subject, got %v", name)
	}
}
