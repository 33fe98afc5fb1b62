package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jimdaga/friend-frenzy/internal/openrouter"
)

// FallbackMarker prefixes every judgment of the fallback report so that it
// can be told apart from genuine model output.
const FallbackMarker = "FALLBACK_GENERATION:"

// Completer sends one completion request to one model.
type Completer interface {
	Complete(ctx context.Context, req openrouter.CompletionRequest) (string, error)
}

// ReportGenerator produces a report from poll data.
type ReportGenerator interface {
	Generate(ctx context.Context, poll PollContext, votes []VoteAggregate, friends []Friend, confessions []string) (*Report, error)
}

// GeneratorConfig controls the candidate chain.
type GeneratorConfig struct {
	Models           []string
	CandidateTimeout time.Duration
	Temperature      float64
	MaxTokens        int
}

// Generator tries each candidate model in order and falls back to a
// locally computed report when none of them produce a usable one.
type Generator struct {
	completer Completer
	cfg       GeneratorConfig
	logger    *slog.Logger
}

// NewGenerator creates a Generator. A nil completer always yields the
// fallback report.
func NewGenerator(completer Completer, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{completer: completer, cfg: cfg, logger: logger}
}

// Generate builds the report for a poll. It only returns an error when ctx
// ends; every upstream failure degrades to the fallback report.
func (g *Generator) Generate(ctx context.Context, poll PollContext, votes []VoteAggregate, friends []Friend, confessions []string) (*Report, error) {
	logger := g.logger.With("poll_id", poll.ID)
	logger.Info("Starting insights analysis", "friends", len(friends), "vote_rows", len(votes), "confessions", len(confessions))

	if g.completer == nil {
		logger.Error("No completion backend configured, using fallback report")
		return Fallback(friends), nil
	}

	userPrompt, err := buildUserPrompt(Summarize(votes, friends, confessions))
	if err != nil {
		return nil, err
	}

	for _, model := range g.cfg.Models {
		report, err := g.attempt(ctx, model, userPrompt, len(friends))
		if err == nil {
			if dups := DuplicateJudgments(report); len(dups) > 0 {
				logger.Warn("Model repeated judgments", "model", model, "duplicates", dups)
			}
			logger.Info("Insights generated", "model", model)
			return report, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("insights generation interrupted: %w", ctxErr)
		}

		if errors.Is(err, openrouter.ErrRateLimited) {
			logger.Warn("Model rate limited, trying next", "model", model)
		} else {
			logger.Warn("Model attempt failed, trying next", "model", model, "error", err.Error())
		}
	}

	logger.Error("All models failed or were rate limited, using fallback report", "models", len(g.cfg.Models))
	return Fallback(friends), nil
}

// attempt issues exactly one request against one model.
func (g *Generator) attempt(ctx context.Context, model, userPrompt string, friendCount int) (*Report, error) {
	if g.cfg.CandidateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.CandidateTimeout)
		defer cancel()
	}

	content, err := g.completer.Complete(ctx, openrouter.CompletionRequest{
		Model:       model,
		System:      systemPrompt,
		User:        userPrompt,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, openrouter.ErrEmptyContent
	}
	return parseReport(content, friendCount)
}

// Fallback returns the static report used when no model is usable. It holds
// exactly one judgment and one song per friend.
func Fallback(friends []Friend) *Report {
	r := &Report{
		FriendJudgments:  make([]FriendJudgment, 0, len(friends)),
		SongDedications:  make([]SongDedication, 0, len(friends)),
		GroupVerdict:     GroupVerdict{Summary: "This group would survive nothing, but enjoy every second of the chaos."},
		PairCommentaries: []PairCommentary{},
	}
	for _, f := range friends {
		r.FriendJudgments = append(r.FriendJudgments, FriendJudgment{
			Name:     f.Name,
			Judgment: fmt.Sprintf("%s %s somehow avoided attention and responsibility equally.", FallbackMarker, f.Name),
		})
		r.SongDedications = append(r.SongDedications, SongDedication{
			Name:   f.Name,
			Song:   "Blinding Lights",
			Artist: "The Weeknd",
			Vibe:   "Chaotic confidence",
			Reason: "Always moving fast, rarely thinking twice.",
		})
	}
	return r
}

// IsDegenerate reports whether a report is the fallback rather than model
// output. A nil report is degenerate.
func IsDegenerate(r *Report) bool {
	if r == nil {
		return true
	}
	for _, j := range r.FriendJudgments {
		if strings.Contains(j.Judgment, FallbackMarker) {
			return true
		}
	}
	return false
}

// DuplicateJudgments returns judgment texts that appear more than once,
// compared case-insensitively.
func DuplicateJudgments(r *Report) []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]int, len(r.FriendJudgments))
	var dups []string
	for _, j := range r.FriendJudgments {
		key := strings.ToLower(strings.Join(strings.Fields(j.Judgment), " "))
		seen[key]++
		if seen[key] == 2 {
			dups = append(dups, j.Judgment)
		}
	}
	return dups
}
