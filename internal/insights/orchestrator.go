package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// User-facing messages and persisted errors
const (
	MessageProcessing = "AI insights are being generated. Check back in a few seconds."
	MessageNotClosed  = "Poll is still active. AI insights are generated once the poll is closed."

	ErrorDegenerate = "fallback report generated; all models unavailable"
	ErrorAbandoned  = "generation abandoned before finishing; retry with force=true"
)

// PollSource reads the poll data needed for generation. Poll returns
// ErrPollNotFound for unknown polls.
type PollSource interface {
	Poll(ctx context.Context, pollID string) (*PollContext, error)
	Votes(ctx context.Context, pollID string) ([]VoteAggregate, error)
	Friends(ctx context.Context, pollID string) ([]Friend, error)
	Confessions(ctx context.Context, pollID string) ([]string, error)
}

// Dispatcher runs the generation sequence for a poll outside the caller's
// request. Dispatch must not block on the generation itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, pollID string) error
}

// Response is what the insights endpoint returns. Exactly one of the
// processing, completed, failed or not-closed shapes is populated.
type Response struct {
	Status   Status `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
	IsClosed *bool  `json:"isClosed,omitempty"`
	*Report
}

// Options configures an Orchestrator.
type Options struct {
	// Dispatcher runs generation detached; nil runs it inline.
	Dispatcher Dispatcher
	// StaleAfter reports a processing record older than this as failed so
	// clients whose detached generation was lost can retry. Zero disables
	// the check and a processing record is then always served unchanged.
	StaleAfter time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Orchestrator decides per request whether to serve the cached report,
// report progress, or start a new generation. It is the only writer of the
// report store.
type Orchestrator struct {
	store      Store
	source     PollSource
	generator  ReportGenerator
	dispatcher Dispatcher
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(store Store, source PollSource, generator ReportGenerator, opts Options) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		source:     source,
		generator:  generator,
		dispatcher: opts.Dispatcher,
		staleAfter: opts.StaleAfter,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// UseDispatcher switches between detached (non-nil) and inline (nil)
// generation. Call before serving requests.
func (o *Orchestrator) UseDispatcher(d Dispatcher) {
	o.dispatcher = d
}

// Insights serves one insights request. force starts a new generation
// whatever the stored state. Errors are either ErrPollNotFound or internal
// faults.
func (o *Orchestrator) Insights(ctx context.Context, pollID string, force bool) (Response, error) {
	poll, err := o.source.Poll(ctx, pollID)
	if err != nil {
		if errors.Is(err, ErrPollNotFound) {
			return Response{}, err
		}
		return Response{}, fmt.Errorf("failed to fetch poll: %w", err)
	}
	if poll == nil {
		return Response{}, ErrPollNotFound
	}

	// Active polls never touch the store.
	if !poll.IsClosed() {
		closed := false
		return Response{Message: MessageNotClosed, IsClosed: &closed}, nil
	}

	if !force {
		rec, err := o.store.Get(ctx, pollID)
		if err != nil {
			return Response{}, fmt.Errorf("failed to read report: %w", err)
		}
		if rec != nil {
			return o.serve(*rec), nil
		}
	}

	return o.trigger(ctx, pollID, force)
}

// serve maps a stored record to a response without side effects.
func (o *Orchestrator) serve(rec Record) Response {
	switch rec.Status {
	case StatusProcessing:
		if o.staleAfter > 0 && !rec.UpdatedAt.IsZero() && o.now().Sub(rec.UpdatedAt) > o.staleAfter {
			return Response{Status: StatusFailed, Error: ErrorAbandoned}
		}
		return Response{Status: StatusProcessing, Message: MessageProcessing}
	case StatusCompleted:
		if IsDegenerate(rec.Report) {
			return Response{Status: StatusFailed, Error: ErrorDegenerate}
		}
		return Response{Status: StatusCompleted, Report: rec.Report}
	default:
		msg := rec.Error
		if msg == "" {
			msg = "insights generation failed"
		}
		return Response{Status: StatusFailed, Error: msg}
	}
}

// trigger marks the record processing and starts generation.
func (o *Orchestrator) trigger(ctx context.Context, pollID string, force bool) (Response, error) {
	logger := o.logger.With("poll_id", pollID)
	logger.Info("Triggering insights generation", "force", force, "detached", o.dispatcher != nil)

	// Written before any external call; narrows the duplicate-trigger window.
	o.persist(ctx, pollID, Record{Status: StatusProcessing})

	if o.dispatcher == nil {
		rec, err := o.run(ctx, pollID)
		return responseFor(rec), err
	}

	if err := o.dispatcher.Dispatch(ctx, pollID); err != nil {
		logger.Error("Failed to dispatch insights generation", "error", err.Error())
		rec := o.fail(ctx, pollID, "failed to schedule generation: "+err.Error())
		return responseFor(rec), nil
	}

	return Response{Status: StatusProcessing, Message: MessageProcessing}, nil
}

// Generate runs the generation sequence for a poll whose record is already
// marked processing, persists the outcome and returns it. Dispatchers call
// this from outside the request.
func (o *Orchestrator) Generate(ctx context.Context, pollID string) Record {
	rec, err := o.run(ctx, pollID)
	if err != nil {
		o.logger.Error("Insights generation ended with error", "poll_id", pollID, "error", err.Error())
	}
	return rec
}

type pollData struct {
	poll        *PollContext
	votes       []VoteAggregate
	friends     []Friend
	confessions []string
}

// run gathers data, invokes the generator and persists the terminal record.
// The returned error is set for unexpected faults only.
func (o *Orchestrator) run(ctx context.Context, pollID string) (rec Record, err error) {
	logger := o.logger.With("poll_id", pollID)

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("insights generation panicked: %v", p)
			rec = o.fail(ctx, pollID, err.Error())
		}
	}()

	data, pollErr, err := o.gather(ctx, pollID)
	if pollErr != nil {
		logger.Error("Poll unavailable for insights", "error", pollErr.Error())
		return o.fail(ctx, pollID, "poll unavailable: "+pollErr.Error()), nil
	}
	if err != nil {
		return o.fail(ctx, pollID, err.Error()), err
	}

	report, err := o.generator.Generate(ctx, *data.poll, data.votes, data.friends, data.confessions)
	if err != nil {
		logger.Error("Insight generator failed", "error", err.Error())
		return o.fail(ctx, pollID, "generation failed: "+err.Error()), nil
	}

	if IsDegenerate(report) {
		logger.Warn("Generator returned fallback report, recording as failed")
		return o.fail(ctx, pollID, ErrorDegenerate), nil
	}

	rec = Record{PollID: pollID, Status: StatusCompleted, Report: report}
	rec.UpdatedAt = o.persist(ctx, pollID, rec)
	logger.Info("Insights generation completed", "judgments", len(report.FriendJudgments))
	return rec, nil
}

// gather fetches the four independent inputs concurrently. pollErr is set
// when the poll itself is missing or unreadable.
func (o *Orchestrator) gather(ctx context.Context, pollID string) (data pollData, pollErr, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(recovered("poll", func() error {
		data.poll, pollErr = o.source.Poll(gctx, pollID)
		if pollErr == nil && data.poll == nil {
			pollErr = ErrPollNotFound
		}
		return nil
	}))
	g.Go(recovered("votes", func() error {
		votes, err := o.source.Votes(gctx, pollID)
		if err != nil {
			return fmt.Errorf("failed to fetch votes: %w", err)
		}
		data.votes = votes
		return nil
	}))
	g.Go(recovered("friends", func() error {
		friends, err := o.source.Friends(gctx, pollID)
		if err != nil {
			return fmt.Errorf("failed to fetch friends: %w", err)
		}
		data.friends = friends
		return nil
	}))
	g.Go(recovered("confessions", func() error {
		confessions, err := o.source.Confessions(gctx, pollID)
		if err != nil {
			return fmt.Errorf("failed to fetch confessions: %w", err)
		}
		data.confessions = confessions
		return nil
	}))

	err = g.Wait()
	return data, pollErr, err
}

// recovered turns a panic inside an errgroup task into the task's error.
// The recover in run only covers the calling goroutine.
func recovered(what string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("fetching %s panicked: %v", what, p)
			}
		}()
		return fn()
	}
}

// fail persists a failed record and returns it.
func (o *Orchestrator) fail(ctx context.Context, pollID, msg string) Record {
	rec := Record{PollID: pollID, Status: StatusFailed, Error: msg}
	rec.UpdatedAt = o.persist(ctx, pollID, rec)
	return rec
}

// persist writes a record, detached from ctx cancellation so a departed
// client does not lose the result. Write failures are logged only.
func (o *Orchestrator) persist(ctx context.Context, pollID string, rec Record) time.Time {
	rec.PollID = pollID
	if err := o.store.Put(context.WithoutCancel(ctx), pollID, rec); err != nil {
		o.logger.Error("Failed to persist insights record",
			"poll_id", pollID,
			"status", rec.Status,
			"error", err.Error(),
		)
	}
	return o.now().UTC()
}

func responseFor(rec Record) Response {
	switch rec.Status {
	case StatusCompleted:
		return Response{Status: StatusCompleted, Report: rec.Report}
	case StatusProcessing:
		return Response{Status: StatusProcessing, Message: MessageProcessing}
	default:
		return Response{Status: StatusFailed, Error: rec.Error}
	}
}
