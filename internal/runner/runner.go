package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/berth-dev/dbbench/internal/agent"
	"github.com/berth-dev/dbbench/internal/bench"
	"github.com/berth-dev/dbbench/internal/dataset"
	dblog "github.com/berth-dev/dbbench/internal/log"
	"github.com/berth-dev/dbbench/internal/report"
	"github.com/berth-dev/dbbench/internal/session"
	"github.com/berth-dev/dbbench/internal/sqlexec"
)

// ErrBreakerTripped is returned when a run stopped early on consecutive faults.
var ErrBreakerTripped = errors.New("circuit breaker tripped")

// Observer is notified as samples start and finish. Calls may come from
// several goroutines.
type Observer interface {
	SampleStarted(index int)
	SampleFinished(out *bench.TaskOutput)
}

// Options configures a Runner.
type Options struct {
	RunID            string
	RunDir           string
	Dataset          *dataset.Dataset
	MaxRound         int
	Preamble         string
	Agent            agent.Agent
	Executor         sqlexec.Executor
	Concurrency      int
	BreakerThreshold int

	// Optional collaborators.
	Events   *dblog.EventLog
	Logger   *slog.Logger
	Store    *session.Store
	Observer Observer
}

// Runner executes a batch of samples, writing per-sample results, the
// aggregate report and a checkpoint into its run directory.
type Runner struct {
	opts    Options
	breaker *Breaker

	mu         sync.Mutex // guards checkpoint
	checkpoint *Checkpoint
}

// New validates opts and returns a Runner.
func New(opts Options) (*Runner, error) {
	switch {
	case opts.Dataset == nil:
		return nil, errors.New("runner: dataset is required")
	case opts.Agent == nil:
		return nil, errors.New("runner: agent is required")
	case opts.Executor == nil:
		return nil, errors.New("runner: executor is required")
	case opts.RunDir == "":
		return nil, errors.New("runner: run directory is required")
	case opts.MaxRound <= 0:
		return nil, fmt.Errorf("runner: %w", bench.ErrInvalidBudget)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{opts: opts, breaker: NewBreaker(opts.BreakerThreshold)}, nil
}

// RunID returns the id of the run, which a resumed checkpoint may override.
func (r *Runner) RunID() string {
	return r.opts.RunID
}

// Run executes the samples at indices, or every sample when indices is
// empty. A checkpoint left in the run directory resumes that run: its id,
// budget and sample selection apply and finished samples are skipped. The
// returned report covers every finished sample among indices, including
// those from earlier attempts.
func (r *Runner) Run(ctx context.Context, indices []int) (*report.Report, error) {
	if err := os.MkdirAll(r.opts.RunDir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	cp, err := LoadCheckpoint(r.opts.RunDir)
	if err != nil {
		return nil, err
	}
	if cp == nil {
		cp = &Checkpoint{RunID: r.opts.RunID, MaxRound: r.opts.MaxRound, Indices: indices}
	} else {
		if cp.MaxRound > 0 && cp.MaxRound != r.opts.MaxRound {
			return nil, fmt.Errorf("run %s was started with max_round %d, not %d", cp.RunID, cp.MaxRound, r.opts.MaxRound)
		}
		if len(indices) == 0 {
			indices = cp.Indices
		}
		r.opts.RunID = cp.RunID
		r.breaker.Restore(cp.ConsecFaults)
		r.opts.Logger.Info("resuming run", "run", cp.RunID, "done", len(cp.Done))
	}
	r.checkpoint = cp

	if len(indices) == 0 {
		indices = make([]int, r.opts.Dataset.Len())
		for i := range indices {
			indices[i] = i
		}
	}
	for _, idx := range indices {
		if _, err := r.opts.Dataset.Get(idx); err != nil {
			return nil, err
		}
	}

	var pending []int
	for _, idx := range indices {
		if !cp.Has(idx) {
			pending = append(pending, idx)
		}
	}

	start := time.Now()
	r.event(dblog.Event{Event: dblog.EventRunStarted, RunID: r.opts.RunID, Total: len(indices),
		Data: map[string]any{"pending": len(pending), "max_round": r.opts.MaxRound}})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for _, idx := range pending {
		if r.breaker.Tripped() || gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Go may have blocked on the limit while the breaker tripped.
			if r.breaker.Tripped() {
				return nil
			}
			return r.runOne(gctx, idx)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outs, err := ReadResults(r.opts.RunDir)
	if err != nil {
		return nil, err
	}
	rep := report.Generate(r.opts.RunID, selectIndices(outs, indices), r.opts.MaxRound)
	rep.StartedAt = start
	rep.FinishedAt = time.Now()
	if err := report.WriteJSON(r.opts.RunDir, rep); err != nil {
		return nil, err
	}

	if r.breaker.Tripped() {
		return rep, ErrBreakerTripped
	}
	if err := ClearCheckpoint(r.opts.RunDir); err != nil {
		r.opts.Logger.Warn("clearing checkpoint", "err", err)
	}
	r.event(dblog.Event{Event: dblog.EventRunComplete, RunID: r.opts.RunID,
		Completed: rep.Total, Total: len(indices), DurationMs: time.Since(start).Milliseconds()})
	return rep, nil
}

func (r *Runner) runOne(ctx context.Context, idx int) error {
	entry, err := r.opts.Dataset.Get(idx)
	if err != nil {
		return err
	}

	r.event(dblog.Event{Event: dblog.EventSampleStarted, RunID: r.opts.RunID, Index: dblog.IntPtr(idx)})
	if r.opts.Observer != nil {
		r.opts.Observer.SampleStarted(idx)
	}
	start := time.Now()

	out, err := bench.RunSample(ctx, bench.SampleInput{
		Index:    idx,
		Entry:    entry,
		MaxRound: r.opts.MaxRound,
		Preamble: r.opts.Preamble,
		Agent:    r.opts.Agent,
		Executor: r.opts.Executor,
		Logger:   r.opts.Logger,
		OnRound: func(e bench.RoundEvent) {
			r.event(dblog.Event{Event: dblog.EventRoundExecuted, RunID: r.opts.RunID,
				Index: dblog.IntPtr(idx), Round: e.Round, SQL: e.SQL})
		},
	})
	if err != nil {
		return err
	}
	// A cancelled run leaves the sample pending for resume.
	if out.Status == bench.StatusUnknown && ctx.Err() != nil {
		return ctx.Err()
	}

	if err := WriteResult(r.opts.RunDir, out); err != nil {
		return err
	}
	r.archive(out)

	if out.Status == bench.StatusUnknown {
		var fe *bench.FaultError
		phase := ""
		if errors.As(out.Cause, &fe) {
			phase = fe.Phase
		}
		r.event(dblog.Event{Event: dblog.EventSampleFault, RunID: r.opts.RunID,
			Index: dblog.IntPtr(idx), Phase: phase, Error: out.Result.Error})
		r.opts.Logger.Error("sample faulted", "index", idx, "phase", phase, "err", out.Cause)
		if r.breaker.RecordFault() {
			r.event(dblog.Event{Event: dblog.EventBreakerTripped, RunID: r.opts.RunID,
				Index: dblog.IntPtr(idx), Error: out.Result.Error})
			r.opts.Logger.Error("circuit breaker tripped, no further samples will start",
				"consecutive_faults", r.breaker.Consecutive())
		}
	} else {
		r.breaker.RecordSuccess()
	}

	r.event(dblog.Event{Event: dblog.EventSampleFinished, RunID: r.opts.RunID, Index: dblog.IntPtr(idx),
		Status: string(out.Status), Correct: dblog.BoolPtr(out.Result.Correct), Round: out.Rounds,
		DurationMs: time.Since(start).Milliseconds()})
	r.opts.Logger.Debug("sample finished", "index", idx, "status", out.Status, "correct", out.Result.Correct, "rounds", out.Rounds)
	if r.opts.Observer != nil {
		r.opts.Observer.SampleFinished(out)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoint.MarkDone(idx)
	r.checkpoint.ConsecFaults = r.breaker.Consecutive()
	r.checkpoint.LastError = out.Result.Error
	if err := SaveCheckpoint(r.opts.RunDir, r.checkpoint); err != nil {
		r.opts.Logger.Warn("saving checkpoint", "err", err)
	}
	return nil
}

// archive stores the sample in the history database when one is configured.
func (r *Runner) archive(out *bench.TaskOutput) {
	if r.opts.Store == nil {
		return
	}
	_, err := r.opts.Store.SaveResult(session.Record{
		RunID:         r.opts.RunID,
		Index:         out.Index,
		Status:        string(out.Status),
		Answer:        out.Result.Answer,
		CorrectAnswer: out.Result.CorrectAnswer,
		Correct:       out.Result.Correct,
		Type:          out.Result.Type,
		Error:         out.Result.Error,
		Description:   out.Result.Description,
		Rounds:        out.Rounds,
	}, out.History)
	if err != nil {
		r.opts.Logger.Warn("archiving result", "index", out.Index, "err", err)
	}
}

// event appends to the run's event log. Failures are logged, never fatal.
func (r *Runner) event(e dblog.Event) {
	if r.opts.Events == nil {
		return
	}
	if err := r.opts.Events.Record(e); err != nil {
		r.opts.Logger.Warn("writing event log", "event", e.Event, "err", err)
	}
}

func selectIndices(outs []*bench.TaskOutput, indices []int) []*bench.TaskOutput {
	want := make(map[int]bool, len(indices))
	for _, i := range indices {
		want[i] = true
	}
	selected := make([]*bench.TaskOutput, 0, len(outs))
	for _, o := range outs {
		if want[o.Index] {
			selected = append(selected, o)
		}
	}
	return selected
}
