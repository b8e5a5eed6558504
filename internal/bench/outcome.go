package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/berth-dev/dbbench/internal/agent"
	"github.com/berth-dev/dbbench/internal/dataset"
	"github.com/berth-dev/dbbench/internal/session"
	"github.com/berth-dev/dbbench/internal/sqlexec"
	"github.com/berth-dev/dbbench/internal/verify"
)

// SampleInput is everything needed to run one sample.
type SampleInput struct {
	Index    int
	Entry    dataset.Entry
	MaxRound int
	Preamble string
	Agent    agent.Agent
	Executor sqlexec.Executor
	OnRound  func(RoundEvent)
	Logger   *slog.Logger
}

// Result is the graded answer of a sample.
type Result struct {
	Answer        string   `json:"answer"`
	CorrectAnswer []string `json:"correct_answer"`
	Correct       bool     `json:"correct"`
	Type          string   `json:"type"`
	Error         string   `json:"error"`
	Description   string   `json:"description"`
}

// TaskOutput is the record returned for every sample.
type TaskOutput struct {
	Index   int          `json:"index"`
	Status  SampleStatus `json:"status"`
	Result  Result       `json:"result"`
	History []agent.Turn `json:"history"`
	Rounds  int          `json:"rounds"`
	// Cause is the fault behind an UNKNOWN status.
	Cause error `json:"-"`
}

// RunSample provisions the sample's namespace, drives the conversation and
// grades the outcome. The namespace is dropped exactly once on every path.
// Faults during the run become an UNKNOWN output; the returned error is
// reserved for invalid input.
func RunSample(ctx context.Context, in SampleInput) (*TaskOutput, error) {
	if in.MaxRound <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, in.MaxRound)
	}
	if in.Agent == nil || in.Executor == nil {
		return nil, errors.New("sample needs an agent and an executor")
	}
	logger := in.Logger
	if logger == nil {
		logger = slog.Default()
	}

	entry := in.Entry
	out := &TaskOutput{
		Index: in.Index,
		Result: Result{
			CorrectAnswer: entry.CorrectAnswer(),
			Type:          entry.Kind(),
			Description:   entry.Description,
		},
		History: []agent.Turn{},
	}

	ns, err := in.Executor.Create(ctx, entry)
	if err != nil {
		return out.fail(fault(PhaseSetup, 0, err)), nil
	}
	defer func() {
		if err := ns.Drop(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("drop namespace failed", "index", in.Index, "namespace", ns.Name(), "err", err)
		}
	}()

	conv := session.New(in.Agent)
	trace, runErr := runProtected(ctx, DriverConfig{
		MaxRound: in.MaxRound,
		Preamble: in.Preamble,
		Prompt:   entry.Prompt(),
		OnRound:  in.OnRound,
	}, conv, ns)

	out.History = conv.History()
	out.Rounds = trace.Rounds
	out.Status = trace.Status
	out.Result.Answer = trace.Answer
	if runErr != nil {
		out.fail(runErr)
	}

	if entry.IsWrite() && out.Cause == nil {
		fp, err := fingerprintProtected(ctx, ns, entry)
		if err != nil {
			out.fail(err)
		} else {
			out.Result.Answer = fp
		}
	}

	out.Result.Correct = verify.CheckAnswer(out.Result.Type, out.Result.Answer, out.Result.CorrectAnswer)
	return out, nil
}

// fail marks the output UNKNOWN with cause.
func (o *TaskOutput) fail(cause error) *TaskOutput {
	o.Status = StatusUnknown
	o.Result.Answer = ""
	o.Result.Error = cause.Error()
	o.Cause = cause
	return o
}

// runProtected runs a driver and turns a panic into a fault.
func runProtected(ctx context.Context, cfg DriverConfig, conv Conversation, runner SQLRunner) (trace Trace, err error) {
	d, err := NewDriver(cfg, conv, runner)
	if err != nil {
		return Trace{Status: StatusUnknown}, fault(PhaseSetup, 0, err)
	}
	defer func() {
		if r := recover(); r != nil {
			trace = d.trace()
			trace.Status = StatusUnknown
			trace.Answer = ""
			err = fault(PhasePanic, d.rounds, fmt.Errorf("panic: %v", r))
		}
	}()
	return d.Run(ctx)
}

// fingerprintProtected computes the post-run table fingerprint of a write task.
func fingerprintProtected(ctx context.Context, src verify.RowSource, entry dataset.Entry) (fp string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fault(PhasePanic, 0, fmt.Errorf("panic: %v", r))
		}
	}()
	fp, err = verify.TableFingerprint(ctx, src, entry.Table.Name, entry.ColumnNames())
	if err != nil {
		return "", fault(PhaseVerify, 0, err)
	}
	return fp, nil
}
