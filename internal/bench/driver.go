// Package bench runs dbbench samples. A Driver steps one conversation through
// the round loop; RunSample wraps it with namespace setup, verification and
// fault classification.
package bench

import (
	"context"
	"fmt"
	"strings"

	"github.com/berth-dev/dbbench/internal/agent"
	"github.com/berth-dev/dbbench/internal/protocol"
	"github.com/berth-dev/dbbench/internal/session"
)

// seedAck is the scripted agent acknowledgement of the preamble.
const seedAck = "Ok."

// Conversation is the turn buffer the driver talks through.
type Conversation interface {
	Inject(role, content string)
	Action(ctx context.Context) (session.Response, error)
	History() []agent.Turn
}

// SQLRunner executes one flattened statement and renders its result.
type SQLRunner interface {
	Execute(ctx context.Context, query string, args ...any) (string, error)
}

// RoundEvent describes one executed operation round.
type RoundEvent struct {
	Round  int
	SQL    string
	Result string
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	MaxRound int
	Preamble string
	// Prompt is the task text, description and add_description joined.
	Prompt string
	// OnRound, when set, is called after each SQL execution.
	OnRound func(RoundEvent)
}

// Trace is what a finished run observed.
type Trace struct {
	Status     SampleStatus
	Answer     string
	Rounds     int
	Executions int
}

// state names a node of the driver state machine.
type state int

const (
	stateSeed state = iota
	stateLoop
	stateGuard
	stateExecute
	stateAwait
	stateResolve
	stateDone
)

func (s state) String() string {
	switch s {
	case stateSeed:
		return "seed"
	case stateLoop:
		return "loop"
	case stateGuard:
		return "guard"
	case stateExecute:
		return "execute"
	case stateAwait:
		return "await"
	case stateResolve:
		return "resolve"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// step runs the work of one state and returns the next state.
type step func(d *Driver, ctx context.Context) (state, error)

// transitions is the driver's state table. Every state except stateDone
// has exactly one step.
//
//	seed    -> loop | done (context limit)
//	loop    -> guard (operation, budget left) | resolve
//	guard   -> execute | done (quit, missing SQL)
//	execute -> await
//	await   -> loop | done (context limit)
//	resolve -> done
var transitions = map[state]step{
	stateSeed:    (*Driver).seed,
	stateLoop:    (*Driver).loop,
	stateGuard:   (*Driver).guard,
	stateExecute: (*Driver).execute,
	stateAwait:   (*Driver).await,
	stateResolve: (*Driver).resolve,
}

// Driver steps one sample's conversation to a terminal status. A Driver is
// single use.
type Driver struct {
	cfg  DriverConfig
	conv Conversation
	sql  SQLRunner

	last       protocol.Parsed
	quit       bool
	rounds     int
	executions int
	status     SampleStatus
	answer     string
}

// NewDriver returns a driver over conv and runner.
func NewDriver(cfg DriverConfig, conv Conversation, runner SQLRunner) (*Driver, error) {
	if cfg.MaxRound <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, cfg.MaxRound)
	}
	return &Driver{cfg: cfg, conv: conv, sql: runner}, nil
}

// Run drives the conversation until a terminal status. A non-nil error is
// always a *FaultError and comes with an UNKNOWN trace.
func (d *Driver) Run(ctx context.Context) (Trace, error) {
	cur := stateSeed
	for cur != stateDone {
		next, err := transitions[cur](d, ctx)
		if err != nil {
			return Trace{Status: StatusUnknown, Rounds: d.rounds, Executions: d.executions}, err
		}
		cur = next
	}
	return d.trace(), nil
}

func (d *Driver) trace() Trace {
	return Trace{
		Status:     d.status,
		Answer:     d.answer,
		Rounds:     d.rounds,
		Executions: d.executions,
	}
}

func (d *Driver) finish(status SampleStatus) (state, error) {
	d.status = status
	return stateDone, nil
}

// seed injects the preamble exchange and the task, then asks for the first
// action. The quit flag is not taken from this response.
func (d *Driver) seed(ctx context.Context) (state, error) {
	d.conv.Inject(agent.RoleUser, d.cfg.Preamble)
	d.conv.Inject(agent.RoleAgent, seedAck)
	d.conv.Inject(agent.RoleUser, d.cfg.Prompt)

	resp, err := d.conv.Action(ctx)
	if err != nil {
		return stateDone, fault(PhaseSeed, 0, err)
	}
	if resp.Status == session.StatusContextLimit {
		return d.finish(StatusAgentContextLimit)
	}
	d.last = protocol.Parse(resp.Content)
	return stateLoop, nil
}

func (d *Driver) loop(context.Context) (state, error) {
	if d.last.Directive.Kind == protocol.KindOperation && d.rounds < d.cfg.MaxRound {
		return stateGuard, nil
	}
	return stateResolve, nil
}

// guard applies the early exits of a round: a quit seen on the previous
// response, then a declared operation without SQL.
func (d *Driver) guard(context.Context) (state, error) {
	if d.quit {
		return d.finish(StatusQuit)
	}
	if !d.last.Directive.Fenced {
		return d.finish(StatusAgentValidationFailed)
	}
	return stateExecute, nil
}

func (d *Driver) execute(ctx context.Context) (state, error) {
	query := d.last.Directive.SQL
	result, err := d.sql.Execute(ctx, query)
	if err != nil {
		return stateDone, fault(PhaseExecute, d.rounds+1, err)
	}
	d.executions++
	d.conv.Inject(agent.RoleUser, result)
	if d.cfg.OnRound != nil {
		d.cfg.OnRound(RoundEvent{Round: d.rounds + 1, SQL: query, Result: result})
	}
	return stateAwait, nil
}

// await requests the next action. The executed SQL is not rolled back when
// the agent runs out of context.
func (d *Driver) await(ctx context.Context) (state, error) {
	resp, err := d.conv.Action(ctx)
	if err != nil {
		return stateDone, fault(PhaseAction, d.rounds+1, err)
	}
	if resp.Status == session.StatusContextLimit {
		return d.finish(StatusAgentContextLimit)
	}
	d.last = protocol.Parse(resp.Content)
	d.quit = d.last.Quit
	d.rounds++
	return stateLoop, nil
}

// resolve classifies a loop that ended without an early exit. The last
// response is read as a terminal reply even if it declared an operation the
// budget no longer allows. Running out of budget without an answer is
// TASK_LIMIT_REACHED unless the agent quit.
func (d *Driver) resolve(context.Context) (state, error) {
	d.quit = d.last.Quit
	dir := d.last.Terminal()

	switch dir.Kind {
	case protocol.KindQuit:
		d.status = StatusQuit
	case protocol.KindAnswer:
		d.status = StatusCompleted
		d.answer = strings.TrimSpace(dir.Answer)
	default:
		d.status = StatusAgentValidationFailed
	}

	if d.rounds >= d.cfg.MaxRound && dir.Answer == "" && dir.Kind != protocol.KindQuit {
		d.status = StatusTaskLimitReached
	}
	return stateDone, nil
}
