package bench

import (
	"errors"
	"fmt"
)

// ErrInvalidBudget is returned when max_round is not a positive integer.
var ErrInvalidBudget = errors.New("max_round must be positive")

// Phases at which a sample can fault.
const (
	PhaseSetup   = "setup"
	PhaseSeed    = "seed"
	PhaseExecute = "execute"
	PhaseAction  = "action"
	PhaseVerify  = "verify"
	PhasePanic   = "panic"
)

// FaultError is the cause attached to an UNKNOWN outcome.
type FaultError struct {
	Phase string
	Round int
	Err   error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s fault in round %d: %v", e.Phase, e.Round, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

func fault(phase string, round int, err error) *FaultError {
	return &FaultError{Phase: phase, Round: round, Err: err}
}
