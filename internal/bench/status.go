package bench

// SampleStatus is the terminal classification of one sample run.
type SampleStatus string

const (
	StatusCompleted             SampleStatus = "completed"
	StatusQuit                  SampleStatus = "quit"
	StatusAgentValidationFailed SampleStatus = "agent validation failed"
	StatusAgentContextLimit     SampleStatus = "agent context limit"
	StatusTaskLimitReached      SampleStatus = "task limit reached"
	StatusUnknown               SampleStatus = "unknown"
)

// Statuses lists every status in report order.
var Statuses = []SampleStatus{
	StatusCompleted,
	StatusQuit,
	StatusAgentValidationFailed,
	StatusAgentContextLimit,
	StatusTaskLimitReached,
	StatusUnknown,
}

// Valid reports whether s is one of the known statuses.
func (s SampleStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Reward scores a sample as S - N/T: S is 1 for a correct result and 0
// otherwise, N the rounds taken and T the round budget.
func Reward(correct bool, rounds, maxRound int) float64 {
	if maxRound <= 0 {
		return 0
	}
	s := 0.0
	if correct {
		s = 1
	}
	return s - float64(rounds)/float64(maxRound)
}
