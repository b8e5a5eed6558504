package session

import "time"

// Record is one archived sample result.
type Record struct {
	ID            string
	RunID         string
	Index         int
	Status        string
	Answer        string
	CorrectAnswer []string
	Correct       bool
	Type          string
	Error         string
	Description   string
	Rounds        int
	CreatedAt     time.Time
}

// Message is one archived conversation turn.
type Message struct {
	ID       int
	RecordID string
	Seq      int
	Role     string // user, agent
	Content  string
}

// RunSummary aggregates the archived samples of one run for listing.
type RunSummary struct {
	RunID     string
	Samples   int
	Correct   int
	UpdatedAt time.Time
}
