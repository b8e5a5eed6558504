// Package protocol parses the line-oriented text protocol spoken by agents
// under evaluation: "Action: Operation" with a fenced SQL block, "Action:
// Answer" with a "Final Answer:" line, or a quit signal anywhere in the text.
package protocol

import "strings"

// Protocol markers. All matching is case-sensitive.
const (
	actionMarker      = "Action: "
	finalAnswerMarker = "\nFinal Answer:"
	sqlFenceOpen      = "```sql\n"
	sqlFenceClose     = "\n```"
	quitSignal        = "quit"

	// LabelOperation is the only action label that triggers SQL execution.
	LabelOperation = "Operation"
	// LabelAnswer is the label agents use when submitting a final answer.
	LabelAnswer = "Answer"
)

// Kind identifies the variant of a Directive.
type Kind int

const (
	KindUnparseable Kind = iota
	KindOperation
	KindAnswer
	KindQuit
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindOperation:
		return "operation"
	case KindAnswer:
		return "answer"
	case KindQuit:
		return "quit"
	default:
		return "unparseable"
	}
}

// Directive is the classified intent of one agent response. SQL and
// Fenced are set only for KindOperation; a declared operation without a SQL
// fence has Fenced false. Answer is the untrimmed final answer text and is
// set only for KindAnswer.
type Directive struct {
	Kind   Kind
	SQL    string
	Fenced bool
	Answer string
}

// Parsed holds everything extracted from a single agent response.
type Parsed struct {
	Raw string

	// Label is the text following "Action: " up to the next newline.
	// HasAction is false when no newline-terminated marker exists.
	Label     string
	HasAction bool

	// Quit reports whether the quit signal occurs anywhere in Raw.
	Quit bool

	// SQLFound reports whether a fenced SQL block is present. sql holds the
	// flattened statement when it is.
	SQLFound bool
	sql      string

	answer      string
	answerFound bool

	Directive Directive
}

// Parse tokenizes raw agent text. It never fails: text that matches none of
// the recognized shapes yields a KindUnparseable directive. A declared
// operation classifies as KindOperation even when it also mentions quit;
// otherwise the text classifies as Terminal does.
func Parse(raw string) Parsed {
	p := Parsed{Raw: raw}

	p.Label, p.HasAction = findAction(raw)
	p.Quit = strings.Contains(raw, quitSignal)
	p.sql, p.SQLFound = findSQL(raw)
	p.answer, p.answerFound = findFinalAnswer(raw)

	if p.IsOperation() {
		p.Directive = Directive{Kind: KindOperation, SQL: p.sql, Fenced: p.SQLFound}
	} else {
		p.Directive = p.Terminal()
	}
	return p
}

// Terminal classifies the response as the reply that ends a conversation,
// ignoring any operation label: the quit signal first, then a final answer.
// It is used when no further operation can run.
func (p Parsed) Terminal() Directive {
	switch {
	case p.Quit:
		return Directive{Kind: KindQuit}
	case p.answerFound:
		return Directive{Kind: KindAnswer, Answer: p.answer}
	default:
		return Directive{Kind: KindUnparseable}
	}
}

// IsOperation reports whether the response declared "Action: Operation".
// A declared operation without a SQL fence is still an operation; the
// driver treats it as a validation failure.
func (p Parsed) IsOperation() bool {
	return p.HasAction && p.Label == LabelOperation
}

// SQL returns the flattened statement from the first SQL fence.
func (p Parsed) SQL() (string, bool) {
	return p.sql, p.SQLFound
}

// FinalAnswer returns the raw text following "Final Answer:" on its line.
// Surrounding whitespace is left for the caller to trim.
func (p Parsed) FinalAnswer() (string, bool) {
	return p.answer, p.answerFound
}

// findAction returns the label after the first "Action: " marker. The label
// must be terminated by a newline.
func findAction(s string) (string, bool) {
	idx := strings.Index(s, actionMarker)
	if idx == -1 {
		return "", false
	}
	rest := s[idx+len(actionMarker):]
	end := strings.Index(rest, "\n")
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}

// findSQL extracts the body of the first ```sql fence up to the nearest
// closing fence. The body is trimmed and multi-line statements are
// flattened onto one line.
func findSQL(s string) (string, bool) {
	idx := strings.Index(s, sqlFenceOpen)
	if idx == -1 {
		return "", false
	}
	rest := s[idx+len(sqlFenceOpen):]
	end := strings.Index(rest, sqlFenceClose)
	if end == -1 {
		return "", false
	}
	body := strings.TrimSpace(rest[:end])
	return strings.ReplaceAll(body, "\n", " "), true
}

// findFinalAnswer returns the remainder of the line that starts with
// "Final Answer:". The marker must follow a newline.
func findFinalAnswer(s string) (string, bool) {
	idx := strings.Index(s, finalAnswerMarker)
	if idx == -1 {
		return "", false
	}
	rest := s[idx+len(finalAnswerMarker):]
	if end := strings.Index(rest, "\n"); end != -1 {
		rest = rest[:end]
	}
	return rest, true
}
