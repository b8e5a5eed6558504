package protocol

import "testing"

func TestParseDirectives(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantKind  Kind
		wantSQL   string
		wantFound bool
		wantQuit  bool
	}{
		{
			name:      "operation with fence",
			input:     "Let me look.\nAction: Operation\n```sql\nSELECT 1;\n```\n",
			wantKind:  KindOperation,
			wantSQL:   "SELECT 1;",
			wantFound: true,
		},
		{
			name:      "multi-line sql is flattened",
			input:     "Action: Operation\n```sql\nSELECT *\nFROM t\nWHERE a = 1;\n```",
			wantKind:  KindOperation,
			wantSQL:   "SELECT * FROM t WHERE a = 1;",
			wantFound: true,
		},
		{
			name:      "operation without fence",
			input:     "Action: Operation\nSELECT 1;\n",
			wantKind:  KindOperation,
			wantFound: false,
		},
		{
			name:      "unlabelled fence is not sql",
			input:     "Action: Operation\n```\nSELECT 1;\n```\n",
			wantKind:  KindOperation,
			wantFound: false,
		},
		{
			name:      "first fence wins",
			input:     "Action: Operation\n```sql\nSELECT 1;\n```\n```sql\nSELECT 2;\n```\n",
			wantKind:  KindOperation,
			wantSQL:   "SELECT 1;",
			wantFound: true,
		},
		{
			name:     "answer",
			input:    "Action: Answer\nFinal Answer: [\"1\"]",
			wantKind: KindAnswer,
		},
		{
			name:     "quit label",
			input:    "I cannot do this.\nAction: quit\n",
			wantKind: KindQuit,
			wantQuit: true,
		},
		{
			name:     "quit substring without marker",
			input:    "I will quit now",
			wantKind: KindQuit,
			wantQuit: true,
		},
		{
			name:      "operation label wins over quit",
			input:     "Action: Operation\n```sql\nSELECT 1;\n```\nor maybe quit",
			wantKind:  KindOperation,
			wantSQL:   "SELECT 1;",
			wantFound: true,
			wantQuit:  true,
		},
		{
			name:     "quit wins over final answer",
			input:    "Action: Answer\nFinal Answer: [\"quit\"]",
			wantKind: KindQuit,
			wantQuit: true,
		},
		{
			name:     "label is case sensitive",
			input:    "Action: operation\n```sql\nSELECT 1;\n```\n",
			wantKind: KindUnparseable,
			// fence is still reported even though the label does not select it
			wantFound: true,
			wantSQL:   "SELECT 1;",
		},
		{
			name:     "label without trailing newline",
			input:    "Action: Operation",
			wantKind: KindUnparseable,
		},
		{
			name:     "empty",
			input:    "",
			wantKind: KindUnparseable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.input)
			if p.Directive.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", p.Directive.Kind, tt.wantKind)
			}
			if tt.wantKind == KindOperation && (p.Directive.Fenced != tt.wantFound || p.Directive.SQL != tt.wantSQL) {
				t.Errorf("Directive = %+v, want SQL %q fenced %v", p.Directive, tt.wantSQL, tt.wantFound)
			}
			sql, found := p.SQL()
			if found != tt.wantFound {
				t.Errorf("SQL found = %v, want %v", found, tt.wantFound)
			}
			if sql != tt.wantSQL {
				t.Errorf("SQL = %q, want %q", sql, tt.wantSQL)
			}
			if p.Quit != tt.wantQuit {
				t.Errorf("Quit = %v, want %v", p.Quit, tt.wantQuit)
			}
		})
	}
}

func TestParseFinalAnswer(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      string
		wantFound bool
	}{
		{name: "list", input: "Action: Answer\nFinal Answer: [\"1\", \"2\"]", want: ` ["1", "2"]`, wantFound: true},
		{name: "stops at newline", input: "Action: Answer\nFinal Answer: [\"a\"]\nthanks", want: ` ["a"]`, wantFound: true},
		{name: "needs preceding newline", input: "Final Answer: [\"a\"]", wantFound: false},
		{name: "empty remainder", input: "x\nFinal Answer:", want: "", wantFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Parse(tt.input).FinalAnswer()
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if got != tt.want {
				t.Errorf("FinalAnswer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseActionLabel(t *testing.T) {
	p := Parse("thinking...\nAction: Answer\nFinal Answer: []")
	if !p.HasAction || p.Label != LabelAnswer {
		t.Errorf("Label = %q (HasAction=%v), want %q", p.Label, p.HasAction, LabelAnswer)
	}
	if p.IsOperation() {
		t.Error("IsOperation() = true for an Answer label")
	}
}

func TestTerminalIgnoresOperationLabel(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantKind   Kind
		wantAnswer string
	}{
		{"operation with answer", "Action: Operation\n```sql\nSELECT 1;\n```\nFinal Answer: [1]", KindAnswer, " [1]"},
		{"operation with quit", "Action: Operation\n```sql\nSELECT 1;\n```\nI quit", KindQuit, ""},
		{"bare operation", "Action: Operation\n```sql\nSELECT 1;\n```\n", KindUnparseable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.input)
			if p.Directive.Kind != KindOperation {
				t.Fatalf("Directive.Kind = %v, want operation", p.Directive.Kind)
			}
			got := p.Terminal()
			if got.Kind != tt.wantKind || got.Answer != tt.wantAnswer {
				t.Errorf("Terminal() = %+v, want kind %v answer %q", got, tt.wantKind, tt.wantAnswer)
			}
		})
	}
}
