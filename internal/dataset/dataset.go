// Package dataset loads dbbench task entries from JSON, JSONL or YAML files.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrIndexOutOfRange is returned by Get for indices outside the dataset.
var ErrIndexOutOfRange = errors.New("dataset index out of range")

// Operation kinds. Anything that is not a write kind is graded as a read.
const (
	KindSelect = "SELECT"
	KindInsert = "INSERT"
	KindDelete = "DELETE"
	KindUpdate = "UPDATE"
)

// Column is one column of the task table schema.
type Column struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// TableInfo holds the schema and seed rows of the task table.
type TableInfo struct {
	Columns []Column `yaml:"columns" json:"columns"`
	Rows    [][]any  `yaml:"rows" json:"rows"`
}

// Table names the task table and carries its definition.
type Table struct {
	Name string    `yaml:"table_name" json:"table_name"`
	Info TableInfo `yaml:"table_info" json:"table_info"`
}

// Entry is one immutable task definition.
type Entry struct {
	Description    string     `yaml:"description" json:"description"`
	AddDescription string     `yaml:"add_description" json:"add_description"`
	Table          Table      `yaml:"table" json:"table"`
	Type           stringList `yaml:"type" json:"type"`
	Label          []any      `yaml:"label" json:"label,omitempty"`
	AnswerMD5      string     `yaml:"answer_md5" json:"answer_md5,omitempty"`
}

// Kind returns the operation kind (first element of type), or "" if unset.
func (e Entry) Kind() string {
	if len(e.Type) == 0 {
		return ""
	}
	return e.Type[0]
}

// IsWrite reports whether the task mutates the table.
func (e Entry) IsWrite() bool {
	return IsWriteKind(e.Kind())
}

// IsWriteKind reports whether kind is INSERT, DELETE or UPDATE.
func IsWriteKind(kind string) bool {
	switch kind {
	case KindInsert, KindDelete, KindUpdate:
		return true
	}
	return false
}

// Prompt is the task text shown to the agent after the preamble.
func (e Entry) Prompt() string {
	return e.Description + "\n" + e.AddDescription
}

// ColumnNames returns the schema column names in declaration order.
func (e Entry) ColumnNames() []string {
	names := make([]string, len(e.Table.Info.Columns))
	for i, c := range e.Table.Info.Columns {
		names[i] = c.Name
	}
	return names
}

// CorrectAnswer returns the ground truth for the entry: the table
// fingerprint for write kinds, the label rendered as strings otherwise.
// An absent answer yields an empty slice.
func (e Entry) CorrectAnswer() []string {
	if e.IsWrite() {
		if e.AnswerMD5 == "" {
			return []string{}
		}
		return []string{e.AnswerMD5}
	}
	out := make([]string, 0, len(e.Label))
	for _, v := range e.Label {
		out = append(out, FormatValue(v))
	}
	return out
}

// FormatValue renders a decoded scalar the way it appears in answers.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// stringList accepts either a scalar or a sequence of strings.
type stringList []string

func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("type: expected string or list, got yaml kind %d", node.Kind)
	}
}

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = stringList{one}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("type: expected string or list: %w", err)
	}
	*s = items
	return nil
}

// Dataset is an ordered, read-only collection of entries.
type Dataset struct {
	Entries []Entry
}

// Len returns the number of entries.
func (d *Dataset) Len() int {
	return len(d.Entries)
}

// Get returns the entry at index i.
func (d *Dataset) Get(i int) (Entry, error) {
	if i < 0 || i >= len(d.Entries) {
		return Entry{}, fmt.Errorf("%w: %d (size %d)", ErrIndexOutOfRange, i, len(d.Entries))
	}
	return d.Entries[i], nil
}

// Load reads a dataset file. ".jsonl" files hold one JSON entry per line,
// ".json" files a JSON array, and anything else a YAML list of entries.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		entries, err = decodeLines(data)
	case ".json":
		err = decodeJSON(data, &entries)
	default:
		err = yaml.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}

	return &Dataset{Entries: entries}, nil
}

// decodeLines decodes one entry per non-empty line.
func decodeLines(data []byte) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := decodeJSON(line, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning lines: %w", err)
	}
	return entries, nil
}

// decodeJSON keeps numbers as json.Number so integer cells survive intact.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
