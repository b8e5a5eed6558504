// Package mcpserver exposes the benchmark as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/berth-dev/dbbench/internal/agent"
	"github.com/berth-dev/dbbench/internal/bench"
	"github.com/berth-dev/dbbench/internal/dataset"
	"github.com/berth-dev/dbbench/internal/session"
	"github.com/berth-dev/dbbench/internal/sqlexec"
)

const defaultListLimit = 50

// Options configures the tools.
type Options struct {
	Dataset  *dataset.Dataset
	Agent    agent.Agent
	Executor sqlexec.Executor
	MaxRound int
	Preamble string
	Version  string

	RunID  string         // archive run id for samples run through the server
	Store  *session.Store // optional
	Logger *slog.Logger
}

// Server serves list_tasks, get_task and run_sample.
type Server struct {
	opts   Options
	server *mcp.Server

	runMu sync.Mutex // one sample at a time
}

// ListTasksInput pages through the dataset.
type ListTasksInput struct {
	Offset int `json:"offset,omitempty" jsonschema:"index of the first task to return"`
	Limit  int `json:"limit,omitempty" jsonschema:"maximum number of tasks to return"`
}

// TaskInfo summarizes one dataset entry.
type TaskInfo struct {
	Index       int    `json:"index"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Table       string `json:"table"`
}

// ListTasksOutput is the result of list_tasks.
type ListTasksOutput struct {
	Total int        `json:"total"`
	Tasks []TaskInfo `json:"tasks"`
}

// TaskInput selects a task by index.
type TaskInput struct {
	Index int `json:"index" jsonschema:"dataset index of the task"`
}

// TaskDetail is the result of get_task.
type TaskDetail struct {
	Index   int      `json:"index"`
	Type    string   `json:"type"`
	Table   string   `json:"table"`
	Prompt  string   `json:"prompt"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// SampleOutput is the result of run_sample.
type SampleOutput struct {
	Index         int          `json:"index"`
	Status        string       `json:"status"`
	Answer        string       `json:"answer"`
	CorrectAnswer []string     `json:"correct_answer"`
	Correct       bool         `json:"correct"`
	Rounds        int          `json:"rounds"`
	Reward        float64      `json:"reward"`
	Error         string       `json:"error,omitempty"`
	History       []agent.Turn `json:"history"`
}

// New registers the tools on a fresh MCP server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		opts:   opts,
		server: mcp.NewServer(&mcp.Implementation{Name: "dbbench", Version: opts.Version}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_tasks",
		Description: "List benchmark tasks with their index, type and description.",
	}, s.listTasks)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_task",
		Description: "Show the prompt and table layout of one benchmark task.",
	}, s.getTask)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_sample",
		Description: "Run the configured agent on one task and return the graded outcome and transcript.",
	}, s.runSample)
	return s
}

// Run serves over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func info(index int, e dataset.Entry) TaskInfo {
	return TaskInfo{Index: index, Type: e.Kind(), Description: e.Description, Table: e.Table.Name}
}

func (s *Server) listTasks(_ context.Context, _ *mcp.CallToolRequest, in ListTasksInput) (*mcp.CallToolResult, ListTasksOutput, error) {
	total := s.opts.Dataset.Len()
	out := ListTasksOutput{Total: total, Tasks: []TaskInfo{}}
	if in.Offset < 0 {
		return nil, out, fmt.Errorf("offset must not be negative")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	for i := in.Offset; i < total && i < in.Offset+limit; i++ {
		e, err := s.opts.Dataset.Get(i)
		if err != nil {
			return nil, out, err
		}
		out.Tasks = append(out.Tasks, info(i, e))
	}
	return nil, out, nil
}

func (s *Server) getTask(_ context.Context, _ *mcp.CallToolRequest, in TaskInput) (*mcp.CallToolResult, TaskDetail, error) {
	e, err := s.opts.Dataset.Get(in.Index)
	if err != nil {
		return nil, TaskDetail{}, err
	}
	return nil, TaskDetail{
		Index:   in.Index,
		Type:    e.Kind(),
		Table:   e.Table.Name,
		Prompt:  e.Prompt(),
		Columns: e.ColumnNames(),
		Rows:    len(e.Table.Info.Rows),
	}, nil
}

func (s *Server) runSample(ctx context.Context, _ *mcp.CallToolRequest, in TaskInput) (*mcp.CallToolResult, SampleOutput, error) {
	e, err := s.opts.Dataset.Get(in.Index)
	if err != nil {
		return nil, SampleOutput{}, err
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.opts.Logger.Info("running sample", "index", in.Index)
	res, err := bench.RunSample(ctx, bench.SampleInput{
		Index:    in.Index,
		Entry:    e,
		MaxRound: s.opts.MaxRound,
		Preamble: s.opts.Preamble,
		Agent:    s.opts.Agent,
		Executor: s.opts.Executor,
		Logger:   s.opts.Logger,
	})
	if err != nil {
		return nil, SampleOutput{}, err
	}
	s.archive(res)

	return nil, SampleOutput{
		Index:         res.Index,
		Status:        string(res.Status),
		Answer:        res.Result.Answer,
		CorrectAnswer: res.Result.CorrectAnswer,
		Correct:       res.Result.Correct,
		Rounds:        res.Rounds,
		Reward:        bench.Reward(res.Result.Correct, res.Rounds, s.opts.MaxRound),
		Error:         res.Result.Error,
		History:       res.History,
	}, nil
}

func (s *Server) archive(out *bench.TaskOutput) {
	if s.opts.Store == nil {
		return
	}
	_, err := s.opts.Store.SaveResult(session.Record{
		RunID:         s.opts.RunID,
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
		s.opts.Logger.Warn("archiving result", "index", out.Index, "err", err)
	}
}
