// Package agent implements the config-driven agents: a single tool-use
// loop (simple), a sequential planner over named workers (orchestra)
// and a concurrent fan-out over identical workers (workforce).
package agent

import (
	"context"
	"fmt"

	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/registry"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// Event types emitted by streaming runs.
const (
	EventTextDelta      = "text_delta"
	EventToolCall       = "tool_call"
	EventToolCallOutput = "tool_call_output"
	EventError          = "error"
	EventFinish         = "finish"
)

// Event is one unit of a streaming run.
type Event struct {
	Type       string            `json:"type"`
	Text       string            `json:"text,omitempty"`
	ToolCall   *llms.ToolCall    `json:"tool_call,omitempty"`
	ToolResult *tools.ToolResult `json:"tool_result,omitempty"`
	Result     *RunResult        `json:"result,omitempty"`
	Err        error             `json:"-"`
}

// RunResult is the final outcome of a run.
type RunResult struct {
	Text   string `json:"text"`
	Turns  int    `json:"turns"`
	Tokens int    `json:"tokens"`
}

// Agent answers a user input, possibly calling tools along the way.
type Agent interface {
	Name() string

	Description() string

	Run(ctx context.Context, input string) (*RunResult, error)

	// RunStreaming emits events as the run progresses. The channel is
	// closed after the finish or error event.
	RunStreaming(ctx context.Context, input string) (<-chan Event, error)
}

// Registry holds named agents.
type Registry struct {
	*registry.BaseRegistry[Agent]
}

func NewRegistry() *Registry {
	return &Registry{
		BaseRegistry: registry.NewBaseRegistry[Agent](),
	}
}

// GetAgent returns the named agent.
func (r *Registry) GetAgent(name string) (Agent, error) {
	agent, exists := r.Get(name)
	if !exists {
		return nil, fmt.Errorf("agent '%s' not found", name)
	}
	return agent, nil
}
