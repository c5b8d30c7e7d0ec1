package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/observability"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// SimpleAgent runs a plain tool-use loop: send the conversation plus
// tool definitions, execute whatever tool calls come back through the
// registry (so middleware applies), feed the results back, and repeat
// until the model answers with text or the turn budget runs out.
type SimpleAgent struct {
	name        string
	description string
	instruction string
	provider    llms.Provider
	registry    *tools.ToolRegistry
	maxTurns    int

	history []llms.Message
}

// NewSimpleAgent wires an agent from config. The tool registry carries
// the middleware chain (guards, auditing) established at construction.
func NewSimpleAgent(cfg *config.AgentConfig, provider llms.Provider, registry *tools.ToolRegistry) (*SimpleAgent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent config is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if registry == nil {
		registry = tools.NewToolRegistry()
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 20
	}

	return &SimpleAgent{
		name:        cfg.Name,
		description: cfg.Description,
		instruction: cfg.Instruction,
		provider:    provider,
		registry:    registry,
		maxTurns:    maxTurns,
	}, nil
}

func (a *SimpleAgent) Name() string {
	return a.name
}

func (a *SimpleAgent) Description() string {
	return a.description
}

// Reset clears the conversation history.
func (a *SimpleAgent) Reset() {
	a.history = nil
}

func (a *SimpleAgent) Run(ctx context.Context, input string) (*RunResult, error) {
	return a.run(ctx, input, nil)
}

func (a *SimpleAgent) RunStreaming(ctx context.Context, input string) (<-chan Event, error) {
	events := make(chan Event, 100)

	go func() {
		defer close(events)

		emit := func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		result, err := a.run(ctx, input, emit)
		if err != nil {
			emit(Event{Type: EventError, Err: err, Text: err.Error()})
			return
		}
		emit(Event{Type: EventFinish, Result: result, Text: result.Text})
	}()

	return events, nil
}

// run drives the loop. emit is nil for non-streaming runs.
func (a *SimpleAgent) run(ctx context.Context, input string, emit func(Event)) (*RunResult, error) {
	startTime := time.Now()

	messages := make([]llms.Message, 0, len(a.history)+2)
	if a.instruction != "" {
		messages = append(messages, llms.Message{Role: llms.RoleSystem, Content: a.instruction})
	}
	messages = append(messages, a.history...)
	messages = append(messages, llms.Message{Role: llms.RoleUser, Content: input})
	historyStart := len(messages) - 1

	var definitions []llms.ToolDefinition
	for _, info := range a.registry.ListTools() {
		definitions = append(definitions, llms.DefinitionFromToolInfo(info))
	}

	result := &RunResult{}
	var runErr error

	for turn := 0; turn < a.maxTurns; turn++ {
		result.Turns = turn + 1

		text, toolCalls, tokens, err := a.completeTurn(ctx, messages, definitions, emit)
		if err != nil {
			runErr = err
			break
		}
		result.Tokens += tokens

		if len(toolCalls) == 0 {
			result.Text = text
			break
		}

		assistantMsg := llms.Message{Role: llms.RoleAssistant, Content: text, ToolCalls: toolCalls}
		messages = append(messages, assistantMsg)

		for _, call := range toolCalls {
			call := call
			if emit != nil {
				emit(Event{Type: EventToolCall, ToolCall: &call})
			}

			toolResult, err := a.registry.ExecuteTool(ctx, call.Name, call.Args)
			if err != nil && toolResult.Error == "" {
				toolResult = tools.ToolResult{Success: false, Error: err.Error(), ToolName: call.Name}
			}
			slog.Debug("Tool executed",
				"agent", a.name, "tool", call.Name, "success", toolResult.Success)

			if emit != nil {
				emit(Event{Type: EventToolCallOutput, ToolResult: &toolResult})
			}

			messages = append(messages, llms.Message{
				Role:       llms.RoleTool,
				Content:    toolResultContent(toolResult),
				ToolCallID: call.ID,
			})
		}

		if turn == a.maxTurns-1 {
			result.Text = text
		}
	}

	if runErr == nil {
		a.history = append(a.history, messages[historyStart:]...)
		a.history = append(a.history, llms.Message{Role: llms.RoleAssistant, Content: result.Text})
	}

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordAgentRun(a.name, time.Since(startTime), runErr)
	}

	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

// completeTurn performs one model call, streaming when emit is set.
func (a *SimpleAgent) completeTurn(ctx context.Context, messages []llms.Message, definitions []llms.ToolDefinition, emit func(Event)) (string, []llms.ToolCall, int, error) {
	if emit == nil {
		completion, err := a.provider.Generate(ctx, messages, definitions)
		if err != nil {
			return "", nil, 0, err
		}
		return completion.Text, completion.ToolCalls, completion.Tokens, nil
	}

	ch, err := a.provider.GenerateStreaming(ctx, messages, definitions)
	if err != nil {
		return "", nil, 0, err
	}

	var text string
	var toolCalls []llms.ToolCall
	tokens := 0

	for chunk := range ch {
		switch chunk.Type {
		case llms.ChunkText:
			text += chunk.Text
			emit(Event{Type: EventTextDelta, Text: chunk.Text})
		case llms.ChunkToolCall:
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
			}
		case llms.ChunkDone:
			tokens = chunk.Tokens
		case llms.ChunkError:
			return text, toolCalls, tokens, chunk.Error
		}
	}

	return text, toolCalls, tokens, nil
}

func toolResultContent(result tools.ToolResult) string {
	if result.Success {
		return result.Content
	}
	if result.Content != "" {
		return fmt.Sprintf("error: %s\n%s", result.Error, result.Content)
	}
	return fmt.Sprintf("error: %s", result.Error)
}
