package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// scriptedProvider replays a fixed list of completions, one per call,
// and records every conversation it was handed.
type scriptedProvider struct {
	mu          sync.Mutex
	completions []*llms.Completion
	err         error

	calls    [][]llms.Message
	toolDefs [][]llms.ToolDefinition
}

func (p *scriptedProvider) Generate(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (*llms.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, append([]llms.Message(nil), messages...))
	p.toolDefs = append(p.toolDefs, defs)

	if p.err != nil {
		return nil, p.err
	}
	if len(p.completions) == 0 {
		return &llms.Completion{Text: "out of script"}, nil
	}
	next := p.completions[0]
	p.completions = p.completions[1:]
	return next, nil
}

func (p *scriptedProvider) GenerateStreaming(ctx context.Context, messages []llms.Message, defs []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	completion, err := p.Generate(ctx, messages, defs)
	if err != nil {
		return nil, err
	}

	ch := make(chan llms.StreamChunk, len(completion.ToolCalls)+3)
	if completion.Text != "" {
		ch <- llms.StreamChunk{Type: llms.ChunkText, Text: completion.Text}
	}
	for i := range completion.ToolCalls {
		call := completion.ToolCalls[i]
		ch <- llms.StreamChunk{Type: llms.ChunkToolCall, ToolCall: &call}
	}
	ch <- llms.StreamChunk{Type: llms.ChunkDone, Tokens: completion.Tokens}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) ModelName() string { return "scripted" }

func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptedProvider) lastCall() []llms.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

// newEchoRegistry builds a registry with a single "echo" tool that
// returns its "text" argument and records invocations.
func newEchoRegistry(t *testing.T, invocations *[]map[string]any, fail bool) *tools.ToolRegistry {
	t.Helper()

	source := tools.NewLocalToolSource("test")
	echo := tools.NewFuncTool(tools.ToolInfo{
		Name:        "echo",
		Description: "Echoes the text argument back.",
		Parameters: []tools.ToolParameter{
			{Name: "text", Type: "string", Description: "Text to echo.", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		if invocations != nil {
			*invocations = append(*invocations, args)
		}
		if fail {
			return nil, errors.New("echo broke")
		}
		text, _ := args["text"].(string)
		return "echo: " + text, nil
	})
	require.NoError(t, source.RegisterTool(echo))

	registry := tools.NewToolRegistry()
	require.NoError(t, registry.RegisterSource(source))
	return registry
}

func simpleConfig(name string) *config.AgentConfig {
	return &config.AgentConfig{
		Name:        name,
		Description: "test agent",
		Instruction: "You are a test agent.",
		Type:        config.AgentTypeSimple,
		MaxTurns:    5,
	}
}

func TestSimpleAgentTextOnlyRun(t *testing.T) {
	provider := &scriptedProvider{completions: []*llms.Completion{
		{Text: "hello there", Tokens: 12},
	}}

	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, nil)
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, "hello there", result.Text)
	assert.Equal(t, 1, result.Turns)
	assert.Equal(t, 12, result.Tokens)

	messages := provider.lastCall()
	require.Len(t, messages, 2)
	assert.Equal(t, llms.RoleSystem, messages[0].Role)
	assert.Equal(t, "You are a test agent.", messages[0].Content)
	assert.Equal(t, llms.RoleUser, messages[1].Role)
	assert.Equal(t, "hi", messages[1].Content)
}

func TestSimpleAgentToolLoop(t *testing.T) {
	provider := &scriptedProvider{completions: []*llms.Completion{
		{ToolCalls: []llms.ToolCall{{ID: "call_1", Name: "echo", Args: map[string]any{"text": "ping"}}}, Tokens: 5},
		{Text: "the tool said: echo: ping", Tokens: 7},
	}}

	var invocations []map[string]any
	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, newEchoRegistry(t, &invocations, false))
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "ping please")
	require.NoError(t, err)

	assert.Equal(t, "the tool said: echo: ping", result.Text)
	assert.Equal(t, 2, result.Turns)
	assert.Equal(t, 12, result.Tokens)

	require.Len(t, invocations, 1)
	assert.Equal(t, "ping", invocations[0]["text"])

	// The second model call must carry the assistant tool call and the
	// tool result message.
	messages := provider.lastCall()
	require.Len(t, messages, 4)
	assert.Equal(t, llms.RoleAssistant, messages[2].Role)
	require.Len(t, messages[2].ToolCalls, 1)
	assert.Equal(t, llms.RoleTool, messages[3].Role)
	assert.Equal(t, "echo: ping", messages[3].Content)
	assert.Equal(t, "call_1", messages[3].ToolCallID)
}

func TestSimpleAgentSendsToolDefinitions(t *testing.T) {
	provider := &scriptedProvider{completions: []*llms.Completion{{Text: "ok"}}}

	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, newEchoRegistry(t, nil, false))
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), "hi")
	require.NoError(t, err)

	require.Len(t, provider.toolDefs, 1)
	require.Len(t, provider.toolDefs[0], 1)
	assert.Equal(t, "echo", provider.toolDefs[0][0].Name)
}

func TestSimpleAgentToolFailureFeedsErrorBack(t *testing.T) {
	provider := &scriptedProvider{completions: []*llms.Completion{
		{ToolCalls: []llms.ToolCall{{ID: "call_1", Name: "echo", Args: map[string]any{"text": "x"}}}},
		{Text: "could not echo"},
	}}

	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, newEchoRegistry(t, nil, true))
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "try")
	require.NoError(t, err)
	assert.Equal(t, "could not echo", result.Text)

	messages := provider.lastCall()
	require.Len(t, messages, 4)
	assert.Equal(t, llms.RoleTool, messages[3].Role)
	assert.Contains(t, messages[3].Content, "error: echo broke")
}

func TestSimpleAgentUnknownToolFeedsErrorBack(t *testing.T) {
	provider := &scriptedProvider{completions: []*llms.Completion{
		{ToolCalls: []llms.ToolCall{{ID: "call_1", Name: "nope", Args: map[string]any{}}}},
		{Text: "gave up"},
	}}

	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, newEchoRegistry(t, nil, false))
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "try")
	require.NoError(t, err)
	assert.Equal(t, "gave up", result.Text)

	messages := provider.lastCall()
	assert.Equal(t, llms.RoleTool, messages[len(messages)-1].Role)
	assert.Contains(t, messages[len(messages)-1].Content, "error:")
}

func TestSimpleAgentMaxTurns(t *testing.T) {
	// A provider that never stops calling tools.
	cfg := simpleConfig("loopy")
	cfg.MaxTurns = 3

	var completions []*llms.Completion
	for i := 0; i < 10; i++ {
		completions = append(completions, &llms.Completion{
			ToolCalls: []llms.ToolCall{{ID: fmt.Sprintf("call_%d", i), Name: "echo", Args: map[string]any{"text": "again"}}},
		})
	}
	provider := &scriptedProvider{completions: completions}

	agent, err := NewSimpleAgent(cfg, provider, newEchoRegistry(t, nil, false))
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Turns)
	assert.Equal(t, 3, provider.callCount())
}

func TestSimpleAgentProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("upstream down")}

	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, nil)
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestSimpleAgentKeepsHistory(t *testing.T) {
	provider := &scriptedProvider{completions: []*llms.Completion{
		{Text: "first answer"},
		{Text: "second answer"},
	}}

	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, nil)
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), "first question")
	require.NoError(t, err)
	_, err = agent.Run(context.Background(), "second question")
	require.NoError(t, err)

	// system + prior user + prior assistant + new user.
	messages := provider.lastCall()
	require.Len(t, messages, 4)
	assert.Equal(t, "first question", messages[1].Content)
	assert.Equal(t, "first answer", messages[2].Content)
	assert.Equal(t, llms.RoleAssistant, messages[2].Role)
	assert.Equal(t, "second question", messages[3].Content)

	agent.Reset()
	provider.completions = []*llms.Completion{{Text: "fresh"}}
	_, err = agent.Run(context.Background(), "third question")
	require.NoError(t, err)
	assert.Len(t, provider.lastCall(), 2)
}

func TestSimpleAgentRunStreaming(t *testing.T) {
	provider := &scriptedProvider{completions: []*llms.Completion{
		{ToolCalls: []llms.ToolCall{{ID: "call_1", Name: "echo", Args: map[string]any{"text": "hi"}}}},
		{Text: "all done", Tokens: 4},
	}}

	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, newEchoRegistry(t, nil, false))
	require.NoError(t, err)

	events, err := agent.RunStreaming(context.Background(), "stream it")
	require.NoError(t, err)

	var types []string
	var finish *Event
	for ev := range events {
		ev := ev
		types = append(types, ev.Type)
		if ev.Type == EventFinish {
			finish = &ev
		}
	}

	assert.Equal(t, []string{EventToolCall, EventToolCallOutput, EventTextDelta, EventFinish}, types)
	require.NotNil(t, finish)
	require.NotNil(t, finish.Result)
	assert.Equal(t, "all done", finish.Result.Text)
}

func TestSimpleAgentRunStreamingError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("boom")}

	agent, err := NewSimpleAgent(simpleConfig("tester"), provider, nil)
	require.NoError(t, err)

	events, err := agent.RunStreaming(context.Background(), "hi")
	require.NoError(t, err)

	var last Event
	for ev := range events {
		last = ev
	}
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Text, "boom")
}

func TestNewSimpleAgentValidation(t *testing.T) {
	_, err := NewSimpleAgent(nil, &scriptedProvider{}, nil)
	assert.Error(t, err)

	_, err = NewSimpleAgent(simpleConfig("x"), nil, nil)
	assert.Error(t, err)
}

func TestRegistryGetAgent(t *testing.T) {
	registry := NewRegistry()

	agent, err := NewSimpleAgent(simpleConfig("alpha"), &scriptedProvider{}, nil)
	require.NoError(t, err)
	require.NoError(t, registry.Register("alpha", agent))

	got, err := registry.GetAgent("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name())

	_, err = registry.GetAgent("beta")
	assert.ErrorContains(t, err, "not found")
}

func TestToolResultContent(t *testing.T) {
	assert.Equal(t, "ok", toolResultContent(tools.ToolResult{Success: true, Content: "ok"}))
	assert.Equal(t, "error: CODE\ndetails",
		toolResultContent(tools.ToolResult{Success: false, Error: "CODE", Content: "details"}))
	assert.Equal(t, "error: CODE",
		toolResultContent(tools.ToolResult{Success: false, Error: "CODE"}))
}
