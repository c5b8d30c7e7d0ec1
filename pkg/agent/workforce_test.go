package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
)

func workforceConfig(workers ...string) *config.AgentConfig {
	return &config.AgentConfig{
		Name:    "crew",
		Type:    config.AgentTypeWorkforce,
		Workers: workers,
	}
}

func TestWorkforceFansOutSubtasks(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: `["count users", "count orders", "count products"]`, Tokens: 3},
		{Text: "combined totals", Tokens: 5},
	}}

	w1 := &fakeWorker{name: "w1", reply: "10"}
	w2 := &fakeWorker{name: "w2", reply: "20"}

	agent, err := NewWorkforceAgent(workforceConfig("w1", "w2"), planner, []Agent{w1, w2})
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "count everything")
	require.NoError(t, err)

	assert.Equal(t, "combined totals", result.Text)
	assert.Equal(t, 3, result.Turns)
	assert.Equal(t, 3+5+3*2, result.Tokens)

	// Subtasks are assigned round-robin.
	w1.mu.Lock()
	w2.mu.Lock()
	total := len(w1.tasks) + len(w2.tasks)
	w2.mu.Unlock()
	w1.mu.Unlock()
	assert.Equal(t, 3, total)
}

func TestWorkforceSingleSubtaskSkipsSynthesis(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: `["just one thing"]`, Tokens: 1},
	}}

	w1 := &fakeWorker{name: "w1", reply: "the answer"}
	agent, err := NewWorkforceAgent(workforceConfig("w1"), planner, []Agent{w1})
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "do one thing")
	require.NoError(t, err)

	assert.Equal(t, "the answer", result.Text)
	// Only the split call reached the planner.
	assert.Equal(t, 1, planner.callCount())
}

func TestWorkforceUnparseableSplitFallsBack(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: "cannot split, sorry"},
	}}

	w1 := &fakeWorker{name: "w1", reply: "done anyway"}
	agent, err := NewWorkforceAgent(workforceConfig("w1"), planner, []Agent{w1})
	require.NoError(t, err)

	result, err := agent.Run(context.Background(), "the whole request")
	require.NoError(t, err)

	assert.Equal(t, "done anyway", result.Text)
	require.Len(t, w1.tasks, 1)
	assert.Equal(t, "the whole request", w1.tasks[0])
}

func TestWorkforceWorkerFailure(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: `["a", "b"]`},
	}}

	good := &fakeWorker{name: "good", reply: "fine"}
	bad := &fakeWorker{name: "bad", err: errors.New("exploded")}

	agent, err := NewWorkforceAgent(workforceConfig("good", "bad"), planner, []Agent{good, bad})
	require.NoError(t, err)

	_, err = agent.Run(context.Background(), "task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
}

func TestWorkforceStreaming(t *testing.T) {
	planner := &scriptedProvider{completions: []*llms.Completion{
		{Text: `["a", "b"]`},
		{Text: "synthesis", Tokens: 2},
	}}

	w1 := &fakeWorker{name: "w1", reply: "ra"}
	agent, err := NewWorkforceAgent(workforceConfig("w1"), planner, []Agent{w1})
	require.NoError(t, err)

	events, err := agent.RunStreaming(context.Background(), "task")
	require.NoError(t, err)

	var finish *RunResult
	sawDelta := false
	for ev := range events {
		switch ev.Type {
		case EventTextDelta:
			sawDelta = true
		case EventFinish:
			finish = ev.Result
		}
	}

	assert.True(t, sawDelta)
	require.NotNil(t, finish)
	assert.Equal(t, "synthesis", finish.Text)
}

func TestNewWorkforceAgentValidation(t *testing.T) {
	_, err := NewWorkforceAgent(workforceConfig("w"), &scriptedProvider{}, nil)
	assert.Error(t, err)

	_, err = NewWorkforceAgent(workforceConfig("w"), nil, []Agent{&fakeWorker{name: "w"}})
	assert.Error(t, err)
}

func TestParseSubtasks(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseSubtasks(`["a", "b"]`))
	assert.Equal(t, []string{"a"}, parseSubtasks("prose\n```json\n[\"a\", \"  \"]\n```"))
	assert.Nil(t, parseSubtasks("no array"))
	assert.Nil(t, parseSubtasks(`["a",]`))
}
